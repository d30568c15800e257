package domain

import "fmt"

// The error taxonomy mirrors the session failure semantics: validation and
// planning errors abort a session and propagate to the caller; quote,
// execution and ledger errors are per-action, captured into the session
// result and never thrown past the session boundary.

// ValidationError reports malformed snapshot or configuration input.
// Raised before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NoIntermediaryAssetError means planning cannot proceed because the
// portfolio holds neither a stable asset nor the native gas asset.
type NoIntermediaryAssetError struct {
	Wallet string
}

func (e *NoIntermediaryAssetError) Error() string {
	return fmt.Sprintf("no intermediary asset available for wallet %s (no stablecoin or native asset held)", e.Wallet)
}

// QuoteUnavailableError marks a single action as unquotable. The action is
// excluded from execution; the session continues.
type QuoteUnavailableError struct {
	InputMint  string
	OutputMint string
	Reason     string
}

func (e *QuoteUnavailableError) Error() string {
	return fmt.Sprintf("no quote for %s -> %s: %s", e.InputMint, e.OutputMint, e.Reason)
}

// ExecutionError marks a single action's swap as failed on-chain.
type ExecutionError struct {
	Stage string // "build", "sign", "submit", "confirm"
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed at %s: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// LedgerRecordError means the swap succeeded but the best-effort trade
// record write failed. Logged only; never changes the action's status.
type LedgerRecordError struct {
	Signature string
	Err       error
}

func (e *LedgerRecordError) Error() string {
	return fmt.Sprintf("failed to record trade %s on ledger: %v", e.Signature, e.Err)
}

func (e *LedgerRecordError) Unwrap() error {
	return e.Err
}
