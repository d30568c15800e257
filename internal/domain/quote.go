package domain

import "time"

// QuoteRequest asks the swap venue for a route between two mints.
// Amount is in raw base units of the input mint.
type QuoteRequest struct {
	InputMint   string `json:"input_mint"`
	OutputMint  string `json:"output_mint"`
	Amount      uint64 `json:"amount"`
	SlippageBps int    `json:"slippage_bps"`
}

// Quote is a venue-provided estimate for a prospective swap.
type Quote struct {
	InputMint      string    `json:"input_mint"`
	OutputMint     string    `json:"output_mint"`
	InAmount       uint64    `json:"in_amount"`  // raw input units
	OutAmount      uint64    `json:"out_amount"` // raw output units
	PriceImpactPct float64   `json:"price_impact_pct"`
	Route          []string  `json:"route"`
	SlippageBps    int       `json:"slippage_bps"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// QuoteResult is a closed tagged variant: exactly one of Quote or
// Unavailable is set. Call sites must handle both arms instead of nil
// checking loosely typed payloads.
type QuoteResult struct {
	Quote       *Quote            `json:"quote,omitempty"`
	Unavailable *QuoteUnavailable `json:"unavailable,omitempty"`
}

// QuoteUnavailable explains why the venue returned no usable route.
type QuoteUnavailable struct {
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

// Ok reports whether the result carries a usable quote.
func (r QuoteResult) Ok() bool {
	return r.Quote != nil
}

// QuoteOk builds the success arm of a QuoteResult.
func QuoteOk(q Quote) QuoteResult {
	return QuoteResult{Quote: &q}
}

// QuoteFailed builds the unavailable arm of a QuoteResult.
func QuoteFailed(reason string, retryable bool) QuoteResult {
	return QuoteResult{Unavailable: &QuoteUnavailable{Reason: reason, Retryable: retryable}}
}

// SwapOptions are execution knobs passed through to the venue.
type SwapOptions struct {
	SlippageBps   int    `json:"slippage_bps"`
	PriorityFee   uint64 `json:"priority_fee,omitempty"` // micro-lamports per compute unit
	ComputeUnits  uint32 `json:"compute_units,omitempty"`
	WrapUnwrapSOL bool   `json:"wrap_unwrap_sol"`
}

// SwapTransaction is an executable transaction built by the venue from a
// quote. The payload is opaque to the engine; only the signer decodes it.
type SwapTransaction struct {
	Payload []byte    `json:"payload"` // serialized unsigned transaction
	Expiry  time.Time `json:"expiry"`
}

// SubmitResult is the venue's response to a signed submission.
type SubmitResult struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}
