// Package execution runs quoted rebalance actions as strictly sequential
// on-chain swaps, one live session per wallet.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonicagent/engine/internal/domain"
	"github.com/sonicagent/engine/internal/events"
)

// TradeJournal is the local journal consulted for trade-frequency limits
// and appended to after every attempt.
type TradeJournal interface {
	CountTradesSince(ctx context.Context, wallet string, since time.Time) (int, error)
	LastTradeForMint(ctx context.Context, wallet, mint string) (time.Time, bool, error)
	RecordTrade(ctx context.Context, record domain.TradeRecord) error
}

// Config holds coordinator tuning
type Config struct {
	InterActionDelay time.Duration // venue rate-limit spacing between swaps
	ActionTimeout    time.Duration // build+sign+submit budget per action
	MintCooldown     time.Duration // minimum spacing between trades of the same mint
}

// Coordinator executes rebalance plans. All shared state is behind the
// wallet lock registry; the coordinator itself is safe for concurrent use.
type Coordinator struct {
	venue    domain.SwapVenue
	signer   domain.Signer
	ledger   domain.LedgerClient
	journal  TradeJournal
	notifier domain.NotificationSink
	events   *events.Manager
	cfg      Config
	locks    *walletLocks
	log      zerolog.Logger
}

// NewCoordinator creates a new execution coordinator
func NewCoordinator(venue domain.SwapVenue, signer domain.Signer, ledger domain.LedgerClient, journal TradeJournal, notifier domain.NotificationSink, eventManager *events.Manager, cfg Config, log zerolog.Logger) *Coordinator {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 60 * time.Second
	}
	return &Coordinator{
		venue:    venue,
		signer:   signer,
		ledger:   ledger,
		journal:  journal,
		notifier: notifier,
		events:   eventManager,
		cfg:      cfg,
		locks:    newWalletLocks(),
		log:      log.With().Str("service", "execution_coordinator").Logger(),
	}
}

// Execute runs the plan for a wallet. A session for a busy wallet waits for
// the in-flight one to finish before starting. It always returns a structured
// result for the actions it received; the error return is reserved for
// refusing to start (cancelled while waiting, journal unavailable).
func (c *Coordinator) Execute(ctx context.Context, wallet string, actions []domain.RebalanceAction, rules domain.TradingRules) (*domain.RebalanceResult, error) {
	release, err := c.locks.acquire(ctx, wallet)
	if err != nil {
		return nil, err
	}
	defer release()

	sessionID := uuid.New().String()
	result := &domain.RebalanceResult{
		SessionID:    sessionID,
		Wallet:       wallet,
		State:        domain.SessionExecuting,
		Actions:      make([]domain.RebalanceAction, len(actions)),
		TotalPlanned: len(actions),
		StartedAt:    time.Now(),
	}
	copy(result.Actions, actions)

	c.events.EmitTyped(events.SessionStarted, "execution", &events.SessionStartedData{
		SessionID: sessionID,
		Wallet:    wallet,
		Actions:   len(actions),
	})

	tradeBudget, err := c.remainingDailyBudget(ctx, wallet, rules)
	if err != nil {
		return nil, fmt.Errorf("failed to check daily trade budget: %w", err)
	}

	cancelled := false
	for i := range result.Actions {
		action := result.Actions[i]

		if action.Status == domain.ActionUnquotable {
			continue
		}

		// Cancellation is honored between actions only; an in-flight swap
		// is never abandoned half-signed.
		if cancelled || ctx.Err() != nil {
			cancelled = true
			result.Actions[i] = action.WithStatus(domain.ActionNotAttempted, "session cancelled")
			continue
		}

		if action.Status != domain.ActionQuoted {
			result.Actions[i] = action.WithStatus(domain.ActionNotAttempted, "no quote resolved")
			continue
		}

		if tradeBudget == 0 {
			result.Actions[i] = action.WithStatus(domain.ActionNotAttempted, "daily trade limit reached")
			continue
		}

		if reason, cooling := c.inCooldown(ctx, wallet, action); cooling {
			result.Actions[i] = action.WithStatus(domain.ActionNotAttempted, reason)
			continue
		}

		if i > 0 && c.cfg.InterActionDelay > 0 {
			select {
			case <-ctx.Done():
				cancelled = true
				result.Actions[i] = action.WithStatus(domain.ActionNotAttempted, "session cancelled")
				continue
			case <-time.After(c.cfg.InterActionDelay):
			}
		}

		executed := c.executeAction(ctx, wallet, action, rules)
		result.Actions[i] = executed

		if executed.Status == domain.ActionSucceeded && tradeBudget > 0 {
			tradeBudget--
		}
		if executed.Status == domain.ActionFailed {
			result.Errors = append(result.Errors, fmt.Sprintf("%s -> %s: %s", executed.FromSymbol, executed.ToSymbol, executed.Error))
		}
	}

	c.finalize(result)

	c.events.EmitTyped(events.SessionCompleted, "execution", &events.SessionCompletedData{
		SessionID:    sessionID,
		Wallet:       wallet,
		Executed:     result.Executed,
		Failed:       result.Failed,
		NotAttempted: result.NotAttempted,
		IsComplete:   result.IsComplete,
	})
	c.notifySummary(ctx, result)

	return result, nil
}

// executeAction runs one quoted action through build, sign, submit.
func (c *Coordinator) executeAction(ctx context.Context, wallet string, action domain.RebalanceAction, rules domain.TradingRules) domain.RebalanceAction {
	actionCtx, cancel := context.WithTimeout(ctx, c.cfg.ActionTimeout)
	defer cancel()

	action = action.WithStatus(domain.ActionExecuting, "")

	slippageBps := action.Quote.SlippageBps
	if rules.MaxSlippageBps > 0 && slippageBps > rules.MaxSlippageBps {
		slippageBps = rules.MaxSlippageBps
	}

	tx, err := c.venue.BuildSwapTransaction(actionCtx, *action.Quote, c.signer.Pubkey(), domain.SwapOptions{
		SlippageBps:   slippageBps,
		WrapUnwrapSOL: true,
	})
	if err != nil {
		return c.failAction(ctx, wallet, action, &domain.ExecutionError{Stage: "build", Err: err})
	}

	signed, err := c.signer.Sign(actionCtx, tx.Payload)
	if err != nil {
		return c.failAction(ctx, wallet, action, &domain.ExecutionError{Stage: "sign", Err: err})
	}

	submit, err := c.venue.SubmitSigned(actionCtx, signed)
	if err != nil {
		return c.failAction(ctx, wallet, action, &domain.ExecutionError{Stage: "submit", Err: err})
	}
	if !submit.Success {
		return c.failAction(ctx, wallet, action, &domain.ExecutionError{Stage: "confirm", Err: fmt.Errorf("%s", submit.Error)})
	}

	action = action.WithStatus(domain.ActionSucceeded, "")
	action.Signature = submit.Signature

	c.recordTrade(ctx, wallet, action, true)

	c.events.EmitTyped(events.TradeExecuted, "execution", &events.TradeExecutedData{
		Wallet:       wallet,
		InputSymbol:  action.FromSymbol,
		OutputSymbol: action.ToSymbol,
		InputAmount:  action.Amount,
		OutputAmount: action.EstimatedOut,
		Signature:    action.Signature,
	})
	c.notifier.Notify(ctx, domain.Notification{
		Type:    domain.NotifySuccess,
		Title:   "Trade executed",
		Message: fmt.Sprintf("Swapped %.6f %s for %s", action.Amount, action.FromSymbol, action.ToSymbol),
	})

	return action
}

// failAction marks the action failed, records the attempt and notifies.
func (c *Coordinator) failAction(ctx context.Context, wallet string, action domain.RebalanceAction, execErr *domain.ExecutionError) domain.RebalanceAction {
	c.log.Error().
		Str("wallet", wallet).
		Str("from", action.FromSymbol).
		Str("to", action.ToSymbol).
		Str("stage", execErr.Stage).
		Err(execErr.Err).
		Msg("Action execution failed")

	action = action.WithStatus(domain.ActionFailed, execErr.Error())

	c.recordTrade(ctx, wallet, action, false)

	c.events.EmitTyped(events.TradeFailed, "execution", &events.TradeFailedData{
		Wallet:       wallet,
		InputSymbol:  action.FromSymbol,
		OutputSymbol: action.ToSymbol,
		Reason:       execErr.Error(),
	})
	c.notifier.Notify(ctx, domain.Notification{
		Type:    domain.NotifyError,
		Title:   "Trade failed",
		Message: fmt.Sprintf("%s -> %s failed at %s", action.FromSymbol, action.ToSymbol, execErr.Stage),
	})

	return action
}

// recordTrade journals the attempt locally and, for successes, mirrors it
// to the chain ledger. Both writes are best-effort.
func (c *Coordinator) recordTrade(ctx context.Context, wallet string, action domain.RebalanceAction, success bool) {
	record := domain.TradeRecord{
		Wallet:       wallet,
		InputMint:    action.FromMint,
		OutputMint:   action.ToMint,
		InputAmount:  action.Amount,
		OutputAmount: action.EstimatedOut,
		SlippageBps:  action.Quote.SlippageBps,
		Signature:    action.Signature,
		Reason:       fmt.Sprintf("rebalance %s", action.Op),
		Success:      success,
		ExecutedAt:   time.Now(),
	}

	if err := c.journal.RecordTrade(ctx, record); err != nil {
		c.log.Warn().Err(err).Str("wallet", wallet).Msg("Failed to journal trade")
	}

	if !success {
		return
	}
	if err := c.ledger.RecordTrade(ctx, record); err != nil {
		ledgerErr := &domain.LedgerRecordError{Signature: action.Signature, Err: err}
		c.log.Warn().Err(ledgerErr).Str("wallet", wallet).Msg("Failed to record trade on ledger")
	}
}

// remainingDailyBudget returns how many more trades today's limit allows,
// or -1 for unlimited.
func (c *Coordinator) remainingDailyBudget(ctx context.Context, wallet string, rules domain.TradingRules) (int, error) {
	if rules.MaxTradesPerDay <= 0 {
		return -1, nil
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := c.journal.CountTradesSince(ctx, wallet, midnight)
	if err != nil {
		return 0, err
	}

	remaining := rules.MaxTradesPerDay - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// inCooldown reports whether either leg of the action traded too recently.
func (c *Coordinator) inCooldown(ctx context.Context, wallet string, action domain.RebalanceAction) (string, bool) {
	if c.cfg.MintCooldown <= 0 {
		return "", false
	}

	for _, mint := range []string{action.FromMint, action.ToMint} {
		last, found, err := c.journal.LastTradeForMint(ctx, wallet, mint)
		if err != nil {
			c.log.Warn().Err(err).Str("mint", mint).Msg("Cooldown check failed, allowing trade")
			return "", false
		}
		if found && time.Since(last) < c.cfg.MintCooldown {
			return fmt.Sprintf("mint %s traded within cooldown window", mint), true
		}
	}
	return "", false
}

// finalize fills in the result counters and terminal state.
func (c *Coordinator) finalize(result *domain.RebalanceResult) {
	for _, action := range result.Actions {
		switch action.Status {
		case domain.ActionSucceeded:
			result.Executed++
		case domain.ActionFailed:
			result.Failed++
		case domain.ActionUnquotable:
			result.Unquotable++
		case domain.ActionNotAttempted:
			result.NotAttempted++
		}
	}

	result.IsComplete = result.Failed == 0 &&
		result.NotAttempted == 0 &&
		result.Executed == result.TotalPlanned
	result.Success = result.Failed == 0
	result.FinishedAt = time.Now()

	switch {
	case result.TotalPlanned == 0 || result.IsComplete:
		result.State = domain.SessionCompleted
	case result.Executed == 0 && result.Failed > 0:
		result.State = domain.SessionFailed
	default:
		result.State = domain.SessionPartiallyCompleted
	}
}

// notifySummary sends the one-per-session summary notification.
func (c *Coordinator) notifySummary(ctx context.Context, result *domain.RebalanceResult) {
	notifType := domain.NotifySuccess
	if result.Failed > 0 {
		notifType = domain.NotifyWarning
	}

	c.notifier.Notify(ctx, domain.Notification{
		Type:  notifType,
		Title: "Rebalance session finished",
		Message: fmt.Sprintf("%d/%d trades executed (%d failed, %d skipped)",
			result.Executed, result.TotalPlanned, result.Failed, result.Unquotable+result.NotAttempted),
	})
}
