// Package quotes enriches planned rebalance actions with venue quotes.
package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sonicagent/engine/internal/domain"
)

// Resolver fetches quotes for planned actions. Each action resolves to
// either Quoted or Unquotable; the resolver never drops an action.
type Resolver struct {
	venue       domain.SwapVenue
	retries     int // extra attempts after the first failure
	concurrency int
	retryDelay  time.Duration
	log         zerolog.Logger
}

// NewResolver creates a new quote resolver
func NewResolver(venue domain.SwapVenue, retries, concurrency int, log zerolog.Logger) *Resolver {
	if retries < 0 {
		retries = 0
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{
		venue:       venue,
		retries:     retries,
		concurrency: concurrency,
		retryDelay:  500 * time.Millisecond,
		log:         log.With().Str("service", "quote_resolver").Logger(),
	}
}

// RawAmount converts a ui amount to raw base units, flooring. Never rounds
// up: overshooting a balance by one base unit fails the swap outright.
func RawAmount(uiAmount float64, decimals uint8) uint64 {
	raw := decimal.NewFromFloat(uiAmount).
		Mul(decimal.New(1, int32(decimals))).
		Floor()
	if raw.Sign() <= 0 {
		return 0
	}
	return uint64(raw.IntPart())
}

// UIAmount converts raw base units back to a ui amount.
func UIAmount(raw uint64, decimals uint8) float64 {
	out, _ := decimal.New(int64(raw), 0).
		Div(decimal.New(1, int32(decimals))).
		Float64()
	return out
}

// Resolve fetches a quote for one action and returns it as Quoted or
// Unquotable. Transient failures are retried up to the configured count.
func (r *Resolver) Resolve(ctx context.Context, action domain.RebalanceAction, fromDecimals uint8, toDecimals int, slippageBps int) domain.RebalanceAction {
	rawAmount := RawAmount(action.Amount, fromDecimals)
	if rawAmount == 0 {
		return action.WithStatus(domain.ActionUnquotable, "amount floors to zero base units")
	}

	req := domain.QuoteRequest{
		InputMint:   action.FromMint,
		OutputMint:  action.ToMint,
		Amount:      rawAmount,
		SlippageBps: slippageBps,
	}

	var lastReason string
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return action.WithStatus(domain.ActionUnquotable, "cancelled while quoting")
			case <-time.After(r.retryDelay):
			}
		}

		result, err := r.venue.GetQuote(ctx, req)
		if err != nil {
			lastReason = fmt.Sprintf("quote request failed: %v", err)
			r.log.Warn().
				Str("from", action.FromSymbol).
				Str("to", action.ToSymbol).
				Int("attempt", attempt+1).
				Err(err).
				Msg("Quote attempt failed")
			continue
		}

		if result.Ok() {
			estimatedOut := float64(0)
			if toDecimals >= 0 {
				estimatedOut = UIAmount(result.Quote.OutAmount, uint8(toDecimals))
			}
			return action.WithQuote(*result.Quote, estimatedOut)
		}

		lastReason = result.Unavailable.Reason
		if !result.Unavailable.Retryable {
			break
		}
	}

	return action.WithStatus(domain.ActionUnquotable, lastReason)
}

// ResolveRecommendation enriches a draft recommendation with a venue quote,
// filling its estimated output and price impact. A draft whose route cannot
// be quoted is returned unchanged; recommendations are advisory and carry on
// without an estimate.
func (r *Resolver) ResolveRecommendation(ctx context.Context, rec domain.TradeRecommendation, portfolio *domain.Portfolio, slippageBps int) domain.TradeRecommendation {
	fromAsset := portfolio.Asset(rec.InputMint)
	if fromAsset == nil {
		return rec
	}

	toDecimals := -1
	if toAsset := portfolio.Asset(rec.OutputMint); toAsset != nil {
		toDecimals = int(toAsset.Decimals)
	}

	draft := domain.RebalanceAction{
		FromMint:   rec.InputMint,
		FromSymbol: rec.InputSymbol,
		ToMint:     rec.OutputMint,
		ToSymbol:   rec.OutputSymbol,
		Amount:     rec.InputAmount,
		Status:     domain.ActionPlanned,
	}

	resolved := r.Resolve(ctx, draft, fromAsset.Decimals, toDecimals, slippageBps)
	if resolved.Status != domain.ActionQuoted {
		r.log.Debug().
			Str("from", rec.InputSymbol).
			Str("to", rec.OutputSymbol).
			Str("reason", resolved.Error).
			Msg("Recommendation draft left unquoted")
		return rec
	}

	rec.Quote = resolved.Quote
	rec.EstimatedOut = resolved.EstimatedOut
	rec.PriceImpactPct = resolved.PriceImpactPct
	return rec
}

// ResolveAll quotes every action concurrently, bounded by the configured
// limit, and returns them in their original order. The plan is final only
// once every action has resolved one way or the other.
func (r *Resolver) ResolveAll(ctx context.Context, actions []domain.RebalanceAction, portfolio *domain.Portfolio, slippageBps int) []domain.RebalanceAction {
	resolved := make([]domain.RebalanceAction, len(actions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, action := range actions {
		i, action := i, action
		g.Go(func() error {
			fromAsset := portfolio.Asset(action.FromMint)
			if fromAsset == nil {
				resolved[i] = action.WithStatus(domain.ActionUnquotable, "input asset not held")
				return nil
			}

			// Output decimals are only known for held assets; estimates
			// are omitted for fresh buys.
			toDecimals := -1
			if toAsset := portfolio.Asset(action.ToMint); toAsset != nil {
				toDecimals = int(toAsset.Decimals)
			}

			resolved[i] = r.Resolve(gctx, action, fromAsset.Decimals, toDecimals, slippageBps)
			return nil
		})
	}

	// Workers never return errors; Wait is only a join point.
	_ = g.Wait()

	var quoted, unquotable int
	for _, a := range resolved {
		switch a.Status {
		case domain.ActionQuoted:
			quoted++
		case domain.ActionUnquotable:
			unquotable++
		}
	}
	r.log.Info().
		Str("wallet", portfolio.Wallet).
		Int("quoted", quoted).
		Int("unquotable", unquotable).
		Msg("Resolved quotes for plan")

	return resolved
}
