// Package planner turns allocation deviations into an ordered list of
// rebalance actions routed through an intermediary asset.
package planner

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/sonicagent/engine/internal/domain"
)

// StablecoinChecker reports whether a mint is a stable asset. Satisfied by
// the market data client.
type StablecoinChecker interface {
	IsStablecoin(mint string) bool
}

// Planner builds rebalance plans. Pure given its inputs; the stablecoin
// check is the only external knowledge it consumes.
type Planner struct {
	stables StablecoinChecker
	log     zerolog.Logger
}

// NewPlanner creates a new rebalance planner
func NewPlanner(stables StablecoinChecker, log zerolog.Logger) *Planner {
	return &Planner{
		stables: stables,
		log:     log.With().Str("service", "rebalance_planner").Logger(),
	}
}

// Plan produces the ordered action list for the given deviations. Sells
// come before buys so intermediary balance is replenished before it is
// spent; within each group actions are ordered by severity. Actions with a
// non-positive amount are dropped without comment.
func (p *Planner) Plan(portfolio *domain.Portfolio, deviations []domain.AllocationDeviation, thresholdPct float64, targets []domain.TargetAllocation) ([]domain.RebalanceAction, error) {
	intermediary, err := p.selectIntermediary(portfolio)
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]float64, len(targets))
	for _, t := range targets {
		if t.MaxDeviationPct > 0 {
			overrides[t.Mint] = t.MaxDeviationPct
		}
	}

	var sells, buys []domain.RebalanceAction

	for _, dev := range deviations {
		if dev.Mint == intermediary.Mint {
			continue
		}

		threshold := thresholdPct
		if override, ok := overrides[dev.Mint]; ok {
			threshold = override
		}
		if math.Abs(dev.Diff) <= threshold {
			continue
		}

		if dev.Diff > 0 {
			action, ok := p.sellAction(portfolio, dev, intermediary)
			if ok {
				sells = append(sells, action)
			}
		} else {
			action, ok := p.buyAction(portfolio, dev, intermediary)
			if ok {
				buys = append(buys, action)
			}
		}
	}

	bySeverity := func(actions []domain.RebalanceAction) {
		sort.SliceStable(actions, func(i, j int) bool {
			return math.Abs(actions[i].Deviation) > math.Abs(actions[j].Deviation)
		})
	}
	bySeverity(sells)
	bySeverity(buys)

	plan := append(sells, buys...)

	p.log.Info().
		Str("wallet", portfolio.Wallet).
		Str("intermediary", intermediary.Symbol).
		Int("sells", len(sells)).
		Int("buys", len(buys)).
		Float64("threshold_pct", thresholdPct).
		Msg("Generated rebalance plan")

	return plan, nil
}

// selectIntermediary picks the asset all swaps route through: a held
// stablecoin first, the native gas asset second.
func (p *Planner) selectIntermediary(portfolio *domain.Portfolio) (*domain.Asset, error) {
	for i := range portfolio.Assets {
		if p.stables.IsStablecoin(portfolio.Assets[i].Mint) {
			return &portfolio.Assets[i], nil
		}
	}
	if native := portfolio.Asset(nativeMint); native != nil {
		return native, nil
	}
	return nil, &domain.NoIntermediaryAssetError{Wallet: portfolio.Wallet}
}

const nativeMint = "So11111111111111111111111111111111111111112"

// sellAction reduces an overweight position into the intermediary. The
// amount is the held balance scaled by the share of it that is excess.
func (p *Planner) sellAction(portfolio *domain.Portfolio, dev domain.AllocationDeviation, intermediary *domain.Asset) (domain.RebalanceAction, bool) {
	asset := portfolio.Asset(dev.Mint)
	if asset == nil || dev.CurrentPct <= 0 {
		return domain.RebalanceAction{}, false
	}

	amount := asset.UIAmount * (dev.Diff / dev.CurrentPct)
	if amount <= 0 {
		return domain.RebalanceAction{}, false
	}

	return domain.RebalanceAction{
		Op:         domain.OpSell,
		FromMint:   asset.Mint,
		FromSymbol: asset.Symbol,
		ToMint:     intermediary.Mint,
		ToSymbol:   intermediary.Symbol,
		Amount:     amount,
		CurrentPct: dev.CurrentPct,
		TargetPct:  dev.TargetPct,
		Deviation:  dev.Diff,
		Status:     domain.ActionPlanned,
	}, true
}

// buyAction grows an underweight position by spending intermediary units
// worth the deficit's share of the portfolio.
func (p *Planner) buyAction(portfolio *domain.Portfolio, dev domain.AllocationDeviation, intermediary *domain.Asset) (domain.RebalanceAction, bool) {
	if intermediary.PriceUSD <= 0 {
		return domain.RebalanceAction{}, false
	}

	deficit := -dev.Diff
	amount := (deficit / 100 * portfolio.TotalValueUSD) / intermediary.PriceUSD
	if amount <= 0 {
		return domain.RebalanceAction{}, false
	}

	symbol := dev.Symbol
	return domain.RebalanceAction{
		Op:         domain.OpBuy,
		FromMint:   intermediary.Mint,
		FromSymbol: intermediary.Symbol,
		ToMint:     dev.Mint,
		ToSymbol:   symbol,
		Amount:     amount,
		CurrentPct: dev.CurrentPct,
		TargetPct:  dev.TargetPct,
		Deviation:  dev.Diff,
		Status:     domain.ActionPlanned,
	}, true
}
