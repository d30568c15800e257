// Package allocation computes per-asset deviations between a portfolio
// snapshot and its target allocation.
package allocation

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/sonicagent/engine/internal/domain"
)

// Analyzer derives allocation deviations. It is a pure computation over its
// inputs: no clients, no storage, safe for concurrent use.
type Analyzer struct {
	log zerolog.Logger
}

// NewAnalyzer creates a new allocation analyzer
func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{
		log: log.With().Str("service", "allocation_analyzer").Logger(),
	}
}

// Analyze returns one deviation entry per asset in the union of the
// snapshot and the targets. Assets held without a target deviate by their
// full current percentage; targeted assets not held deviate by the negated
// target. Output is sorted by absolute deviation, largest first.
func (a *Analyzer) Analyze(portfolio *domain.Portfolio, targets []domain.TargetAllocation) ([]domain.AllocationDeviation, error) {
	if err := a.validate(portfolio, targets); err != nil {
		return nil, err
	}

	targetByMint := make(map[string]domain.TargetAllocation, len(targets))
	for _, t := range targets {
		targetByMint[t.Mint] = t
	}

	total := portfolio.TotalValueUSD
	deviations := make([]domain.AllocationDeviation, 0, len(portfolio.Assets)+len(targets))
	seen := make(map[string]bool, len(portfolio.Assets))

	for _, asset := range portfolio.Assets {
		seen[asset.Mint] = true

		var currentPct float64
		if total > 0 {
			currentPct = asset.ValueUSD / total * 100
		}

		var targetPct float64
		symbol := asset.Symbol
		if t, ok := targetByMint[asset.Mint]; ok {
			targetPct = t.TargetPct
			if symbol == "" {
				symbol = t.Symbol
			}
		}

		deviations = append(deviations, domain.AllocationDeviation{
			Mint:       asset.Mint,
			Symbol:     symbol,
			CurrentPct: currentPct,
			TargetPct:  targetPct,
			Diff:       currentPct - targetPct,
		})
	}

	// Targets for assets the wallet does not hold at all.
	for _, t := range targets {
		if seen[t.Mint] {
			continue
		}
		deviations = append(deviations, domain.AllocationDeviation{
			Mint:       t.Mint,
			Symbol:     t.Symbol,
			CurrentPct: 0,
			TargetPct:  t.TargetPct,
			Diff:       -t.TargetPct,
		})
	}

	sort.SliceStable(deviations, func(i, j int) bool {
		return math.Abs(deviations[i].Diff) > math.Abs(deviations[j].Diff)
	})

	a.log.Debug().
		Str("wallet", portfolio.Wallet).
		Int("assets", len(portfolio.Assets)).
		Int("deviations", len(deviations)).
		Msg("Analyzed allocations")

	return deviations, nil
}

// validate rejects malformed snapshots and targets before any math runs.
func (a *Analyzer) validate(portfolio *domain.Portfolio, targets []domain.TargetAllocation) error {
	if portfolio == nil {
		return &domain.ValidationError{Field: "portfolio", Reason: "snapshot is nil"}
	}

	for _, asset := range portfolio.Assets {
		if asset.Mint == "" {
			return &domain.ValidationError{Field: "asset.mint", Reason: "empty mint address"}
		}
		if math.IsNaN(asset.PriceUSD) || math.IsInf(asset.PriceUSD, 0) || asset.PriceUSD < 0 {
			return &domain.ValidationError{Field: "asset.price_usd", Reason: "price must be finite and non-negative for " + asset.Mint}
		}
		if math.IsNaN(asset.ValueUSD) || math.IsInf(asset.ValueUSD, 0) || asset.ValueUSD < 0 {
			return &domain.ValidationError{Field: "asset.value_usd", Reason: "value must be finite and non-negative for " + asset.Mint}
		}
	}

	for _, t := range targets {
		if t.Mint == "" {
			return &domain.ValidationError{Field: "target.mint", Reason: "empty mint address"}
		}
		if t.TargetPct < 0 || t.TargetPct > 100 {
			return &domain.ValidationError{Field: "target.target_pct", Reason: "target percentage out of range for " + t.Mint}
		}
	}

	return nil
}
