// Package signals generates trade recommendations from market data,
// technical indicators and the configured risk profile.
package signals

import (
	"fmt"
	"math"

	"github.com/sonicagent/engine/internal/domain"
)

// Input is the evaluated world state shared by all strategies for one
// analysis cycle. Built once by the engine, read-only for strategies.
type Input struct {
	Portfolio  *domain.Portfolio
	Config     *domain.AgentConfig
	Trend      domain.MarketTrend
	Indicators map[string]*domain.TechnicalIndicators
	History    map[string][]domain.PricePoint // 7d series per mint
	Stable     *domain.Asset                  // held stable asset, nil when none
	Reference  string                         // reference mint for beta
}

// Proposal is a strategy's raw trade suggestion before confidence scoring.
type Proposal struct {
	InputMint    string
	InputSymbol  string
	OutputMint   string
	OutputSymbol string
	InputAmount  float64 // ui units of the input asset
	Signals      []domain.Signal
	Reason       string
}

// Strategy evaluates the cycle input into zero or more proposals.
type Strategy interface {
	ID() string
	Name() string
	Evaluate(input *Input) []Proposal
}

// candidateMints returns the buyable universe: preferred mints minus
// exclusions, minus the stable intermediary itself.
func candidateMints(input *Input) []string {
	excluded := make(map[string]bool, len(input.Config.Rules.ExcludedMints))
	for _, m := range input.Config.Rules.ExcludedMints {
		excluded[m] = true
	}

	var out []string
	for _, mint := range input.Config.PreferredMints {
		if excluded[mint] {
			continue
		}
		if input.Stable != nil && mint == input.Stable.Mint {
			continue
		}
		out = append(out, mint)
	}
	return out
}

// heldNonStable returns held assets excluding the stable intermediary and
// the native gas reserve.
func heldNonStable(input *Input) []domain.Asset {
	var out []domain.Asset
	for _, asset := range input.Portfolio.Assets {
		if input.Stable != nil && asset.Mint == input.Stable.Mint {
			continue
		}
		if asset.Mint == nativeMint {
			continue
		}
		if asset.UIAmount <= 0 {
			continue
		}
		out = append(out, asset)
	}
	return out
}

const nativeMint = "So11111111111111111111111111111111111111112"

// spendableStable caps a stable spend at the fraction of the balance and
// the per-trade USD limit.
func spendableStable(input *Input, fraction float64) float64 {
	if input.Stable == nil || input.Stable.UIAmount <= 0 {
		return 0
	}

	amount := input.Stable.UIAmount * fraction
	maxUSD := input.Config.Rules.MaxAmountPerTradeUSD
	if maxUSD > 0 && input.Stable.PriceUSD > 0 {
		maxUnits := maxUSD / input.Stable.PriceUSD
		amount = math.Min(amount, maxUnits)
	}
	return amount
}

// emaCrossSignal derives a moving-average-cross signal from the indicator
// bundle, oriented for the proposed direction: a golden cross supports a buy,
// a death cross supports a sell. Returns false when either EMA is missing.
func emaCrossSignal(ind *domain.TechnicalIndicators, op domain.TradeOp) (domain.Signal, bool) {
	if ind == nil || ind.EMA20 <= 0 || ind.EMA50 <= 0 {
		return domain.Signal{}, false
	}
	spread := (ind.EMA20 - ind.EMA50) / ind.EMA50 * 100

	aligned := spread >= 0
	if op == domain.OpSell {
		aligned = spread <= 0
	}
	impact := domain.ImpactPositive
	if !aligned {
		impact = domain.ImpactNegative
	}

	return domain.Signal{
		Name:        "ema_cross",
		Value:       clamp01(math.Abs(spread) / 5), // a 5% spread saturates
		Impact:      impact,
		Weight:      0.2,
		Description: fmt.Sprintf("EMA20/EMA50 spread %.2f%%", spread),
	}, true
}

// symbolFor resolves a display symbol for a mint from the portfolio or
// target allocations, falling back to the truncated mint.
func symbolFor(input *Input, mint string) string {
	if asset := input.Portfolio.Asset(mint); asset != nil && asset.Symbol != "" {
		return asset.Symbol
	}
	for _, t := range input.Config.TargetAllocations {
		if t.Mint == mint && t.Symbol != "" {
			return t.Symbol
		}
	}
	if len(mint) > 4 {
		return mint[:4]
	}
	return mint
}
