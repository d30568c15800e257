package signals

import (
	"fmt"
	"sort"

	"github.com/sonicagent/engine/internal/domain"
)

const momentumBuyFraction = 0.20
const momentumSellFraction = 0.25

// MomentumStrategy rides directional markets: in a bullish trend it buys
// the strongest candidate, in a bearish one it trims the weakest holdings.
// Sideways markets produce nothing; momentum without direction is noise.
type MomentumStrategy struct{}

// NewMomentumStrategy creates the momentum strategy
func NewMomentumStrategy() *MomentumStrategy { return &MomentumStrategy{} }

func (s *MomentumStrategy) ID() string   { return "momentum" }
func (s *MomentumStrategy) Name() string { return "Momentum" }

// momentumScore blends the 24h and 7d price changes with the volume change
// into a 0..100 score centered at 50.
func momentumScore(ind *domain.TechnicalIndicators) float64 {
	blend := 0.5*ind.Change24h + 0.3*ind.Change7d + 0.2*ind.VolumeChange24h
	score := 50 + blend
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

type rankedMint struct {
	mint  string
	score float64
}

func (s *MomentumStrategy) Evaluate(input *Input) []Proposal {
	if input.Trend == domain.TrendSideways {
		return nil
	}

	switch input.Trend {
	case domain.TrendBullish:
		return s.buyStrongest(input)
	default:
		return s.sellWeakest(input)
	}
}

// buyStrongest ranks the candidate universe and buys the top score.
func (s *MomentumStrategy) buyStrongest(input *Input) []Proposal {
	budget := spendableStable(input, momentumBuyFraction)
	if budget <= 0 {
		return nil
	}

	ranked := rankByScore(input, candidateMints(input))
	if len(ranked) == 0 {
		return nil
	}
	top := ranked[0]
	if top.score <= 50 {
		// No candidate is actually moving; momentum has nothing to ride.
		return nil
	}

	sigs := []domain.Signal{
		{
			Name:        "momentum_score",
			Value:       top.score / 100,
			Impact:      domain.ImpactPositive,
			Weight:      0.6,
			Description: fmt.Sprintf("momentum score %.1f", top.score),
		},
		{
			Name:        "trend_alignment",
			Value:       0.8,
			Impact:      domain.ImpactPositive,
			Weight:      0.4,
			Description: "buying strength in a bullish market",
		},
	}
	if cross, ok := emaCrossSignal(input.Indicators[top.mint], domain.OpBuy); ok {
		sigs = append(sigs, cross)
	}

	return []Proposal{{
		InputMint:    input.Stable.Mint,
		InputSymbol:  input.Stable.Symbol,
		OutputMint:   top.mint,
		OutputSymbol: symbolFor(input, top.mint),
		InputAmount:  budget,
		Signals:      sigs,
		Reason:       fmt.Sprintf("Strongest momentum candidate %s in bullish trend", symbolFor(input, top.mint)),
	}}
}

// sellWeakest trims the weakest-scoring holdings into the stable asset.
func (s *MomentumStrategy) sellWeakest(input *Input) []Proposal {
	if input.Stable == nil {
		return nil
	}

	held := heldNonStable(input)
	mints := make([]string, 0, len(held))
	assetByMint := make(map[string]domain.Asset, len(held))
	for _, a := range held {
		mints = append(mints, a.Mint)
		assetByMint[a.Mint] = a
	}

	ranked := rankByScore(input, mints)
	if len(ranked) == 0 {
		return nil
	}

	weakest := ranked[len(ranked)-1]
	if weakest.score >= 50 {
		// Even the weakest holding is holding up.
		return nil
	}
	asset := assetByMint[weakest.mint]

	sigs := []domain.Signal{
		{
			Name:        "momentum_score",
			Value:       weakest.score / 100,
			Impact:      domain.ImpactNegative,
			Weight:      0.6,
			Description: fmt.Sprintf("momentum score %.1f", weakest.score),
		},
		{
			Name:        "trend_alignment",
			Value:       0.8,
			Impact:      domain.ImpactPositive,
			Weight:      0.4,
			Description: "reducing weakness in a bearish market",
		},
	}
	if cross, ok := emaCrossSignal(input.Indicators[weakest.mint], domain.OpSell); ok {
		sigs = append(sigs, cross)
	}

	return []Proposal{{
		InputMint:    asset.Mint,
		InputSymbol:  asset.Symbol,
		OutputMint:   input.Stable.Mint,
		OutputSymbol: input.Stable.Symbol,
		InputAmount:  asset.UIAmount * momentumSellFraction,
		Signals:      sigs,
		Reason:       fmt.Sprintf("Trimming weakest holding %s in bearish trend", asset.Symbol),
	}}
}

// rankByScore scores mints with available indicators, best first.
func rankByScore(input *Input, mints []string) []rankedMint {
	ranked := make([]rankedMint, 0, len(mints))
	for _, mint := range mints {
		ind, ok := input.Indicators[mint]
		if !ok {
			continue
		}
		ranked = append(ranked, rankedMint{mint: mint, score: momentumScore(ind)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked
}
