package signals

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sonicagent/engine/internal/domain"
)

const trendBuyFraction = 0.20
const trendSellFraction = 0.30
const highVolatilityCutoff = 0.04 // per-candle return stddev

// TrendFollowingStrategy leans into the market direction with the assets
// most sensitive to it: high-beta buys in bull markets, volatile trims in
// bear markets.
type TrendFollowingStrategy struct{}

// NewTrendFollowingStrategy creates the trend-following strategy
func NewTrendFollowingStrategy() *TrendFollowingStrategy { return &TrendFollowingStrategy{} }

func (s *TrendFollowingStrategy) ID() string   { return "trend_following" }
func (s *TrendFollowingStrategy) Name() string { return "Trend Following" }

func (s *TrendFollowingStrategy) Evaluate(input *Input) []Proposal {
	switch input.Trend {
	case domain.TrendBullish:
		return s.buyHighestBeta(input)
	case domain.TrendBearish:
		return s.sellVolatile(input)
	default:
		return nil
	}
}

// returns converts a price series into simple per-candle returns.
func returns(points []domain.PricePoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Price
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (points[i].Price-prev)/prev)
	}
	return out
}

// beta regresses an asset's returns against the reference asset's. Series
// are truncated to the shorter length; mismatched sampling shows up as a
// weaker beta, not an error.
func beta(asset, reference []float64) (float64, bool) {
	n := len(asset)
	if len(reference) < n {
		n = len(reference)
	}
	if n < 10 {
		return 0, false
	}
	asset = asset[len(asset)-n:]
	reference = reference[len(reference)-n:]

	refVar := stat.Variance(reference, nil)
	if refVar == 0 {
		return 0, false
	}
	return stat.Covariance(asset, reference, nil) / refVar, true
}

func (s *TrendFollowingStrategy) buyHighestBeta(input *Input) []Proposal {
	budget := spendableStable(input, trendBuyFraction)
	if budget <= 0 {
		return nil
	}

	refReturns := returns(input.History[input.Reference])
	if len(refReturns) == 0 {
		return nil
	}

	type betaRank struct {
		mint string
		beta float64
	}
	var ranked []betaRank
	for _, mint := range candidateMints(input) {
		if mint == input.Reference {
			continue
		}
		b, ok := beta(returns(input.History[mint]), refReturns)
		if !ok || b <= 0 {
			continue
		}
		ranked = append(ranked, betaRank{mint: mint, beta: b})
	}
	if len(ranked) == 0 {
		return nil
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].beta > ranked[j].beta
	})
	top := ranked[0]

	return []Proposal{{
		InputMint:    input.Stable.Mint,
		InputSymbol:  input.Stable.Symbol,
		OutputMint:   top.mint,
		OutputSymbol: symbolFor(input, top.mint),
		InputAmount:  budget,
		Signals: []domain.Signal{
			{
				Name:        "market_beta",
				Value:       clamp01(top.beta / 2), // beta 2 and above saturates
				Impact:      domain.ImpactPositive,
				Weight:      0.6,
				Description: fmt.Sprintf("beta %.2f against reference", top.beta),
			},
			{
				Name:        "trend_alignment",
				Value:       0.8,
				Impact:      domain.ImpactPositive,
				Weight:      0.4,
				Description: "leveraged exposure to a bullish market",
			},
		},
		Reason: fmt.Sprintf("Highest-beta candidate %s in bullish trend", symbolFor(input, top.mint)),
	}}
}

func (s *TrendFollowingStrategy) sellVolatile(input *Input) []Proposal {
	if input.Stable == nil {
		return nil
	}

	var proposals []Proposal
	for _, asset := range heldNonStable(input) {
		rets := returns(input.History[asset.Mint])
		if len(rets) < 10 {
			continue
		}
		vol := stat.StdDev(rets, nil)
		if vol < highVolatilityCutoff {
			continue
		}

		proposals = append(proposals, Proposal{
			InputMint:    asset.Mint,
			InputSymbol:  asset.Symbol,
			OutputMint:   input.Stable.Mint,
			OutputSymbol: input.Stable.Symbol,
			InputAmount:  asset.UIAmount * trendSellFraction,
			Signals: []domain.Signal{
				{
					Name:        "volatility",
					Value:       clamp01(vol / (2 * highVolatilityCutoff)),
					Impact:      domain.ImpactPositive,
					Weight:      0.6,
					Description: fmt.Sprintf("return stddev %.4f", vol),
				},
				{
					Name:        "trend_alignment",
					Value:       0.8,
					Impact:      domain.ImpactPositive,
					Weight:      0.4,
					Description: "de-risking in a bearish market",
				},
			},
			Reason: fmt.Sprintf("Reducing volatile %s exposure in bearish trend", asset.Symbol),
		})
	}
	return proposals
}
