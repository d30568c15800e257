package signals

import (
	"fmt"
	"sort"

	"github.com/sonicagent/engine/internal/domain"
)

const oversoldRSI = 30.0
const reversionBuyFraction = 0.15

// MeanReversionStrategy buys oversold assets expecting a bounce back
// toward their mean.
type MeanReversionStrategy struct{}

// NewMeanReversionStrategy creates the mean-reversion strategy
func NewMeanReversionStrategy() *MeanReversionStrategy { return &MeanReversionStrategy{} }

func (s *MeanReversionStrategy) ID() string   { return "mean_reversion" }
func (s *MeanReversionStrategy) Name() string { return "Mean Reversion" }

// bounceScore maps an oversold RSI to a 0..100 bounce expectation. RSI 30
// scores 30; every point deeper oversold adds three.
func bounceScore(rsi float64) float64 {
	score := (oversoldRSI-rsi)*3 + 30
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func (s *MeanReversionStrategy) Evaluate(input *Input) []Proposal {
	budget := spendableStable(input, reversionBuyFraction)
	if budget <= 0 {
		return nil
	}

	type oversold struct {
		mint   string
		rsi    float64
		bounce float64
	}

	var hits []oversold
	for _, mint := range candidateMints(input) {
		ind, ok := input.Indicators[mint]
		if !ok || ind.RSI >= oversoldRSI {
			continue
		}
		hits = append(hits, oversold{mint: mint, rsi: ind.RSI, bounce: bounceScore(ind.RSI)})
	}
	if len(hits) == 0 {
		return nil
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].bounce > hits[j].bounce
	})

	// Every oversold candidate gets an even share of the budget, deepest
	// first; confidence scoring ranks the proposals.
	perCandidate := budget / float64(len(hits))

	proposals := make([]Proposal, 0, len(hits))
	for _, hit := range hits {
		proposals = append(proposals, Proposal{
			InputMint:    input.Stable.Mint,
			InputSymbol:  input.Stable.Symbol,
			OutputMint:   hit.mint,
			OutputSymbol: symbolFor(input, hit.mint),
			InputAmount:  perCandidate,
			Signals: []domain.Signal{
				{
					Name:        "oversold_bounce",
					Value:       hit.bounce / 100,
					Impact:      domain.ImpactPositive,
					Weight:      0.7,
					Description: fmt.Sprintf("bounce score %.0f", hit.bounce),
				},
				{
					Name:        "rsi_depth",
					Value:       clamp01((oversoldRSI - hit.rsi) / oversoldRSI),
					Impact:      domain.ImpactPositive,
					Weight:      0.3,
					Description: fmt.Sprintf("RSI %.1f below oversold threshold", hit.rsi),
				},
			},
			Reason: fmt.Sprintf("%s oversold at RSI %.1f, expecting reversion", symbolFor(input, hit.mint), hit.rsi),
		})
	}
	return proposals
}
