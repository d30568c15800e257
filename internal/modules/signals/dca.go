package signals

import (
	"fmt"

	"github.com/sonicagent/engine/internal/domain"
)

// dcaFraction is the share of the stable balance one DCA cycle deploys,
// split evenly across candidates.
const dcaFraction = 0.10

// DCAStrategy steadily accumulates the preferred assets regardless of
// market direction. Signals only nudge the baseline confidence.
type DCAStrategy struct{}

// NewDCAStrategy creates the DCA strategy
func NewDCAStrategy() *DCAStrategy { return &DCAStrategy{} }

func (s *DCAStrategy) ID() string   { return "dca" }
func (s *DCAStrategy) Name() string { return "Dollar-Cost Averaging" }

// Evaluate proposes an even stable split across the candidate universe.
func (s *DCAStrategy) Evaluate(input *Input) []Proposal {
	candidates := candidateMints(input)
	if len(candidates) == 0 {
		return nil
	}

	budget := spendableStable(input, dcaFraction)
	if budget <= 0 {
		return nil
	}
	perCandidate := budget / float64(len(candidates))

	proposals := make([]Proposal, 0, len(candidates))
	for _, mint := range candidates {
		sigs := []domain.Signal{
			{
				Name:        "dca_baseline",
				Value:       0.5,
				Impact:      domain.ImpactNeutral,
				Weight:      0.6,
				Description: "scheduled accumulation",
			},
		}

		// A cheap entry strengthens the case, an overbought one weakens it.
		if ind, ok := input.Indicators[mint]; ok {
			value := clamp01((70 - ind.RSI) / 40) // rsi 30 -> 1.0, rsi 70 -> 0.0
			impact := domain.ImpactPositive
			if ind.RSI > 70 {
				impact = domain.ImpactNegative
				value = clamp01((ind.RSI - 70) / 30)
			}
			sigs = append(sigs, domain.Signal{
				Name:        "entry_rsi",
				Value:       value,
				Impact:      impact,
				Weight:      0.4,
				Description: fmt.Sprintf("RSI %.1f at entry", ind.RSI),
			})
		}

		proposals = append(proposals, Proposal{
			InputMint:    input.Stable.Mint,
			InputSymbol:  input.Stable.Symbol,
			OutputMint:   mint,
			OutputSymbol: symbolFor(input, mint),
			InputAmount:  perCandidate,
			Signals:      sigs,
			Reason:       fmt.Sprintf("DCA accumulation of %s", symbolFor(input, mint)),
		})
	}
	return proposals
}
