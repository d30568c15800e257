package signals

import (
	"fmt"
	"math"

	"github.com/sonicagent/engine/internal/domain"
)

// maxQuoteImpactPct is the price impact at which the quote signal saturates.
const maxQuoteImpactPct = 5.0

// ApplyQuoteSignal folds a resolved quote's price impact into the
// recommendation's signal list and rescores its confidence. Drafts without a
// quote are returned unchanged.
func ApplyQuoteSignal(rec domain.TradeRecommendation, profile domain.RiskProfile) domain.TradeRecommendation {
	if rec.Quote == nil {
		return rec
	}

	impact := math.Abs(rec.PriceImpactPct)
	sigs := make([]domain.Signal, len(rec.Signals), len(rec.Signals)+1)
	copy(sigs, rec.Signals)
	sigs = append(sigs, domain.Signal{
		Name:        "price_impact",
		Value:       clamp01(impact / maxQuoteImpactPct),
		Impact:      domain.ImpactNegative,
		Weight:      0.2,
		Description: fmt.Sprintf("quoted price impact %.2f%%", impact),
	})

	rec.Signals = sigs
	rec.Confidence = Confidence(sigs, profile)
	return rec
}

// Confidence folds weighted signals into a 0..100 score scaled by the risk
// profile. Weights are normalized to sum to one; negative-impact signals
// contribute their complement so a strong negative drags the score down.
func Confidence(sigs []domain.Signal, profile domain.RiskProfile) int {
	if len(sigs) == 0 {
		return 0
	}

	var totalWeight float64
	for _, s := range sigs {
		totalWeight += s.Weight
	}
	if totalWeight <= 0 {
		return 0
	}

	var weighted float64
	for _, s := range sigs {
		value := clamp01(s.Value)
		if s.Impact == domain.ImpactNegative {
			value = 1 - value
		}
		weighted += value * (s.Weight / totalWeight)
	}

	score := math.Round(weighted * 100 * profile.Multiplier())
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
