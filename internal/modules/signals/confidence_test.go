package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicagent/engine/internal/domain"
)

func TestConfidence(t *testing.T) {
	tests := []struct {
		name    string
		signals []domain.Signal
		profile domain.RiskProfile
		want    int
	}{
		{
			name:    "no signals scores zero",
			signals: nil,
			profile: domain.RiskModerate,
			want:    0,
		},
		{
			name: "single full-strength positive",
			signals: []domain.Signal{
				{Value: 1.0, Impact: domain.ImpactPositive, Weight: 1},
			},
			profile: domain.RiskModerate,
			want:    100,
		},
		{
			name: "weights normalized to sum one",
			signals: []domain.Signal{
				{Value: 0.8, Impact: domain.ImpactPositive, Weight: 3},
				{Value: 0.4, Impact: domain.ImpactPositive, Weight: 1},
			},
			profile: domain.RiskModerate,
			want:    70, // 0.8*0.75 + 0.4*0.25 = 0.7
		},
		{
			name: "negative impact contributes its complement",
			signals: []domain.Signal{
				{Value: 0.9, Impact: domain.ImpactNegative, Weight: 1},
			},
			profile: domain.RiskModerate,
			want:    10,
		},
		{
			name: "all strong negatives score near zero",
			signals: []domain.Signal{
				{Value: 1.0, Impact: domain.ImpactNegative, Weight: 1},
				{Value: 0.95, Impact: domain.ImpactNegative, Weight: 1},
			},
			profile: domain.RiskAggressive,
			want:    3, // (0 + 0.05)/2 * 100 * 1.3
		},
		{
			name: "conservative profile scales down",
			signals: []domain.Signal{
				{Value: 1.0, Impact: domain.ImpactPositive, Weight: 1},
			},
			profile: domain.RiskConservative,
			want:    70,
		},
		{
			name: "aggressive profile clamps at 100",
			signals: []domain.Signal{
				{Value: 0.9, Impact: domain.ImpactPositive, Weight: 1},
			},
			profile: domain.RiskAggressive,
			want:    100, // 0.9 * 130 = 117, clamped
		},
		{
			name: "out-of-range values clamped before weighting",
			signals: []domain.Signal{
				{Value: 7.5, Impact: domain.ImpactPositive, Weight: 1},
				{Value: -2.0, Impact: domain.ImpactPositive, Weight: 1},
			},
			profile: domain.RiskModerate,
			want:    50,
		},
		{
			name: "zero total weight scores zero",
			signals: []domain.Signal{
				{Value: 1.0, Impact: domain.ImpactPositive, Weight: 0},
			},
			profile: domain.RiskModerate,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Confidence(tt.signals, tt.profile))
		})
	}
}

func TestApplyQuoteSignal(t *testing.T) {
	rec := domain.TradeRecommendation{
		Confidence:     80,
		PriceImpactPct: 2.5,
		Quote:          &domain.Quote{PriceImpactPct: 2.5},
		Signals: []domain.Signal{
			{Name: "momentum_score", Value: 0.8, Impact: domain.ImpactPositive, Weight: 0.8},
		},
	}

	scored := ApplyQuoteSignal(rec, domain.RiskModerate)

	require.Len(t, scored.Signals, 2)
	impact := scored.Signals[1]
	assert.Equal(t, "price_impact", impact.Name)
	assert.Equal(t, domain.ImpactNegative, impact.Impact)
	assert.InDelta(t, 0.5, impact.Value, 1e-9) // 2.5% of the 5% cap

	// 0.8*0.8 + (1-0.5)*0.2 = 0.74
	assert.Equal(t, 74, scored.Confidence)

	// The input's signal list is not mutated.
	assert.Len(t, rec.Signals, 1)
}

func TestApplyQuoteSignal_NoQuoteUnchanged(t *testing.T) {
	rec := domain.TradeRecommendation{
		Confidence: 65,
		Signals:    []domain.Signal{{Name: "dca_baseline", Value: 0.5, Weight: 1}},
	}

	scored := ApplyQuoteSignal(rec, domain.RiskModerate)

	assert.Equal(t, 65, scored.Confidence)
	assert.Len(t, scored.Signals, 1)
}

func TestBounceScore(t *testing.T) {
	tests := []struct {
		rsi  float64
		want float64
	}{
		{rsi: 30, want: 30},
		{rsi: 25, want: 45},
		{rsi: 20, want: 60},
		{rsi: 10, want: 90},
		{rsi: 5, want: 100}, // (30-5)*3+30 = 105, clamped
		{rsi: 0, want: 100},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, bounceScore(tt.rsi), 1e-9, "rsi %.0f", tt.rsi)
	}
}

func TestMomentumScore(t *testing.T) {
	ind := &domain.TechnicalIndicators{Change24h: 10, Change7d: 20, VolumeChange24h: 5}
	// 50 + 0.5*10 + 0.3*20 + 0.2*5 = 62
	assert.InDelta(t, 62.0, momentumScore(ind), 1e-9)

	crash := &domain.TechnicalIndicators{Change24h: -80, Change7d: -90, VolumeChange24h: -50}
	assert.InDelta(t, 0.0, momentumScore(crash), 1e-9)

	moon := &domain.TechnicalIndicators{Change24h: 100, Change7d: 100, VolumeChange24h: 100}
	assert.InDelta(t, 100.0, momentumScore(moon), 1e-9)
}
