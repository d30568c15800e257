package signals

import (
	"context"
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/sonicagent/engine/internal/domain"
)

// TrendDetector classifies the coarse market direction from the reference
// asset's recent history. The whole market is read through one asset; per
// asset nuance belongs to the strategies, not here.
type TrendDetector struct {
	provider      domain.MarketDataProvider
	referenceMint string
	log           zerolog.Logger
}

// NewTrendDetector creates a trend detector anchored on the reference mint
func NewTrendDetector(provider domain.MarketDataProvider, referenceMint string, log zerolog.Logger) *TrendDetector {
	return &TrendDetector{
		provider:      provider,
		referenceMint: referenceMint,
		log:           log.With().Str("component", "trend_detector").Logger(),
	}
}

// Detect returns the current market trend. Bullish when the fast EMA sits
// clearly above the slow one, bearish when clearly below, sideways in the
// band between.
func (d *TrendDetector) Detect(ctx context.Context) (domain.MarketTrend, error) {
	history, err := d.provider.HistoricalPrices(ctx, d.referenceMint, "30d")
	if err != nil {
		return "", fmt.Errorf("failed to fetch reference history: %w", err)
	}
	if len(history) < 50 {
		return "", fmt.Errorf("insufficient reference history: %d points", len(history))
	}

	closes := make([]float64, len(history))
	for i, p := range history {
		closes[i] = p.Price
	}

	ema20 := talib.Ema(closes, 20)
	ema50 := talib.Ema(closes, 50)

	last := len(closes) - 1
	fast, slow := ema20[last], ema50[last]
	if slow == 0 {
		return domain.TrendSideways, nil
	}

	// A 1% band around the slow EMA absorbs noise.
	spread := (fast - slow) / slow * 100

	var trend domain.MarketTrend
	switch {
	case spread > 1.0:
		trend = domain.TrendBullish
	case spread < -1.0:
		trend = domain.TrendBearish
	default:
		trend = domain.TrendSideways
	}

	d.log.Debug().
		Float64("ema20", fast).
		Float64("ema50", slow).
		Float64("spread_pct", spread).
		Str("trend", string(trend)).
		Msg("Detected market trend")

	return trend, nil
}
