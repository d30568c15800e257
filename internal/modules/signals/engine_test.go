package signals

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicagent/engine/internal/domain"
)

// fakeProvider serves canned market data.
type fakeProvider struct {
	mu         sync.Mutex
	histories  map[string][]domain.PricePoint
	indicators map[string]*domain.TechnicalIndicators
	stables    map[string]bool
	indCalls   int
	failInd    bool
}

func (f *fakeProvider) HistoricalPrices(_ context.Context, mint string, _ string) ([]domain.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.histories[mint]; ok {
		return h, nil
	}
	return nil, errors.New("no history")
}

func (f *fakeProvider) TechnicalIndicators(_ context.Context, mint string) (*domain.TechnicalIndicators, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indCalls++
	if f.failInd {
		return nil, errors.New("provider down")
	}
	if ind, ok := f.indicators[mint]; ok {
		copied := *ind
		return &copied, nil
	}
	return nil, errors.New("no indicators")
}

func (f *fakeProvider) IsStablecoin(mint string) bool { return f.stables[mint] }

func flatHistory(n int, price float64) []domain.PricePoint {
	points := make([]domain.PricePoint, n)
	ts := time.Now().Add(-time.Duration(n) * time.Hour)
	for i := range points {
		points[i] = domain.PricePoint{Timestamp: ts.Add(time.Duration(i) * time.Hour), Price: price}
	}
	return points
}

func risingHistory(n int) []domain.PricePoint {
	points := make([]domain.PricePoint, n)
	ts := time.Now().Add(-time.Duration(n) * time.Hour)
	for i := range points {
		points[i] = domain.PricePoint{Timestamp: ts.Add(time.Duration(i) * time.Hour), Price: 100 + float64(i)}
	}
	return points
}

func TestIndicatorService_CachesWithinTTL(t *testing.T) {
	provider := &fakeProvider{
		indicators: map[string]*domain.TechnicalIndicators{
			"MintA": {Mint: "MintA", RSI: 42},
		},
	}
	svc := NewIndicatorService(provider, time.Minute, zerolog.Nop())

	first, err := svc.Get(context.Background(), "MintA")
	require.NoError(t, err)
	assert.InDelta(t, 42.0, first.RSI, 1e-9)

	_, err = svc.Get(context.Background(), "MintA")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.indCalls, "second read served from cache")
}

func TestIndicatorService_ServesStaleOnRefreshFailure(t *testing.T) {
	provider := &fakeProvider{
		indicators: map[string]*domain.TechnicalIndicators{
			"MintA": {Mint: "MintA", RSI: 42},
		},
	}
	svc := NewIndicatorService(provider, time.Nanosecond, zerolog.Nop())

	_, err := svc.Get(context.Background(), "MintA")
	require.NoError(t, err)

	provider.failInd = true
	time.Sleep(time.Millisecond)

	stale, err := svc.Get(context.Background(), "MintA")
	require.NoError(t, err)
	assert.InDelta(t, 42.0, stale.RSI, 1e-9)
}

func TestIndicatorService_SnapshotRoundTrip(t *testing.T) {
	provider := &fakeProvider{
		indicators: map[string]*domain.TechnicalIndicators{
			"MintA": {Mint: "MintA", RSI: 42, EMA20: 101.5},
		},
	}
	svc := NewIndicatorService(provider, time.Minute, zerolog.Nop())

	_, err := svc.Get(context.Background(), "MintA")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "indicators.snapshot")
	require.NoError(t, svc.SaveSnapshot(path))

	restored := NewIndicatorService(&fakeProvider{failInd: true}, time.Minute, zerolog.Nop())
	require.NoError(t, restored.LoadSnapshot(path))

	ind, err := restored.Get(context.Background(), "MintA")
	require.NoError(t, err)
	assert.InDelta(t, 42.0, ind.RSI, 1e-9)
	assert.InDelta(t, 101.5, ind.EMA20, 1e-9)
}

func TestIndicatorService_LoadMissingSnapshotIsNoop(t *testing.T) {
	svc := NewIndicatorService(&fakeProvider{}, time.Minute, zerolog.Nop())
	assert.NoError(t, svc.LoadSnapshot(filepath.Join(t.TempDir(), "absent.snapshot")))
}

func TestTrendDetector(t *testing.T) {
	t.Run("rising closes are bullish", func(t *testing.T) {
		provider := &fakeProvider{histories: map[string][]domain.PricePoint{"MintREF": risingHistory(60)}}
		detector := NewTrendDetector(provider, "MintREF", zerolog.Nop())

		trend, err := detector.Detect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.TrendBullish, trend)
	})

	t.Run("flat closes are sideways", func(t *testing.T) {
		provider := &fakeProvider{histories: map[string][]domain.PricePoint{"MintREF": flatHistory(60, 100)}}
		detector := NewTrendDetector(provider, "MintREF", zerolog.Nop())

		trend, err := detector.Detect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.TrendSideways, trend)
	})

	t.Run("short history is an error", func(t *testing.T) {
		provider := &fakeProvider{histories: map[string][]domain.PricePoint{"MintREF": flatHistory(10, 100)}}
		detector := NewTrendDetector(provider, "MintREF", zerolog.Nop())

		_, err := detector.Detect(context.Background())
		require.Error(t, err)
	})
}

func TestEngine_GenerateRecommendations(t *testing.T) {
	provider := &fakeProvider{
		histories: map[string][]domain.PricePoint{
			"MintREF":  risingHistory(60), // bullish reference
			"MintSOL":  risingHistory(60),
			"MintJUP":  risingHistory(60),
			"MintBONK": flatHistory(60, 1),
		},
		indicators: map[string]*domain.TechnicalIndicators{
			"MintSOL": {Mint: "MintSOL", RSI: 55, Change24h: 8, Change7d: 15, VolumeChange24h: 10},
			"MintJUP": {Mint: "MintJUP", RSI: 22, Change24h: -2, Change7d: 1, VolumeChange24h: 0},
		},
		stables: map[string]bool{"MintUSDC": true},
	}

	indicators := NewIndicatorService(provider, time.Minute, zerolog.Nop())
	trend := NewTrendDetector(provider, "MintREF", zerolog.Nop())
	engine := NewEngine(provider, indicators, trend, []Strategy{
		NewDCAStrategy(),
		NewMomentumStrategy(),
		NewMeanReversionStrategy(),
	}, "MintREF", 2, zerolog.Nop())

	portfolio := &domain.Portfolio{
		Wallet: "Wallet111",
		Assets: []domain.Asset{
			{Mint: "MintUSDC", Symbol: "USDC", UIAmount: 1000, PriceUSD: 1, ValueUSD: 1000},
		},
		TotalValueUSD: 1000,
	}
	config := &domain.AgentConfig{
		Wallet:         "Wallet111",
		RiskProfile:    domain.RiskModerate,
		PreferredMints: []string{"MintSOL", "MintJUP"},
	}

	recs, err := engine.GenerateRecommendations(context.Background(), portfolio, config)
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	// Sorted by confidence, highest first.
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Confidence, recs[i].Confidence)
	}

	strategies := make(map[string]bool)
	for _, r := range recs {
		strategies[r.StrategyID] = true
		assert.Equal(t, "Wallet111", r.Wallet)
		assert.NotEmpty(t, r.ID)
		assert.NotEmpty(t, r.Signals)
		assert.GreaterOrEqual(t, r.Confidence, 0)
		assert.LessOrEqual(t, r.Confidence, 100)
	}

	// DCA always proposes; momentum rides the bullish trend; mean
	// reversion picks up the oversold JUP.
	assert.True(t, strategies["dca"])
	assert.True(t, strategies["momentum"])
	assert.True(t, strategies["mean_reversion"])
}

func TestEngine_TrendFailureFallsBackToSideways(t *testing.T) {
	provider := &fakeProvider{
		indicators: map[string]*domain.TechnicalIndicators{
			"MintSOL": {Mint: "MintSOL", Change24h: 50},
		},
		stables: map[string]bool{"MintUSDC": true},
	}

	indicators := NewIndicatorService(provider, time.Minute, zerolog.Nop())
	trend := NewTrendDetector(provider, "MintREF", zerolog.Nop())
	engine := NewEngine(provider, indicators, trend, []Strategy{NewMomentumStrategy()}, "MintREF", 2, zerolog.Nop())

	portfolio := &domain.Portfolio{
		Wallet: "Wallet111",
		Assets: []domain.Asset{
			{Mint: "MintUSDC", Symbol: "USDC", UIAmount: 1000, PriceUSD: 1, ValueUSD: 1000},
		},
		TotalValueUSD: 1000,
	}
	config := &domain.AgentConfig{
		Wallet:         "Wallet111",
		PreferredMints: []string{"MintSOL"},
	}

	recs, err := engine.GenerateRecommendations(context.Background(), portfolio, config)
	require.NoError(t, err)
	assert.Empty(t, recs, "momentum sits out when the trend is unknown")
}
