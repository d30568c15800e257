package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicagent/engine/internal/domain"
)

func strategyInput(trend domain.MarketTrend) *Input {
	portfolio := &domain.Portfolio{
		Wallet: "Wallet111",
		Assets: []domain.Asset{
			{Mint: "MintUSDC", Symbol: "USDC", UIAmount: 1000, PriceUSD: 1, ValueUSD: 1000},
			{Mint: "MintBONK", Symbol: "BONK", UIAmount: 500, PriceUSD: 0.4, ValueUSD: 200},
		},
		TotalValueUSD: 1200,
	}
	return &Input{
		Portfolio: portfolio,
		Config: &domain.AgentConfig{
			Wallet:         "Wallet111",
			RiskProfile:    domain.RiskModerate,
			PreferredMints: []string{"MintSOL", "MintJUP"},
		},
		Trend:      trend,
		Indicators: make(map[string]*domain.TechnicalIndicators),
		History:    make(map[string][]domain.PricePoint),
		Stable:     &portfolio.Assets[0],
		Reference:  "MintSOL",
	}
}

func TestDCA_SplitsBudgetAcrossCandidates(t *testing.T) {
	input := strategyInput(domain.TrendSideways)

	proposals := NewDCAStrategy().Evaluate(input)
	require.Len(t, proposals, 2)

	// 10% of 1000 USDC split across two candidates.
	for _, p := range proposals {
		assert.Equal(t, "MintUSDC", p.InputMint)
		assert.InDelta(t, 50.0, p.InputAmount, 1e-9)
		assert.NotEmpty(t, p.Signals)
	}
}

func TestDCA_RespectsPerTradeLimit(t *testing.T) {
	input := strategyInput(domain.TrendSideways)
	input.Config.Rules.MaxAmountPerTradeUSD = 20

	proposals := NewDCAStrategy().Evaluate(input)
	require.Len(t, proposals, 2)
	assert.InDelta(t, 10.0, proposals[0].InputAmount, 1e-9)
}

func TestDCA_NoStableNoProposals(t *testing.T) {
	input := strategyInput(domain.TrendSideways)
	input.Stable = nil

	assert.Empty(t, NewDCAStrategy().Evaluate(input))
}

func TestDCA_ExcludedMintsSkipped(t *testing.T) {
	input := strategyInput(domain.TrendSideways)
	input.Config.Rules.ExcludedMints = []string{"MintJUP"}

	proposals := NewDCAStrategy().Evaluate(input)
	require.Len(t, proposals, 1)
	assert.Equal(t, "MintSOL", proposals[0].OutputMint)
}

func TestMomentum_SidewaysProducesNothing(t *testing.T) {
	input := strategyInput(domain.TrendSideways)
	input.Indicators["MintSOL"] = &domain.TechnicalIndicators{Change24h: 50}

	assert.Empty(t, NewMomentumStrategy().Evaluate(input))
}

func TestMomentum_BullishBuysStrongest(t *testing.T) {
	input := strategyInput(domain.TrendBullish)
	input.Indicators["MintSOL"] = &domain.TechnicalIndicators{Change24h: 10, Change7d: 20, VolumeChange24h: 5}  // score 62
	input.Indicators["MintJUP"] = &domain.TechnicalIndicators{Change24h: 30, Change7d: 40, VolumeChange24h: 10} // score 79

	proposals := NewMomentumStrategy().Evaluate(input)
	require.Len(t, proposals, 1)
	assert.Equal(t, "MintJUP", proposals[0].OutputMint)
	assert.Equal(t, "MintUSDC", proposals[0].InputMint)
	// 20% of the stable balance.
	assert.InDelta(t, 200.0, proposals[0].InputAmount, 1e-9)
}

func TestMomentum_BullishWithoutStrengthAbstains(t *testing.T) {
	input := strategyInput(domain.TrendBullish)
	input.Indicators["MintSOL"] = &domain.TechnicalIndicators{Change24h: -5, Change7d: -10}

	assert.Empty(t, NewMomentumStrategy().Evaluate(input))
}

func TestMomentum_BearishSellsWeakestHolding(t *testing.T) {
	input := strategyInput(domain.TrendBearish)
	input.Indicators["MintBONK"] = &domain.TechnicalIndicators{Change24h: -30, Change7d: -20, VolumeChange24h: 0} // score 29

	proposals := NewMomentumStrategy().Evaluate(input)
	require.Len(t, proposals, 1)
	assert.Equal(t, "MintBONK", proposals[0].InputMint)
	assert.Equal(t, "MintUSDC", proposals[0].OutputMint)
	// 25% of the 500 BONK held.
	assert.InDelta(t, 125.0, proposals[0].InputAmount, 1e-9)
}

func TestMeanReversion_ProposesEveryOversoldCandidate(t *testing.T) {
	input := strategyInput(domain.TrendSideways)
	input.Indicators["MintSOL"] = &domain.TechnicalIndicators{RSI: 25}
	input.Indicators["MintJUP"] = &domain.TechnicalIndicators{RSI: 12}

	proposals := NewMeanReversionStrategy().Evaluate(input)
	require.Len(t, proposals, 2)

	// Deepest oversold first; the budget is split evenly.
	assert.Equal(t, "MintJUP", proposals[0].OutputMint)
	assert.Equal(t, "MintSOL", proposals[1].OutputMint)
	// 15% of 1000 USDC across two candidates.
	assert.InDelta(t, 75.0, proposals[0].InputAmount, 1e-9)
	assert.InDelta(t, 75.0, proposals[1].InputAmount, 1e-9)

	require.Len(t, proposals[0].Signals, 2)
	assert.Equal(t, "oversold_bounce", proposals[0].Signals[0].Name)
	// bounce for rsi 12: (30-12)*3+30 = 84
	assert.InDelta(t, 0.84, proposals[0].Signals[0].Value, 1e-9)
	// bounce for rsi 25: (30-25)*3+30 = 45
	assert.InDelta(t, 0.45, proposals[1].Signals[0].Value, 1e-9)
}

func TestMomentum_EmitsEMACrossSignal(t *testing.T) {
	input := strategyInput(domain.TrendBullish)
	input.Indicators["MintJUP"] = &domain.TechnicalIndicators{
		Change24h: 30, Change7d: 40, VolumeChange24h: 10,
		EMA20: 105, EMA50: 100,
	}

	proposals := NewMomentumStrategy().Evaluate(input)
	require.Len(t, proposals, 1)
	require.Len(t, proposals[0].Signals, 3)

	cross := proposals[0].Signals[2]
	assert.Equal(t, "ema_cross", cross.Name)
	assert.Equal(t, domain.ImpactPositive, cross.Impact)
	// 5% spread saturates the signal.
	assert.InDelta(t, 1.0, cross.Value, 1e-9)
}

func TestMomentum_BearishDeathCrossSupportsSell(t *testing.T) {
	input := strategyInput(domain.TrendBearish)
	input.Indicators["MintBONK"] = &domain.TechnicalIndicators{
		Change24h: -30, Change7d: -20,
		EMA20: 97.5, EMA50: 100,
	}

	proposals := NewMomentumStrategy().Evaluate(input)
	require.Len(t, proposals, 1)
	require.Len(t, proposals[0].Signals, 3)

	cross := proposals[0].Signals[2]
	assert.Equal(t, "ema_cross", cross.Name)
	// A death cross aligns with selling.
	assert.Equal(t, domain.ImpactPositive, cross.Impact)
	assert.InDelta(t, 0.5, cross.Value, 1e-9)
}

func TestMeanReversion_NoOversoldNoProposals(t *testing.T) {
	input := strategyInput(domain.TrendSideways)
	input.Indicators["MintSOL"] = &domain.TechnicalIndicators{RSI: 55}
	input.Indicators["MintJUP"] = &domain.TechnicalIndicators{RSI: 31}

	assert.Empty(t, NewMeanReversionStrategy().Evaluate(input))
}

// history builds a synthetic price series from step returns.
func history(start float64, rets ...float64) []domain.PricePoint {
	points := []domain.PricePoint{{Timestamp: time.Now(), Price: start}}
	price := start
	for _, r := range rets {
		price *= 1 + r
		points = append(points, domain.PricePoint{Timestamp: time.Now(), Price: price})
	}
	return points
}

func repeat(r float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r
	}
	return out
}

func TestTrendFollowing_BullishBuysHighestBeta(t *testing.T) {
	input := strategyInput(domain.TrendBullish)

	// Reference moves +-1%; SOL tracks it 1:1, JUP amplifies it 2:1.
	refRets := make([]float64, 0, 20)
	solRets := make([]float64, 0, 20)
	jupRets := make([]float64, 0, 20)
	for i := 0; i < 20; i++ {
		r := 0.01
		if i%2 == 0 {
			r = -0.01
		}
		refRets = append(refRets, r)
		solRets = append(solRets, r)
		jupRets = append(jupRets, 2*r)
	}
	// Beta is measured against a separate reference series.
	input.Reference = "MintREF"
	input.History["MintREF"] = history(100, refRets...)
	input.History["MintSOL"] = history(100, solRets...)
	input.History["MintJUP"] = history(100, jupRets...)

	proposals := NewTrendFollowingStrategy().Evaluate(input)
	require.Len(t, proposals, 1)
	assert.Equal(t, "MintJUP", proposals[0].OutputMint)
}

func TestTrendFollowing_BearishSellsVolatileHoldings(t *testing.T) {
	input := strategyInput(domain.TrendBearish)

	// BONK swings +-8% per candle, well past the volatility cutoff.
	rets := make([]float64, 0, 20)
	for i := 0; i < 20; i++ {
		r := 0.08
		if i%2 == 0 {
			r = -0.08
		}
		rets = append(rets, r)
	}
	input.History["MintBONK"] = history(1, rets...)

	proposals := NewTrendFollowingStrategy().Evaluate(input)
	require.Len(t, proposals, 1)
	assert.Equal(t, "MintBONK", proposals[0].InputMint)
	assert.Equal(t, "MintUSDC", proposals[0].OutputMint)
	// 30% of the 500 BONK held.
	assert.InDelta(t, 150.0, proposals[0].InputAmount, 1e-9)
}

func TestTrendFollowing_CalmHoldingsKept(t *testing.T) {
	input := strategyInput(domain.TrendBearish)
	input.History["MintBONK"] = history(1, repeat(0.001, 20)...)

	assert.Empty(t, NewTrendFollowingStrategy().Evaluate(input))
}

func TestTrendFollowing_SidewaysAbstains(t *testing.T) {
	assert.Empty(t, NewTrendFollowingStrategy().Evaluate(strategyInput(domain.TrendSideways)))
}
