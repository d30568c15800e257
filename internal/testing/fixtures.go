package testing

import (
	"time"

	"github.com/sonicagent/engine/internal/domain"
)

// Canonical mints used across tests.
const (
	MintSOL  = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintBONK = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

// NewPortfolioFixture returns a three-asset wallet snapshot worth 1000 USD:
// 500 SOL value, 300 USDC, 200 BONK.
func NewPortfolioFixture(wallet string) *domain.Portfolio {
	return &domain.Portfolio{
		Wallet: wallet,
		Assets: []domain.Asset{
			{
				Mint:     MintSOL,
				Symbol:   "SOL",
				Decimals: 9,
				Balance:  5_000_000_000,
				UIAmount: 5,
				PriceUSD: 100,
				ValueUSD: 500,
			},
			{
				Mint:     MintUSDC,
				Symbol:   "USDC",
				Decimals: 6,
				Balance:  300_000_000,
				UIAmount: 300,
				PriceUSD: 1,
				ValueUSD: 300,
			},
			{
				Mint:     MintBONK,
				Symbol:   "BONK",
				Decimals: 5,
				Balance:  1_000_000_000_000,
				UIAmount: 10_000_000,
				PriceUSD: 0.00002,
				ValueUSD: 200,
			},
		},
		TotalValueUSD: 1000,
		FetchedAt:     time.Now(),
	}
}

// NewAgentConfigFixture returns a moderate-risk config targeting 50/30/20
// SOL/USDC/BONK with auto-rebalance off.
func NewAgentConfigFixture(wallet string) *domain.AgentConfig {
	return &domain.AgentConfig{
		Wallet:                wallet,
		RiskProfile:           domain.RiskModerate,
		AutoRebalance:         false,
		RebalanceThresholdPct: 5,
		TargetAllocations: []domain.TargetAllocation{
			{Mint: MintSOL, Symbol: "SOL", TargetPct: 50},
			{Mint: MintUSDC, Symbol: "USDC", TargetPct: 30},
			{Mint: MintBONK, Symbol: "BONK", TargetPct: 20},
		},
		Rules: domain.TradingRules{
			MaxAmountPerTradeUSD: 500,
			MaxTradesPerDay:      -1,
			MaxSlippageBps:       50,
		},
	}
}

// NewIndicatorsFixture returns a neutral indicator bundle for the mint.
func NewIndicatorsFixture(mint string) *domain.TechnicalIndicators {
	return &domain.TechnicalIndicators{
		Mint:            mint,
		RSI:             50,
		EMA20:           100,
		EMA50:           100,
		MACD:            0,
		MACDSignal:      0,
		Change24h:       0,
		Change7d:        0,
		VolumeChange24h: 0,
	}
}

// NewHistoryFixture returns a flat daily price series of the given length
// ending now.
func NewHistoryFixture(price float64, days int) []domain.PricePoint {
	points := make([]domain.PricePoint, days)
	start := time.Now().AddDate(0, 0, -days)
	for i := range points {
		points[i] = domain.PricePoint{
			Timestamp: start.AddDate(0, 0, i+1),
			Price:     price,
			Volume:    1_000_000,
		}
	}
	return points
}
