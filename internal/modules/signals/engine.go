package signals

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sonicagent/engine/internal/domain"
)

// Engine runs all registered strategies over one portfolio snapshot and
// scores their proposals into ranked recommendations.
type Engine struct {
	provider    domain.MarketDataProvider
	indicators  *IndicatorService
	trend       *TrendDetector
	strategies  []Strategy
	reference   string
	concurrency int
	log         zerolog.Logger
}

// NewEngine creates a new signal engine
func NewEngine(provider domain.MarketDataProvider, indicators *IndicatorService, trend *TrendDetector, strategies []Strategy, referenceMint string, concurrency int, log zerolog.Logger) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		provider:    provider,
		indicators:  indicators,
		trend:       trend,
		strategies:  strategies,
		reference:   referenceMint,
		concurrency: concurrency,
		log:         log.With().Str("service", "signal_engine").Logger(),
	}
}

// GenerateRecommendations evaluates every strategy against fresh market
// data and returns recommendations sorted by confidence, highest first.
func (e *Engine) GenerateRecommendations(ctx context.Context, portfolio *domain.Portfolio, config *domain.AgentConfig) ([]domain.TradeRecommendation, error) {
	input, err := e.buildInput(ctx, portfolio, config)
	if err != nil {
		return nil, err
	}

	var recommendations []domain.TradeRecommendation
	for _, strategy := range e.strategies {
		for _, proposal := range strategy.Evaluate(input) {
			confidence := Confidence(proposal.Signals, config.RiskProfile)
			if proposal.InputAmount <= 0 {
				continue
			}

			recommendations = append(recommendations, domain.TradeRecommendation{
				ID:           uuid.New().String(),
				Wallet:       portfolio.Wallet,
				StrategyID:   strategy.ID(),
				StrategyName: strategy.Name(),
				InputMint:    proposal.InputMint,
				InputSymbol:  proposal.InputSymbol,
				OutputMint:   proposal.OutputMint,
				OutputSymbol: proposal.OutputSymbol,
				InputAmount:  proposal.InputAmount,
				Confidence:   confidence,
				Signals:      proposal.Signals,
				Reason:       proposal.Reason,
				CreatedAt:    time.Now(),
			})
		}
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Confidence > recommendations[j].Confidence
	})

	e.log.Info().
		Str("wallet", portfolio.Wallet).
		Str("trend", string(input.Trend)).
		Int("recommendations", len(recommendations)).
		Msg("Generated trade recommendations")

	return recommendations, nil
}

// buildInput assembles the shared strategy input: stable asset, trend, and
// concurrently fetched indicators and price history for the universe.
func (e *Engine) buildInput(ctx context.Context, portfolio *domain.Portfolio, config *domain.AgentConfig) (*Input, error) {
	input := &Input{
		Portfolio:  portfolio,
		Config:     config,
		Indicators: make(map[string]*domain.TechnicalIndicators),
		History:    make(map[string][]domain.PricePoint),
		Reference:  e.reference,
	}

	for i := range portfolio.Assets {
		if e.provider.IsStablecoin(portfolio.Assets[i].Mint) {
			input.Stable = &portfolio.Assets[i]
			break
		}
	}

	trend, err := e.trend.Detect(ctx)
	if err != nil {
		// Strategies that need direction sit out; the rest still run.
		e.log.Warn().Err(err).Msg("Trend detection failed, assuming sideways")
		trend = domain.TrendSideways
	}
	input.Trend = trend

	universe := e.universe(portfolio, config)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, mint := range universe {
		mint := mint
		g.Go(func() error {
			ind, err := e.indicators.Get(gctx, mint)
			if err != nil {
				e.log.Debug().Err(err).Str("mint", mint).Msg("No indicators for mint, strategies will skip it")
			}

			history, histErr := e.provider.HistoricalPrices(gctx, mint, "7d")
			if histErr != nil {
				e.log.Debug().Err(histErr).Str("mint", mint).Msg("No history for mint")
			}

			mu.Lock()
			if err == nil {
				input.Indicators[mint] = ind
			}
			if histErr == nil {
				input.History[mint] = history
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return input, nil
}

// universe is the union of held mints, preferred mints and the reference,
// minus stables.
func (e *Engine) universe(portfolio *domain.Portfolio, config *domain.AgentConfig) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(mint string) {
		if mint == "" || seen[mint] || e.provider.IsStablecoin(mint) {
			return
		}
		seen[mint] = true
		out = append(out, mint)
	}

	for _, asset := range portfolio.Assets {
		add(asset.Mint)
	}
	for _, mint := range config.PreferredMints {
		add(mint)
	}
	add(e.reference)

	return out
}
