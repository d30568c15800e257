package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonicagent/engine/internal/domain"
	"github.com/sonicagent/engine/internal/events"
	"github.com/sonicagent/engine/internal/modules/allocation"
	"github.com/sonicagent/engine/internal/modules/execution"
	"github.com/sonicagent/engine/internal/modules/planner"
	"github.com/sonicagent/engine/internal/modules/quotes"
	"github.com/sonicagent/engine/internal/modules/signals"
	"github.com/sonicagent/engine/internal/modules/trading"
)

// Defaults applied when the on-chain agent config leaves a value unset.
type Defaults struct {
	RebalanceThresholdPct float64
	MaxSlippageBps        int
}

// AgentService runs the analyze, plan, quote, execute pipeline and the
// periodic signal cycles for each wallet.
type AgentService struct {
	ledger      domain.LedgerClient
	analyzer    *allocation.Analyzer
	planner     *planner.Planner
	resolver    *quotes.Resolver
	coordinator *execution.Coordinator
	signals     *signals.Engine
	recs        *trading.RecommendationRepository
	trades      *trading.TradeRepository
	events      *events.Manager
	stables     planner.StablecoinChecker
	defaults    Defaults
	log         zerolog.Logger

	mu         sync.Mutex
	lastValues map[string]float64
}

// NewAgentService creates a new agent service
func NewAgentService(
	ledger domain.LedgerClient,
	analyzer *allocation.Analyzer,
	rebalancePlanner *planner.Planner,
	resolver *quotes.Resolver,
	coordinator *execution.Coordinator,
	signalEngine *signals.Engine,
	recs *trading.RecommendationRepository,
	trades *trading.TradeRepository,
	eventManager *events.Manager,
	stables planner.StablecoinChecker,
	defaults Defaults,
	log zerolog.Logger,
) *AgentService {
	return &AgentService{
		ledger:      ledger,
		analyzer:    analyzer,
		planner:     rebalancePlanner,
		resolver:    resolver,
		coordinator: coordinator,
		signals:     signalEngine,
		recs:        recs,
		trades:      trades,
		events:      eventManager,
		stables:     stables,
		defaults:    defaults,
		log:         log.With().Str("service", "agent").Logger(),
		lastValues:  make(map[string]float64),
	}
}

// trackPortfolioValue emits PortfolioChanged when a wallet's total value
// moved more than 0.1% since the last observed snapshot.
func (s *AgentService) trackPortfolioValue(wallet string, totalValueUSD float64) {
	s.mu.Lock()
	last, seen := s.lastValues[wallet]
	s.lastValues[wallet] = totalValueUSD
	s.mu.Unlock()

	if !seen || last == 0 {
		return
	}
	if math.Abs(totalValueUSD-last)/last <= 0.001 {
		return
	}
	s.events.EmitTyped(events.PortfolioChanged, "agent", &events.PortfolioChangedData{
		Wallet:        wallet,
		TotalValueUSD: totalValueUSD,
	})
}

// PortfolioView is the snapshot plus its derived deviations.
type PortfolioView struct {
	Portfolio  *domain.Portfolio            `json:"portfolio"`
	Deviations []domain.AllocationDeviation `json:"deviations"`
	Config     *domain.AgentConfig          `json:"config"`
}

// GetPortfolioView fetches the wallet's snapshot and analyzes it against
// the configured targets.
func (s *AgentService) GetPortfolioView(ctx context.Context, wallet string) (*PortfolioView, error) {
	config, err := s.ledger.GetAgentConfig(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent config: %w", err)
	}

	portfolio, err := s.ledger.GetPortfolio(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}

	deviations, err := s.analyzer.Analyze(portfolio, config.TargetAllocations)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze allocations: %w", err)
	}

	return &PortfolioView{
		Portfolio:  portfolio,
		Deviations: deviations,
		Config:     config,
	}, nil
}

// RunRebalance executes a full session for the wallet. With dryRun the
// session stops after quoting and reports what would have executed.
func (s *AgentService) RunRebalance(ctx context.Context, wallet string, dryRun bool) (*domain.RebalanceResult, error) {
	config, err := s.ledger.GetAgentConfig(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent config: %w", err)
	}

	portfolio, err := s.ledger.GetPortfolio(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}

	deviations, err := s.analyzer.Analyze(portfolio, config.TargetAllocations)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze allocations: %w", err)
	}

	threshold := config.RebalanceThresholdPct
	if threshold <= 0 {
		threshold = s.defaults.RebalanceThresholdPct
	}

	plan, err := s.planner.Plan(portfolio, deviations, threshold, config.TargetAllocations)
	if err != nil {
		return nil, fmt.Errorf("failed to plan rebalance: %w", err)
	}

	var sells, buys int
	for _, action := range plan {
		if action.Op == domain.OpSell {
			sells++
		} else {
			buys++
		}
	}
	s.events.EmitTyped(events.PlanGenerated, "agent", &events.PlanGeneratedData{
		Wallet:    wallet,
		Sells:     sells,
		Buys:      buys,
		Threshold: threshold,
	})

	slippageBps := config.Rules.MaxSlippageBps
	if slippageBps <= 0 {
		slippageBps = s.defaults.MaxSlippageBps
	}

	resolved := s.resolver.ResolveAll(ctx, plan, portfolio, slippageBps)
	for _, action := range resolved {
		if action.Status == domain.ActionUnquotable {
			s.events.EmitTyped(events.QuoteFailed, "agent", &events.QuoteFailedData{
				InputMint:  action.FromMint,
				OutputMint: action.ToMint,
				Reason:     action.Error,
			})
		}
	}

	if dryRun {
		return dryRunResult(wallet, resolved), nil
	}

	return s.coordinator.Execute(ctx, wallet, resolved, config.Rules)
}

// dryRunResult reports the quoted plan without touching the chain.
func dryRunResult(wallet string, actions []domain.RebalanceAction) *domain.RebalanceResult {
	result := &domain.RebalanceResult{
		Wallet:       wallet,
		State:        domain.SessionPlanning,
		Actions:      actions,
		TotalPlanned: len(actions),
		Success:      true,
		StartedAt:    time.Now(),
		FinishedAt:   time.Now(),
	}
	for _, action := range actions {
		if action.Status == domain.ActionUnquotable {
			result.Unquotable++
		}
	}
	return result
}

// RunAnalysisCycle regenerates the wallet's recommendations from fresh
// market data. Each cycle supersedes the previous pending set.
func (s *AgentService) RunAnalysisCycle(ctx context.Context, wallet string) error {
	config, err := s.ledger.GetAgentConfig(ctx, wallet)
	if err != nil {
		return fmt.Errorf("failed to load agent config: %w", err)
	}

	portfolio, err := s.ledger.GetPortfolio(ctx, wallet)
	if err != nil {
		return fmt.Errorf("failed to load portfolio: %w", err)
	}
	s.trackPortfolioValue(wallet, portfolio.TotalValueUSD)

	recommendations, err := s.signals.GenerateRecommendations(ctx, portfolio, config)
	if err != nil {
		return fmt.Errorf("failed to generate recommendations: %w", err)
	}

	// Each draft gets a venue quote so its estimated output and price impact
	// are known up front, and the quote's impact joins the scored signals.
	slippageBps := config.Rules.MaxSlippageBps
	if slippageBps <= 0 {
		slippageBps = s.defaults.MaxSlippageBps
	}
	for i := range recommendations {
		enriched := s.resolver.ResolveRecommendation(ctx, recommendations[i], portfolio, slippageBps)
		recommendations[i] = signals.ApplyQuoteSignal(enriched, config.RiskProfile)
	}
	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Confidence > recommendations[j].Confidence
	})

	if err := s.recs.ReplacePending(ctx, wallet, recommendations); err != nil {
		return fmt.Errorf("failed to store recommendations: %w", err)
	}

	s.events.EmitTyped(events.RecommendationsReady, "agent", &events.RecommendationsReadyData{
		Wallet: wallet,
		Count:  len(recommendations),
	})

	// Auto-rebalance wallets also get a drift check each cycle.
	if config.AutoRebalance {
		result, err := s.RunRebalance(ctx, wallet, false)
		if err != nil {
			s.events.EmitError("agent", err, map[string]interface{}{"wallet": wallet})
			return nil
		}
		s.log.Info().
			Str("wallet", wallet).
			Int("executed", result.Executed).
			Int("failed", result.Failed).
			Msg("Auto-rebalance cycle finished")
	}

	return nil
}

// GetRecommendations returns the wallet's live recommendations.
func (s *AgentService) GetRecommendations(ctx context.Context, wallet string) ([]trading.StoredRecommendation, error) {
	return s.recs.GetPending(ctx, wallet)
}

// ExecuteRecommendation accepts one pending recommendation and runs it as
// a single-action session.
func (s *AgentService) ExecuteRecommendation(ctx context.Context, id string) (*domain.RebalanceResult, error) {
	rec, err := s.recs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != trading.RecommendationPending {
		return nil, fmt.Errorf("recommendation %s is %s, not pending", id, rec.Status)
	}

	config, err := s.ledger.GetAgentConfig(ctx, rec.Wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent config: %w", err)
	}

	portfolio, err := s.ledger.GetPortfolio(ctx, rec.Wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}

	if err := s.recs.MarkStatus(ctx, id, trading.RecommendationAccepted); err != nil {
		return nil, err
	}

	// Strategies spend the stable asset to buy and receive it to sell.
	op := domain.OpBuy
	if s.stables.IsStablecoin(rec.OutputMint) {
		op = domain.OpSell
	}
	action := domain.RebalanceAction{
		Op:         op,
		FromMint:   rec.InputMint,
		FromSymbol: rec.InputSymbol,
		ToMint:     rec.OutputMint,
		ToSymbol:   rec.OutputSymbol,
		Amount:     rec.InputAmount,
		Status:     domain.ActionPlanned,
	}

	slippageBps := config.Rules.MaxSlippageBps
	if slippageBps <= 0 {
		slippageBps = s.defaults.MaxSlippageBps
	}

	resolved := s.resolver.ResolveAll(ctx, []domain.RebalanceAction{action}, portfolio, slippageBps)

	result, err := s.coordinator.Execute(ctx, rec.Wallet, resolved, config.Rules)
	if err != nil {
		// The session never started; put the recommendation back up so a
		// later attempt can consume it.
		if markErr := s.recs.MarkStatus(ctx, id, trading.RecommendationPending); markErr != nil {
			s.log.Warn().Err(markErr).Str("recommendation", id).Msg("Failed to restore recommendation to pending")
		}
		return nil, err
	}

	// The recommendation resolves either way: executed on success, expired
	// when the attempt failed or was skipped. An accepted entry never
	// lingers unresolved.
	status := trading.RecommendationExpired
	if result.Executed == 1 {
		status = trading.RecommendationExecuted
	}
	if err := s.recs.MarkStatus(ctx, id, status); err != nil {
		s.log.Warn().Err(err).Str("recommendation", id).Str("status", string(status)).Msg("Failed to resolve recommendation")
	}
	return result, nil
}

// ListTrades returns the wallet's local journal.
func (s *AgentService) ListTrades(ctx context.Context, wallet string, limit int) ([]domain.TradeRecord, error) {
	return s.trades.ListTrades(ctx, wallet, limit)
}
