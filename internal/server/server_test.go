package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicagent/engine/internal/database"
	"github.com/sonicagent/engine/internal/domain"
	"github.com/sonicagent/engine/internal/events"
	"github.com/sonicagent/engine/internal/modules/allocation"
	"github.com/sonicagent/engine/internal/modules/execution"
	"github.com/sonicagent/engine/internal/modules/planner"
	"github.com/sonicagent/engine/internal/modules/quotes"
	"github.com/sonicagent/engine/internal/modules/signals"
	"github.com/sonicagent/engine/internal/modules/trading"
	"github.com/sonicagent/engine/internal/services"
	enginetest "github.com/sonicagent/engine/internal/testing"
)

type testEnv struct {
	server *Server
	ledger *enginetest.MockLedgerClient
	venue  *enginetest.MockSwapVenue
	market *enginetest.MockMarketData
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()

	db, err := database.New(database.Config{
		Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ledger := enginetest.NewMockLedgerClient()
	ledger.SetConfig(enginetest.NewAgentConfigFixture("Wallet111"))
	ledger.SetPortfolio(enginetest.NewPortfolioFixture("Wallet111"))

	market := enginetest.NewMockMarketData()
	market.SetStablecoin(enginetest.MintUSDC)

	venue := enginetest.NewMockSwapVenue()
	signer := enginetest.NewMockSigner("Wallet111")
	sink := enginetest.NewMockNotificationSink()
	eventManager := events.NewManager(events.NewBus(), log)

	trades := trading.NewTradeRepository(db, log)
	recs := trading.NewRecommendationRepository(db, time.Hour, log)

	coordinator := execution.NewCoordinator(venue, signer, ledger, trades, sink, eventManager, execution.Config{}, log)

	indicators := signals.NewIndicatorService(market, time.Minute, log)
	trend := signals.NewTrendDetector(market, enginetest.MintSOL, log)
	engine := signals.NewEngine(market, indicators, trend, []signals.Strategy{
		signals.NewDCAStrategy(),
		signals.NewMomentumStrategy(),
	}, enginetest.MintSOL, 2, log)

	agent := services.NewAgentService(
		ledger,
		allocation.NewAnalyzer(log),
		planner.NewPlanner(market, log),
		quotes.NewResolver(venue, 0, 2, log),
		coordinator,
		engine,
		recs,
		trades,
		eventManager,
		market,
		services.Defaults{RebalanceThresholdPct: 5, MaxSlippageBps: 50},
		log,
	)

	return &testEnv{
		server: New(agent, 0, log),
		ledger: ledger,
		venue:  venue,
		market: market,
	}
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	decodeBody(t, rec, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.WalletsReady)
}

func TestHandlePortfolio(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/portfolio/Wallet111")
	require.Equal(t, http.StatusOK, rec.Code)

	var view services.PortfolioView
	decodeBody(t, rec, &view)
	require.NotNil(t, view.Portfolio)
	assert.Equal(t, "Wallet111", view.Portfolio.Wallet)
	assert.Len(t, view.Portfolio.Assets, 3)
	assert.Len(t, view.Deviations, 3)
}

func TestHandlePortfolio_LedgerDown(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.SetError(fmt.Errorf("rpc unreachable"))

	rec := env.do(t, http.MethodGet, "/api/portfolio/Wallet111")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleRebalance_DryRunBalanced(t *testing.T) {
	env := newTestEnv(t)

	// The fixture portfolio already matches its targets, so a dry run
	// reports an empty plan.
	rec := env.do(t, http.MethodPost, "/api/rebalance/Wallet111?dry_run=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.RebalanceResult
	decodeBody(t, rec, &result)
	assert.Equal(t, domain.SessionPlanning, result.State)
	assert.Zero(t, result.TotalPlanned)
	assert.True(t, result.Success)
}

func TestHandleRebalance_DryRunDrifted(t *testing.T) {
	env := newTestEnv(t)

	// Double the BONK position: 33.3% actual vs 20% target, SOL drops to
	// 41.7% vs 50%. Expect a BONK sell and a SOL buy, both quoted.
	portfolio := enginetest.NewPortfolioFixture("Wallet111")
	portfolio.Assets[2].UIAmount = 20_000_000
	portfolio.Assets[2].Balance = 2_000_000_000_000
	portfolio.Assets[2].ValueUSD = 400
	portfolio.TotalValueUSD = 1200
	env.ledger.SetPortfolio(portfolio)

	rec := env.do(t, http.MethodPost, "/api/rebalance/Wallet111?dry_run=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.RebalanceResult
	decodeBody(t, rec, &result)
	assert.Equal(t, domain.SessionPlanning, result.State)
	require.Len(t, result.Actions, 2)
	assert.Equal(t, domain.OpSell, result.Actions[0].Op)
	assert.Equal(t, enginetest.MintBONK, result.Actions[0].FromMint)
	assert.Equal(t, domain.OpBuy, result.Actions[1].Op)
	assert.Equal(t, enginetest.MintSOL, result.Actions[1].ToMint)
	for _, action := range result.Actions {
		assert.Equal(t, domain.ActionQuoted, action.Status)
	}
}

func TestHandleRecommendations_Empty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/recommendations/Wallet111")
	require.Equal(t, http.StatusOK, rec.Code)

	var recs []trading.StoredRecommendation
	decodeBody(t, rec, &recs)
	assert.Empty(t, recs)
}

func TestHandleExecuteRecommendation_Unknown(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/recommendations/"+uuid.New().String()+"/execute")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleTrades_EmptyAndLimit(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/trades/Wallet111")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/trades/Wallet111?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/trades/Wallet111?limit=9999")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
