package trading

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicagent/engine/internal/database"
	"github.com/sonicagent/engine/internal/domain"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tradeFixture(wallet string, executedAt time.Time) domain.TradeRecord {
	return domain.TradeRecord{
		Wallet:       wallet,
		StrategyID:   "momentum",
		InputMint:    "MintA",
		OutputMint:   "MintUSDC",
		InputAmount:  10,
		OutputAmount: 9.9,
		SlippageBps:  50,
		Signature:    uuid.New().String(),
		Reason:       "rebalance sell",
		Success:      true,
		ExecutedAt:   executedAt,
	}
}

func TestTradeRepository_RecordAndList(t *testing.T) {
	repo := NewTradeRepository(testDB(t), zerolog.Nop())
	ctx := context.Background()

	older := tradeFixture("Wallet111", time.Now().Add(-2*time.Hour))
	newer := tradeFixture("Wallet111", time.Now().Add(-time.Minute))
	require.NoError(t, repo.RecordTrade(ctx, older))
	require.NoError(t, repo.RecordTrade(ctx, newer))
	require.NoError(t, repo.RecordTrade(ctx, tradeFixture("OtherWallet", time.Now())))

	trades, err := repo.ListTrades(ctx, "Wallet111", 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, newer.Signature, trades[0].Signature, "newest first")
	assert.Equal(t, older.Signature, trades[1].Signature)
}

func TestTradeRepository_CountTradesSince(t *testing.T) {
	repo := NewTradeRepository(testDB(t), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.RecordTrade(ctx, tradeFixture("Wallet111", time.Now().Add(-25*time.Hour))))
	require.NoError(t, repo.RecordTrade(ctx, tradeFixture("Wallet111", time.Now().Add(-time.Hour))))

	failed := tradeFixture("Wallet111", time.Now().Add(-time.Minute))
	failed.Success = false
	require.NoError(t, repo.RecordTrade(ctx, failed))

	count, err := repo.CountTradesSince(ctx, "Wallet111", time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count, "failed trades and old trades are not counted")
}

func TestTradeRepository_LastTradeForMint(t *testing.T) {
	repo := NewTradeRepository(testDB(t), zerolog.Nop())
	ctx := context.Background()

	executedAt := time.Now().Add(-30 * time.Minute).UTC().Truncate(time.Second)
	record := tradeFixture("Wallet111", executedAt)
	require.NoError(t, repo.RecordTrade(ctx, record))

	// Found on the input leg.
	last, found, err := repo.LastTradeForMint(ctx, "Wallet111", "MintA")
	require.NoError(t, err)
	require.True(t, found)
	assert.WithinDuration(t, executedAt, last, time.Second)

	// Found on the output leg.
	_, found, err = repo.LastTradeForMint(ctx, "Wallet111", "MintUSDC")
	require.NoError(t, err)
	assert.True(t, found)

	// Never traded.
	_, found, err = repo.LastTradeForMint(ctx, "Wallet111", "MintNever")
	require.NoError(t, err)
	assert.False(t, found)
}

func recommendationFixture(wallet string, confidence int) domain.TradeRecommendation {
	return domain.TradeRecommendation{
		ID:             uuid.New().String(),
		Wallet:         wallet,
		StrategyID:     "dca",
		StrategyName:   "Dollar-Cost Averaging",
		InputMint:      "MintUSDC",
		InputSymbol:    "USDC",
		OutputMint:     "MintSOL",
		OutputSymbol:   "SOL",
		InputAmount:    50,
		EstimatedOut:   0.33,
		PriceImpactPct: 0.08,
		Confidence:     confidence,
		Signals: []domain.Signal{
			{Name: "dca_baseline", Value: 0.5, Impact: domain.ImpactNeutral, Weight: 1},
		},
		Reason:    "DCA accumulation of SOL",
		CreatedAt: time.Now(),
	}
}

func TestRecommendationRepository_ReplaceAndGetPending(t *testing.T) {
	repo := NewRecommendationRepository(testDB(t), time.Hour, zerolog.Nop())
	ctx := context.Background()

	first := recommendationFixture("Wallet111", 60)
	require.NoError(t, repo.ReplacePending(ctx, "Wallet111", []domain.TradeRecommendation{first}))

	// A new cycle supersedes the previous pending set.
	low := recommendationFixture("Wallet111", 40)
	high := recommendationFixture("Wallet111", 85)
	require.NoError(t, repo.ReplacePending(ctx, "Wallet111", []domain.TradeRecommendation{low, high}))

	pending, err := repo.GetPending(ctx, "Wallet111")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, high.ID, pending[0].ID, "highest confidence first")
	assert.Equal(t, RecommendationPending, pending[0].Status)
	require.Len(t, pending[0].Signals, 1)
	assert.Equal(t, "dca_baseline", pending[0].Signals[0].Name)
	assert.InDelta(t, 0.33, pending[0].EstimatedOut, 1e-9)
	assert.InDelta(t, 0.08, pending[0].PriceImpactPct, 1e-9)

	// The superseded entry is expired, not deleted.
	stored, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, RecommendationExpired, stored.Status)
}

func TestRecommendationRepository_TTLExpiry(t *testing.T) {
	repo := NewRecommendationRepository(testDB(t), time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	rec := recommendationFixture("Wallet111", 70)
	require.NoError(t, repo.ReplacePending(ctx, "Wallet111", []domain.TradeRecommendation{rec}))

	time.Sleep(5 * time.Millisecond)

	pending, err := repo.GetPending(ctx, "Wallet111")
	require.NoError(t, err)
	assert.Empty(t, pending)

	stored, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, RecommendationExpired, stored.Status)
}

func TestRecommendationRepository_StatusLifecycle(t *testing.T) {
	repo := NewRecommendationRepository(testDB(t), time.Hour, zerolog.Nop())
	ctx := context.Background()

	rec := recommendationFixture("Wallet111", 70)
	require.NoError(t, repo.ReplacePending(ctx, "Wallet111", []domain.TradeRecommendation{rec}))

	require.NoError(t, repo.MarkStatus(ctx, rec.ID, RecommendationAccepted))
	require.NoError(t, repo.MarkStatus(ctx, rec.ID, RecommendationExecuted))

	stored, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, RecommendationExecuted, stored.Status)

	// Terminal states cannot transition again.
	err = repo.MarkStatus(ctx, rec.ID, RecommendationExpired)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in a transitionable state")
}

func TestRecommendationRepository_GetMissing(t *testing.T) {
	repo := NewRecommendationRepository(testDB(t), time.Hour, zerolog.Nop())

	_, err := repo.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
