package trading

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonicagent/engine/internal/database"
	"github.com/sonicagent/engine/internal/domain"
)

// RecommendationStatus tracks a recommendation's lifecycle
type RecommendationStatus string

const (
	// RecommendationPending - generated this cycle, awaiting a decision
	RecommendationPending RecommendationStatus = "pending"
	// RecommendationAccepted - user accepted, execution in progress
	RecommendationAccepted RecommendationStatus = "accepted"
	// RecommendationExecuted - trade completed
	RecommendationExecuted RecommendationStatus = "executed"
	// RecommendationExpired - superseded by a newer cycle or past its TTL
	RecommendationExpired RecommendationStatus = "expired"
)

// StoredRecommendation is a recommendation with its lifecycle state
type StoredRecommendation struct {
	domain.TradeRecommendation
	Status     RecommendationStatus `json:"status"`
	ExpiresAt  time.Time            `json:"expires_at"`
	ResolvedAt *time.Time           `json:"resolved_at,omitempty"`
}

// RecommendationRepository persists recommendations across cycles. Each new
// cycle expires the previous pending set before storing its own.
type RecommendationRepository struct {
	db  *database.DB
	ttl time.Duration
	log zerolog.Logger
}

// NewRecommendationRepository creates a new recommendation repository
func NewRecommendationRepository(db *database.DB, ttl time.Duration, log zerolog.Logger) *RecommendationRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RecommendationRepository{
		db:  db,
		ttl: ttl,
		log: log.With().Str("repo", "recommendations").Logger(),
	}
}

// ReplacePending expires the wallet's pending recommendations and stores
// the new cycle's set in one transaction.
func (r *RecommendationRepository) ReplacePending(ctx context.Context, wallet string, recs []domain.TradeRecommendation) error {
	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE recommendations SET status = ?, resolved_at = ? WHERE wallet = ? AND status = ?`,
		RecommendationExpired, now, wallet, RecommendationPending)
	if err != nil {
		return fmt.Errorf("failed to expire previous recommendations: %w", err)
	}

	for _, rec := range recs {
		signals, err := json.Marshal(rec.Signals)
		if err != nil {
			return fmt.Errorf("failed to encode signals: %w", err)
		}

		// The venue quote itself is not stored; quotes expire within a
		// minute and execution re-resolves. Its derived estimate and price
		// impact are kept for display.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO recommendations (id, wallet, strategy_id, strategy_name,
				input_mint, input_symbol, output_mint, output_symbol, input_amount,
				estimated_out, price_impact_pct, confidence, reason, signals,
				status, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Wallet, rec.StrategyID, rec.StrategyName,
			rec.InputMint, rec.InputSymbol, rec.OutputMint, rec.OutputSymbol,
			rec.InputAmount, rec.EstimatedOut, rec.PriceImpactPct,
			rec.Confidence, rec.Reason, string(signals),
			RecommendationPending, rec.CreatedAt, rec.CreatedAt.Add(r.ttl))
		if err != nil {
			return fmt.Errorf("failed to store recommendation %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recommendations: %w", err)
	}

	r.log.Debug().Str("wallet", wallet).Int("count", len(recs)).Msg("Replaced pending recommendations")
	return nil
}

// GetPending returns the wallet's live recommendations, highest confidence
// first. Past-TTL entries are lazily expired on read.
func (r *RecommendationRepository) GetPending(ctx context.Context, wallet string) ([]StoredRecommendation, error) {
	now := time.Now()
	_, err := r.db.Conn().ExecContext(ctx,
		`UPDATE recommendations SET status = ?, resolved_at = ? WHERE wallet = ? AND status = ? AND expires_at < ?`,
		RecommendationExpired, now, wallet, RecommendationPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire stale recommendations: %w", err)
	}

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, wallet, strategy_id, strategy_name, input_mint, input_symbol,
			output_mint, output_symbol, input_amount, estimated_out,
			price_impact_pct, confidence, reason, signals,
			status, created_at, expires_at
		FROM recommendations
		WHERE wallet = ? AND status = ?
		ORDER BY confidence DESC`, wallet, RecommendationPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []StoredRecommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// Get returns one recommendation by id
func (r *RecommendationRepository) Get(ctx context.Context, id string) (*StoredRecommendation, error) {
	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, wallet, strategy_id, strategy_name, input_mint, input_symbol,
			output_mint, output_symbol, input_amount, estimated_out,
			price_impact_pct, confidence, reason, signals,
			status, created_at, expires_at
		FROM recommendations WHERE id = ?`, id)

	rec, err := scanRecommendation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("recommendation %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkStatus transitions a recommendation. Only pending and accepted
// entries can move; terminal states are immutable.
func (r *RecommendationRepository) MarkStatus(ctx context.Context, id string, status RecommendationStatus) error {
	result, err := r.db.Conn().ExecContext(ctx,
		`UPDATE recommendations SET status = ?, resolved_at = ? WHERE id = ? AND status IN (?, ?)`,
		status, time.Now(), id, RecommendationPending, RecommendationAccepted)
	if err != nil {
		return fmt.Errorf("failed to update recommendation %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("recommendation %s is not in a transitionable state", id)
	}
	return nil
}

// scanner covers both sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecommendation(row scanner) (*StoredRecommendation, error) {
	var rec StoredRecommendation
	var signalsJSON string

	err := row.Scan(&rec.ID, &rec.Wallet, &rec.StrategyID, &rec.StrategyName,
		&rec.InputMint, &rec.InputSymbol, &rec.OutputMint, &rec.OutputSymbol,
		&rec.InputAmount, &rec.EstimatedOut, &rec.PriceImpactPct,
		&rec.Confidence, &rec.Reason, &signalsJSON,
		&rec.Status, &rec.CreatedAt, &rec.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recommendation: %w", err)
	}

	if err := json.Unmarshal([]byte(signalsJSON), &rec.Signals); err != nil {
		return nil, fmt.Errorf("failed to decode signals for %s: %w", rec.ID, err)
	}
	return &rec, nil
}
