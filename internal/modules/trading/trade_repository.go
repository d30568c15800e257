// Package trading persists the local trade journal and the recommendation
// lifecycle in sqlite.
package trading

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonicagent/engine/internal/database"
	"github.com/sonicagent/engine/internal/domain"
)

// TradeRepository journals every executed or attempted trade locally. The
// journal is the source of truth for trade-frequency limits; the chain
// record is best-effort and may lag.
type TradeRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *database.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trades").Logger(),
	}
}

// RecordTrade appends one trade to the journal
func (r *TradeRepository) RecordTrade(ctx context.Context, record domain.TradeRecord) error {
	query := `
		INSERT INTO trades (wallet, strategy_id, input_mint, output_mint, input_amount,
			output_amount, slippage_bps, signature, reason, success, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Conn().ExecContext(ctx, query,
		record.Wallet, record.StrategyID, record.InputMint, record.OutputMint,
		record.InputAmount, record.OutputAmount, record.SlippageBps,
		record.Signature, record.Reason, record.Success, record.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}
	return nil
}

// CountTradesSince counts successful trades for a wallet after the cutoff
func (r *TradeRepository) CountTradesSince(ctx context.Context, wallet string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM trades WHERE wallet = ? AND success = 1 AND executed_at >= ?`

	var count int
	if err := r.db.Conn().QueryRowContext(ctx, query, wallet, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}

// LastTradeForMint returns when the wallet last traded the mint, on either
// leg of a swap.
func (r *TradeRepository) LastTradeForMint(ctx context.Context, wallet, mint string) (time.Time, bool, error) {
	query := `
		SELECT executed_at FROM trades
		WHERE wallet = ? AND (input_mint = ? OR output_mint = ?)
		ORDER BY executed_at DESC LIMIT 1`

	var last time.Time
	err := r.db.Conn().QueryRowContext(ctx, query, wallet, mint, mint).Scan(&last)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last trade: %w", err)
	}
	return last, true, nil
}

// ListTrades returns the wallet's journal, newest first
func (r *TradeRepository) ListTrades(ctx context.Context, wallet string, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT wallet, strategy_id, input_mint, output_mint, input_amount,
			output_amount, slippage_bps, signature, reason, success, executed_at
		FROM trades WHERE wallet = ?
		ORDER BY executed_at DESC LIMIT ?`

	rows, err := r.db.Conn().QueryContext(ctx, query, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		if err := rows.Scan(&t.Wallet, &t.StrategyID, &t.InputMint, &t.OutputMint,
			&t.InputAmount, &t.OutputAmount, &t.SlippageBps, &t.Signature,
			&t.Reason, &t.Success, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
