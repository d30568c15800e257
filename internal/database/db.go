// Package database provides database connection and initialization functionality.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the journal database connection
type DB struct {
	conn *sql.DB
	path string
}

// Config holds database configuration
type Config struct {
	Path string
}

// New creates a new database connection with WAL mode and a sane pool size
func New(cfg Config) (*DB, error) {
	// file: URIs (in-memory test databases) skip filepath handling
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	sep := "?"
	if strings.Contains(cfg.Path, "?") {
		sep = "&"
	}
	connStr := fmt.Sprintf("%s%s_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)", cfg.Path, sep)

	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY churn.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, path: cfg.Path}

	if err := db.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Conn returns the underlying sql.DB for repositories
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the journal tables if they do not exist. The schema is
// additive only; columns are never dropped or repurposed.
func (db *DB) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		wallet TEXT NOT NULL,
		strategy_id TEXT NOT NULL DEFAULT '',
		input_mint TEXT NOT NULL,
		output_mint TEXT NOT NULL,
		input_amount REAL NOT NULL,
		output_amount REAL NOT NULL,
		slippage_bps INTEGER NOT NULL DEFAULT 0,
		signature TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL DEFAULT 0,
		executed_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_wallet ON trades(wallet);
	CREATE INDEX IF NOT EXISTS idx_trades_executed_at ON trades(executed_at);

	CREATE TABLE IF NOT EXISTS recommendations (
		id TEXT PRIMARY KEY,
		wallet TEXT NOT NULL,
		strategy_id TEXT NOT NULL,
		strategy_name TEXT NOT NULL,
		input_mint TEXT NOT NULL,
		input_symbol TEXT NOT NULL DEFAULT '',
		output_mint TEXT NOT NULL,
		output_symbol TEXT NOT NULL DEFAULT '',
		input_amount REAL NOT NULL,
		estimated_out REAL NOT NULL DEFAULT 0,
		price_impact_pct REAL NOT NULL DEFAULT 0,
		confidence INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		signals TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		resolved_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_recommendations_wallet_status ON recommendations(wallet, status);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	return nil
}
