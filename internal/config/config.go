// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sonicagent/engine/internal/domain"
)

// Config holds application configuration
type Config struct {
	DataDir string // Base directory for the local journal database

	// External services
	VenueBaseURL      string // swap venue (quote/build/submit) API
	ChainRPCURL       string // chain JSON-RPC endpoint
	AgentAPIURL       string // agent program gateway (decoded config accounts, trade records)
	MarketDataBaseURL string // market data provider API
	MarketDataWSURL   string // market data price stream (optional)
	MarketDataAPIKey  string

	// Engine defaults, used when the on-chain agent config omits a value
	RebalanceThresholdPct float64
	MaxSlippageBps        int
	QuoteRetries          int           // extra attempts after the first quote failure
	QuoteConcurrency      int           // bounded fan-out for quote/indicator fetches
	InterActionDelay      time.Duration // venue rate-limit spacing between swaps
	CallTimeout           time.Duration // per external call
	RiskProfile           domain.RiskProfile

	// Signing
	WalletPrivateKey string // base58 ed25519 secret key; empty disables execution

	// Analysis cycle
	Wallets       []string // wallets the scheduler runs cycles for
	CycleSchedule string   // cron spec, e.g. "0 */15 * * * *"

	LogLevel string
	Port     int
	DevMode  bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("AGENT_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	riskProfile, err := domain.RiskProfileFromString(getEnv("RISK_PROFILE", "moderate"))
	if err != nil {
		return nil, fmt.Errorf("invalid RISK_PROFILE: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		VenueBaseURL:      getEnv("VENUE_BASE_URL", "https://quote-api.jup.ag/v6"),
		ChainRPCURL:       getEnv("CHAIN_RPC_URL", "https://api.mainnet-alpha.sonic.game"),
		AgentAPIURL:       getEnv("AGENT_API_URL", "http://localhost:8899"),
		MarketDataBaseURL: getEnv("MARKET_DATA_BASE_URL", "https://public-api.birdeye.so"),
		MarketDataWSURL:   getEnv("MARKET_DATA_WS_URL", ""),
		MarketDataAPIKey:  getEnv("MARKET_DATA_API_KEY", ""),

		RebalanceThresholdPct: getEnvAsFloat("REBALANCE_THRESHOLD_PCT", 5.0),
		MaxSlippageBps:        getEnvAsInt("MAX_SLIPPAGE_BPS", 50),
		QuoteRetries:          getEnvAsInt("QUOTE_RETRIES", 1),
		QuoteConcurrency:      getEnvAsInt("QUOTE_CONCURRENCY", 4),
		InterActionDelay:      time.Duration(getEnvAsInt("INTER_ACTION_DELAY_MS", 1500)) * time.Millisecond,
		CallTimeout:           time.Duration(getEnvAsInt("CALL_TIMEOUT_SEC", 30)) * time.Second,
		RiskProfile:           riskProfile,

		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),

		Wallets:       splitNonEmpty(getEnv("AGENT_WALLETS", "")),
		CycleSchedule: getEnv("CYCLE_SCHEDULE", "0 */15 * * * *"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.VenueBaseURL == "" {
		return fmt.Errorf("VENUE_BASE_URL is required")
	}
	if c.ChainRPCURL == "" {
		return fmt.Errorf("CHAIN_RPC_URL is required")
	}
	if c.RebalanceThresholdPct <= 0 || c.RebalanceThresholdPct >= 100 {
		return fmt.Errorf("REBALANCE_THRESHOLD_PCT must be in (0, 100), got %.2f", c.RebalanceThresholdPct)
	}
	if c.MaxSlippageBps <= 0 || c.MaxSlippageBps > 10000 {
		return fmt.Errorf("MAX_SLIPPAGE_BPS must be in (0, 10000], got %d", c.MaxSlippageBps)
	}
	if c.QuoteConcurrency < 1 {
		return fmt.Errorf("QUOTE_CONCURRENCY must be at least 1, got %d", c.QuoteConcurrency)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
