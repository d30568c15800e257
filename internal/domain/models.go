// Package domain contains the core value types and interfaces shared across
// the engine. The domain layer is pure: no clients, no storage, no logging.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Asset is one fungible token position inside a portfolio snapshot.
// Snapshots are recomputed every cycle; an Asset is never mutated in place,
// only replaced together with its Portfolio.
type Asset struct {
	Mint     string  `json:"mint"`
	Symbol   string  `json:"symbol"`
	Decimals uint8   `json:"decimals"`
	Balance  uint64  `json:"balance"` // raw base units
	UIAmount float64 `json:"ui_amount"`
	PriceUSD float64 `json:"price_usd"`
	ValueUSD float64 `json:"value_usd"`
}

// Portfolio is a point-in-time snapshot of a wallet's holdings.
type Portfolio struct {
	Wallet        string    `json:"wallet"`
	Assets        []Asset   `json:"assets"`
	TotalValueUSD float64   `json:"total_value_usd"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// Asset returns the asset for the given mint, or nil if not held.
func (p *Portfolio) Asset(mint string) *Asset {
	for i := range p.Assets {
		if p.Assets[i].Mint == mint {
			return &p.Assets[i]
		}
	}
	return nil
}

// TargetAllocation is one entry of the user's configured target portfolio.
type TargetAllocation struct {
	Mint            string  `json:"mint"`
	Symbol          string  `json:"symbol"`
	TargetPct       float64 `json:"target_pct"`        // 0..100
	MaxDeviationPct float64 `json:"max_deviation_pct"` // per-asset override, 0 = use global threshold
}

// AllocationDeviation is the derived difference between an asset's current
// and target portfolio percentage. Ephemeral, recomputed each cycle.
type AllocationDeviation struct {
	Mint       string  `json:"mint"`
	Symbol     string  `json:"symbol"`
	CurrentPct float64 `json:"current_pct"`
	TargetPct  float64 `json:"target_pct"`
	Diff       float64 `json:"diff"` // current - target
}

// TradeOp is the direction of a rebalance action.
type TradeOp string

const (
	OpBuy  TradeOp = "buy"
	OpSell TradeOp = "sell"
)

// TradeOpFromString parses a trade operation, accepting any casing.
func TradeOpFromString(s string) (TradeOp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return OpBuy, nil
	case "sell":
		return OpSell, nil
	default:
		return "", fmt.Errorf("invalid trade operation: %q (must be buy or sell)", s)
	}
}

// ActionStatus tracks a rebalance action through its lifecycle:
// Planned -> Quoted -> Executing -> Succeeded | Failed.
// Unquotable and NotAttempted are terminal side exits: an Unquotable action
// never reaches execution, a NotAttempted action was cancelled before start.
type ActionStatus string

const (
	ActionPlanned      ActionStatus = "planned"
	ActionQuoted       ActionStatus = "quoted"
	ActionUnquotable   ActionStatus = "unquotable"
	ActionExecuting    ActionStatus = "executing"
	ActionSucceeded    ActionStatus = "succeeded"
	ActionFailed       ActionStatus = "failed"
	ActionNotAttempted ActionStatus = "not_attempted"
)

// RebalanceAction is one planned swap. Each pipeline stage returns a new
// value instead of mutating a shared object, so concurrent quoting never
// races with planning or execution.
type RebalanceAction struct {
	Op         TradeOp `json:"op"`
	FromMint   string  `json:"from_mint"`
	FromSymbol string  `json:"from_symbol"`
	ToMint     string  `json:"to_mint"`
	ToSymbol   string  `json:"to_symbol"`
	// Amount is in ui units of the from-asset.
	Amount     float64 `json:"amount"`
	CurrentPct float64 `json:"current_pct"`
	TargetPct  float64 `json:"target_pct"`
	Deviation  float64 `json:"deviation"`

	Quote          *Quote  `json:"quote,omitempty"`
	EstimatedOut   float64 `json:"estimated_out,omitempty"`
	PriceImpactPct float64 `json:"price_impact_pct,omitempty"`

	Status    ActionStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	Signature string       `json:"signature,omitempty"`
}

// WithQuote returns a copy of the action enriched with a resolved quote.
func (a RebalanceAction) WithQuote(q Quote, estimatedOut float64) RebalanceAction {
	a.Quote = &q
	a.EstimatedOut = estimatedOut
	a.PriceImpactPct = q.PriceImpactPct
	a.Status = ActionQuoted
	return a
}

// WithStatus returns a copy of the action with the given status and
// optional error message.
func (a RebalanceAction) WithStatus(status ActionStatus, errMsg string) RebalanceAction {
	a.Status = status
	a.Error = errMsg
	return a
}

// SessionState tracks one analyze -> plan -> quote -> execute cycle.
type SessionState string

const (
	SessionIdle               SessionState = "idle"
	SessionAnalyzing          SessionState = "analyzing"
	SessionPlanning           SessionState = "planning"
	SessionExecuting          SessionState = "executing"
	SessionCompleted          SessionState = "completed"
	SessionPartiallyCompleted SessionState = "partially_completed"
	SessionFailed             SessionState = "failed"
)

// RebalanceResult is the structured outcome of one execution session.
// It is always returned to the caller, even on partial failure.
type RebalanceResult struct {
	SessionID    string            `json:"session_id"`
	Wallet       string            `json:"wallet"`
	State        SessionState      `json:"state"`
	Actions      []RebalanceAction `json:"actions"`
	TotalPlanned int               `json:"total_planned"`
	Executed     int               `json:"executed"`
	Failed       int               `json:"failed"`
	Unquotable   int               `json:"unquotable"`
	NotAttempted int               `json:"not_attempted"`
	IsComplete   bool              `json:"is_complete"`
	Success      bool              `json:"success"`
	Errors       []string          `json:"errors,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
}

// RiskProfile scales recommendation confidence.
type RiskProfile string

const (
	RiskConservative RiskProfile = "conservative"
	RiskModerate     RiskProfile = "moderate"
	RiskAggressive   RiskProfile = "aggressive"
)

// RiskProfileFromString parses a risk profile, defaulting to moderate for
// empty input.
func RiskProfileFromString(s string) (RiskProfile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return RiskModerate, nil
	case "conservative":
		return RiskConservative, nil
	case "moderate":
		return RiskModerate, nil
	case "aggressive":
		return RiskAggressive, nil
	default:
		return "", fmt.Errorf("invalid risk profile: %q", s)
	}
}

// Multiplier returns the confidence multiplier for the profile.
func (r RiskProfile) Multiplier() float64 {
	switch r {
	case RiskConservative:
		return 0.7
	case RiskAggressive:
		return 1.3
	default:
		return 1.0
	}
}

// TradingRules are the hard limits from the agent configuration.
type TradingRules struct {
	MaxAmountPerTradeUSD float64  `json:"max_amount_per_trade_usd"`
	MaxTradesPerDay      int      `json:"max_trades_per_day"`
	MaxSlippageBps       int      `json:"max_slippage_bps"`
	AllowedMints         []string `json:"allowed_mints,omitempty"`
	ExcludedMints        []string `json:"excluded_mints,omitempty"`
}

// AgentConfig is the per-wallet configuration read from the on-chain
// config account.
type AgentConfig struct {
	Wallet                string             `json:"wallet"`
	RiskProfile           RiskProfile        `json:"risk_profile"`
	AutoRebalance         bool               `json:"auto_rebalance"`
	RebalanceThresholdPct float64            `json:"rebalance_threshold_pct"`
	TargetAllocations     []TargetAllocation `json:"target_allocations"`
	Rules                 TradingRules       `json:"rules"`
	PreferredMints        []string           `json:"preferred_mints,omitempty"`
}

// MarketTrend is the coarse market direction classification consumed by the
// signal engine.
type MarketTrend string

const (
	TrendBullish  MarketTrend = "bullish"
	TrendBearish  MarketTrend = "bearish"
	TrendSideways MarketTrend = "sideways"
)

// SignalImpact classifies how a signal bears on a recommendation.
type SignalImpact string

const (
	ImpactPositive SignalImpact = "positive"
	ImpactNegative SignalImpact = "negative"
	ImpactNeutral  SignalImpact = "neutral"
)

// Signal is one weighted input to a confidence score. Immutable once built.
type Signal struct {
	Name        string       `json:"name"`
	Value       float64      `json:"value"` // normalized 0..1
	Impact      SignalImpact `json:"impact"`
	Weight      float64      `json:"weight"`
	Description string       `json:"description"`
}

// TradeRecommendation is one strategy-generated trade proposal. Produced per
// analysis cycle, superseded by the next cycle, consumed at most once.
type TradeRecommendation struct {
	ID             string    `json:"id"`
	Wallet         string    `json:"wallet"`
	StrategyID     string    `json:"strategy_id"`
	StrategyName   string    `json:"strategy_name"`
	InputMint      string    `json:"input_mint"`
	InputSymbol    string    `json:"input_symbol"`
	OutputMint     string    `json:"output_mint"`
	OutputSymbol   string    `json:"output_symbol"`
	InputAmount    float64   `json:"input_amount"` // ui units of input asset
	EstimatedOut   float64   `json:"estimated_out,omitempty"`
	PriceImpactPct float64   `json:"price_impact_pct,omitempty"`
	Confidence     int       `json:"confidence"` // 0..100
	Signals        []Signal  `json:"signals"`
	Reason         string    `json:"reason"`
	Quote          *Quote    `json:"quote,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TradeRecord is the ledger entry written after a successful swap.
type TradeRecord struct {
	Wallet       string    `json:"wallet"`
	StrategyID   string    `json:"strategy_id"`
	InputMint    string    `json:"input_mint"`
	OutputMint   string    `json:"output_mint"`
	InputAmount  float64   `json:"input_amount"`
	OutputAmount float64   `json:"output_amount"`
	SlippageBps  int       `json:"slippage_bps"`
	Signature    string    `json:"signature"`
	Reason       string    `json:"reason"`
	Success      bool      `json:"success"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// NotificationType mirrors the severity levels of the delivery channel.
type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyError   NotificationType = "error"
	NotifyInfo    NotificationType = "info"
	NotifyWarning NotificationType = "warning"
)

// Notification is one user-facing message pushed to the notification sink.
type Notification struct {
	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Link    string           `json:"link,omitempty"`
}

// PricePoint is one sample of a historical price series.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
}

// TechnicalIndicators is the per-asset indicator bundle consumed by the
// signal engine.
type TechnicalIndicators struct {
	Mint            string  `json:"mint"`
	RSI             float64 `json:"rsi"`
	EMA20           float64 `json:"ema_20"`
	EMA50           float64 `json:"ema_50"`
	MACD            float64 `json:"macd"`
	MACDSignal      float64 `json:"macd_signal"`
	Change24h       float64 `json:"change_24h"`        // percent
	Change7d        float64 `json:"change_7d"`         // percent
	VolumeChange24h float64 `json:"volume_change_24h"` // percent
}
