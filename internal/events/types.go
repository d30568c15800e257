// Package events provides event management functionality.
package events

// EventType identifies a system event
type EventType string

const (
	// SessionStarted - a rebalance/trade session began for a wallet
	SessionStarted EventType = "session_started"
	// SessionCompleted - a session finished (fully or partially)
	SessionCompleted EventType = "session_completed"
	// PlanGenerated - the planner produced a set of rebalance actions
	PlanGenerated EventType = "plan_generated"
	// RecommendationsReady - a signal cycle produced new recommendations
	RecommendationsReady EventType = "recommendations_ready"
	// TradeExecuted - a swap confirmed on-chain
	TradeExecuted EventType = "trade_executed"
	// TradeFailed - a swap was rejected or failed to confirm
	TradeFailed EventType = "trade_failed"
	// QuoteFailed - the venue returned no usable route for an action
	QuoteFailed EventType = "quote_failed"
	// PortfolioChanged - a fresh snapshot differs from the previous one
	PortfolioChanged EventType = "portfolio_changed"
	// ErrorOccurred - a component reported an unexpected error
	ErrorOccurred EventType = "error_occurred"
	// NotificationSent - a user-facing notification was pushed
	NotificationSent EventType = "notification_sent"
)
