package events

// EventData is the interface that all event data types must implement.
// This allows for type-safe event data while maintaining flexibility.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// SessionStartedData contains data for SessionStarted events
type SessionStartedData struct {
	SessionID string `json:"session_id"`
	Wallet    string `json:"wallet"`
	Actions   int    `json:"actions"`
}

// EventType returns the event type for SessionStartedData
func (d *SessionStartedData) EventType() EventType {
	return SessionStarted
}

// SessionCompletedData contains data for SessionCompleted events
type SessionCompletedData struct {
	SessionID    string `json:"session_id"`
	Wallet       string `json:"wallet"`
	Executed     int    `json:"executed"`
	Failed       int    `json:"failed"`
	NotAttempted int    `json:"not_attempted"`
	IsComplete   bool   `json:"is_complete"`
}

// EventType returns the event type for SessionCompletedData
func (d *SessionCompletedData) EventType() EventType {
	return SessionCompleted
}

// PlanGeneratedData contains data for PlanGenerated events
type PlanGeneratedData struct {
	Wallet    string  `json:"wallet"`
	Sells     int     `json:"sells"`
	Buys      int     `json:"buys"`
	Threshold float64 `json:"threshold"`
}

// EventType returns the event type for PlanGeneratedData
func (d *PlanGeneratedData) EventType() EventType {
	return PlanGenerated
}

// RecommendationsReadyData contains data for RecommendationsReady events
type RecommendationsReadyData struct {
	Wallet string `json:"wallet"`
	Count  int    `json:"count"`
}

// EventType returns the event type for RecommendationsReadyData
func (d *RecommendationsReadyData) EventType() EventType {
	return RecommendationsReady
}

// TradeExecutedData contains data for TradeExecuted events
type TradeExecutedData struct {
	Wallet       string  `json:"wallet"`
	InputSymbol  string  `json:"input_symbol"`
	OutputSymbol string  `json:"output_symbol"`
	InputAmount  float64 `json:"input_amount"`
	OutputAmount float64 `json:"output_amount"`
	Signature    string  `json:"signature,omitempty"`
	StrategyID   string  `json:"strategy_id,omitempty"`
}

// EventType returns the event type for TradeExecutedData
func (d *TradeExecutedData) EventType() EventType {
	return TradeExecuted
}

// TradeFailedData contains data for TradeFailed events
type TradeFailedData struct {
	Wallet       string `json:"wallet"`
	InputSymbol  string `json:"input_symbol"`
	OutputSymbol string `json:"output_symbol"`
	Reason       string `json:"reason"`
}

// EventType returns the event type for TradeFailedData
func (d *TradeFailedData) EventType() EventType {
	return TradeFailed
}

// QuoteFailedData contains data for QuoteFailed events
type QuoteFailedData struct {
	InputMint  string `json:"input_mint"`
	OutputMint string `json:"output_mint"`
	Reason     string `json:"reason"`
}

// EventType returns the event type for QuoteFailedData
func (d *QuoteFailedData) EventType() EventType {
	return QuoteFailed
}

// PortfolioChangedData contains data for PortfolioChanged events
type PortfolioChangedData struct {
	Wallet        string  `json:"wallet"`
	TotalValueUSD float64 `json:"total_value_usd"`
}

// EventType returns the event type for PortfolioChangedData
func (d *PortfolioChangedData) EventType() EventType {
	return PortfolioChanged
}

// NotificationData contains data for NotificationSent events
type NotificationData struct {
	NotificationType string `json:"notification_type"`
	Title            string `json:"title"`
	Message          string `json:"message"`
	Link             string `json:"link,omitempty"`
}

// EventType returns the event type for NotificationData
func (d *NotificationData) EventType() EventType {
	return NotificationSent
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
