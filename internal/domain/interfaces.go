package domain

import "context"

// SwapVenue abstracts the external swap-routing service. It is consumed as
// an opaque quote/execute API; routing internals are the venue's concern.
type SwapVenue interface {
	// GetQuote returns a tagged quote result. Transport failures surface as
	// errors; "no route" and venue-side rejections surface as the
	// Unavailable arm with a nil error.
	GetQuote(ctx context.Context, req QuoteRequest) (QuoteResult, error)

	// BuildSwapTransaction turns a previously fetched quote into an
	// executable transaction for the given signer.
	BuildSwapTransaction(ctx context.Context, quote Quote, signerPubkey string, opts SwapOptions) (*SwapTransaction, error)

	// SubmitSigned submits a signed transaction and waits for confirmation.
	SubmitSigned(ctx context.Context, signedTx []byte) (*SubmitResult, error)
}

// LedgerClient reads agent configuration and portfolio state from the
// on-chain program and records executed trades against it.
type LedgerClient interface {
	GetAgentConfig(ctx context.Context, wallet string) (*AgentConfig, error)
	GetPortfolio(ctx context.Context, wallet string) (*Portfolio, error)

	// RecordTrade is fire-and-forget best-effort: callers log failures and
	// move on, they never fail an already-executed trade because of it.
	RecordTrade(ctx context.Context, record TradeRecord) error
}

// MarketDataProvider supplies price history, indicators and token metadata.
// All statistical inputs to the decision engine come through this interface;
// the engine itself never fabricates data.
type MarketDataProvider interface {
	HistoricalPrices(ctx context.Context, mint string, period string) ([]PricePoint, error)
	TechnicalIndicators(ctx context.Context, mint string) (*TechnicalIndicators, error)
	IsStablecoin(mint string) bool
}

// NotificationSink receives user-facing notifications. One call per action
// outcome plus one session summary.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification)
}

// Signer is the signing capability for a single wallet. It is the only
// shared resource that must be serialized: account state (nonce, spendable
// balance) would race across concurrent submissions.
type Signer interface {
	Pubkey() string
	Sign(ctx context.Context, tx []byte) ([]byte, error)
}
