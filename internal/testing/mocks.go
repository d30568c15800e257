// Package testing provides shared mocks and fixtures for engine tests.
package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/sonicagent/engine/internal/domain"
)

// MockLedgerClient is an in-memory implementation of domain.LedgerClient.
type MockLedgerClient struct {
	mu        sync.RWMutex
	config    *domain.AgentConfig
	portfolio *domain.Portfolio
	records   []domain.TradeRecord
	err       error
}

// NewMockLedgerClient creates a new mock ledger client
func NewMockLedgerClient() *MockLedgerClient {
	return &MockLedgerClient{}
}

// SetConfig sets the agent config to return
func (m *MockLedgerClient) SetConfig(config *domain.AgentConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
}

// SetPortfolio sets the portfolio snapshot to return
func (m *MockLedgerClient) SetPortfolio(portfolio *domain.Portfolio) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolio = portfolio
}

// SetError sets the error returned by all calls
func (m *MockLedgerClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// GetAgentConfig returns the configured agent config
func (m *MockLedgerClient) GetAgentConfig(_ context.Context, wallet string) (*domain.AgentConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	config := *m.config
	config.Wallet = wallet
	return &config, nil
}

// GetPortfolio returns the configured portfolio snapshot
func (m *MockLedgerClient) GetPortfolio(_ context.Context, wallet string) (*domain.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	portfolio := *m.portfolio
	portfolio.Wallet = wallet
	return &portfolio, nil
}

// RecordTrade captures the record for later assertions
func (m *MockLedgerClient) RecordTrade(_ context.Context, record domain.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

// Records returns all captured trade records
func (m *MockLedgerClient) Records() []domain.TradeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.TradeRecord, len(m.records))
	copy(out, m.records)
	return out
}

// MockSwapVenue is an in-memory implementation of domain.SwapVenue. By
// default every quote succeeds 1:1 and every submission confirms.
type MockSwapVenue struct {
	mu          sync.RWMutex
	quoteResult *domain.QuoteResult
	quoteErr    error
	buildErr    error
	submit      *domain.SubmitResult
	submitErr   error
	requests    []domain.QuoteRequest
}

// NewMockSwapVenue creates a new mock swap venue
func NewMockSwapVenue() *MockSwapVenue {
	return &MockSwapVenue{}
}

// SetQuote sets a fixed quote result returned for every request
func (m *MockSwapVenue) SetQuote(result domain.QuoteResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quoteResult = &result
}

// SetQuoteError sets the transport error returned by GetQuote
func (m *MockSwapVenue) SetQuoteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quoteErr = err
}

// SetBuildError sets the error returned by BuildSwapTransaction
func (m *MockSwapVenue) SetBuildError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildErr = err
}

// SetSubmitResult sets the result returned by SubmitSigned
func (m *MockSwapVenue) SetSubmitResult(result domain.SubmitResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submit = &result
	m.submitErr = err
}

// Requests returns all quote requests seen so far
func (m *MockSwapVenue) Requests() []domain.QuoteRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.QuoteRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// GetQuote returns the configured quote, or a 1:1 echo of the request
func (m *MockSwapVenue) GetQuote(_ context.Context, req domain.QuoteRequest) (domain.QuoteResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	result := m.quoteResult
	err := m.quoteErr
	m.mu.Unlock()

	if err != nil {
		return domain.QuoteResult{}, err
	}
	if result != nil {
		return *result, nil
	}
	return domain.QuoteOk(domain.Quote{
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		InAmount:    req.Amount,
		OutAmount:   req.Amount,
		SlippageBps: req.SlippageBps,
	}), nil
}

// BuildSwapTransaction returns an opaque placeholder payload
func (m *MockSwapVenue) BuildSwapTransaction(_ context.Context, _ domain.Quote, _ string, _ domain.SwapOptions) (*domain.SwapTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.buildErr != nil {
		return nil, m.buildErr
	}
	return &domain.SwapTransaction{Payload: []byte("unsigned-tx")}, nil
}

// SubmitSigned returns the configured submit result
func (m *MockSwapVenue) SubmitSigned(_ context.Context, _ []byte) (*domain.SubmitResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	if m.submit != nil {
		return m.submit, nil
	}
	return &domain.SubmitResult{Success: true, Signature: "mock-signature"}, nil
}

// MockSigner signs by echoing the payload with a prefix.
type MockSigner struct {
	pubkey string
	err    error
}

// NewMockSigner creates a new mock signer for the given pubkey
func NewMockSigner(pubkey string) *MockSigner {
	return &MockSigner{pubkey: pubkey}
}

// SetError sets the error returned by Sign
func (m *MockSigner) SetError(err error) {
	m.err = err
}

// Pubkey returns the signer's public key
func (m *MockSigner) Pubkey() string {
	return m.pubkey
}

// Sign returns the payload unchanged
func (m *MockSigner) Sign(_ context.Context, tx []byte) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return tx, nil
}

// MockNotificationSink captures notifications for assertions.
type MockNotificationSink struct {
	mu            sync.RWMutex
	notifications []domain.Notification
}

// NewMockNotificationSink creates a new capturing sink
func NewMockNotificationSink() *MockNotificationSink {
	return &MockNotificationSink{}
}

// Notify captures the notification
func (m *MockNotificationSink) Notify(_ context.Context, n domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
}

// Notifications returns all captured notifications
func (m *MockNotificationSink) Notifications() []domain.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}

// MockMarketData is an in-memory implementation of domain.MarketDataProvider.
type MockMarketData struct {
	mu          sync.RWMutex
	history     map[string][]domain.PricePoint
	indicators  map[string]*domain.TechnicalIndicators
	stablecoins map[string]bool
	err         error
}

// NewMockMarketData creates a new mock market data provider
func NewMockMarketData() *MockMarketData {
	return &MockMarketData{
		history:     make(map[string][]domain.PricePoint),
		indicators:  make(map[string]*domain.TechnicalIndicators),
		stablecoins: make(map[string]bool),
	}
}

// SetHistory sets the price series returned for a mint, any period
func (m *MockMarketData) SetHistory(mint string, points []domain.PricePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[mint] = points
}

// SetIndicators sets the indicator bundle returned for a mint
func (m *MockMarketData) SetIndicators(mint string, ind *domain.TechnicalIndicators) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indicators[mint] = ind
}

// SetStablecoin marks a mint as a stablecoin
func (m *MockMarketData) SetStablecoin(mint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stablecoins[mint] = true
}

// SetError sets the error returned by fetch calls
func (m *MockMarketData) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// HistoricalPrices returns the configured series for the mint
func (m *MockMarketData) HistoricalPrices(_ context.Context, mint string, _ string) ([]domain.PricePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.history[mint], nil
}

// TechnicalIndicators returns the configured bundle for the mint
func (m *MockMarketData) TechnicalIndicators(_ context.Context, mint string) (*domain.TechnicalIndicators, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	ind, ok := m.indicators[mint]
	if !ok {
		return nil, fmt.Errorf("no indicator data for %s", mint)
	}
	return ind, nil
}

// IsStablecoin reports whether the mint was marked as a stablecoin
func (m *MockMarketData) IsStablecoin(mint string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stablecoins[mint]
}
