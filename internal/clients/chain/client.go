// Package chain implements the ledger client: portfolio snapshots via the
// chain JSON-RPC, agent configuration and trade records via the agent
// program gateway (which serves decoded account state over HTTP).
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonicagent/engine/internal/domain"
)

// NativeMint is the wrapped native SOL mint address.
const NativeMint = "So11111111111111111111111111111111111111112"

const nativeDecimals = 9

// PriceSource supplies USD prices for portfolio valuation. Implemented by
// the market data client.
type PriceSource interface {
	Prices(ctx context.Context, mints []string) (map[string]float64, error)
	TokenSymbol(mint string) string
}

// Client reads agent state from the chain and records executed trades.
type Client struct {
	rpcURL     string
	gatewayURL string
	prices     PriceSource
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new chain client
func NewClient(rpcURL, gatewayURL string, prices PriceSource, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		rpcURL:     rpcURL,
		gatewayURL: gatewayURL,
		prices:     prices,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("client", "chain").Logger(),
	}
}

// agentConfigWire is the gateway's wire format for a decoded config account.
// Threshold and slippage come over as basis points, matching the on-chain
// layout.
type agentConfigWire struct {
	Wallet                string   `json:"wallet"`
	RiskProfile           string   `json:"risk_profile"`
	AutoRebalance         bool     `json:"auto_rebalance"`
	RebalanceThresholdBps int      `json:"rebalance_threshold_bps"`
	TargetAllocations     []struct {
		Mint            string `json:"mint"`
		Symbol          string `json:"symbol"`
		TargetBps       int    `json:"target_bps"`
		MaxDeviationBps int    `json:"max_deviation_bps"` // 0 = global threshold
	} `json:"target_allocations"`
	TradingRules struct {
		MaxAmountPerTradeUSD float64  `json:"max_amount_per_trade_usd"`
		MaxTradesPerDay      int      `json:"max_trades_per_day"`
		MaxSlippageBps       int      `json:"max_slippage_bps"`
		AllowedMints         []string `json:"allowed_tokens,omitempty"`
		ExcludedMints        []string `json:"excluded_tokens,omitempty"`
	} `json:"trading_rules"`
	PreferredMints []string `json:"preferred_tokens,omitempty"`
}

// GetAgentConfig fetches and decodes the wallet's agent config account.
func (c *Client) GetAgentConfig(ctx context.Context, wallet string) (*domain.AgentConfig, error) {
	endpoint := fmt.Sprintf("%s/agents/%s/config", c.gatewayURL, wallet)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create config request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("config request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no agent config account for wallet %s", wallet)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config request returned status %d", resp.StatusCode)
	}

	var wire agentConfigWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode agent config: %w", err)
	}

	riskProfile, err := domain.RiskProfileFromString(wire.RiskProfile)
	if err != nil {
		return nil, fmt.Errorf("agent config for %s: %w", wallet, err)
	}

	targets := make([]domain.TargetAllocation, 0, len(wire.TargetAllocations))
	for _, t := range wire.TargetAllocations {
		targets = append(targets, domain.TargetAllocation{
			Mint:            t.Mint,
			Symbol:          t.Symbol,
			TargetPct:       float64(t.TargetBps) / 100.0,
			MaxDeviationPct: float64(t.MaxDeviationBps) / 100.0,
		})
	}

	return &domain.AgentConfig{
		Wallet:                wallet,
		RiskProfile:           riskProfile,
		AutoRebalance:         wire.AutoRebalance,
		RebalanceThresholdPct: float64(wire.RebalanceThresholdBps) / 100.0,
		TargetAllocations:     targets,
		Rules: domain.TradingRules{
			MaxAmountPerTradeUSD: wire.TradingRules.MaxAmountPerTradeUSD,
			MaxTradesPerDay:      wire.TradingRules.MaxTradesPerDay,
			MaxSlippageBps:       wire.TradingRules.MaxSlippageBps,
			AllowedMints:         wire.TradingRules.AllowedMints,
			ExcludedMints:        wire.TradingRules.ExcludedMints,
		},
		PreferredMints: wire.PreferredMints,
	}, nil
}

// GetPortfolio builds a priced snapshot of the wallet's holdings from the
// chain RPC (token accounts + native balance) and the price source.
func (c *Client) GetPortfolio(ctx context.Context, wallet string) (*domain.Portfolio, error) {
	tokenAccounts, err := c.getTokenAccounts(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token accounts for %s: %w", wallet, err)
	}

	nativeLamports, err := c.getNativeBalance(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch native balance for %s: %w", wallet, err)
	}

	assets := make([]domain.Asset, 0, len(tokenAccounts)+1)
	if nativeLamports > 0 {
		assets = append(assets, domain.Asset{
			Mint:     NativeMint,
			Symbol:   c.prices.TokenSymbol(NativeMint),
			Decimals: nativeDecimals,
			Balance:  nativeLamports,
			UIAmount: float64(nativeLamports) / 1e9,
		})
	}
	for _, ta := range tokenAccounts {
		if ta.amount == 0 {
			continue
		}
		assets = append(assets, domain.Asset{
			Mint:     ta.mint,
			Symbol:   c.prices.TokenSymbol(ta.mint),
			Decimals: ta.decimals,
			Balance:  ta.amount,
			UIAmount: ta.uiAmount,
		})
	}

	mints := make([]string, 0, len(assets))
	for _, a := range assets {
		mints = append(mints, a.Mint)
	}

	priceMap, err := c.prices.Prices(ctx, mints)
	if err != nil {
		return nil, fmt.Errorf("failed to price portfolio for %s: %w", wallet, err)
	}

	var total float64
	for i := range assets {
		price := priceMap[assets[i].Mint]
		assets[i].PriceUSD = price
		assets[i].ValueUSD = assets[i].UIAmount * price
		total += assets[i].ValueUSD
	}

	return &domain.Portfolio{
		Wallet:        wallet,
		Assets:        assets,
		TotalValueUSD: total,
		FetchedAt:     time.Now(),
	}, nil
}

// tradeRecordWire is the gateway's wire format for trade records
type tradeRecordWire struct {
	Wallet       string  `json:"wallet"`
	StrategyID   string  `json:"strategy_id"`
	InputMint    string  `json:"input_mint"`
	OutputMint   string  `json:"output_mint"`
	InputAmount  float64 `json:"input_amount"`
	OutputAmount float64 `json:"output_amount"`
	SlippageBps  int     `json:"slippage_bps"`
	Signature    string  `json:"signature"`
	Reason       string  `json:"reason"`
	Success      bool    `json:"success"`
	ExecutedAt   int64   `json:"executed_at"` // unix seconds
}

// RecordTrade writes a trade record to the agent program. Best-effort:
// callers log failures and move on.
func (c *Client) RecordTrade(ctx context.Context, record domain.TradeRecord) error {
	wire := tradeRecordWire{
		Wallet:       record.Wallet,
		StrategyID:   record.StrategyID,
		InputMint:    record.InputMint,
		OutputMint:   record.OutputMint,
		InputAmount:  record.InputAmount,
		OutputAmount: record.OutputAmount,
		SlippageBps:  record.SlippageBps,
		Signature:    record.Signature,
		Reason:       record.Reason,
		Success:      record.Success,
		ExecutedAt:   record.ExecutedAt.Unix(),
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("failed to marshal trade record: %w", err)
	}

	endpoint := fmt.Sprintf("%s/agents/%s/trades", c.gatewayURL, record.Wallet)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create trade record request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("trade record request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("trade record returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// tokenAccount is one parsed SPL token holding
type tokenAccount struct {
	mint     string
	amount   uint64
	uiAmount float64
	decimals uint8
}

// rpcCall executes one JSON-RPC request against the chain endpoint
func (c *Client) rpcCall(ctx context.Context, method string, params []interface{}, out interface{}) error {
	reqBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc %s failed: %s (code %d)", method, envelope.Error.Message, envelope.Error.Code)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode rpc %s result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) getTokenAccounts(ctx context.Context, wallet string) ([]tokenAccount, error) {
	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount   string  `json:"amount"`
								Decimals uint8   `json:"decimals"`
								UIAmount float64 `json:"uiAmount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}

	params := []interface{}{
		wallet,
		map[string]string{"programId": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"},
		map[string]string{"encoding": "jsonParsed"},
	}
	if err := c.rpcCall(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]tokenAccount, 0, len(result.Value))
	for _, v := range result.Value {
		info := v.Account.Data.Parsed.Info
		var amount uint64
		if _, err := fmt.Sscan(info.TokenAmount.Amount, &amount); err != nil {
			c.log.Warn().Str("mint", info.Mint).Str("amount", info.TokenAmount.Amount).Msg("Skipping token account with unparseable amount")
			continue
		}
		accounts = append(accounts, tokenAccount{
			mint:     info.Mint,
			amount:   amount,
			uiAmount: info.TokenAmount.UIAmount,
			decimals: info.TokenAmount.Decimals,
		})
	}
	return accounts, nil
}

func (c *Client) getNativeBalance(ctx context.Context, wallet string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.rpcCall(ctx, "getBalance", []interface{}{wallet}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}
