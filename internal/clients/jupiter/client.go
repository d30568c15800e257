// Package jupiter implements the swap venue client against the Jupiter
// aggregator HTTP API (quote, swap build) and the chain RPC for submission.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonicagent/engine/internal/domain"
)

// defaultConfirmPoll is the spacing between signature status polls.
const defaultConfirmPoll = 2 * time.Second

// Client talks to the Jupiter quote/swap API and submits signed transactions
// to the chain RPC endpoint.
type Client struct {
	baseURL     string
	rpcURL      string
	httpClient  *http.Client
	confirmPoll time.Duration
	log         zerolog.Logger
}

// NewClient creates a new venue client
func NewClient(baseURL, rpcURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		rpcURL:  rpcURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		confirmPoll: defaultConfirmPoll,
		log:         log.With().Str("client", "jupiter").Logger(),
	}
}

// quoteResponse is the venue's wire format for GET /quote
type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	SlippageBps    int    `json:"slippageBps"`
	RoutePlan      []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

// errorResponse is the venue's wire format for request failures
type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// GetQuote fetches a route for the requested swap. "No route" and other
// venue-side rejections come back as the Unavailable arm; transport and
// decoding failures are returned as errors.
func (c *Client) GetQuote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResult, error) {
	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", strconv.FormatUint(req.Amount, 10))
	params.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	endpoint := fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.QuoteResult{}, fmt.Errorf("failed to create quote request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.QuoteResult{}, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.QuoteResult{}, fmt.Errorf("failed to read quote response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var venueErr errorResponse
		if err := json.Unmarshal(body, &venueErr); err == nil && venueErr.Error != "" {
			c.log.Debug().
				Str("input_mint", req.InputMint).
				Str("output_mint", req.OutputMint).
				Str("venue_error", venueErr.Error).
				Msg("Venue rejected quote request")
			// 4xx means the pair/amount is unroutable; 5xx and 429 are worth
			// another attempt.
			retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
			return domain.QuoteFailed(venueErr.Error, retryable), nil
		}
		return domain.QuoteResult{}, fmt.Errorf("quote request returned status %d", resp.StatusCode)
	}

	var wire quoteResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return domain.QuoteResult{}, fmt.Errorf("failed to decode quote response: %w", err)
	}

	quote, err := wire.toDomain()
	if err != nil {
		return domain.QuoteResult{}, fmt.Errorf("invalid quote payload: %w", err)
	}

	return domain.QuoteOk(*quote), nil
}

func (r *quoteResponse) toDomain() (*domain.Quote, error) {
	inAmount, err := strconv.ParseUint(r.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad inAmount %q: %w", r.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(r.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad outAmount %q: %w", r.OutAmount, err)
	}

	var priceImpact float64
	if r.PriceImpactPct != "" {
		priceImpact, err = strconv.ParseFloat(r.PriceImpactPct, 64)
		if err != nil {
			return nil, fmt.Errorf("bad priceImpactPct %q: %w", r.PriceImpactPct, err)
		}
	}

	route := make([]string, 0, len(r.RoutePlan))
	for _, hop := range r.RoutePlan {
		route = append(route, hop.SwapInfo.Label)
	}

	return &domain.Quote{
		InputMint:      r.InputMint,
		OutputMint:     r.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: priceImpact,
		Route:          route,
		SlippageBps:    r.SlippageBps,
		FetchedAt:      time.Now(),
	}, nil
}

// swapRequest is the venue's wire format for POST /swap
type swapRequest struct {
	QuoteResponse                 json.RawMessage `json:"quoteResponse"`
	UserPublicKey                 string          `json:"userPublicKey"`
	WrapAndUnwrapSol              bool            `json:"wrapAndUnwrapSol"`
	ComputeUnitPriceMicroLamports uint64          `json:"computeUnitPriceMicroLamports,omitempty"`
}

// swapResponse is the venue's wire format for POST /swap
type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"` // base64
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// BuildSwapTransaction asks the venue to assemble an unsigned transaction
// for a previously fetched quote. The quote must still be fresh; stale
// quotes produce transactions that fail at submission.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote domain.Quote, signerPubkey string, opts domain.SwapOptions) (*domain.SwapTransaction, error) {
	// Re-fetch the quote to get the venue's verbatim payload. The engine's
	// normalized Quote cannot be echoed back directly.
	rawQuote, err := c.rawQuote(ctx, quote.InputMint, quote.OutputMint, quote.InAmount, opts.SlippageBps)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh quote for swap build: %w", err)
	}

	reqBody := swapRequest{
		QuoteResponse:                 rawQuote,
		UserPublicKey:                 signerPubkey,
		WrapAndUnwrapSol:              opts.WrapUnwrapSOL,
		ComputeUnitPriceMicroLamports: opts.PriorityFee,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal swap request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/swap", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create swap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("swap build request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("swap build returned status %d: %s", resp.StatusCode, string(body))
	}

	var wire swapResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode swap response: %w", err)
	}

	txBytes, err := base64.StdEncoding.DecodeString(wire.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("failed to decode swap transaction: %w", err)
	}

	return &domain.SwapTransaction{
		Payload: txBytes,
		// Block height expiry maps to roughly a minute of wall time.
		Expiry: time.Now().Add(60 * time.Second),
	}, nil
}

// rawQuote fetches the venue's verbatim quote payload for the swap build.
func (c *Client) rawQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.Itoa(slippageBps))

	endpoint := fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read quote response: %w", err)
	}
	return body, nil
}

// rpcRequest is the JSON-RPC envelope for chain submission
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcResponse is the JSON-RPC response envelope
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SubmitSigned submits a signed transaction via the chain RPC and polls the
// signature status until it confirms. RPC acceptance alone is not success;
// Success is only reported once the signature reaches confirmed or finalized
// commitment. An accepted transaction that expires unconfirmed is a failure.
func (c *Client) SubmitSigned(ctx context.Context, signedTx []byte) (*domain.SubmitResult, error) {
	encoded := base64.StdEncoding.EncodeToString(signedTx)

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendTransaction",
		Params: []interface{}{
			encoded,
			map[string]interface{}{
				"encoding":            "base64",
				"skipPreflight":       false,
				"preflightCommitment": "confirmed",
				"maxRetries":          3,
			},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submit request failed: %w", err)
	}
	defer resp.Body.Close()

	var wire rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode submit response: %w", err)
	}

	if wire.Error != nil {
		c.log.Warn().
			Int("code", wire.Error.Code).
			Str("message", wire.Error.Message).
			Msg("Transaction rejected by RPC")
		return &domain.SubmitResult{
			Success: false,
			Error:   wire.Error.Message,
		}, nil
	}

	var signature string
	if err := json.Unmarshal(wire.Result, &signature); err != nil {
		return nil, fmt.Errorf("failed to decode transaction signature: %w", err)
	}

	if err := c.awaitConfirmation(ctx, signature); err != nil {
		return &domain.SubmitResult{
			Success:   false,
			Signature: signature,
			Error:     err.Error(),
		}, nil
	}

	return &domain.SubmitResult{
		Success:   true,
		Signature: signature,
	}, nil
}

// signatureStatus is one entry of the getSignatureStatuses result.
type signatureStatus struct {
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

// awaitConfirmation polls the signature status until the transaction
// confirms, fails on-chain, or the context expires.
func (c *Client) awaitConfirmation(ctx context.Context, signature string) error {
	ticker := time.NewTicker(c.confirmPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction %s not confirmed: %w", signature, ctx.Err())
		case <-ticker.C:
		}

		status, err := c.getSignatureStatus(ctx, signature)
		if err != nil {
			c.log.Warn().Err(err).Str("signature", signature).Msg("Confirmation poll failed")
			continue
		}
		// A nil status means the RPC has not observed the signature yet.
		if status == nil {
			continue
		}
		if len(status.Err) > 0 && string(status.Err) != "null" {
			return fmt.Errorf("transaction %s failed on-chain: %s", signature, string(status.Err))
		}
		switch status.ConfirmationStatus {
		case "confirmed", "finalized":
			return nil
		}
	}
}

// getSignatureStatus fetches the chain's view of one signature.
func (c *Client) getSignatureStatus(ctx context.Context, signature string) (*signatureStatus, error) {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getSignatureStatuses",
		Params: []interface{}{
			[]string{signature},
			map[string]interface{}{"searchTransactionHistory": false},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	var wire rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	if wire.Error != nil {
		return nil, fmt.Errorf("rpc getSignatureStatuses failed: %s (code %d)", wire.Error.Message, wire.Error.Code)
	}

	var result struct {
		Value []*signatureStatus `json:"value"`
	}
	if err := json.Unmarshal(wire.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to decode signature statuses: %w", err)
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}
