// Package birdeye implements the market data client: price history, token
// indicators and spot prices over HTTP, plus a websocket price stream that
// keeps the spot cache warm between polls.
package birdeye

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/sonicagent/engine/internal/domain"
)

// Well-known stablecoin mints. The planner treats any of these as a valid
// intermediary asset.
var stablecoinMints = map[string]string{
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
	"USDH1SM1ojwWUga67PGrgFWUHibbjqMvuMaDkRJTgkX":  "USDH",
}

// knownSymbols maps common mints to display symbols without a metadata call.
var knownSymbols = map[string]string{
	"So11111111111111111111111111111111111111112": "SOL",
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
	"USDH1SM1ojwWUga67PGrgFWUHibbjqMvuMaDkRJTgkX":  "USDH",
}

// Client fetches market data from the provider's HTTP API. Spot prices are
// served from the stream-fed cache when fresh, falling back to HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger

	mu         sync.RWMutex
	spotCache  map[string]spotPrice
	spotMaxAge time.Duration
}

type spotPrice struct {
	price     float64
	updatedAt time.Time
}

// NewClient creates a new market data client
func NewClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:        log.With().Str("client", "birdeye").Logger(),
		spotCache:  make(map[string]spotPrice),
		spotMaxAge: 30 * time.Second,
	}
}

// IsStablecoin reports whether the mint is a known stable asset.
func (c *Client) IsStablecoin(mint string) bool {
	_, ok := stablecoinMints[mint]
	return ok
}

// TokenSymbol returns a display symbol for the mint. Unknown mints get a
// truncated address.
func (c *Client) TokenSymbol(mint string) string {
	if sym, ok := knownSymbols[mint]; ok {
		return sym
	}
	if len(mint) > 4 {
		return mint[:4]
	}
	return mint
}

// periodSeconds maps a history period label to its span and candle interval.
func periodSeconds(period string) (span int64, interval string, err error) {
	switch period {
	case "24h":
		return 24 * 3600, "15m", nil
	case "7d":
		return 7 * 24 * 3600, "1H", nil
	case "30d":
		return 30 * 24 * 3600, "4H", nil
	default:
		return 0, "", fmt.Errorf("unsupported history period %q", period)
	}
}

// HistoricalPrices fetches the price/volume series for a mint over the
// given period ("24h", "7d" or "30d").
func (c *Client) HistoricalPrices(ctx context.Context, mint string, period string) ([]domain.PricePoint, error) {
	span, interval, err := periodSeconds(period)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	params := url.Values{}
	params.Set("address", mint)
	params.Set("address_type", "token")
	params.Set("type", interval)
	params.Set("time_from", strconv.FormatInt(now-span, 10))
	params.Set("time_to", strconv.FormatInt(now, 10))

	var wire struct {
		Data struct {
			Items []struct {
				UnixTime int64   `json:"unixTime"`
				Value    float64 `json:"value"`
				Volume   float64 `json:"v"`
			} `json:"items"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	if err := c.get(ctx, "/defi/history_price", params, &wire); err != nil {
		return nil, fmt.Errorf("failed to fetch price history for %s: %w", mint, err)
	}
	if !wire.Success {
		return nil, fmt.Errorf("price history request for %s was not successful", mint)
	}

	points := make([]domain.PricePoint, 0, len(wire.Data.Items))
	for _, item := range wire.Data.Items {
		points = append(points, domain.PricePoint{
			Timestamp: time.Unix(item.UnixTime, 0),
			Price:     item.Value,
			Volume:    item.Volume,
		})
	}
	return points, nil
}

// TechnicalIndicators computes the indicator bundle for a mint from its 30d
// close series plus the provider's token overview stats.
func (c *Client) TechnicalIndicators(ctx context.Context, mint string) (*domain.TechnicalIndicators, error) {
	history, err := c.HistoricalPrices(ctx, mint, "30d")
	if err != nil {
		return nil, err
	}
	// MACD(12,26,9) needs 26+9 closes; EMA50 needs 50.
	if len(history) < 50 {
		return nil, fmt.Errorf("insufficient price history for %s: %d points", mint, len(history))
	}

	closes := make([]float64, len(history))
	for i, p := range history {
		closes[i] = p.Price
	}

	rsi := talib.Rsi(closes, 14)
	ema20 := talib.Ema(closes, 20)
	ema50 := talib.Ema(closes, 50)
	macd, macdSignal, _ := talib.Macd(closes, 12, 26, 9)

	overview, err := c.tokenOverview(ctx, mint)
	if err != nil {
		return nil, err
	}

	last := len(closes) - 1
	return &domain.TechnicalIndicators{
		Mint:            mint,
		RSI:             rsi[last],
		EMA20:           ema20[last],
		EMA50:           ema50[last],
		MACD:            macd[last],
		MACDSignal:      macdSignal[last],
		Change24h:       overview.change24h,
		Change7d:        overview.change7d,
		VolumeChange24h: overview.volumeChange24h,
	}, nil
}

type overviewStats struct {
	change24h       float64
	change7d        float64
	volumeChange24h float64
}

func (c *Client) tokenOverview(ctx context.Context, mint string) (*overviewStats, error) {
	params := url.Values{}
	params.Set("address", mint)

	var wire struct {
		Data struct {
			PriceChange24hPercent float64 `json:"priceChange24hPercent"`
			PriceChange7dPercent  float64 `json:"priceChange7dPercent"`
			V24hChangePercent     float64 `json:"v24hChangePercent"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	if err := c.get(ctx, "/defi/token_overview", params, &wire); err != nil {
		return nil, fmt.Errorf("failed to fetch token overview for %s: %w", mint, err)
	}
	if !wire.Success {
		return nil, fmt.Errorf("token overview request for %s was not successful", mint)
	}

	return &overviewStats{
		change24h:       wire.Data.PriceChange24hPercent,
		change7d:        wire.Data.PriceChange7dPercent,
		volumeChange24h: wire.Data.V24hChangePercent,
	}, nil
}

// Prices returns USD spot prices for the given mints. Stream-fed cache
// entries younger than the max age short-circuit the HTTP call.
func (c *Client) Prices(ctx context.Context, mints []string) (map[string]float64, error) {
	out := make(map[string]float64, len(mints))
	var missing []string

	c.mu.RLock()
	now := time.Now()
	for _, mint := range mints {
		if cached, ok := c.spotCache[mint]; ok && now.Sub(cached.updatedAt) < c.spotMaxAge {
			out[mint] = cached.price
		} else {
			missing = append(missing, mint)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.multiPrice(ctx, missing)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for mint, price := range fetched {
		c.spotCache[mint] = spotPrice{price: price, updatedAt: now}
		out[mint] = price
	}
	c.mu.Unlock()

	return out, nil
}

func (c *Client) multiPrice(ctx context.Context, mints []string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("list_address", strings.Join(mints, ","))

	var wire struct {
		Data map[string]struct {
			Value float64 `json:"value"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	if err := c.get(ctx, "/defi/multi_price", params, &wire); err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	if !wire.Success {
		return nil, fmt.Errorf("price request was not successful")
	}

	out := make(map[string]float64, len(wire.Data))
	for mint, entry := range wire.Data {
		out[mint] = entry.Value
	}
	return out, nil
}

// updateSpot records a stream-delivered price into the cache.
func (c *Client) updateSpot(mint string, price float64) {
	c.mu.Lock()
	c.spotCache[mint] = spotPrice{price: price, updatedAt: time.Now()}
	c.mu.Unlock()
}

// get executes an authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
