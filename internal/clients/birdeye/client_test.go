package birdeye

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func TestIsStablecoin(t *testing.T) {
	client := NewClient("http://unused", "", time.Second, zerolog.Nop())

	assert.True(t, client.IsStablecoin(usdcMint))
	assert.False(t, client.IsStablecoin("So11111111111111111111111111111111111111112"))
	assert.False(t, client.IsStablecoin("RandomMint"))
}

func TestTokenSymbol(t *testing.T) {
	client := NewClient("http://unused", "", time.Second, zerolog.Nop())

	assert.Equal(t, "USDC", client.TokenSymbol(usdcMint))
	assert.Equal(t, "SOL", client.TokenSymbol("So11111111111111111111111111111111111111112"))
	assert.Equal(t, "Rand", client.TokenSymbol("RandomMint"))
}

func TestHistoricalPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/defi/history_price", r.URL.Path)
		assert.Equal(t, "MintA", r.URL.Query().Get("address"))
		assert.Equal(t, "15m", r.URL.Query().Get("type"))
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"items": []map[string]interface{}{
					{"unixTime": 1700000000, "value": 10.5, "v": 1000.0},
					{"unixTime": 1700000900, "value": 10.7, "v": 1100.0},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", 5*time.Second, zerolog.Nop())

	points, err := client.HistoricalPrices(context.Background(), "MintA", "24h")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.InDelta(t, 10.5, points[0].Price, 1e-9)
	assert.InDelta(t, 1100.0, points[1].Volume, 1e-9)
}

func TestHistoricalPrices_UnsupportedPeriod(t *testing.T) {
	client := NewClient("http://unused", "", time.Second, zerolog.Nop())

	_, err := client.HistoricalPrices(context.Background(), "MintA", "90d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported history period")
}

func TestTechnicalIndicators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/defi/history_price":
			// 60 ascending closes, enough for EMA50 and MACD warmup
			items := make([]map[string]interface{}, 60)
			for i := range items {
				items[i] = map[string]interface{}{
					"unixTime": 1700000000 + int64(i)*14400,
					"value":    100.0 + float64(i),
					"v":        1000.0,
				}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"data":    map[string]interface{}{"items": items},
			})
		case "/defi/token_overview":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"data": map[string]interface{}{
					"priceChange24hPercent": 4.2,
					"priceChange7dPercent":  12.5,
					"v24hChangePercent":     -3.0,
				},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 5*time.Second, zerolog.Nop())

	ind, err := client.TechnicalIndicators(context.Background(), "MintA")
	require.NoError(t, err)

	// Monotonically rising closes pin RSI to 100 and order the EMAs.
	assert.InDelta(t, 100.0, ind.RSI, 1e-6)
	assert.Greater(t, ind.EMA20, ind.EMA50)
	assert.InDelta(t, 4.2, ind.Change24h, 1e-9)
	assert.InDelta(t, 12.5, ind.Change7d, 1e-9)
	assert.InDelta(t, -3.0, ind.VolumeChange24h, 1e-9)
}

func TestTechnicalIndicators_InsufficientHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"items": []map[string]interface{}{
					{"unixTime": 1700000000, "value": 10.0, "v": 1.0},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 5*time.Second, zerolog.Nop())

	_, err := client.TechnicalIndicators(context.Background(), "MintA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient price history")
}

func TestPrices_CacheAndFetch(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/defi/multi_price", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"MintA": map[string]interface{}{"value": 1.5},
				"MintB": map[string]interface{}{"value": 2.5},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 5*time.Second, zerolog.Nop())

	prices, err := client.Prices(context.Background(), []string{"MintA", "MintB"})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, prices["MintA"], 1e-9)
	assert.InDelta(t, 2.5, prices["MintB"], 1e-9)
	assert.Equal(t, 1, calls)

	// Second lookup is served from cache.
	prices, err = client.Prices(context.Background(), []string{"MintA", "MintB"})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, prices["MintA"], 1e-9)
	assert.Equal(t, 1, calls)
}

func TestPrices_StreamUpdateWinsWhileFresh(t *testing.T) {
	client := NewClient("http://unused", "", time.Second, zerolog.Nop())
	client.updateSpot("MintA", 9.99)

	prices, err := client.Prices(context.Background(), []string{"MintA"})
	require.NoError(t, err)
	assert.InDelta(t, 9.99, prices["MintA"], 1e-9)
}
