package birdeye

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// PriceStream keeps the client's spot cache warm by subscribing to live
// price updates. It reconnects with capped backoff until its context is
// cancelled; the engine works without it, just with colder prices.
type PriceStream struct {
	wsURL  string
	apiKey string
	client *Client
	mints  []string
	log    zerolog.Logger

	reconnectDelay time.Duration
	maxDelay       time.Duration
}

// NewPriceStream creates a price stream feeding the given client's cache
func NewPriceStream(wsURL, apiKey string, client *Client, mints []string, log zerolog.Logger) *PriceStream {
	return &PriceStream{
		wsURL:          wsURL,
		apiKey:         apiKey,
		client:         client,
		mints:          mints,
		log:            log.With().Str("client", "birdeye_stream").Logger(),
		reconnectDelay: 2 * time.Second,
		maxDelay:       60 * time.Second,
	}
}

// subscribeMsg is the stream's subscription request
type subscribeMsg struct {
	Type string `json:"type"`
	Data struct {
		ChartType string `json:"chartType"`
		Address   string `json:"address"`
	} `json:"data"`
}

// priceMsg is one stream-delivered price update
type priceMsg struct {
	Type string `json:"type"`
	Data struct {
		Address string  `json:"address"`
		Price   float64 `json:"c"`
	} `json:"data"`
}

// Run connects and consumes updates until ctx is cancelled. Each dropped
// connection is retried with exponential backoff, reset after a healthy
// session.
func (s *PriceStream) Run(ctx context.Context) {
	delay := s.reconnectDelay

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}

		// A session that survived a while earns a fresh backoff.
		if time.Since(start) > time.Minute {
			delay = s.reconnectDelay
		}

		s.log.Warn().
			Err(err).
			Dur("retry_in", delay).
			Msg("Price stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.maxDelay {
			delay = s.maxDelay
		}
	}
}

// consume runs one websocket session: dial, subscribe, read until error.
func (s *PriceStream) consume(ctx context.Context) error {
	dialURL := s.wsURL
	if s.apiKey != "" {
		dialURL = fmt.Sprintf("%s?x-api-key=%s", s.wsURL, s.apiKey)
	}

	conn, _, err := websocket.Dial(ctx, dialURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	for _, mint := range s.mints {
		msg := subscribeMsg{Type: "SUBSCRIBE_PRICE"}
		msg.Data.ChartType = "1m"
		msg.Data.Address = mint

		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal subscription: %w", err)
		}
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", mint, err)
		}
	}

	s.log.Info().Int("mints", len(s.mints)).Msg("Price stream connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}

		var msg priceMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Debug().Err(err).Msg("Skipping unparseable stream message")
			continue
		}
		if msg.Type != "PRICE_DATA" || msg.Data.Address == "" {
			continue
		}

		s.client.updateSpot(msg.Data.Address, msg.Data.Price)
	}
}
