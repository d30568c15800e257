package signals

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sonicagent/engine/internal/domain"
)

// IndicatorService caches per-mint indicator bundles in front of the
// market data provider. Reads are served from cache inside the TTL; a
// stale entry is refreshed in the calling goroutine, never in background.
type IndicatorService struct {
	provider domain.MarketDataProvider
	ttl      time.Duration
	log      zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cachedIndicators
}

type cachedIndicators struct {
	Indicators domain.TechnicalIndicators `msgpack:"indicators"`
	FetchedAt  time.Time                  `msgpack:"fetched_at"`
}

// NewIndicatorService creates a new indicator service
func NewIndicatorService(provider domain.MarketDataProvider, ttl time.Duration, log zerolog.Logger) *IndicatorService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &IndicatorService{
		provider: provider,
		ttl:      ttl,
		log:      log.With().Str("service", "indicators").Logger(),
		cache:    make(map[string]cachedIndicators),
	}
}

// Get returns the indicator bundle for a mint, from cache when fresh.
// If the refresh fails and a stale entry exists, the stale entry is served
// rather than failing the caller.
func (s *IndicatorService) Get(ctx context.Context, mint string) (*domain.TechnicalIndicators, error) {
	s.mu.RLock()
	entry, ok := s.cache[mint]
	s.mu.RUnlock()

	if ok && time.Since(entry.FetchedAt) < s.ttl {
		ind := entry.Indicators
		return &ind, nil
	}

	fresh, err := s.provider.TechnicalIndicators(ctx, mint)
	if err != nil {
		if ok {
			s.log.Warn().Err(err).Str("mint", mint).Msg("Indicator refresh failed, serving stale entry")
			ind := entry.Indicators
			return &ind, nil
		}
		return nil, fmt.Errorf("failed to fetch indicators for %s: %w", mint, err)
	}

	s.mu.Lock()
	s.cache[mint] = cachedIndicators{Indicators: *fresh, FetchedAt: time.Now()}
	s.mu.Unlock()

	return fresh, nil
}

// SaveSnapshot persists the cache so a restart does not start cold.
func (s *IndicatorService) SaveSnapshot(path string) error {
	s.mu.RLock()
	snapshot := make(map[string]cachedIndicators, len(s.cache))
	for k, v := range s.cache {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	data, err := msgpack.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode indicator snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write indicator snapshot: %w", err)
	}

	s.log.Debug().Int("mints", len(snapshot)).Str("path", path).Msg("Saved indicator snapshot")
	return nil
}

// LoadSnapshot restores a previously saved cache. Entries past the TTL are
// dropped on first access, so loading stale data is harmless.
func (s *IndicatorService) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read indicator snapshot: %w", err)
	}

	var snapshot map[string]cachedIndicators
	if err := msgpack.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to decode indicator snapshot: %w", err)
	}

	s.mu.Lock()
	for k, v := range snapshot {
		s.cache[k] = v
	}
	s.mu.Unlock()

	s.log.Info().Int("mints", len(snapshot)).Str("path", path).Msg("Loaded indicator snapshot")
	return nil
}
