package dedupe

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"courier/internal/config"
	"courier/pkg/circuitbreaker"
)

// CircuitBreakerStore shields the durable store behind a breaker so a dead
// Redis fails fast instead of stalling every webhook request on a timeout.
type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerStore(store Store, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	if !cfg.Enabled {
		return &CircuitBreakerStore{
			store: store,
			cb:    nil,
		}
	}

	cbConfig := circuitbreaker.DefaultConfig("redis-dedupe")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.MinRequests) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &CircuitBreakerStore{
		store: store,
		cb:    circuitbreaker.NewWrapper(cbConfig),
	}
}

func (s *CircuitBreakerStore) MarkIfNew(ctx context.Context, tenant, eventID string) (bool, error) {
	if s.cb == nil {
		return s.store.MarkIfNew(ctx, tenant, eventID)
	}

	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.store.MarkIfNew(ctx, tenant, eventID)
	})

	s.cb.RecordRequest(err == nil)

	if err != nil {
		if s.cb.IsOpen() {
			return false, fmt.Errorf("circuit breaker is open for redis-dedupe: %w", err)
		}
		return false, err
	}

	isNew, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("store returned invalid result type")
	}

	return isNew, nil
}

func (s *CircuitBreakerStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}

func (s *CircuitBreakerStore) IsOpen() bool {
	if s.cb == nil {
		return false
	}
	return s.cb.IsOpen()
}
