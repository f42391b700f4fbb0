package gateway

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"courier/internal/config"
	"courier/pkg/circuitbreaker"
	"courier/pkg/models"
)

// CircuitBreakerClient wraps SendMessage in a breaker so a dead gateway
// fails fast instead of burning the full HTTP timeout on every delivery.
// Annotate stays unwrapped: it is best-effort and its failures should not
// count against the breaker.
type CircuitBreakerClient struct {
	client Client
	cb     *circuitbreaker.Wrapper
}

func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig) *CircuitBreakerClient {
	if !cfg.Enabled {
		return &CircuitBreakerClient{client: client, cb: nil}
	}

	cbConfig := circuitbreaker.DefaultConfig("gateway-send")
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

	return &CircuitBreakerClient{
		client: client,
		cb:     circuitbreaker.NewWrapper(cbConfig),
	}
}

func (c *CircuitBreakerClient) SendMessage(ctx context.Context, to, body string) error {
	if c.cb == nil {
		return c.client.SendMessage(ctx, to, body)
	}

	_, err := c.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, c.client.SendMessage(ctx, to, body)
	})

	c.cb.RecordRequest(err == nil)

	if err != nil {
		if c.cb.IsOpen() {
			return fmt.Errorf("circuit breaker is open for gateway-send: %w", err)
		}
		return err
	}
	return nil
}

func (c *CircuitBreakerClient) Annotate(ctx context.Context, messageID string, cls models.Classification) error {
	return c.client.Annotate(ctx, messageID, cls)
}

func (c *CircuitBreakerClient) State() string {
	if c.cb == nil {
		return "disabled"
	}
	return c.cb.State().String()
}
