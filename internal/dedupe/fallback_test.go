package dedupe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/config"
	"courier/internal/logger"
)

func configDisabledCB() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{Enabled: false}
}

func configEnabledCB() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{Enabled: true}
}

type failingStore struct {
	err   error
	calls int
}

func (s *failingStore) MarkIfNew(ctx context.Context, tenant, eventID string) (bool, error) {
	s.calls++
	return false, s.err
}

func TestFallbackStoreUsesPrimary(t *testing.T) {
	primary := NewMemoryStore(100)
	s := NewFallbackStore(primary, NewMemoryStore(100), logger.NopLogger())
	ctx := context.Background()

	isNew, err := s.MarkIfNew(ctx, "default", "evt-1")
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = s.MarkIfNew(ctx, "default", "evt-1")
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestFallbackStoreAnswersFromMemoryOnPrimaryError(t *testing.T) {
	primary := &failingStore{err: errors.New("redis down")}
	s := NewFallbackStore(primary, NewMemoryStore(100), logger.NopLogger())
	ctx := context.Background()

	isNew, err := s.MarkIfNew(ctx, "default", "evt-1")
	require.NoError(t, err)
	assert.True(t, isNew)

	// The ephemeral set still deduplicates while the primary is down.
	isNew, err = s.MarkIfNew(ctx, "default", "evt-1")
	require.NoError(t, err)
	assert.False(t, isNew)

	assert.Equal(t, 2, primary.calls, "primary is retried on every call")
}

func TestCircuitBreakerStoreDisabledPassesThrough(t *testing.T) {
	s := NewCircuitBreakerStore(NewMemoryStore(100), configDisabledCB())
	ctx := context.Background()

	isNew, err := s.MarkIfNew(ctx, "default", "evt-1")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "disabled", s.State())
	assert.False(t, s.IsOpen())
}

func TestCircuitBreakerStorePropagatesResult(t *testing.T) {
	s := NewCircuitBreakerStore(NewMemoryStore(100), configEnabledCB())
	ctx := context.Background()

	isNew, err := s.MarkIfNew(ctx, "default", "evt-1")
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = s.MarkIfNew(ctx, "default", "evt-1")
	require.NoError(t, err)
	assert.False(t, isNew)
}
