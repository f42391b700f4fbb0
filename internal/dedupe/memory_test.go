package dedupe

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMarkIfNew(t *testing.T) {
	s := NewMemoryStore(100)
	ctx := context.Background()

	isNew, err := s.MarkIfNew(ctx, "default", "evt-1")
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = s.MarkIfNew(ctx, "default", "evt-1")
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestMemoryStoreTenantScoped(t *testing.T) {
	s := NewMemoryStore(100)
	ctx := context.Background()

	isNew, err := s.MarkIfNew(ctx, "tenant-a", "evt-1")
	require.NoError(t, err)
	assert.True(t, isNew)

	// Same event id under another tenant is a distinct key.
	isNew, err = s.MarkIfNew(ctx, "tenant-b", "evt-1")
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestMemoryStoreEviction(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()

	for i := 0; i <= 10; i++ {
		_, err := s.MarkIfNew(ctx, "default", fmt.Sprintf("evt-%d", i))
		require.NoError(t, err)
	}

	// Crossing the cap evicts roughly half the entries.
	assert.LessOrEqual(t, s.Len(), 6)
	assert.Greater(t, s.Len(), 0)
}

func TestMemoryStoreNeverErrorsUnderChurn(t *testing.T) {
	s := NewMemoryStore(50)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_, err := s.MarkIfNew(ctx, "default", fmt.Sprintf("evt-%d", i))
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, s.Len(), 50+1)
}
