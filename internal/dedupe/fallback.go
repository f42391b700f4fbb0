package dedupe

import (
	"context"

	"courier/internal/logger"
	"courier/pkg/metrics"
)

// FallbackStore wraps a primary Store with an ephemeral MemoryStore. When
// the primary is unavailable the answer comes from the in-process set, so
// the ingestion path never accepts events without any dedupe check at all.
// The ephemeral answer is best-effort (see MemoryStore).
type FallbackStore struct {
	primary  Store
	fallback *MemoryStore
	logger   logger.Logger
}

func NewFallbackStore(primary Store, fallback *MemoryStore, log logger.Logger) *FallbackStore {
	return &FallbackStore{
		primary:  primary,
		fallback: fallback,
		logger:   log,
	}
}

func (s *FallbackStore) MarkIfNew(ctx context.Context, tenant, eventID string) (bool, error) {
	isNew, err := s.primary.MarkIfNew(ctx, tenant, eventID)
	if err == nil {
		return isNew, nil
	}

	metrics.FallbackUsageTotal.WithLabelValues("dedupe", "memory_store", "primary_error").Inc()
	s.logger.WarnwCtx(ctx, "Dedupe store unavailable, falling back to in-process set",
		"error", err,
		"tenant", tenant,
	)

	return s.fallback.MarkIfNew(ctx, tenant, eventID)
}
