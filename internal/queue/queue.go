package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"courier/internal/config"
	"courier/internal/logger"
	"courier/pkg/models"
)

// Queue is the FIFO transport between webhook ingestion and the worker.
type Queue interface {
	// Put appends an item. It never blocks indefinitely and never loses an
	// item once it has returned nil.
	Put(ctx context.Context, item models.EnrichedItem) error

	// Pop removes the head item, waiting up to timeout. A nil item with a
	// nil error means the timeout elapsed with nothing to deliver.
	Pop(ctx context.Context, timeout time.Duration) (*models.EnrichedItem, error)

	// Size reports the number of waiting items. It may be approximate; a
	// negative value means the backend cannot answer.
	Size(ctx context.Context) (int64, error)

	Close() error
}

// StatsRecorder is implemented by backends that keep durable processing
// counters alongside the queue itself.
type StatsRecorder interface {
	IncrProcessed(ctx context.Context, status string) error
	ProcessedCount(ctx context.Context, status string) (int64, error)
}

// New selects the backend once at startup. rdb may be nil for backends that
// do not need Redis.
func New(cfg config.QueueConfig, rdb *redis.Client, log logger.Logger) (Queue, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryQueue(), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis queue backend requires a redis client")
		}
		return NewRedisQueue(rdb, cfg.Name), nil
	case "kafka":
		return NewKafkaQueue(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown queue backend: %s", cfg.Backend)
	}
}
