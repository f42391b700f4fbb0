package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"courier/internal/constants"
)

// Store answers "first time this event id was seen for this tenant?" and
// records the sighting as a side effect.
type Store interface {
	// MarkIfNew returns true iff the key has not been recorded within the
	// retention horizon. The check and the record are one operation; callers
	// must never implement a separate read-then-write.
	MarkIfNew(ctx context.Context, tenant, eventID string) (bool, error)
}

// RedisStore is the durable variant: a single atomic SET NX EX per key, so
// concurrent submissions of the same event id race safely.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttlSeconds int) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}
}

func (s *RedisStore) MarkIfNew(ctx context.Context, tenant, eventID string) (bool, error) {
	key := fmt.Sprintf(constants.DedupeKeyFormat, tenant, eventID)
	isNew, err := s.client.SetNX(ctx, key, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	return isNew, nil
}
