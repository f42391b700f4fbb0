package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"courier/internal/constants"
	"courier/pkg/models"
)

// ErrQueueClosed is returned by Put/Pop after Close.
var ErrQueueClosed = errors.New("queue is closed")

// RedisQueue is the durable backend: LPUSH to the tail, BRPOP from the head.
// Items pushed before a restart are still visible after it; that durability
// is the broker's, the wrapper adds nothing beyond "visible once pushed".
type RedisQueue struct {
	client *redis.Client
	name   string
}

func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	if name == "" {
		name = constants.DefaultQueueName
	}
	return &RedisQueue{client: client, name: name}
}

func (q *RedisQueue) Put(ctx context.Context, item models.EnrichedItem) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal queue item: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, raw).Err(); err != nil {
		return fmt.Errorf("redis LPUSH failed: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*models.EnrichedItem, error) {
	res, err := q.client.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis BRPOP failed: %w", err)
	}

	// BRPOP returns [key, value].
	var item models.EnrichedItem
	if err := json.Unmarshal([]byte(res[1]), &item); err != nil {
		return nil, fmt.Errorf("failed to decode queue item: %w", err)
	}
	return &item, nil
}

func (q *RedisQueue) Size(ctx context.Context) (int64, error) {
	size, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("redis LLEN failed: %w", err)
	}
	return size, nil
}

func (q *RedisQueue) Close() error {
	// The client is owned by the application, not the queue.
	return nil
}

func (q *RedisQueue) IncrProcessed(ctx context.Context, status string) error {
	key := constants.StatsProcessedSuccessKey
	if status != "success" {
		key = constants.StatsProcessedFailedKey
	}
	if err := q.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis INCR failed: %w", err)
	}
	return nil
}

func (q *RedisQueue) ProcessedCount(ctx context.Context, status string) (int64, error) {
	key := constants.StatsProcessedSuccessKey
	if status != "success" {
		key = constants.StatsProcessedFailedKey
	}
	count, err := q.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis GET failed: %w", err)
	}
	return count, nil
}
