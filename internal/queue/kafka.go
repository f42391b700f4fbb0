package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/logger"
	"courier/pkg/models"
)

// KafkaQueue adapts a topic to the point-to-point Queue contract: Put
// publishes, Pop fetches one message under a bounded context and commits it.
// Commit-on-fetch mirrors the redis backend's pop semantics. Size is
// unknown for this backend (-1).
type KafkaQueue struct {
	cfg    config.KafkaConfig
	writer *kafka.Writer
	logger logger.Logger

	mu     sync.Mutex
	reader *kafka.Reader
	closed bool
}

func NewKafkaQueue(cfg config.KafkaConfig, log logger.Logger) *KafkaQueue {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaQueue{cfg: cfg, writer: w, logger: log}
}

func (q *KafkaQueue) Put(ctx context.Context, item models.EnrichedItem) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal queue item: %w", err)
	}

	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(item.Tenant),
		Value: raw,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Pop(ctx context.Context, timeout time.Duration) (*models.EnrichedItem, error) {
	reader, err := q.getReader()
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m, err := reader.FetchMessage(fetchCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("kafka fetch failed: %w", err)
	}

	var item models.EnrichedItem
	if err := json.Unmarshal(m.Value, &item); err != nil {
		// Undecodable messages are committed so they don't wedge the queue.
		if commitErr := reader.CommitMessages(ctx, m); commitErr != nil {
			q.logger.Errorw("Failed to commit undecodable kafka message", "error", commitErr)
		}
		return nil, fmt.Errorf("failed to decode queue item: %w", err)
	}

	if err := reader.CommitMessages(ctx, m); err != nil {
		return nil, fmt.Errorf("kafka commit failed: %w", err)
	}

	return &item, nil
}

// Size is unknown for kafka; the broker does not expose a cheap pending
// count per consumer group.
func (q *KafkaQueue) Size(ctx context.Context) (int64, error) {
	return -1, nil
}

func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true

	var err error
	if q.reader != nil {
		err = q.reader.Close()
		q.reader = nil
	}
	if closeErr := q.writer.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (q *KafkaQueue) getReader() (*kafka.Reader, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if q.reader == nil {
		q.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  q.cfg.Brokers,
			GroupID:  q.cfg.GroupID,
			Topic:    q.cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	}
	return q.reader, nil
}
