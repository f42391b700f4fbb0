package worker

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"courier/internal/audit"
	"courier/internal/classifier"
	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/gateway"
	"courier/internal/logger"
	"courier/internal/queue"
	"courier/pkg/errors"
	"courier/pkg/metrics"
	"courier/pkg/models"
	"courier/pkg/retry"
)

// Delivery strategies. Requeue pushes a failed item back onto the queue with
// an incremented attempt counter; inline retries the send in place. Durable
// backends default to requeue, the memory backend to inline, since a
// re-enqueued item would not survive the process anyway.
const (
	StrategyRequeue = "requeue"
	StrategyInline  = "inline"
)

// Canned replies, keyed by intent in replyFor.
const (
	replyGreeting    = "Olá! Como posso ajudar?"
	replyOrderStatus = "Seu pedido está em processamento ✅"
	replyBotIdentity = "Sou o assistente virtual da loja. Posso ajudar com o status do seu pedido, ou é só dizer oi."
)

// ResolveStrategy picks the delivery strategy once at startup. An explicit
// configuration wins; otherwise the queue backend decides.
func ResolveStrategy(configured, backend string) string {
	switch configured {
	case StrategyRequeue, StrategyInline:
		return configured
	}
	if backend == "memory" {
		return StrategyInline
	}
	return StrategyRequeue
}

type Params struct {
	Config     *config.Config
	Queue      queue.Queue
	Classifier *classifier.Classifier
	Gateway    gateway.Client
	Trail      *audit.Trail
	Logger     logger.Logger
}

// Worker consumes the inbound queue and dispatches replies. One instance is
// meant to run as a single goroutine; the loop never crashes the process.
type Worker struct {
	queue        queue.Queue
	stats        queue.StatsRecorder
	classifier   *classifier.Classifier
	gateway      gateway.Client
	trail        *audit.Trail
	logger       logger.Logger
	strategy     string
	popTimeout   time.Duration
	maxAttempts  int
	backoffBase  time.Duration
	defaultReply string

	sleep func(ctx context.Context, d time.Duration)
}

func New(p Params) *Worker {
	cfg := p.Config

	popTimeout := time.Duration(cfg.Queue.PopTimeoutSeconds) * time.Second
	if cfg.Queue.PopTimeoutSeconds <= 0 {
		popTimeout = constants.DefaultPopTimeout
	}
	maxAttempts := cfg.Worker.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = constants.DefaultMaxAttempts
	}
	backoffBase := time.Duration(cfg.Worker.BackoffBaseSeconds) * time.Second
	if cfg.Worker.BackoffBaseSeconds <= 0 {
		backoffBase = constants.DefaultBackoffBaseSeconds * time.Second
	}

	w := &Worker{
		queue:        p.Queue,
		classifier:   p.Classifier,
		gateway:      p.Gateway,
		trail:        p.Trail,
		logger:       p.Logger,
		strategy:     ResolveStrategy(cfg.Worker.RetryStrategy, cfg.Queue.Backend),
		popTimeout:   popTimeout,
		maxAttempts:  maxAttempts,
		backoffBase:  backoffBase,
		defaultReply: cfg.Worker.DefaultReply,
		sleep:        sleepCtx,
	}
	if sr, ok := p.Queue.(queue.StatsRecorder); ok {
		w.stats = sr
	}
	return w
}

// Run blocks until ctx is cancelled or the queue is closed. Errors inside a
// processing pass are contained: logged, followed by a fixed pause, and the
// loop continues.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Infow("Worker started",
		"strategy", w.strategy,
		"max_attempts", w.maxAttempts,
		"pop_timeout", w.popTimeout,
	)

	for {
		if ctx.Err() != nil {
			return nil
		}

		item, err := w.queue.Pop(ctx, w.popTimeout)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, queue.ErrQueueClosed) {
				return nil
			}
			w.logger.Errorw("Queue pop failed", "error", err)
			w.sleep(ctx, constants.WorkerErrorPause)
			continue
		}
		if item == nil {
			continue
		}

		start := time.Now()
		if err := w.safeProcess(ctx, item); err != nil {
			w.logger.Errorw("Processing pass failed",
				"error", err,
				"message_id", item.Payload.Message.ID,
			)
			w.sleep(ctx, constants.WorkerErrorPause)
		}
		metrics.ObserveProcessingLatency(time.Since(start))
	}
}

func (w *Worker) safeProcess(ctx context.Context, item *models.EnrichedItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.RecoverPanic(r)
		}
	}()
	return w.process(ctx, item)
}

func (w *Worker) process(ctx context.Context, item *models.EnrichedItem) error {
	msg := item.Payload.Message
	text := msg.Body

	eventType := item.EventType
	if eventType == "" {
		eventType = item.Payload.Event
	}
	if eventType != "" && eventType != constants.EventTypeMessageReceived {
		w.logger.Debugw("Skipping non-inbound event",
			"event_type", eventType, "message_id", msg.ID)
		return nil
	}

	if msg.FromMe || strings.HasPrefix(msg.ID, constants.SelfMessageIDPrefix) {
		w.logger.Debugw("Ignoring self message", "message_id", msg.ID)
		metrics.EventsProcessedTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	if strings.TrimSpace(text) == "" {
		w.logger.Debugw("Ignoring empty message", "message_id", msg.ID)
		metrics.EventsProcessedTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	cls := w.classifier.Classify(text)

	// Second loop guard: an unknown message whose text is our own default
	// reply is an echo, not a question.
	if cls.Intent == classifier.IntentUnknown && strings.TrimSpace(text) == w.defaultReply {
		w.logger.Debugw("Skipping echo of default reply", "message_id", msg.ID)
		metrics.EventsProcessedTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	to := msg.Recipient()
	if to == "" {
		w.logger.Warnw("Ignoring message without recipient",
			"message_id", msg.ID, "event_type", eventType)
		metrics.EventsProcessedTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	reply := w.replyFor(cls.Intent)

	w.logger.Debugw("Processing message",
		"message_id", msg.ID,
		"attempt", item.Attempt,
		"intent", cls.Intent,
		"text_len", len(text),
	)

	return w.deliver(ctx, item, cls, to, reply)
}

func (w *Worker) replyFor(intent string) string {
	switch intent {
	case classifier.IntentGreeting:
		return replyGreeting
	case classifier.IntentOrderStatus:
		return replyOrderStatus
	case classifier.IntentBotIdentity:
		return replyBotIdentity
	}
	return w.defaultReply
}

func (w *Worker) deliver(ctx context.Context, item *models.EnrichedItem, cls models.Classification, to, reply string) error {
	var err error
	if w.strategy == StrategyInline {
		err = w.sendInline(ctx, to, reply)
	} else {
		err = w.gateway.SendMessage(ctx, to, reply)
		if err != nil && item.Attempt+1 < w.maxAttempts {
			return w.requeue(ctx, item, err)
		}
	}

	msg := item.Payload.Message
	ok := err == nil

	w.trail.Replies.Add(audit.Entry{
		"ok":                  ok,
		"to":                  to,
		"original_message_id": msg.ID,
		"intent":              cls.Intent,
		"reply":               reply,
		"text":                msg.Body,
		"attempt":             item.Attempt,
	})
	metrics.EventsIntentTotal.WithLabelValues(cls.Intent).Inc()

	if !ok {
		w.logger.Errorw("Delivery failed permanently",
			"error", err,
			"message_id", msg.ID,
			"attempts", item.Attempt+1,
		)
		metrics.EventsProcessedTotal.WithLabelValues("failed").Inc()
		w.trail.Errors.Add(audit.Entry{
			"type":       "delivery_failed",
			"message_id": msg.ID,
			"to":         to,
			"attempts":   item.Attempt + 1,
		})
		w.recordProcessed(ctx, "failed")
		return nil
	}

	w.logger.Infow("Reply dispatched",
		"to", to,
		"message_id", msg.ID,
		"intent", cls.Intent,
		"attempt", item.Attempt,
	)
	metrics.EventsProcessedTotal.WithLabelValues("success").Inc()
	w.recordProcessed(ctx, "success")

	// Annotation is best-effort; a failure never fails the delivery.
	if annErr := w.gateway.Annotate(ctx, msg.ID, cls); annErr != nil {
		w.logger.Debugw("Annotation failed", "error", annErr, "message_id", msg.ID)
	}
	return nil
}

func (w *Worker) sendInline(ctx context.Context, to, reply string) error {
	policy := retry.InlineDeliveryPolicy()
	policy.MaxAttempts = w.maxAttempts

	return retry.RetryWithCallback(ctx, policy, func() error {
		return w.gateway.SendMessage(ctx, to, reply)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(StrategyInline).Inc()
		w.logger.Warnw("Retrying delivery inline",
			"attempt", attempt, "error", err, "next_delay", nextDelay)
	})
}

func (w *Worker) requeue(ctx context.Context, item *models.EnrichedItem, cause error) error {
	delay := retry.CalculateBackoffDuration(item.Attempt, w.backoffBase, 2.0, time.Minute)
	w.logger.Warnw("Retrying delivery via requeue",
		"message_id", item.Payload.Message.ID,
		"next_attempt", item.Attempt+1,
		"backoff", delay,
		"error", cause,
	)
	metrics.RetryAttemptsTotal.WithLabelValues(StrategyRequeue).Inc()

	w.sleep(ctx, delay)

	retried := *item
	retried.Attempt++
	if err := w.queue.Put(ctx, retried); err != nil {
		w.logger.Errorw("Failed to requeue item",
			"error", err, "message_id", item.Payload.Message.ID)
		metrics.EventsProcessedTotal.WithLabelValues("failed").Inc()
		w.recordProcessed(ctx, "failed")
	}
	return nil
}

func (w *Worker) recordProcessed(ctx context.Context, status string) {
	if w.stats == nil {
		return
	}
	if err := w.stats.IncrProcessed(ctx, status); err != nil {
		w.logger.Debugw("Failed to record processed counter",
			"error", err, "status", status)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
