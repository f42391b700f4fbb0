package webhook

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"courier/internal/audit"
	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/dedupe"
	"courier/internal/logger"
	"courier/internal/queue"
	"courier/internal/tenant"
	"courier/pkg/errors"
	"courier/pkg/health"
	"courier/pkg/metrics"
	"courier/pkg/models"
)

// Params wires the ingestion handler's collaborators.
type Params struct {
	Config        *config.Config
	Queue         queue.Queue
	Dedupe        dedupe.Store
	DedupeBackend string
	Resolver      *tenant.Resolver
	Trail         *audit.Trail
	Health        *health.CheckerRegistry
	Logger        logger.Logger
}

// Handler owns the webhook ingestion endpoint and the debug surface.
type Handler struct {
	cfg           *config.Config
	queue         queue.Queue
	stats         queue.StatsRecorder
	dedupe        dedupe.Store
	dedupeBackend string
	resolver      *tenant.Resolver
	trail         *audit.Trail
	health        *health.CheckerRegistry
	logger        logger.Logger
}

func NewHandler(p Params) *Handler {
	h := &Handler{
		cfg:           p.Config,
		queue:         p.Queue,
		dedupe:        p.Dedupe,
		dedupeBackend: p.DedupeBackend,
		resolver:      p.Resolver,
		trail:         p.Trail,
		health:        p.Health,
		logger:        p.Logger,
	}
	if sr, ok := p.Queue.(queue.StatsRecorder); ok {
		h.stats = sr
	}
	return h
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Root)
	router.GET("/health", h.HandleHealth)

	base := router.Group(h.cfg.Server.BasePrefix)
	{
		base.POST("/webhooks/whatsapp", h.HandleWebhook)

		debug := base.Group("/debug")
		{
			debug.GET("/events", h.DebugEvents)
			debug.GET("/errors", h.DebugErrors)
			debug.GET("/replies", h.DebugReplies)
			debug.GET("/stats", h.DebugStats)
			debug.GET("/ping", h.DebugPing)
			debug.GET("/security", h.DebugSecurity)
			debug.POST("/inject", h.DebugInject)
		}
	}
}

// HandleWebhook runs the ingestion pipeline: authenticate, parse, reject
// stale timestamps, resolve the tenant, deduplicate, guard against reply
// loops, enqueue. The first rejection is terminal.
func (h *Handler) HandleWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	if !VerifySignature(h.cfg.Webhook.Secret, raw, c.GetHeader("X-Signature")) {
		h.trail.Errors.Add(audit.Entry{
			"type":   "invalid_signature",
			"reason": "signature_mismatch",
			"path":   c.Request.URL.Path,
		})
		c.JSON(http.StatusUnauthorized, errors.ToErrorResponse(errors.ErrUnauthorized.WithDetail("message", "invalid signature")))
		return
	}

	if h.cfg.Webhook.APIKey != "" && c.GetHeader("X-API-Key") != h.cfg.Webhook.APIKey {
		h.trail.Errors.Add(audit.Entry{
			"type":   "invalid_api_key",
			"reason": "api_key_mismatch",
			"path":   c.Request.URL.Path,
		})
		c.JSON(http.StatusUnauthorized, errors.ToErrorResponse(errors.ErrUnauthorized.WithDetail("message", "invalid api key")))
		return
	}

	var event models.InboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	eventID := h.eventID(c, event)
	eventType := h.eventType(c, event)

	if event.Timestamp != 0 && !h.timestampWithinSkew(event.Timestamp) {
		h.trail.Errors.Add(audit.Entry{
			"type":     "timestamp_out_of_range",
			"event_id": eventID,
			"path":     c.Request.URL.Path,
		})
		c.JSON(http.StatusOK, gin.H{"accepted": false, "reason": "timestamp_out_of_range"})
		return
	}

	tenantID := h.resolver.Resolve(c.Request.Host, c.GetHeader)

	isNew, err := h.dedupe.MarkIfNew(ctx, tenantID, eventID)
	if err != nil {
		// The fallback store absorbs backend failures; an error here means
		// even the fallback path is gone. Never accept unchecked duplicates.
		h.logger.ErrorwCtx(ctx, "Dedupe check failed", "error", err, "event_id", eventID)
		c.JSON(http.StatusServiceUnavailable, errors.ToErrorResponse(errors.ErrServiceUnavailable.WithCause(err)))
		return
	}
	if !isNew {
		metrics.EventsDuplicateTotal.WithLabelValues(eventType).Inc()
		h.trail.Errors.Add(audit.Entry{
			"type":     "duplicate_event",
			"event_id": eventID,
			"tenant":   tenantID,
		})
		h.logger.DebugwCtx(ctx, "Duplicate event declined", "event_id", eventID, "tenant", tenantID)
		c.JSON(http.StatusOK, gin.H{"accepted": false, "duplicate": true})
		return
	}

	if event.Message.FromMe {
		h.logger.DebugwCtx(ctx, "Ignoring own outbound message", "message_id", event.Message.ID)
		c.JSON(http.StatusOK, gin.H{"accepted": false, "ignored": true, "reason": "fromMe"})
		return
	}
	if body := strings.TrimSpace(event.Message.Body); body != "" && body == h.cfg.Worker.DefaultReply {
		h.logger.DebugwCtx(ctx, "Ignoring echo of default reply", "message_id", event.Message.ID)
		c.JSON(http.StatusOK, gin.H{"accepted": false, "ignored": true, "reason": "echo_default"})
		return
	}

	item := models.EnrichedItem{
		Payload:   event,
		Attempt:   0,
		Tenant:    tenantID,
		EventType: eventType,
	}
	if err := h.queue.Put(ctx, item); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to enqueue event", "error", err, "event_id", eventID)
		h.trail.Errors.Add(audit.Entry{
			"type":     "enqueue_failed",
			"event_id": eventID,
			"tenant":   tenantID,
		})
		c.JSON(http.StatusServiceUnavailable, errors.ToErrorResponse(errors.ErrServiceUnavailable.WithCause(err)))
		return
	}

	metrics.EventsReceivedTotal.WithLabelValues(eventType).Inc()
	h.trail.Events.Add(audit.Entry{
		"event_id":   eventID,
		"event_type": eventType,
		"tenant":     tenantID,
		"message_id": event.Message.ID,
	})
	h.logger.InfowCtx(ctx, "Accepted event", "event_id", eventID, "tenant", tenantID)

	c.JSON(http.StatusOK, gin.H{"accepted": true, "tenant": tenantID})
}

// eventID prefers the header, then the payload id, then a deterministic
// composite so retransmissions of an id-less event still deduplicate.
func (h *Handler) eventID(c *gin.Context, event models.InboundEvent) string {
	if id := c.GetHeader("X-Event-Id"); id != "" {
		return id
	}
	if event.ID != "" {
		return event.ID
	}
	return fmt.Sprintf("%s::%s::%d", event.Event, event.Message.ID, event.Timestamp)
}

func (h *Handler) eventType(c *gin.Context, event models.InboundEvent) string {
	if t := c.GetHeader("X-Event-Type"); t != "" {
		return t
	}
	if event.Event != "" {
		return event.Event
	}
	return constants.EventTypeUnknown
}

func (h *Handler) timestampWithinSkew(ts int64) bool {
	skew := h.cfg.Webhook.TimestampSkewSeconds
	if skew <= 0 {
		skew = constants.DefaultTimestampSkewSeconds
	}
	delta := time.Now().Unix() - ts
	if delta < 0 {
		delta = -delta
	}
	return delta <= int64(skew)
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "courier-webhook"})
}

func (h *Handler) HandleHealth(c *gin.Context) {
	result := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if result.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

func (h *Handler) DebugEvents(c *gin.Context) {
	c.JSON(http.StatusOK, h.trail.Events.Snapshot())
}

func (h *Handler) DebugErrors(c *gin.Context) {
	c.JSON(http.StatusOK, h.trail.Errors.Snapshot())
}

func (h *Handler) DebugReplies(c *gin.Context) {
	c.JSON(http.StatusOK, h.trail.Replies.Snapshot())
}

func (h *Handler) DebugStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats := gin.H{
		"queue_backend":       h.cfg.Queue.Backend,
		"dedupe_backend":      h.dedupeBackend,
		"events_buffer_size":  h.trail.Events.Len(),
		"errors_buffer_size":  h.trail.Errors.Len(),
		"replies_buffer_size": h.trail.Replies.Len(),
	}

	if size, err := h.queue.Size(ctx); err == nil {
		stats["queue_size"] = size
	} else {
		stats["queue_size"] = nil
	}

	if h.stats != nil {
		if n, err := h.stats.ProcessedCount(ctx, "success"); err == nil {
			stats["processed_success"] = n
		}
		if n, err := h.stats.ProcessedCount(ctx, "failed"); err == nil {
			stats["processed_failed"] = n
		}
	}

	stats["metrics"] = collectCounters(
		"events_received_total",
		"events_duplicate_total",
		"events_processed_total",
		"events_intent_total",
	)

	c.JSON(http.StatusOK, stats)
}

// collectCounters snapshots a few counter families from the default
// registry, keyed by their sorted label pairs.
func collectCounters(names ...string) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(names))
	for _, name := range names {
		out[name] = map[string]float64{}
	}

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return out
	}

	for _, fam := range families {
		series, wanted := out[fam.GetName()]
		if !wanted {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			sort.Strings(labels)
			key := strings.Join(labels, ",")
			if key == "" {
				key = "_"
			}
			series[key] = m.GetCounter().GetValue()
		}
	}
	return out
}

func (h *Handler) DebugPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pong": true, "ts": time.Now().Unix()})
}

func (h *Handler) DebugSecurity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api_key_enabled": h.cfg.Webhook.APIKey != "",
		"api_key_length":  len(h.cfg.Webhook.APIKey),
		"hmac_secret_set": h.cfg.Webhook.Secret != "",
	})
}

type injectRequest struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Body string `json:"body"`
}

// DebugInject enqueues a synthetic message_received event, bypassing the
// signature check. Collaborator tooling only; it still goes through the
// regular queue and worker.
func (h *Handler) DebugInject(c *gin.Context) {
	var req injectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	msgID := req.ID
	if msgID == "" {
		msgID = "inject_" + uuid.NewString()
	}
	from := req.From
	if from == "" {
		from = "test_user@c.us"
	}

	event := models.InboundEvent{
		Event:     constants.EventTypeMessageReceived,
		Timestamp: time.Now().Unix(),
		Message: models.Message{
			ID:     msgID,
			From:   from,
			Body:   req.Body,
			FromMe: false,
		},
	}
	item := models.EnrichedItem{
		Payload:   event,
		Attempt:   0,
		Tenant:    h.resolver.Resolve(c.Request.Host, c.GetHeader),
		EventType: constants.EventTypeMessageReceived,
	}

	if err := h.queue.Put(c.Request.Context(), item); err != nil {
		c.JSON(http.StatusServiceUnavailable, errors.ToErrorResponse(errors.ErrServiceUnavailable.WithCause(err)))
		return
	}

	c.JSON(http.StatusOK, gin.H{"accepted": true, "injected": true, "id": msgID})
}
