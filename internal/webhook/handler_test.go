package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/audit"
	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/dedupe"
	"courier/internal/logger"
	"courier/internal/queue"
	"courier/internal/tenant"
	"courier/pkg/health"
	"courier/pkg/models"
)

const testSecret = "test-webhook-secret"

func newTestHandler(t *testing.T, mutate func(*config.Config)) (*gin.Engine, *queue.MemoryQueue, *audit.Trail) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Server.BasePrefix = "/courier"
	cfg.Queue.Backend = "memory"
	cfg.Webhook.Secret = testSecret
	cfg.Webhook.TimestampSkewSeconds = constants.DefaultTimestampSkewSeconds
	cfg.Worker.DefaultReply = "Desculpe, pode detalhar?"
	cfg.Tenant.Strategy = "static"
	cfg.Tenant.StaticID = "default"
	if mutate != nil {
		mutate(cfg)
	}

	q := queue.NewMemoryQueue()
	trail := audit.NewTrail()
	h := NewHandler(Params{
		Config:        cfg,
		Queue:         q,
		Dedupe:        dedupe.NewMemoryStore(0),
		DedupeBackend: "memory",
		Resolver:      tenant.NewResolver(cfg.Tenant),
		Trail:         trail,
		Health:        health.NewCheckerRegistry(),
		Logger:        logger.NopLogger(),
	})

	router := gin.New()
	h.RegisterRoutes(router)
	return router, q, trail
}

func signedEvent(t *testing.T, event models.InboundEvent) (*bytes.Reader, string) {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return bytes.NewReader(raw), Sign(testSecret, raw)
}

func inboundEvent(eventID, msgID, body string) models.InboundEvent {
	return models.InboundEvent{
		Event:     constants.EventTypeMessageReceived,
		ID:        eventID,
		Timestamp: time.Now().Unix(),
		Message: models.Message{
			ID:   msgID,
			From: "5511999999999",
			Body: body,
		},
	}
}

func postWebhook(router *gin.Engine, body *bytes.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/courier/webhooks/whatsapp", body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestWebhookAccepted(t *testing.T) {
	router, q, trail := newTestHandler(t, nil)

	body, sig := signedEvent(t, inboundEvent("evt-1", "msg-1", "oi"))
	w := postWebhook(router, body, map[string]string{"X-Signature": sig})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, true, resp["accepted"])
	assert.Equal(t, "default", resp["tenant"])

	size, err := q.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	item, err := q.Pop(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, 0, item.Attempt)
	assert.Equal(t, "default", item.Tenant)
	assert.Equal(t, constants.EventTypeMessageReceived, item.EventType)
	assert.Equal(t, "oi", item.Payload.Message.Body)

	assert.Equal(t, 1, trail.Events.Len())
}

func TestWebhookMissingSignature(t *testing.T) {
	router, q, trail := newTestHandler(t, nil)

	body, _ := signedEvent(t, inboundEvent("evt-1", "msg-1", "oi"))
	w := postWebhook(router, body, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	size, _ := q.Size(context.Background())
	assert.Zero(t, size)
	assert.Equal(t, 1, trail.Errors.Len())
}

func TestWebhookBadSignature(t *testing.T) {
	router, _, _ := newTestHandler(t, nil)

	body, _ := signedEvent(t, inboundEvent("evt-1", "msg-1", "oi"))
	w := postWebhook(router, body, map[string]string{"X-Signature": "deadbeef"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookAPIKey(t *testing.T) {
	router, _, _ := newTestHandler(t, func(cfg *config.Config) {
		cfg.Webhook.APIKey = "api-key-1"
	})

	body, sig := signedEvent(t, inboundEvent("evt-1", "msg-1", "oi"))
	w := postWebhook(router, body, map[string]string{"X-Signature": sig})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body, sig = signedEvent(t, inboundEvent("evt-2", "msg-2", "oi"))
	w = postWebhook(router, body, map[string]string{
		"X-Signature": sig,
		"X-API-Key":   "api-key-1",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["accepted"])
}

func TestWebhookInvalidJSON(t *testing.T) {
	router, _, _ := newTestHandler(t, nil)

	raw := []byte("{not json")
	w := postWebhook(router, bytes.NewReader(raw), map[string]string{
		"X-Signature": Sign(testSecret, raw),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookStaleTimestamp(t *testing.T) {
	router, q, _ := newTestHandler(t, nil)

	event := inboundEvent("evt-1", "msg-1", "oi")
	event.Timestamp = time.Now().Unix() - 1000
	body, sig := signedEvent(t, event)
	w := postWebhook(router, body, map[string]string{"X-Signature": sig})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, false, resp["accepted"])
	assert.Equal(t, "timestamp_out_of_range", resp["reason"])

	size, _ := q.Size(context.Background())
	assert.Zero(t, size)
}

func TestWebhookDuplicate(t *testing.T) {
	router, q, _ := newTestHandler(t, nil)

	event := inboundEvent("evt-1", "msg-1", "oi")

	body, sig := signedEvent(t, event)
	w := postWebhook(router, body, map[string]string{"X-Signature": sig})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["accepted"])

	body, sig = signedEvent(t, event)
	w = postWebhook(router, body, map[string]string{"X-Signature": sig})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, false, resp["accepted"])
	assert.Equal(t, true, resp["duplicate"])

	size, _ := q.Size(context.Background())
	assert.Equal(t, int64(1), size)
}

func TestWebhookEventIDFromHeader(t *testing.T) {
	router, _, _ := newTestHandler(t, nil)

	// Two different payloads under the same X-Event-Id must deduplicate.
	body, sig := signedEvent(t, inboundEvent("", "msg-1", "oi"))
	w := postWebhook(router, body, map[string]string{"X-Signature": sig, "X-Event-Id": "hdr-1"})
	assert.Equal(t, true, decodeBody(t, w)["accepted"])

	body, sig = signedEvent(t, inboundEvent("", "msg-2", "olá"))
	w = postWebhook(router, body, map[string]string{"X-Signature": sig, "X-Event-Id": "hdr-1"})
	assert.Equal(t, true, decodeBody(t, w)["duplicate"])
}

func TestWebhookFromMeIgnored(t *testing.T) {
	router, q, _ := newTestHandler(t, nil)

	event := inboundEvent("evt-1", "msg-1", "oi")
	event.Message.FromMe = true
	body, sig := signedEvent(t, event)
	w := postWebhook(router, body, map[string]string{"X-Signature": sig})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, false, resp["accepted"])
	assert.Equal(t, true, resp["ignored"])
	assert.Equal(t, "fromMe", resp["reason"])

	size, _ := q.Size(context.Background())
	assert.Zero(t, size)
}

func TestWebhookEchoDefaultReplyIgnored(t *testing.T) {
	router, q, _ := newTestHandler(t, nil)

	body, sig := signedEvent(t, inboundEvent("evt-1", "msg-1", "Desculpe, pode detalhar?"))
	w := postWebhook(router, body, map[string]string{"X-Signature": sig})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "echo_default", resp["reason"])

	size, _ := q.Size(context.Background())
	assert.Zero(t, size)
}

func TestDebugInjectBypassesSignature(t *testing.T) {
	router, q, _ := newTestHandler(t, nil)

	raw, _ := json.Marshal(map[string]string{"body": "oi", "from": "5511888888888"})
	req := httptest.NewRequest(http.MethodPost, "/courier/debug/inject", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, true, resp["injected"])
	assert.NotEmpty(t, resp["id"])

	item, err := q.Pop(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, constants.EventTypeMessageReceived, item.EventType)
	assert.Equal(t, "5511888888888", item.Payload.Message.From)
	assert.False(t, item.Payload.Message.FromMe)
}

func TestDebugEndpoints(t *testing.T) {
	router, _, _ := newTestHandler(t, func(cfg *config.Config) {
		cfg.Webhook.APIKey = "k123"
	})

	body, sig := signedEvent(t, inboundEvent("evt-1", "msg-1", "oi"))
	postWebhook(router, body, map[string]string{"X-Signature": sig, "X-API-Key": "k123"})

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := get("/courier/debug/events")
	require.Equal(t, http.StatusOK, w.Code)
	var events []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0]["event_id"])

	w = get("/courier/debug/stats")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody(t, w)
	assert.Equal(t, "memory", stats["queue_backend"])
	assert.Equal(t, "memory", stats["dedupe_backend"])
	assert.Equal(t, float64(1), stats["events_buffer_size"])
	assert.Equal(t, float64(1), stats["queue_size"])

	w = get("/courier/debug/ping")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["pong"])

	w = get("/courier/debug/security")
	require.Equal(t, http.StatusOK, w.Code)
	sec := decodeBody(t, w)
	assert.Equal(t, true, sec["api_key_enabled"])
	assert.Equal(t, float64(4), sec["api_key_length"])
	assert.Equal(t, true, sec["hmac_secret_set"])
}

func TestRootAndHealth(t *testing.T) {
	router, _, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
