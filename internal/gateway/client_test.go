package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/config"
	"courier/internal/logger"
	"courier/pkg/models"
)

func TestSendMessageSuccess(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	var gotAPIKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(config.GatewayConfig{BaseURL: srv.URL, APIKey: "secret-key"}, logger.NopLogger())

	err := c.SendMessage(context.Background(), "5511999999999", "Olá! Como posso ajudar?")
	require.NoError(t, err)

	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "secret-key", gotAPIKey)
	assert.Equal(t, "5511999999999", gotBody["to"])
	assert.Equal(t, "5511999999999", gotBody["number"])
	assert.Equal(t, "Olá! Como posso ajudar?", gotBody["message"])
	assert.Equal(t, "text", gotBody["type"])
}

func TestSendMessageNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(config.GatewayConfig{BaseURL: srv.URL}, logger.NopLogger())

	err := c.SendMessage(context.Background(), "5511999999999", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSendMessageTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewHTTPClient(config.GatewayConfig{BaseURL: srv.URL}, logger.NopLogger())

	err := c.SendMessage(context.Background(), "5511999999999", "hello")
	assert.Error(t, err)
}

func TestSendMessageSimulatedWhenUnconfigured(t *testing.T) {
	c := NewHTTPClient(config.GatewayConfig{}, logger.NopLogger())

	err := c.SendMessage(context.Background(), "5511999999999", "hello")
	assert.NoError(t, err)
}

func TestAnnotate(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewHTTPClient(config.GatewayConfig{BaseURL: srv.URL}, logger.NopLogger())

	err := c.Annotate(context.Background(), "msg-1", models.Classification{Intent: "greeting", Confidence: 0.85})
	require.NoError(t, err)

	assert.Equal(t, "/v1/messages/msg-1/annotations", gotPath)
	assert.Equal(t, "greeting", gotBody["intent"])
	assert.InDelta(t, 0.85, gotBody["confidence"], 0.001)
}

func TestAnnotateSkippedWithoutBaseOrID(t *testing.T) {
	c := NewHTTPClient(config.GatewayConfig{}, logger.NopLogger())
	assert.NoError(t, c.Annotate(context.Background(), "msg-1", models.Classification{}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not be sent for empty message id")
	}))
	defer srv.Close()

	c = NewHTTPClient(config.GatewayConfig{BaseURL: srv.URL}, logger.NopLogger())
	assert.NoError(t, c.Annotate(context.Background(), "", models.Classification{}))
}

func TestCircuitBreakerClientDisabledPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	inner := NewHTTPClient(config.GatewayConfig{BaseURL: srv.URL}, logger.NopLogger())
	c := NewCircuitBreakerClient(inner, config.CircuitBreakerConfig{Enabled: false})

	assert.NoError(t, c.SendMessage(context.Background(), "5511999999999", "hello"))
	assert.Equal(t, "disabled", c.State())
}

func TestCircuitBreakerClientPropagatesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	inner := NewHTTPClient(config.GatewayConfig{BaseURL: srv.URL}, logger.NopLogger())
	c := NewCircuitBreakerClient(inner, config.CircuitBreakerConfig{Enabled: true})

	assert.Error(t, c.SendMessage(context.Background(), "5511999999999", "hello"))
}
