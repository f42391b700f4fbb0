package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/logger"
	"courier/pkg/models"
)

// Client is the outbound side of the pipeline: replies and best-effort
// classification annotations back to the messaging gateway.
type Client interface {
	SendMessage(ctx context.Context, to, body string) error
	Annotate(ctx context.Context, messageID string, c models.Classification) error
}

// HTTPClient talks to the gateway's REST surface. An empty base URL puts the
// client in simulation mode: sends are logged and reported as successful,
// annotations are dropped. That keeps local development working without a
// gateway.
type HTTPClient struct {
	base   string
	apiKey string
	client *http.Client
	logger logger.Logger
}

func NewHTTPClient(cfg config.GatewayConfig, log logger.Logger) *HTTPClient {
	timeout := cfg.TimeoutSeconds * time.Second
	if cfg.TimeoutSeconds <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &HTTPClient{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

type sendMessageRequest struct {
	To      string `json:"to"`
	Number  string `json:"number"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *HTTPClient) SendMessage(ctx context.Context, to, body string) error {
	if c.base == "" {
		c.logger.WarnwCtx(ctx, "Gateway base URL not configured, simulating send",
			"to", to)
		return nil
	}

	payload := sendMessageRequest{To: to, Number: to, Message: body, Type: "text"}
	if err := c.post(ctx, c.base+"/v1/messages", payload); err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	return nil
}

// Annotate attaches the classification to the original message. Callers
// treat failures as non-fatal; the error is returned for logging only.
func (c *HTTPClient) Annotate(ctx context.Context, messageID string, cls models.Classification) error {
	if c.base == "" || messageID == "" {
		return nil
	}

	endpoint := c.base + "/v1/messages/" + url.PathEscape(messageID) + "/annotations"
	payload := map[string]interface{}{
		"intent":     cls.Intent,
		"confidence": cls.Confidence,
	}
	if err := c.post(ctx, endpoint, payload); err != nil {
		return fmt.Errorf("annotate failed: %w", err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}
