// Package notify delivers fire-and-forget lifecycle pings to an external
// automation webhook. Delivery failures are logged and swallowed; the
// pipeline's outcome never depends on the sink.
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Event names emitted over the run lifecycle.
const (
	EventRunStarted      = "run.started"
	EventWebsiteScraped  = "website.scraped"
	EventRegistryChecked = "registry.checked"
	EventNetworkChecked  = "network.checked"
	EventRunCompleted    = "run.completed"
)

// Notifier receives named lifecycle events with an arbitrary payload.
// Implementations must never return an error to the caller.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any)
}

// Nop is a Notifier that discards everything. Used when no webhook is
// configured.
type Nop struct{}

func (Nop) Notify(context.Context, string, any) {}

// WebhookConfig configures a webhook notifier.
type WebhookConfig struct {
	URL string

	// Optional basic-auth credentials.
	BasicUser string
	BasicPass string

	// Optional static header (e.g. a shared-secret header the automation
	// tool validates).
	HeaderName  string
	HeaderValue string
}

// Webhook posts events as JSON to a single webhook URL.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
}

// NewWebhook creates a webhook notifier.
func NewWebhook(cfg WebhookConfig) *Webhook {
	return &Webhook{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type envelope struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	TS      time.Time `json:"ts"`
}

// Notify posts the event. Any failure is logged at warn and dropped.
func (w *Webhook) Notify(ctx context.Context, event string, payload any) {
	body, err := json.Marshal(envelope{Event: event, Payload: payload, TS: time.Now().UTC()})
	if err != nil {
		zap.L().Warn("notify: marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		zap.L().Warn("notify: create request", zap.String("event", event), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if w.cfg.BasicUser != "" && w.cfg.BasicPass != "" {
		token := base64.StdEncoding.EncodeToString([]byte(w.cfg.BasicUser + ":" + w.cfg.BasicPass))
		req.Header.Set("Authorization", "Basic "+token)
	}
	if w.cfg.HeaderName != "" && w.cfg.HeaderValue != "" {
		req.Header.Set(w.cfg.HeaderName, w.cfg.HeaderValue)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		zap.L().Warn("notify: webhook delivery failed", zap.String("event", event), zap.Error(err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		zap.L().Warn("notify: webhook rejected event",
			zap.String("event", event),
			zap.Int("status", resp.StatusCode),
		)
	}
}
