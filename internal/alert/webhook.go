package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ragpilot/ragpilot/internal/resilience"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookConfig holds configuration for the webhook sink.
type WebhookConfig struct {
	// URL is the endpoint alerts are POSTed to (required).
	URL string

	// HTTPClient is the HTTP client to use (optional). If nil, a resilient
	// client with a small retry budget is used.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration
}

// WebhookNotifier POSTs alerts as JSON to a configured endpoint.
type WebhookNotifier struct {
	url        string
	httpClient HTTPDoer
}

// NewWebhookNotifier creates a webhook sink.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig("alert-webhook")
		clientCfg.MaxRetries = 2
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		}
		httpClient = resilience.NewClient(clientCfg)
	}
	return &WebhookNotifier{url: cfg.URL, httpClient: httpClient}
}

// Notify delivers the alert to the webhook endpoint.
func (n *WebhookNotifier) Notify(ctx context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}
