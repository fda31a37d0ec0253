// Package llm provides a client for an Ollama-compatible LLM runtime.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ragpilot/ragpilot/internal/resilience"
)

const (
	// ClientName identifies this client for circuit breaker naming.
	ClientName = "ollama"

	// DefaultBaseURL is the local Ollama server address.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the LLM runtime client.
type ClientConfig struct {
	// BaseURL is the runtime base URL (optional, defaults to local Ollama).
	BaseURL string

	// APIKey is an optional bearer credential sent with every request.
	APIKey string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// MaxRetries is the retry budget for transient failures.
	MaxRetries int

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an LLM runtime API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new LLM runtime client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ClientName)
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		} else {
			clientCfg.Timeout = DefaultTimeout
		}
		if cfg.MaxRetries > 0 {
			clientCfg.MaxRetries = uint64(cfg.MaxRetries)
		}
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Endpoint returns the runtime base URL.
func (c *Client) Endpoint() string { return c.baseURL }

// tagsResponse is the wire format of the model listing endpoint.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the names of the models the runtime currently serves.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // body only used for the message
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}

	c.logger.Debug().
		Int("models", len(names)).
		Msg("listed runtime models")

	return names, nil
}
