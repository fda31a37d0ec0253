// Package embedding provides a client for the embedding model server.
package embedding

import (
	"bytes"
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
	ClientName = "embeddings"

	// DefaultBaseURL is the local embedding server address.
	DefaultBaseURL = "http://localhost:8081"

	// DefaultTimeout is the default request timeout. Encoding is slower
	// than a plain ping, so the ceiling is generous.
	DefaultTimeout = 15 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the embedding client.
type ClientConfig struct {
	// BaseURL is the server base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 15s).
	Timeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an embedding model server client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new embedding client.
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
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Available reports whether the model server answers its readiness endpoint.
func (c *Client) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Encode returns one embedding vector per input text.
func (c *Client) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := struct {
		Inputs []string `json:"inputs"`
	}{Inputs: texts}

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // body only used for the message
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug().
		Int("inputs", len(texts)).
		Int("vectors", len(vectors)).
		Msg("encoded inputs")

	return vectors, nil
}
