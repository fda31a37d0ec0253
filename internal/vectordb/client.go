// Package vectordb provides a client for a Chroma-compatible vector database
// HTTP API.
package vectordb

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
	"github.com/ragpilot/ragpilot/internal/watchdog"
)

const (
	// ClientName identifies this client for circuit breaker naming.
	ClientName = "vectordb"

	// DefaultBaseURL is the local Chroma server address.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the vector database client.
type ClientConfig struct {
	// BaseURL is the server base URL (optional, defaults to local Chroma).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a vector database API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new vector database client.
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

// collectionInfo is the wire representation of a collection.
type collectionInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetOrCreateCollection returns a handle to the named collection, creating it
// if it does not exist.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string) (watchdog.VectorCollection, error) {
	reqBody := struct {
		Name        string `json:"name"`
		GetOrCreate bool   `json:"get_or_create"`
	}{Name: name, GetOrCreate: true}

	var info collectionInfo
	if err := c.post(ctx, "/api/v1/collections", reqBody, &info); err != nil {
		return nil, fmt.Errorf("get or create collection %q: %w", name, err)
	}

	c.logger.Debug().
		Str("collection", info.Name).
		Str("id", info.ID).
		Msg("resolved vector collection")

	return &Collection{client: c, id: info.ID, name: info.Name}, nil
}

// ListCollections returns the names of all collections.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/collections", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var infos []collectionInfo
	if err := c.do(req, &infos); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names, nil
}

// Collection is a handle to one named collection.
type Collection struct {
	client *Client
	id     string
	name   string
}

// Name returns the collection name.
func (col *Collection) Name() string { return col.name }

// Add inserts documents into the collection.
func (col *Collection) Add(ctx context.Context, ids, documents []string, metadatas []map[string]interface{}) error {
	reqBody := struct {
		IDs       []string                 `json:"ids"`
		Documents []string                 `json:"documents"`
		Metadatas []map[string]interface{} `json:"metadatas,omitempty"`
	}{IDs: ids, Documents: documents, Metadatas: metadatas}

	path := fmt.Sprintf("/api/v1/collections/%s/add", col.id)
	if err := col.client.post(ctx, path, reqBody, nil); err != nil {
		return fmt.Errorf("add to collection %q: %w", col.name, err)
	}
	return nil
}

// Query runs a text query and returns the matched document ids.
func (col *Collection) Query(ctx context.Context, text string, nResults int) ([]string, error) {
	reqBody := struct {
		QueryTexts []string `json:"query_texts"`
		NResults   int      `json:"n_results"`
	}{QueryTexts: []string{text}, NResults: nResults}

	// The wire format nests one id list per query text.
	var respBody struct {
		IDs [][]string `json:"ids"`
	}

	path := fmt.Sprintf("/api/v1/collections/%s/query", col.id)
	if err := col.client.post(ctx, path, reqBody, &respBody); err != nil {
		return nil, fmt.Errorf("query collection %q: %w", col.name, err)
	}

	if len(respBody.IDs) == 0 {
		return []string{}, nil
	}

	col.client.logger.Debug().
		Str("collection", col.name).
		Int("matches", len(respBody.IDs[0])).
		Msg("queried vector collection")

	return respBody.IDs[0], nil
}

// Delete removes documents from the collection by id.
func (col *Collection) Delete(ctx context.Context, ids []string) error {
	reqBody := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}

	path := fmt.Sprintf("/api/v1/collections/%s/delete", col.id)
	if err := col.client.post(ctx, path, reqBody, nil); err != nil {
		return fmt.Errorf("delete from collection %q: %w", col.name, err)
	}
	return nil
}

// post sends a JSON body and decodes the JSON response into out (out may be
// nil when the response body is irrelevant).
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // body only used for the message
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
