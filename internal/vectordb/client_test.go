package vectordb_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ragpilot/ragpilot/internal/vectordb"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *vectordb.Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := vectordb.NewClient(vectordb.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
	return server, client
}

func TestClient_GetOrCreateCollection(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/collections" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var body struct {
			Name        string `json:"name"`
			GetOrCreate bool   `json:"get_or_create"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body.Name != "watchdog_probe" {
			t.Errorf("expected collection name watchdog_probe, got %q", body.Name)
		}
		if !body.GetOrCreate {
			t.Error("expected get_or_create to be set")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":   "c0ffee",
			"name": "watchdog_probe",
		})
	})

	coll, err := client.GetOrCreateCollection(context.Background(), "watchdog_probe")
	if err != nil {
		t.Fatalf("failed to get collection: %v", err)
	}
	if coll == nil {
		t.Fatal("expected a collection handle")
	}
}

func TestClient_GetOrCreateCollection_ServerError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database locked", http.StatusConflict)
	})

	_, err := client.GetOrCreateCollection(context.Background(), "watchdog_probe")
	if err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
}

func TestClient_ListCollections(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "1", "name": "documents"},
			{"id": "2", "name": "watchdog_probe"},
		})
	})

	names, err := client.ListCollections(context.Background())
	if err != nil {
		t.Fatalf("failed to list collections: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 collections, got %d", len(names))
	}
	if names[0] != "documents" || names[1] != "watchdog_probe" {
		t.Errorf("unexpected collection names: %v", names)
	}
}

func TestCollection_AddQueryDelete(t *testing.T) {
	var gotPaths []string

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api/v1/collections":
			json.NewEncoder(w).Encode(map[string]string{"id": "c1", "name": "watchdog_probe"})
		case "/api/v1/collections/c1/add":
			w.WriteHeader(http.StatusCreated)
		case "/api/v1/collections/c1/query":
			var body struct {
				QueryTexts []string `json:"query_texts"`
				NResults   int      `json:"n_results"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode query body: %v", err)
			}
			if body.NResults != 1 {
				t.Errorf("expected n_results 1, got %d", body.NResults)
			}
			json.NewEncoder(w).Encode(map[string][][]string{
				"ids": {{"probe-1"}},
			})
		case "/api/v1/collections/c1/delete":
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	coll, err := client.GetOrCreateCollection(ctx, "watchdog_probe")
	if err != nil {
		t.Fatalf("failed to get collection: %v", err)
	}

	err = coll.Add(ctx, []string{"probe-1"}, []string{"hello"}, nil)
	if err != nil {
		t.Fatalf("failed to add document: %v", err)
	}

	ids, err := coll.Query(ctx, "hello", 1)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(ids) != 1 || ids[0] != "probe-1" {
		t.Errorf("expected [probe-1], got %v", ids)
	}

	if err := coll.Delete(ctx, []string{"probe-1"}); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	wantPaths := []string{
		"/api/v1/collections",
		"/api/v1/collections/c1/add",
		"/api/v1/collections/c1/query",
		"/api/v1/collections/c1/delete",
	}
	if len(gotPaths) != len(wantPaths) {
		t.Fatalf("expected %d requests, got %d: %v", len(wantPaths), len(gotPaths), gotPaths)
	}
	for i, want := range wantPaths {
		if gotPaths[i] != want {
			t.Errorf("request %d: expected %s, got %s", i, want, gotPaths[i])
		}
	}
}

func TestCollection_Query_EmptyResult(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/v1/collections" {
			json.NewEncoder(w).Encode(map[string]string{"id": "c1", "name": "empty"})
			return
		}
		json.NewEncoder(w).Encode(map[string][][]string{"ids": {}})
	})

	ctx := context.Background()
	coll, err := client.GetOrCreateCollection(ctx, "empty")
	if err != nil {
		t.Fatalf("failed to get collection: %v", err)
	}

	ids, err := coll.Query(ctx, "anything", 1)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no matches, got %v", ids)
	}
}
