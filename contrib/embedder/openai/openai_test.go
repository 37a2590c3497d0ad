package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) *Embedder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	e, err := New(Config{APIKey: "test-key", BaseURL: server.URL, Dimension: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestEmbedBatch(t *testing.T) {
	var gotInput []string
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotInput = req.Input

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float64{0.1, 0.2, 0.3}},
				{"object": "embedding", "index": 1, "embedding": []float64{0.4, 0.5, 0.6}},
			},
			"model": "text-embedding-3-small",
		})
	})

	vectors, err := e.EmbedBatch(context.Background(), []string{"algebra", "geometry"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(gotInput) != 2 || gotInput[0] != "algebra" {
		t.Errorf("request input = %v", gotInput)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}
	if vectors[1][2] != float32(0.6) {
		t.Errorf("vectors[1][2] = %f, want 0.6", vectors[1][2])
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{},
			"model":  "text-embedding-3-small",
		})
	})

	if _, err := e.Embed(context.Background(), "algebra"); err == nil {
		t.Fatal("expected error when response has no embeddings")
	}
}

func TestTruncateVector(t *testing.T) {
	vec := truncateVector([]float64{1, 2, 3, 4}, 3)
	if len(vec) != 3 || vec[2] != 3 {
		t.Fatalf("truncate long input: %v", vec)
	}

	vec = truncateVector([]float64{1}, 3)
	if len(vec) != 3 || vec[0] != 1 || vec[2] != 0 {
		t.Fatalf("pad short input: %v", vec)
	}
}

func TestEmbedBatchEmpty(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty input")
	})
	vectors, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vectors != nil {
		t.Fatalf("got %v, want nil", vectors)
	}
}
