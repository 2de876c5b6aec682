package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/feralbyte/kindred/pkg/provider/embeddings/ollama"
)

// mockEmbedServer starts a test HTTP server that handles /api/embed requests
// and returns canned embeddings, truncated to the number of inputs received.
func mockEmbedServer(t *testing.T, wantModel string, responses [][]float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path: got %q, want /api/embed", r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: got %q, want POST", r.Method)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if req.Model != wantModel {
			t.Errorf("model: got %q, want %q", req.Model, wantModel)
		}

		result := responses
		if len(result) > len(req.Input) {
			result = result[:len(req.Input)]
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"model":      wantModel,
			"embeddings": result,
		}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
}

func TestEmbed(t *testing.T) {
	t.Parallel()

	srv := mockEmbedServer(t, "all-minilm", [][]float32{{0.1, 0.2, 0.3}})
	defer srv.Close()

	p, err := ollama.New(srv.URL, "all-minilm")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3-dim vector, got %d", len(vec))
	}
	if vec[1] != 0.2 {
		t.Errorf("vec[1]: got %v, want 0.2", vec[1])
	}
}

func TestEmbedBatch(t *testing.T) {
	t.Parallel()

	srv := mockEmbedServer(t, "all-minilm", [][]float32{{1, 0}, {0, 1}})
	defer srv.Close()

	p, err := ollama.New(srv.URL, "all-minilm")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}

	// Empty input short-circuits without touching the server.
	vecs, err = p.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch(nil): %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil result for empty input, got %v", vecs)
	}
}

func TestDimensionsKnownModel(t *testing.T) {
	t.Parallel()

	p, err := ollama.New("http://localhost:1", "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if dims := p.Dimensions(); dims != 768 {
		t.Errorf("Dimensions: got %d, want 768", dims)
	}
}

func TestDimensionsProbe(t *testing.T) {
	t.Parallel()

	srv := mockEmbedServer(t, "mystery-model", [][]float32{{0, 0, 0, 0, 0}})
	defer srv.Close()

	p, err := ollama.New(srv.URL, "mystery-model")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if dims := p.Dimensions(); dims != 5 {
		t.Errorf("Dimensions: got %d, want 5", dims)
	}
}

func TestEmbedServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := ollama.New(srv.URL, "all-minilm")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestNewRequiresModel(t *testing.T) {
	t.Parallel()

	if _, err := ollama.New("", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
}
