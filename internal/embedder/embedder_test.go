package embedder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestOllamaEmbed_BatchRoundTrip verifies the request body sent to /api/embed
// and that embeddings come back parallel to the input.
func TestOllamaEmbed_BatchRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path: expected /api/embed, got %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "all-minilm" {
			t.Errorf("model: expected all-minilm, got %q", req.Model)
		}
		resp := ollamaEmbedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			resp.Embeddings[i] = []float32{float32(i), 1}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "all-minilm"})

	got, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(got))
	}
	if got[1][0] != 1 {
		t.Errorf("embeddings not parallel to input: %v", got)
	}
}

// TestOllamaEmbed_ServerError verifies the error message from the backend is
// surfaced.
func TestOllamaEmbed_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not found"})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nope"})

	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error from failing backend")
	}
}

// TestDefaultDimensions_EnvOverride verifies EMBEDDING_DIMENSIONS wins over
// the built-in 384 default.
func TestDefaultDimensions_EnvOverride(t *testing.T) {
	if got := DefaultDimensions(); got != 384 {
		t.Errorf("default dimensions: expected 384, got %d", got)
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "768")
	if got := DefaultDimensions(); got != 768 {
		t.Errorf("overridden dimensions: expected 768, got %d", got)
	}
}

// TestNewFromEnv_OpenAIRequiresKey verifies a missing OpenAI key fails fast.
func TestNewFromEnv_OpenAIRequiresKey(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := NewFromEnv(); err == nil {
		t.Fatal("expected error when no OpenAI API key is configured")
	}
}

// TestValidate_WarnsOnChatModel verifies chat-model-shaped embedding model
// names pass validation (warning only, not an error).
func TestValidate_WarnsOnChatModel(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("EMBEDDING_MODEL", "llama3")

	if err := Validate(slog.Default()); err != nil {
		t.Fatalf("Validate: expected warning only, got error: %v", err)
	}
}

// TestValidate_AzureMissingEndpoint verifies azure without an endpoint is a
// hard configuration error.
func TestValidate_AzureMissingEndpoint(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "azure")
	t.Setenv("EMBEDDING_API_KEY", "key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	t.Setenv("EMBEDDING_ENDPOINT", "")

	if err := Validate(slog.Default()); err == nil {
		t.Fatal("expected error for azure backend without endpoint")
	}
}
