package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/54b3r/promptdoc-go/internal/apperr"
)

func TestOpenAIEmbedder_Embed(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotReq openaiEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		// Out of order on purpose.
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0,1],"index":1},{"embedding":[1,0],"index":0}]}`))
	}))
	t.Cleanup(srv.Close)

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "text-embedding-3-small", Dimensions: 2})
	got, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "text-embedding-3-small" || gotReq.Dimensions != 2 || len(gotReq.Input) != 2 {
		t.Errorf("unexpected request %+v", gotReq)
	}
	if got[0][0] != 1 || got[1][1] != 1 {
		t.Errorf("embeddings not placed by index: %v", got)
	}
}

func TestOpenAIEmbedder_Azure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/embed-dep/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != "2025-04-01-preview" {
			t.Errorf("missing api-version, got %q", r.URL.RawQuery)
		}
		if r.Header.Get("api-key") != "az-key" {
			t.Errorf("missing api-key header")
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5],"index":0}]}`))
	}))
	t.Cleanup(srv.Close)

	e := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL + "/openai", APIKey: "az-key", Model: "embed-dep",
		Azure: true, APIVersion: "2025-04-01-preview",
	})
	if _, err := e.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"invalid api key"}}`, "invalid api key"},
		{"plain body", http.StatusBadGateway, `upstream down`, "HTTP 502: upstream down"},
		{"count mismatch", http.StatusOK, `{"data":[]}`, "expected 1 embeddings, got 0"},
		{"bad json", http.StatusOK, `{`, "decode response"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
			_, err := e.Embed(context.Background(), []string{"x"})
			if !errors.Is(err, apperr.ErrProvider) {
				t.Fatalf("want ErrProvider, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tc.wantMsg)
			}
		})
	}
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}
		_, _ = w.Write([]byte(`{"embeddings":[[1,2,3],[4,5,6]]}`))
	}))
	t.Cleanup(srv.Close)

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "nomic-embed-text"})
	got, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 3 {
		t.Errorf("unexpected embeddings %v", got)
	}
}

func TestOllamaEmbedder_ModelMissing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nomic-embed-text\" not found, try pulling it first"}`))
	}))
	t.Cleanup(srv.Close)

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	_, err := e.Embed(context.Background(), []string{"a"})
	if !errors.Is(err, apperr.ErrProvider) || !strings.Contains(err.Error(), "try pulling it first") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestEmbed_EmptyInputSkipsRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected for empty input")
	}))
	t.Cleanup(srv.Close)

	if got, err := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL}).Embed(context.Background(), nil); err != nil || got != nil {
		t.Errorf("ollama: got (%v, %v)", got, err)
	}
	if got, err := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL}).Embed(context.Background(), nil); err != nil || got != nil {
		t.Errorf("openai: got (%v, %v)", got, err)
	}
}

// countingEmbedder records every text it is asked to embed.
type countingEmbedder struct {
	mu    sync.Mutex
	calls [][]string
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestWithCache(t *testing.T) {
	t.Parallel()

	inner := &countingEmbedder{}
	e := WithCache(inner, "openai/m", 16, time.Minute)

	first, err := e.Embed(context.Background(), []string{"aa", "bbb"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := e.Embed(context.Background(), []string{"bbb", "c", "aa"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(inner.calls) != 2 {
		t.Fatalf("want 2 inner calls, got %d", len(inner.calls))
	}
	if len(inner.calls[1]) != 1 || inner.calls[1][0] != "c" {
		t.Errorf("second call should only embed the miss, got %v", inner.calls[1])
	}
	if first[0][0] != 2 || second[0][0] != 3 || second[1][0] != 1 || second[2][0] != 2 {
		t.Errorf("results not parallel to input: %v %v", first, second)
	}

	// Mutating a returned vector must not poison the cache.
	second[0][0] = 99
	third, _ := e.Embed(context.Background(), []string{"bbb"})
	if third[0][0] != 3 {
		t.Errorf("cache returned mutated vector %v", third[0])
	}
}

func TestWithCache_Disabled(t *testing.T) {
	t.Parallel()

	inner := &countingEmbedder{}
	if got := WithCache(inner, "m", 0, time.Minute); got != inner {
		t.Error("size 0 should return the inner embedder unchanged")
	}
}
