package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
)

// fakeOllama serves /api/tags and /api/embeddings.
type fakeOllama struct {
	models     []string
	status     int
	embedCalls atomic.Int32
}

func (f *fakeOllama) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		var resp tagsResponse
		for _, m := range f.models {
			resp.Models = append(resp.Models, struct {
				Name string `json:"name"`
			}{Name: m})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		f.embedCalls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(embedResponse{
			Embedding: []float64{float64(len(req.Prompt)), 1, 0.5},
		})
	})
	return mux
}

func newFake(t *testing.T, f *fakeOllama) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEmbedder_Defaults(t *testing.T) {
	e := NewEmbedder(Config{})

	assert.Equal(t, DefaultBaseURL, e.baseURL)
	assert.Equal(t, DefaultModel, e.ModelName())
	assert.Equal(t, DefaultTimeout, e.client.Timeout)
	assert.Zero(t, e.Dimensions())
}

func TestEmbedder_Embed(t *testing.T) {
	srv := newFake(t, &fakeOllama{})
	e := NewEmbedder(Config{BaseURL: srv.URL, Model: "nomic-embed-text"})

	vec, err := e.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1, 0.5}, vec)
	assert.Equal(t, 3, e.Dimensions())
}

func TestEmbedder_Embed_ServerError(t *testing.T) {
	srv := newFake(t, &fakeOllama{status: http.StatusInternalServerError})
	e := NewEmbedder(Config{BaseURL: srv.URL})

	_, err := e.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "status 500")
}

func TestEmbedder_Embed_ModelNotFound(t *testing.T) {
	srv := newFake(t, &fakeOllama{status: http.StatusNotFound})
	e := NewEmbedder(Config{BaseURL: srv.URL})

	_, err := e.Embed(context.Background(), "hello")

	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbedder_Embed_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	e := NewEmbedder(Config{BaseURL: url, Timeout: time.Second})

	_, err := e.Embed(context.Background(), "hello")

	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbedder_Embed_Cancelled(t *testing.T) {
	srv := newFake(t, &fakeOllama{})
	e := NewEmbedder(Config{BaseURL: srv.URL, Limiter: rate.NewLimiter(rate.Limit(0.001), 1)})
	ctx, cancel := context.WithCancel(context.Background())

	// Drain the only token, then cancel while waiting for the next.
	_, err := e.Embed(ctx, "first")
	require.NoError(t, err)
	cancel()

	_, err = e.Embed(ctx, "second")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbedder_Ping(t *testing.T) {
	srv := newFake(t, &fakeOllama{models: []string{"nomic-embed-text:latest", "all-minilm:l6"}})

	assert.NoError(t, NewEmbedder(Config{BaseURL: srv.URL, Model: "nomic-embed-text"}).Ping(context.Background()))
	assert.NoError(t, NewEmbedder(Config{BaseURL: srv.URL, Model: "all-minilm:l6"}).Ping(context.Background()))

	err := NewEmbedder(Config{BaseURL: srv.URL, Model: "mxbai"}).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull mxbai")
}

func TestProvider_Acquire(t *testing.T) {
	fake := &fakeOllama{models: []string{"nomic-embed-text"}}
	srv := newFake(t, fake)
	p := NewProvider(domain.OllamaSettings{
		BaseURL:     srv.URL,
		TimeoutSecs: 5,
		Models:      map[string]string{"en": "nomic-embed-text", "de": "missing-model"},
	})
	defer p.Close()

	first, err := p.Acquire(context.Background(), "en")
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", first.ModelName())

	second, err := p.Acquire(context.Background(), "en")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = p.Acquire(context.Background(), "de")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	_, err = p.Acquire(context.Background(), "fr")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "embedding.models.fr")
}

func TestNewProvider_Limiter(t *testing.T) {
	assert.Nil(t, NewProvider(domain.OllamaSettings{}).limiter)

	p := NewProvider(domain.OllamaSettings{RequestsPerSecond: 0.5})
	require.NotNil(t, p.limiter)
	assert.Equal(t, 1, p.limiter.Burst())

	p = NewProvider(domain.OllamaSettings{RequestsPerSecond: 8})
	assert.Equal(t, 8, p.limiter.Burst())
}
