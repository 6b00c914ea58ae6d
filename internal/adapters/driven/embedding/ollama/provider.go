package ollama

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
	"github.com/custodia-labs/summaryprobs/internal/logger"
)

// pingTimeout is the maximum time to wait for connectivity validation.
const pingTimeout = 5 * time.Second

// Ensure Provider implements the interface.
var _ driven.EmbedderProvider = (*Provider)(nil)

// Provider maps languages to Ollama models.
type Provider struct {
	settings domain.OllamaSettings
	limiter  *rate.Limiter

	mu        sync.Mutex
	embedders map[string]*Embedder
}

// NewProvider creates a provider. A positive RequestsPerSecond throttles
// every embedder of the provider through one shared limiter.
func NewProvider(settings domain.OllamaSettings) *Provider {
	var limiter *rate.Limiter
	if settings.RequestsPerSecond > 0 {
		burst := int(settings.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), burst)
	}
	return &Provider{
		settings:  settings,
		limiter:   limiter,
		embedders: make(map[string]*Embedder),
	}
}

// Acquire returns the embedder configured for lang after checking the
// model is installed. Acquired embedders are cached.
func (p *Provider) Acquire(ctx context.Context, lang string) (driven.Embedder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.embedders[lang]; ok {
		return e, nil
	}

	model, ok := p.settings.Models[lang]
	if !ok || model == "" {
		return nil, fmt.Errorf("%w: no ollama model configured for %q (set embedding.models.%s)",
			domain.ErrEmbeddingUnavailable, lang, lang)
	}

	e := NewEmbedder(Config{
		BaseURL: p.settings.BaseURL,
		Model:   model,
		Timeout: time.Duration(p.settings.TimeoutSecs) * time.Second,
		Limiter: p.limiter,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := e.Ping(pingCtx); err != nil {
		e.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	logger.Debug("Using ollama model %s for %s", model, lang)
	p.embedders[lang] = e
	return e, nil
}

// Close releases every embedder handed out.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for lang, e := range p.embedders {
		e.Close()
		delete(p.embedders, lang)
	}
	return nil
}
