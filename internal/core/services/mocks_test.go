package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
)

// bagOfWordsEmbedder counts words over a fixed vocabulary.
type bagOfWordsEmbedder struct {
	vocab []string
	fail  map[string]error
	calls int
}

func newBagOfWordsEmbedder(vocab ...string) *bagOfWordsEmbedder {
	return &bagOfWordsEmbedder{vocab: vocab, fail: make(map[string]error)}
}

func (e *bagOfWordsEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if err, ok := e.fail[text]; ok {
		return nil, err
	}
	vec := make([]float32, len(e.vocab))
	for _, word := range strings.Fields(text) {
		for i, v := range e.vocab {
			if v == word {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (e *bagOfWordsEmbedder) Dimensions() int   { return len(e.vocab) }
func (e *bagOfWordsEmbedder) ModelName() string { return "bag-of-words" }
func (e *bagOfWordsEmbedder) Close() error      { return nil }

// fixedEmbedder returns preset vectors keyed by text.
type fixedEmbedder map[string][]float32

func (e fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec, ok := e[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return vec, nil
}

func (e fixedEmbedder) Dimensions() int   { return 0 }
func (e fixedEmbedder) ModelName() string { return "fixed" }
func (e fixedEmbedder) Close() error      { return nil }

// mockProvider hands out embedders per language.
type mockProvider struct {
	mu        sync.Mutex
	embedders map[string]driven.Embedder
	acquired  []string
}

func (p *mockProvider) Acquire(_ context.Context, lang string) (driven.Embedder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquired = append(p.acquired, lang)
	e, ok := p.embedders[lang]
	if !ok {
		return nil, errors.Join(domain.ErrEmbeddingUnavailable, errors.New("no model for "+lang))
	}
	return e, nil
}

func (p *mockProvider) Close() error { return nil }

// mockCorpus returns a fixed corpus or an error.
type mockCorpus struct {
	groups map[string][]string
	err    error
}

func (c *mockCorpus) Read(_ context.Context) (map[string][]string, error) {
	return c.groups, c.err
}

func messagesOf(groupID string, texts ...string) []domain.Message {
	msgs := make([]domain.Message, len(texts))
	for i, text := range texts {
		msgs[i] = domain.Message{ID: int64(i + 1), GroupID: groupID, Text: text}
	}
	return msgs
}
