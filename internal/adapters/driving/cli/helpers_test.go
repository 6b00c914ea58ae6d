package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
	"github.com/custodia-labs/summaryprobs/internal/core/services"
)

// wordEmbedder counts words over a fixed vocabulary.
type wordEmbedder struct {
	vocab []string
}

func (e *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
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

func (e *wordEmbedder) Dimensions() int   { return len(e.vocab) }
func (e *wordEmbedder) ModelName() string { return "words" }
func (e *wordEmbedder) Close() error      { return nil }

// stubProvider knows a fixed set of languages.
type stubProvider struct {
	embedders map[string]driven.Embedder
	closed    bool
}

func (p *stubProvider) Acquire(_ context.Context, lang string) (driven.Embedder, error) {
	e, ok := p.embedders[lang]
	if !ok {
		return nil, errors.Join(domain.ErrEmbeddingUnavailable, errors.New("no model for "+lang))
	}
	return e, nil
}

func (p *stubProvider) Close() error {
	p.closed = true
	return nil
}

// stubCorpus returns a fixed corpus.
type stubCorpus map[string][]string

func (c stubCorpus) Read(_ context.Context) (map[string][]string, error) {
	return c, nil
}

// newTestApp wires a pipeline over an in-memory store.
func newTestApp(langs []string, provider driven.EmbedderProvider) *app {
	settings := domain.DefaultSettings()
	settings.Langs = langs
	store := memory.NewMessageStore()
	corpus := stubCorpus{
		"g1.csv": {"hello world", "hello there", "world peace"},
		"g2.csv": {"good morning"},
	}
	return &app{
		settings:  settings,
		store:     store,
		embedders: provider,
		pipeline: services.NewPipelineDriver(settings, corpus, store, provider,
			services.NewScoringEngine(services.CentroidPolicy{})),
	}
}

func englishProvider() *stubProvider {
	return &stubProvider{embedders: map[string]driven.Embedder{
		"en": &wordEmbedder{vocab: []string{"hello", "world", "there", "peace", "good", "morning"}},
	}}
}

// useApp makes every command use a.
func useApp(t *testing.T, a *app) {
	t.Helper()
	old := newApp
	newApp = func(*cobra.Command) (*app, error) { return a, nil }
	t.Cleanup(func() { newApp = old })
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}
