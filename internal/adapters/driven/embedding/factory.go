// Package embedding selects the embedding provider configured for a run.
package embedding

import (
	"fmt"

	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/embedding/fasttext"
	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
)

// NewProvider creates the embedder provider named by settings.Provider.
// fastTextOpts only apply to the fastText provider.
func NewProvider(settings domain.EmbeddingSettings, fastTextOpts ...fasttext.Option) (driven.EmbedderProvider, error) {
	switch settings.Provider {
	case domain.EmbeddingProviderFastText, "":
		return fasttext.NewProvider(settings.FastText, fastTextOpts...), nil
	case domain.EmbeddingProviderOllama:
		return ollama.NewProvider(settings.Ollama), nil
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s",
			domain.ErrInvalidInput, settings.Provider)
	}
}
