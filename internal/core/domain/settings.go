package domain

const unknownDescription = "Unknown"

// DefaultBatchSize is the number of records written to the sink per chunk.
const DefaultBatchSize = 10_000

// PolicyName identifies a scoring policy.
type PolicyName string

// Available scoring policies.
const (
	// PolicyCentroid scores each message by cosine similarity to the group centroid.
	PolicyCentroid PolicyName = "centroid"

	// PolicyPairwiseMean scores each message by its mean cosine similarity
	// to every other message in the group. Quadratic in group size.
	PolicyPairwiseMean PolicyName = "pairwise_mean"
)

// IsValid returns true if the policy is recognised.
func (p PolicyName) IsValid() bool {
	switch p {
	case PolicyCentroid, PolicyPairwiseMean:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p PolicyName) String() string {
	return string(p)
}

// Description returns a human-readable description of the policy.
func (p PolicyName) Description() string {
	switch p {
	case PolicyCentroid:
		return "Centroid (similarity to the group mean vector)"
	case PolicyPairwiseMean:
		return "Pairwise mean (mean similarity to every other message)"
	default:
		return unknownDescription
	}
}

// EmbeddingProvider identifies where embedding models come from.
type EmbeddingProvider string

// Available embedding providers.
const (
	// EmbeddingProviderFastText downloads fastText crawl vectors per language.
	EmbeddingProviderFastText EmbeddingProvider = "fasttext"

	// EmbeddingProviderOllama uses a local Ollama instance.
	EmbeddingProviderOllama EmbeddingProvider = "ollama"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderFastText, EmbeddingProviderOllama:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p EmbeddingProvider) String() string {
	return string(p)
}

// CorpusSettings configures message ingestion.
type CorpusSettings struct {
	// Dir is the directory holding the CSV files.
	Dir string

	// Column is the header of the text column to extract.
	Column string
}

// FastTextSettings configures fastText model acquisition.
type FastTextSettings struct {
	// ModelDir is where downloaded models are cached.
	ModelDir string

	// BaseURL is the download location of cc.<lang>.300.vec.gz files.
	BaseURL string

	// MaxWords limits how many word vectors are loaded. Zero loads all.
	MaxWords int
}

// OllamaSettings configures the Ollama embedding provider.
type OllamaSettings struct {
	// BaseURL is the Ollama API endpoint.
	BaseURL string

	// TimeoutSecs is the per-request timeout.
	TimeoutSecs int

	// RequestsPerSecond throttles embedding calls. Zero disables throttling.
	RequestsPerSecond float64

	// Models maps language tags to Ollama model names.
	Models map[string]string
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider EmbeddingProvider
	FastText FastTextSettings
	Ollama   OllamaSettings
}

// Settings holds everything a pipeline run needs.
type Settings struct {
	// Langs are processed in listed order. Duplicates are scored again.
	Langs []string

	// BatchSize is the chunk size for sink writes.
	BatchSize int

	// Policy selects the scoring policy.
	Policy PolicyName

	// DatabaseURL locates the relational sink.
	DatabaseURL string

	Corpus    CorpusSettings
	Embedding EmbeddingSettings
}

// DefaultSettings returns settings with sensible defaults.
// Langs and DatabaseURL are left empty and must be configured.
func DefaultSettings() Settings {
	return Settings{
		BatchSize: DefaultBatchSize,
		Policy:    PolicyCentroid,
		Corpus: CorpusSettings{
			Dir:    "data",
			Column: "Message",
		},
		Embedding: EmbeddingSettings{
			Provider: EmbeddingProviderFastText,
			FastText: FastTextSettings{
				ModelDir: "models",
				BaseURL:  "https://dl.fbaipublicfiles.com/fasttext/vectors-crawl",
			},
			Ollama: OllamaSettings{
				BaseURL:     "http://localhost:11434",
				TimeoutSecs: 30,
				Models:      map[string]string{},
			},
		},
	}
}
