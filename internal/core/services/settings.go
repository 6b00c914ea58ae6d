package services

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
)

// Config keys for settings storage.
const (
	keyLangs             = "config.langs"
	keyBatchSize         = "pipeline.batch_size"
	keyPolicy            = "pipeline.policy"
	keyCorpusDir         = "corpus.dir"
	keyCorpusColumn      = "corpus.column"
	keyDatabaseURL       = "database.url"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModelDir     = "embedding.model_dir"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedMaxWords     = "embedding.max_words"
	keyOllamaBaseURL     = "embedding.ollama.base_url"
	keyOllamaTimeout     = "embedding.ollama.timeout_secs"
	keyOllamaRate        = "embedding.ollama.requests_per_second"
	keyEmbedModelsPrefix = "embedding.models"

	// EnvDatabaseURL is consulted when database.url is not set.
	EnvDatabaseURL = "DATABASE_URL"
)

// SettingsService resolves run settings from the config store.
type SettingsService struct {
	configStore driven.ConfigStore
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
// A nil getenv reads the process environment.
func NewSettingsService(configStore driven.ConfigStore, getenv func(string) string) *SettingsService {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &SettingsService{
		configStore: configStore,
		getenv:      getenv,
	}
}

// Get resolves settings, applying defaults for missing keys.
// The result is not validated; see Validate.
func (s *SettingsService) Get() domain.Settings {
	defaults := domain.DefaultSettings()

	settings := domain.Settings{
		Langs:       s.getLangs(),
		BatchSize:   s.getInt(keyBatchSize, defaults.BatchSize),
		Policy:      domain.PolicyName(s.getString(keyPolicy, defaults.Policy.String())),
		DatabaseURL: s.getString(keyDatabaseURL, s.getenv(EnvDatabaseURL)),
		Corpus: domain.CorpusSettings{
			Dir:    s.getString(keyCorpusDir, defaults.Corpus.Dir),
			Column: s.getString(keyCorpusColumn, defaults.Corpus.Column),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: domain.EmbeddingProvider(
				s.getString(keyEmbedProvider, defaults.Embedding.Provider.String())),
			FastText: domain.FastTextSettings{
				ModelDir: s.getString(keyEmbedModelDir, defaults.Embedding.FastText.ModelDir),
				BaseURL:  s.getString(keyEmbedBaseURL, defaults.Embedding.FastText.BaseURL),
				MaxWords: s.configStore.GetInt(keyEmbedMaxWords),
			},
			Ollama: domain.OllamaSettings{
				BaseURL:           s.getString(keyOllamaBaseURL, defaults.Embedding.Ollama.BaseURL),
				TimeoutSecs:       s.getInt(keyOllamaTimeout, defaults.Embedding.Ollama.TimeoutSecs),
				RequestsPerSecond: s.configStore.GetFloat(keyOllamaRate),
				Models:            s.configStore.GetStringMap(keyEmbedModelsPrefix),
			},
		},
	}
	if settings.Embedding.Ollama.Models == nil {
		settings.Embedding.Ollama.Models = map[string]string{}
	}

	return settings
}

// Load resolves and validates settings.
func (s *SettingsService) Load() (domain.Settings, error) {
	settings := s.Get()
	if err := Validate(settings); err != nil {
		return settings, err
	}
	return settings, nil
}

// Validate checks settings needed by every command.
// The database URL is checked by the sink when it is opened.
func Validate(settings domain.Settings) error {
	if len(settings.Langs) == 0 {
		return fmt.Errorf("%w: %s must list at least one language", domain.ErrInvalidInput, keyLangs)
	}
	for i, lang := range settings.Langs {
		if strings.TrimSpace(lang) == "" {
			return fmt.Errorf("%w: %s[%d] is empty", domain.ErrInvalidInput, keyLangs, i)
		}
	}
	if settings.BatchSize <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d",
			domain.ErrInvalidInput, keyBatchSize, settings.BatchSize)
	}
	if !settings.Policy.IsValid() {
		return fmt.Errorf("%w: unknown %s %q", domain.ErrInvalidInput, keyPolicy, settings.Policy)
	}
	if !settings.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown %s %q",
			domain.ErrInvalidInput, keyEmbedProvider, settings.Embedding.Provider)
	}
	if settings.Embedding.FastText.MaxWords < 0 {
		return fmt.Errorf("%w: %s must not be negative", domain.ErrInvalidInput, keyEmbedMaxWords)
	}
	if settings.Embedding.Ollama.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: %s must not be negative", domain.ErrInvalidInput, keyOllamaRate)
	}
	return nil
}

func (s *SettingsService) getLangs() []string {
	langs := s.configStore.GetStringSlice(keyLangs)
	result := make([]string, 0, len(langs))
	for _, lang := range langs {
		result = append(result, strings.TrimSpace(lang))
	}
	return result
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

// Set parses value for key and persists it to the config store.
// Only known keys are accepted, plus embedding.models.<lang>.
func (s *SettingsService) Set(key, value string) error {
	parse, ok := setters[key]
	if !ok {
		lang, isModel := strings.CutPrefix(key, keyEmbedModelsPrefix+".")
		if !isModel || lang == "" || strings.Contains(lang, ".") {
			return fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
		}
		parse = parseString
	}

	parsed, err := parse(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	return s.configStore.Set(key, parsed)
}

// ConfigPath returns where settings are persisted.
func (s *SettingsService) ConfigPath() string {
	return s.configStore.Path()
}

// SettableKeys lists the keys accepted by Set, sorted.
func SettableKeys() []string {
	keys := make([]string, 0, len(setters)+1)
	for key := range setters {
		keys = append(keys, key)
	}
	keys = append(keys, keyEmbedModelsPrefix+".<lang>")
	slices.Sort(keys)
	return keys
}

var setters = map[string]func(string) (any, error){
	keyLangs:         parseLangs,
	keyBatchSize:     parseInt(1),
	keyPolicy:        parsePolicy,
	keyCorpusDir:     parseString,
	keyCorpusColumn:  parseString,
	keyDatabaseURL:   parseString,
	keyEmbedProvider: parseProvider,
	keyEmbedModelDir: parseString,
	keyEmbedBaseURL:  parseString,
	keyEmbedMaxWords: parseInt(0),
	keyOllamaBaseURL: parseString,
	keyOllamaTimeout: parseInt(1),
	keyOllamaRate:    parseRate,
}

func parseString(v string) (any, error) {
	return v, nil
}

// parseLangs accepts a comma-separated list, e.g. "en,de".
func parseLangs(v string) (any, error) {
	var langs []string
	for _, lang := range strings.Split(v, ",") {
		if lang = strings.TrimSpace(lang); lang != "" {
			langs = append(langs, lang)
		}
	}
	if len(langs) == 0 {
		return nil, fmt.Errorf("at least one language is required")
	}
	return langs, nil
}

func parseInt(minVal int64) func(string) (any, error) {
	return func(v string) (any, error) {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", v)
		}
		if n < minVal {
			return nil, fmt.Errorf("must be at least %d, got %d", minVal, n)
		}
		return n, nil
	}
}

func parseRate(v string) (any, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", v)
	}
	if f < 0 {
		return nil, fmt.Errorf("must not be negative")
	}
	return f, nil
}

func parsePolicy(v string) (any, error) {
	if !domain.PolicyName(v).IsValid() {
		return nil, fmt.Errorf("unknown policy %q (want %s or %s)", v,
			domain.PolicyCentroid, domain.PolicyPairwiseMean)
	}
	return v, nil
}

func parseProvider(v string) (any, error) {
	if !domain.EmbeddingProvider(v).IsValid() {
		return nil, fmt.Errorf("unknown provider %q (want %s or %s)", v,
			domain.EmbeddingProviderFastText, domain.EmbeddingProviderOllama)
	}
	return v, nil
}
