// Package cli provides the summaryprobs command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/config/file"
	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/corpus"
	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/embedding"
	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/embedding/fasttext"
	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/storage"
	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driving"
	"github.com/custodia-labs/summaryprobs/internal/core/services"
	"github.com/custodia-labs/summaryprobs/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Persistent flags.
var (
	cfgFile string
	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "summaryprobs",
	Short: "Score how representative each message is of its conversation",
	Long: `summaryprobs ingests CSV conversation logs into a relational database and,
for every configured language, writes a summary probability per message:
the cosine similarity between the message embedding and its group centroid.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
		logger.SetOutput(cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default ./config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false,
		"write to an in-memory database instead of database.url")
}

// Execute runs the root command. ctx is cancelled on SIGINT by the caller.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// app holds the services a command works with.
type app struct {
	settings  domain.Settings
	store     driven.MessageStore
	embedders driven.EmbedderProvider
	pipeline  driving.Pipeline
	progress  *progressView
}

// Close releases the store and every acquired model.
func (a *app) Close() error {
	var errs []error
	if a.embedders != nil {
		errs = append(errs, a.embedders.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// newApp builds the services for a command. Tests replace it.
var newApp = openApp

// openApp loads .env and config.toml, then wires the store, the embedder
// provider and the pipeline.
func openApp(cmd *cobra.Command) (*app, error) {
	if err := file.LoadDotEnv(); err != nil {
		return nil, err
	}
	configStore, err := file.NewConfigStore(cfgFile)
	if err != nil {
		return nil, err
	}
	settings, err := services.NewSettingsService(configStore, nil).Load()
	if err != nil {
		return nil, err
	}

	url := settings.DatabaseURL
	if dryRun {
		url = storage.MemoryURL
	}
	store, err := storage.Open(url)
	if err != nil {
		return nil, err
	}
	logger.Debug("Opened %s store", backendName(url))

	progress := newProgressView(cmd.ErrOrStderr())
	embedders, err := embedding.NewProvider(settings.Embedding, fasttext.WithProgress(progress.Model))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	policy, err := services.NewScoringPolicy(settings.Policy)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	reader := corpus.NewCSVReader(settings.Corpus.Dir, settings.Corpus.Column)
	pipeline := services.NewPipelineDriver(settings, reader, store, embedders,
		services.NewScoringEngine(policy))

	return &app{
		settings:  settings,
		store:     store,
		embedders: embedders,
		pipeline:  pipeline,
		progress:  progress,
	}, nil
}

func backendName(url string) storage.Backend {
	backend, _, err := storage.Parse(url)
	if err != nil {
		return "unknown"
	}
	return backend
}

// withApp opens the services, runs fn and closes them again.
func withApp(cmd *cobra.Command, fn func(a *app) error) (err error) {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(a)
}
