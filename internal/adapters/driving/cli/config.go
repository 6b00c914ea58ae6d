package cli

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/config/file"
	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/services"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings in config.toml",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Validates and writes one value to the config file. Lists are given
comma-separated, e.g. "config set config.langs en,de".

Keys:
  ` + strings.Join(services.SettableKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func openSettings() (*services.SettingsService, error) {
	configStore, err := file.NewConfigStore(cfgFile)
	if err != nil {
		return nil, err
	}
	return services.NewSettingsService(configStore, nil), nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	settings, err := openSettings()
	if err != nil {
		return err
	}
	if err := settings.Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("Set %s in %s\n", args[0], settings.ConfigPath())
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if err := file.LoadDotEnv(); err != nil {
		return err
	}
	service, err := openSettings()
	if err != nil {
		return err
	}
	s := service.Get()

	cmd.Printf("Config file: %s\n", service.ConfigPath())
	cmd.Printf("  Languages:   %s\n", strings.Join(s.Langs, ", "))
	cmd.Printf("  Batch size:  %d\n", s.BatchSize)
	cmd.Printf("  Policy:      %s\n", s.Policy.Description())
	cmd.Printf("  Corpus:      %s (column %s)\n", s.Corpus.Dir, s.Corpus.Column)
	cmd.Printf("  Database:    %s\n", redactURL(s.DatabaseURL))
	cmd.Printf("  Embeddings:  %s\n", s.Embedding.Provider)
	switch s.Embedding.Provider {
	case domain.EmbeddingProviderOllama:
		cmd.Printf("    URL:       %s\n", s.Embedding.Ollama.BaseURL)
		langs := make([]string, 0, len(s.Embedding.Ollama.Models))
		for lang := range s.Embedding.Ollama.Models {
			langs = append(langs, lang)
		}
		slices.Sort(langs)
		for _, lang := range langs {
			cmd.Printf("    %-10s %s\n", lang+":", s.Embedding.Ollama.Models[lang])
		}
	default:
		cmd.Printf("    Models:    %s\n", s.Embedding.FastText.ModelDir)
	}

	if err := services.Validate(s); err != nil {
		cmd.Printf("\nWarning: %v\n", err)
	}
	return nil
}

// redactURL hides the password of a database URL.
func redactURL(raw string) string {
	if raw == "" {
		return "(not set)"
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return raw
	}
	user, _, hasPass := strings.Cut(creds, ":")
	if !hasPass {
		return raw
	}
	return scheme + "://" + user + ":***@" + host
}
