package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models [lang...]",
	Short: "Download and load embedding models",
	Long: `Acquires the embedding model for each language so later runs start
immediately. Defaults to config.langs. Models already on disk are not
downloaded again.`,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app) error {
		if a.embedders == nil {
			return errors.New("embedding provider not configured")
		}
		langs := args
		if len(langs) == 0 {
			langs = a.settings.Langs
		}
		if len(langs) == 0 {
			return errors.New("no languages given and config.langs is empty")
		}

		var failed []error
		for _, lang := range langs {
			embedder, err := a.embedders.Acquire(cmd.Context(), lang)
			if a.progress != nil {
				a.progress.Done()
			}
			if err != nil {
				cmd.Printf("%s: %v\n", lang, err)
				failed = append(failed, err)
				continue
			}
			cmd.Printf("%s: %s (%d dimensions)\n", lang, embedder.ModelName(), embedder.Dimensions())
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d models unavailable: %w", len(failed), len(langs), errors.Join(failed...))
		}
		return nil
	})
}
