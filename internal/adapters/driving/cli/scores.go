package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Manage stored summary probabilities",
}

var clearLang string

var scoresClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all summary probabilities for a language",
	Long: `Deletes every summary_probs row for --lang so the language can be
scored again. Messages are kept.`,
	Args: cobra.NoArgs,
	RunE: runScoresClear,
}

func init() {
	scoresClearCmd.Flags().StringVar(&clearLang, "lang", "", "language to clear (required)")
	_ = scoresClearCmd.MarkFlagRequired("lang")
	scoresCmd.AddCommand(scoresClearCmd)
	rootCmd.AddCommand(scoresCmd)
}

func runScoresClear(cmd *cobra.Command, _ []string) error {
	lang := strings.TrimSpace(clearLang)
	if lang == "" {
		return errors.New("--lang must not be empty")
	}
	return withApp(cmd, func(a *app) error {
		n, err := a.store.DeleteSummaryProbs(cmd.Context(), lang)
		if err != nil {
			return err
		}
		cmd.Printf("Deleted %d scores for %s\n", n, lang)
		return nil
	})
}
