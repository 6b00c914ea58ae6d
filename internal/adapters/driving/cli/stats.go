package cli

import (
	"slices"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show message and score counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) error {
			counts, err := a.store.Counts(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Messages: %d\n", counts.Messages)
			cmd.Printf("Groups:   %d\n", counts.Groups)
			if len(counts.SummaryProbs) == 0 {
				cmd.Println("Scores:   none")
				return nil
			}
			cmd.Println("Scores:")
			langs := make([]string, 0, len(counts.SummaryProbs))
			for lang := range counts.SummaryProbs {
				langs = append(langs, lang)
			}
			slices.Sort(langs)
			for _, lang := range langs {
				cmd.Printf("  %-6s %d\n", lang, counts.SummaryProbs[lang])
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
