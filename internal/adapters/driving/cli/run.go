package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driving"
	"github.com/custodia-labs/summaryprobs/internal/logger"
)

// statusInterval is how often progress is polled during a run.
const statusInterval = 500 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest the corpus and score every configured language",
	Long: `Reads every CSV file in corpus.dir into the messages table, then for each
language in config.langs embeds each conversation and writes one summary
probability per message to the summary_probs table.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd, "run", driving.Pipeline.Run)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the CSV corpus into the messages table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd, "ingest", driving.Pipeline.Ingest)
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score stored messages for every configured language",
	Long: `Scores the messages already in the database. Each language writes one row
per message; scoring a language twice fails on the unique (message_id, lang)
constraint, so clear old scores first with "scores clear --lang".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd, "score", driving.Pipeline.Score)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(scoreCmd)
}

type pipelineOp func(driving.Pipeline, context.Context) (*domain.RunReport, error)

func runPipeline(cmd *cobra.Command, name string, op pipelineOp) error {
	return withApp(cmd, func(a *app) error {
		if a.pipeline == nil {
			return errors.New("pipeline not configured")
		}
		report, err := runWithProgress(cmd.Context(), a, op)
		if report != nil {
			printReport(cmd, report)
		}
		if err != nil {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		return nil
	})
}

// runWithProgress runs op while displaying progress updates.
func runWithProgress(ctx context.Context, a *app, op pipelineOp) (*domain.RunReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	type result struct {
		report *domain.RunReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := op(a.pipeline, ctx)
		done <- result{report, err}
	}()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case res := <-done:
			if a.progress != nil {
				a.progress.Status(a.pipeline.Status())
				a.progress.Done()
			}
			return res.report, res.err
		case <-ticker.C:
			if a.progress != nil {
				a.progress.Status(a.pipeline.Status())
			}
		}
	}
}

func printReport(cmd *cobra.Command, r *domain.RunReport) {
	cmd.Printf("Run %s: %s\n", r.RunID, r.State)
	if r.MessagesWritten > 0 {
		cmd.Printf("  Messages written: %d\n", r.MessagesWritten)
	}
	if len(r.LangsScored) > 0 || r.ScoresWritten > 0 {
		cmd.Printf("  Scores written:   %d (%v)\n", r.ScoresWritten, r.LangsScored)
	}
	if r.UndefinedScores > 0 {
		cmd.Printf("  Undefined scores: %d\n", r.UndefinedScores)
	}
	if r.FailedEmbeddings > 0 {
		cmd.Printf("  Failed embeddings: %d\n", r.FailedEmbeddings)
	}
	for _, s := range r.SkippedLangs {
		cmd.Printf("  Skipped language %s: %v\n", s.Lang, s.Err)
	}
	for _, s := range r.SkippedGroups {
		cmd.Printf("  Skipped group %s (%s): %v\n", s.GroupID, s.Lang, s.Err)
	}
	if n := r.Warnings(); n > 0 {
		logger.Debug("Run %s finished with %d warnings", r.RunID, n)
	}
}
