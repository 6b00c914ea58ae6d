package driving

import (
	"context"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
)

// Pipeline ingests messages and scores them for every configured language.
type Pipeline interface {
	// Ingest reads the corpus and writes every message to the sink.
	Ingest(ctx context.Context) (*domain.RunReport, error)

	// Score runs one scoring pass per configured language over the
	// messages already in the sink.
	Score(ctx context.Context) (*domain.RunReport, error)

	// Run performs Ingest followed by Score.
	Run(ctx context.Context) (*domain.RunReport, error)

	// Status returns a snapshot of the current run.
	Status() PipelineStatus
}

// PipelineStatus represents the current state of a pipeline run.
type PipelineStatus struct {
	// RunID identifies the run, empty before the first run.
	RunID string

	// State is the current state machine step.
	State domain.PipelineState

	// Lang is the language pass in progress.
	Lang string

	// GroupID is the group in progress.
	GroupID string

	// GroupsDone counts groups finished in the current language pass.
	GroupsDone int

	// GroupsTotal is the number of groups in the current language pass.
	GroupsTotal int

	// MessagesWritten is the count of messages committed so far.
	MessagesWritten int

	// ScoresWritten is the count of summary probabilities committed so far.
	ScoresWritten int
}
