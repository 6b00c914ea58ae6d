package domain

// PipelineState is a step of the pipeline state machine.
type PipelineState string

// Pipeline states, in the order a healthy run visits them.
const (
	StateIdle            PipelineState = "idle"
	StateIngesting       PipelineState = "ingesting"
	StateLoadingMessages PipelineState = "loading_messages"
	StateEmbedding       PipelineState = "embedding"
	StateScoring         PipelineState = "scoring"
	StateWriting         PipelineState = "writing"
	StateDone            PipelineState = "done"
	StateFailed          PipelineState = "failed"
)

// IsTerminal returns true for Done and Failed.
func (s PipelineState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// String returns the string representation.
func (s PipelineState) String() string {
	return string(s)
}

// LangSkip records a language pass that was abandoned.
type LangSkip struct {
	Lang string
	Err  error
}

// GroupSkip records a group that could not be scored in a language pass.
type GroupSkip struct {
	Lang    string
	GroupID string
	Err     error
}

// RunReport summarises a pipeline run.
type RunReport struct {
	// RunID uniquely identifies the run in logs.
	RunID string

	// State is the terminal state of the run.
	State PipelineState

	// MessagesWritten counts messages committed by ingestion.
	MessagesWritten int

	// ScoresWritten counts summary probabilities committed across all languages.
	ScoresWritten int

	// LangsScored lists languages whose pass completed.
	LangsScored []string

	// SkippedLangs lists languages abandoned because the embedding source failed.
	SkippedLangs []LangSkip

	// SkippedGroups lists groups skipped inside otherwise healthy passes.
	SkippedGroups []GroupSkip

	// UndefinedScores counts messages left unscored because their vector was zero.
	UndefinedScores int

	// FailedEmbeddings counts messages whose embedding call failed.
	FailedEmbeddings int
}

// Warnings returns the number of contained, non-fatal problems.
func (r *RunReport) Warnings() int {
	return len(r.SkippedLangs) + len(r.SkippedGroups)
}
