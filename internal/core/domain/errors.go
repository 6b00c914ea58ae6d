package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIngestion indicates the corpus could not be read.
	// The run aborts before anything is written.
	ErrIngestion = errors.New("ingestion failed")

	// ErrEmbeddingUnavailable indicates the embedding model for a language
	// is missing, corrupt or unreachable. Fatal for that language only.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Scoring Errors.

	// ErrEmptyGroup indicates a group had no usable vectors to score.
	ErrEmptyGroup = errors.New("empty group")

	// ErrDimensionMismatch indicates vectors of different lengths were combined.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmptyVector indicates a vector of length zero.
	ErrEmptyVector = errors.New("empty vector")

	// ErrUndefinedScore indicates a similarity could not be computed,
	// typically because one of the vectors is all zeros.
	ErrUndefinedScore = errors.New("undefined score")

	// Sink Errors.

	// ErrSinkWrite indicates a batch insert into the relational sink failed.
	// Always fatal for the whole run.
	ErrSinkWrite = errors.New("sink write failed")
)

// SinkWriteError describes a failed batch insert with enough context
// to resume a run by hand.
type SinkWriteError struct {
	// Table is the sink table being written.
	Table string

	// Lang is the language pass, empty for message ingestion.
	Lang string

	// GroupID is the group being written, empty for message ingestion.
	GroupID string

	// Chunk is the zero-based index of the chunk that failed.
	Chunk int

	// Committed is the number of records committed before the failure.
	Committed int

	// Err is the underlying sink error.
	Err error
}

func (e *SinkWriteError) Error() string {
	msg := fmt.Sprintf("%s: table %s chunk %d", ErrSinkWrite, e.Table, e.Chunk)
	if e.Lang != "" {
		msg += " lang " + e.Lang
	}
	if e.GroupID != "" {
		msg += " group " + e.GroupID
	}
	return fmt.Sprintf("%s (%d committed): %v", msg, e.Committed, e.Err)
}

// Unwrap exposes both ErrSinkWrite and the underlying cause to errors.Is.
func (e *SinkWriteError) Unwrap() []error {
	return []error{ErrSinkWrite, e.Err}
}
