package driven

import (
	"context"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
)

// MessageStore is the relational sink holding messages and their scores.
// It is insert-only from the core's point of view.
type MessageStore interface {
	// InsertMessages writes a batch atomically and returns the inserted count.
	// Either the whole batch is committed or none of it is.
	InsertMessages(ctx context.Context, batch []domain.NewMessage) (int, error)

	// InsertSummaryProbs writes a batch atomically and returns the inserted count.
	InsertSummaryProbs(ctx context.Context, batch []domain.SummaryProb) (int, error)

	// ListGroupIDs returns the distinct group identifiers of stored messages.
	ListGroupIDs(ctx context.Context) ([]string, error)

	// LoadMessagesByGroup returns a group's messages ordered by ID.
	LoadMessagesByGroup(ctx context.Context, groupID string) ([]domain.Message, error)

	// DeleteSummaryProbs removes all scores for lang and returns how many
	// were removed. Used by operators before re-scoring a language.
	DeleteSummaryProbs(ctx context.Context, lang string) (int, error)

	// Counts summarises the store contents.
	Counts(ctx context.Context) (*domain.StoreCounts, error)

	// Close releases the connection.
	Close() error
}
