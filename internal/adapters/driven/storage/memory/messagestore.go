package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
)

// Ensure MessageStore implements the interface.
var _ driven.MessageStore = (*MessageStore)(nil)

type probKey struct {
	messageID int64
	lang      string
}

// MessageStore is an in-memory implementation of driven.MessageStore.
// It enforces the same constraints as the SQL sinks: summary probabilities
// must reference an existing message and are unique per (message, lang).
// Each insert call is all-or-nothing.
type MessageStore struct {
	mu       sync.RWMutex
	messages []domain.Message
	groups   map[string][]int
	probs    []domain.SummaryProb
	probKeys map[probKey]struct{}
	nextProb int64
}

// NewMessageStore creates a new in-memory message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		groups:   make(map[string][]int),
		probKeys: make(map[probKey]struct{}),
	}
}

// InsertMessages appends messages, assigning sequential IDs starting at 1.
func (s *MessageStore) InsertMessages(ctx context.Context, batch []domain.NewMessage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for i, msg := range batch {
		if msg.Text == "" {
			return 0, fmt.Errorf("%w: message %d has empty text", domain.ErrInvalidInput, i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range batch {
		idx := len(s.messages)
		s.messages = append(s.messages, domain.Message{
			ID:      int64(idx + 1),
			GroupID: msg.GroupID,
			Text:    msg.Text,
		})
		s.groups[msg.GroupID] = append(s.groups[msg.GroupID], idx)
	}
	return len(batch), nil
}

// InsertSummaryProbs stores a batch of scores.
func (s *MessageStore) InsertSummaryProbs(ctx context.Context, batch []domain.SummaryProb) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[probKey]struct{}, len(batch))
	for _, p := range batch {
		if p.MessageID < 1 || p.MessageID > int64(len(s.messages)) {
			return 0, fmt.Errorf("%w: message %d", domain.ErrNotFound, p.MessageID)
		}
		key := probKey{messageID: p.MessageID, lang: p.Lang}
		if _, dup := s.probKeys[key]; dup {
			return 0, fmt.Errorf("%w: message %d already scored for %s",
				domain.ErrInvalidInput, p.MessageID, p.Lang)
		}
		if _, dup := seen[key]; dup {
			return 0, fmt.Errorf("%w: message %d scored twice for %s in one batch",
				domain.ErrInvalidInput, p.MessageID, p.Lang)
		}
		seen[key] = struct{}{}
	}

	for _, p := range batch {
		s.nextProb++
		p.ID = s.nextProb
		s.probs = append(s.probs, p)
		s.probKeys[probKey{messageID: p.MessageID, lang: p.Lang}] = struct{}{}
	}
	return len(batch), nil
}

// ListGroupIDs returns distinct group IDs in ascending order.
func (s *MessageStore) ListGroupIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadMessagesByGroup returns a group's messages in ID order.
func (s *MessageStore) LoadMessagesByGroup(_ context.Context, groupID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := s.groups[groupID]
	result := make([]domain.Message, 0, len(idxs))
	for _, idx := range idxs {
		result = append(result, s.messages[idx])
	}
	return result, nil
}

// DeleteSummaryProbs removes every score for lang.
func (s *MessageStore) DeleteSummaryProbs(_ context.Context, lang string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.probs)
	s.probs = slices.DeleteFunc(s.probs, func(p domain.SummaryProb) bool {
		return p.Lang == lang
	})
	for key := range s.probKeys {
		if key.lang == lang {
			delete(s.probKeys, key)
		}
	}
	return before - len(s.probs), nil
}

// Counts summarises the store contents.
func (s *MessageStore) Counts(_ context.Context) (*domain.StoreCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := &domain.StoreCounts{
		Messages:     len(s.messages),
		Groups:       len(s.groups),
		SummaryProbs: make(map[string]int),
	}
	for _, p := range s.probs {
		counts.SummaryProbs[p.Lang]++
	}
	return counts, nil
}

// SummaryProbs returns a copy of every stored score in insert order.
func (s *MessageStore) SummaryProbs() []domain.SummaryProb {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.probs)
}

// Close is a no-op.
func (s *MessageStore) Close() error {
	return nil
}
