package driven

import "context"

// CorpusReader produces the messages to ingest, keyed by group ID.
// Empty strings are already filtered out and order within a group
// is the source order.
type CorpusReader interface {
	Read(ctx context.Context) (map[string][]string, error)
}
