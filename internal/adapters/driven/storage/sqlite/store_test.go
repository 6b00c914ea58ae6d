package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "messages.db"))
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	return store
}

func seedMessages(t *testing.T, store *Store) {
	t.Helper()
	n, err := store.InsertMessages(context.Background(), []domain.NewMessage{
		{GroupID: "b.csv", Text: "first"},
		{GroupID: "a.csv", Text: "second"},
		{GroupID: "b.csv", Text: "third"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

// ==================== Store Creation Tests ====================

func TestNewStore_CreatesFileAndDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "messages.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, path, store.Path())
	assert.FileExists(t, path)
}

func TestNewStore_EmptyPath(t *testing.T) {
	_, err := NewStore("")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewStore_InMemory(t *testing.T) {
	store, err := NewStore(MemoryPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.InsertMessages(context.Background(), []domain.NewMessage{{GroupID: "g", Text: "x"}})
	require.NoError(t, err)

	counts, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Messages)
}

func TestNewStore_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	seedMessages(t, store)
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	var version int
	require.NoError(t, reopened.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	counts, err := reopened.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Messages)
}

// ==================== Message Tests ====================

func TestStore_InsertMessages_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	seedMessages(t, store)
	ctx := context.Background()

	groups, err := store.ListGroupIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv", "b.csv"}, groups)

	msgs, err := store.LoadMessagesByGroup(ctx, "b.csv")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.Message{ID: 1, GroupID: "b.csv", Text: "first"}, msgs[0])
	assert.Equal(t, domain.Message{ID: 3, GroupID: "b.csv", Text: "third"}, msgs[1])
}

func TestStore_InsertMessages_Empty(t *testing.T) {
	store := setupTestStore(t)

	n, err := store.InsertMessages(context.Background(), nil)

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_LoadMessagesByGroup_Unknown(t *testing.T) {
	store := setupTestStore(t)

	msgs, err := store.LoadMessagesByGroup(context.Background(), "missing.csv")

	require.NoError(t, err)
	assert.Empty(t, msgs)
}

// ==================== Summary Prob Tests ====================

func TestStore_InsertSummaryProbs_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	seedMessages(t, store)
	ctx := context.Background()

	n, err := store.InsertSummaryProbs(ctx, []domain.SummaryProb{
		{MessageID: 3, Lang: "en", Prob: 0.25},
		{MessageID: 1, Lang: "en", Prob: 0.75},
		{MessageID: 1, Lang: "de", Prob: -0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	probs, err := store.SummaryProbs(ctx, "en")
	require.NoError(t, err)
	require.Len(t, probs, 2)
	assert.Equal(t, int64(1), probs[0].MessageID)
	assert.InDelta(t, 0.75, probs[0].Prob, 1e-6)
	assert.Equal(t, int64(3), probs[1].MessageID)
	assert.NotZero(t, probs[1].ID)
}

func TestStore_InsertSummaryProbs_UniquePerLang(t *testing.T) {
	store := setupTestStore(t)
	seedMessages(t, store)
	ctx := context.Background()

	_, err := store.InsertSummaryProbs(ctx, []domain.SummaryProb{{MessageID: 1, Lang: "en", Prob: 0.1}})
	require.NoError(t, err)

	_, err = store.InsertSummaryProbs(ctx, []domain.SummaryProb{
		{MessageID: 2, Lang: "en", Prob: 0.2},
		{MessageID: 1, Lang: "en", Prob: 0.3},
	})
	require.Error(t, err)

	// The failed batch is rolled back as a whole.
	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.SummaryProbs["en"])
}

func TestStore_InsertSummaryProbs_ForeignKey(t *testing.T) {
	store := setupTestStore(t)
	seedMessages(t, store)

	_, err := store.InsertSummaryProbs(context.Background(), []domain.SummaryProb{
		{MessageID: 42, Lang: "en", Prob: 0.1},
	})

	require.Error(t, err)
}

func TestStore_ForeignKeysOnEveryConnection(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Hold several connections at once so the pool has to open new ones.
	var conns []*sql.Conn
	for range 4 {
		conn, err := store.db.Conn(ctx)
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	for i, conn := range conns {
		var enabled int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled))
		assert.Equal(t, 1, enabled, "connection %d", i)
		require.NoError(t, conn.Close())
	}
}

func TestStore_Memory_ForeignKey(t *testing.T) {
	store, err := NewStore(MemoryPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.InsertSummaryProbs(context.Background(), []domain.SummaryProb{
		{MessageID: 7, Lang: "en", Prob: 0.5},
	})

	require.Error(t, err)
}

func TestStore_DeleteSummaryProbs(t *testing.T) {
	store := setupTestStore(t)
	seedMessages(t, store)
	ctx := context.Background()
	_, err := store.InsertSummaryProbs(ctx, []domain.SummaryProb{
		{MessageID: 1, Lang: "en"},
		{MessageID: 2, Lang: "en"},
		{MessageID: 2, Lang: "de"},
	})
	require.NoError(t, err)

	n, err := store.DeleteSummaryProbs(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"de": 1}, counts.SummaryProbs)
}

func TestStore_Counts(t *testing.T) {
	store := setupTestStore(t)
	seedMessages(t, store)

	counts, err := store.Counts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, counts.Messages)
	assert.Equal(t, 2, counts.Groups)
	assert.Empty(t, counts.SummaryProbs)
}

func TestStore_CancelledContext(t *testing.T) {
	store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.InsertMessages(ctx, []domain.NewMessage{{GroupID: "g", Text: "x"}})

	require.Error(t, err)
}
