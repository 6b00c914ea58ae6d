package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
)

// testDSNEnv names a disposable database for integration tests.
const testDSNEnv = "SUMMARYPROBS_TEST_POSTGRES_URL"

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}

	store, err := NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, store.db.Exec("TRUNCATE summary_probs, messages RESTART IDENTITY CASCADE").Error)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func TestTableNames(t *testing.T) {
	var _ schema.Tabler = messageRow{}
	var _ schema.Tabler = summaryProbRow{}

	assert.Equal(t, "messages", messageRow{}.TableName())
	assert.Equal(t, "summary_probs", summaryProbRow{}.TableName())
}

func TestNewStore_BadDSN(t *testing.T) {
	_, err := NewStore("postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	n, err := store.InsertMessages(ctx, []domain.NewMessage{
		{GroupID: "b.csv", Text: "first"},
		{GroupID: "a.csv", Text: "second"},
		{GroupID: "b.csv", Text: "third"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	groups, err := store.ListGroupIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv", "b.csv"}, groups)

	msgs, err := store.LoadMessagesByGroup(ctx, "b.csv")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Less(t, msgs[0].ID, msgs[1].ID)

	_, err = store.InsertSummaryProbs(ctx, []domain.SummaryProb{
		{MessageID: msgs[0].ID, Lang: "en", Prob: 0.5},
		{MessageID: msgs[1].ID, Lang: "en", Prob: 0.4},
	})
	require.NoError(t, err)

	_, err = store.InsertSummaryProbs(ctx, []domain.SummaryProb{{MessageID: msgs[0].ID, Lang: "en", Prob: 0.1}})
	require.Error(t, err, "unique (message_id, lang)")

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Messages)
	assert.Equal(t, 2, counts.Groups)
	assert.Equal(t, map[string]int{"en": 2}, counts.SummaryProbs)

	deleted, err := store.DeleteSummaryProbs(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}
