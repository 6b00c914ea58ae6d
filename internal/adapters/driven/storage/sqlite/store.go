package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Ensure Store implements the interface.
var _ driven.MessageStore = (*Store)(nil)

// fkPragma enables summary_probs.message_id enforcement.
const fkPragma = "_pragma=foreign_keys(1)"

// Store is a SQLite-backed message sink.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the database at dbPath and applies migrations.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: empty database path", domain.ErrInvalidInput)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dsn := ":memory:?" + fkPragma
	if dbPath != MemoryPath {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
		// WAL lets stats run while a pipeline is writing.
		dsn = dbPath + "?" + fkPragma + "&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dbPath == MemoryPath {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(content); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertMessages writes a batch of messages in one transaction.
func (s *Store) InsertMessages(ctx context.Context, batch []domain.NewMessage) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	return s.insertBatch(ctx, "INSERT INTO messages (filename, message) VALUES (?, ?)", len(batch),
		func(stmt *sql.Stmt, i int) error {
			_, err := stmt.ExecContext(ctx, batch[i].GroupID, batch[i].Text)
			return err
		})
}

// InsertSummaryProbs writes a batch of scores in one transaction.
func (s *Store) InsertSummaryProbs(ctx context.Context, batch []domain.SummaryProb) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	return s.insertBatch(ctx, "INSERT INTO summary_probs (message_id, lang, prob) VALUES (?, ?, ?)", len(batch),
		func(stmt *sql.Stmt, i int) error {
			p := batch[i]
			_, err := stmt.ExecContext(ctx, p.MessageID, p.Lang, float64(p.Prob))
			return err
		})
}

// insertBatch executes one prepared statement n times inside a transaction.
func (s *Store) insertBatch(ctx context.Context, query string, n int, exec func(*sql.Stmt, int) error) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return 0, fmt.Errorf("inserting row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return n, nil
}

// ListGroupIDs returns distinct file names in ascending order.
func (s *Store) ListGroupIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT filename FROM messages ORDER BY filename")
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadMessagesByGroup returns a group's messages in id order.
func (s *Store) LoadMessagesByGroup(ctx context.Context, groupID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, filename, message FROM messages WHERE filename = ? ORDER BY id", groupID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.GroupID, &m.Text); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteSummaryProbs removes every score for lang.
func (s *Store) DeleteSummaryProbs(ctx context.Context, lang string) (int, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM summary_probs WHERE lang = ?", lang)
	if err != nil {
		return 0, fmt.Errorf("deleting scores: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Counts summarises the sink contents.
func (s *Store) Counts(ctx context.Context) (*domain.StoreCounts, error) {
	counts := &domain.StoreCounts{SummaryProbs: make(map[string]int)}

	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COUNT(DISTINCT filename) FROM messages")
	if err := row.Scan(&counts.Messages, &counts.Groups); err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT lang, COUNT(*) FROM summary_probs GROUP BY lang")
	if err != nil {
		return nil, fmt.Errorf("counting scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, fmt.Errorf("scanning counts: %w", err)
		}
		counts.SummaryProbs[lang] = n
	}
	return counts, rows.Err()
}

// SummaryProbs returns every stored score for lang in message order.
func (s *Store) SummaryProbs(ctx context.Context, lang string) ([]domain.SummaryProb, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, message_id, lang, prob FROM summary_probs WHERE lang = ? ORDER BY message_id", lang)
	if err != nil {
		return nil, fmt.Errorf("querying scores: %w", err)
	}
	defer rows.Close()

	var probs []domain.SummaryProb
	for rows.Next() {
		var p domain.SummaryProb
		var prob float64
		if err := rows.Scan(&p.ID, &p.MessageID, &p.Lang, &prob); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		p.Prob = float32(prob)
		probs = append(probs, p)
	}
	return probs, rows.Err()
}
