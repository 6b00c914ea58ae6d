// Package storage selects a message sink from a database URL.
package storage

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
)

// Backend identifies a sink implementation.
type Backend string

// Supported backends.
const (
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
	BackendMemory   Backend = "memory"
)

// MemoryURL selects the in-memory sink.
const MemoryURL = "memory:"

// Parse resolves a database URL into a backend and its connection string.
//
//	postgres://... postgresql://...   PostgreSQL, URL passed through
//	sqlite://path  sqlite:path        SQLite file at path
//	memory:                           in-memory sink
//	anything else                     SQLite file at that path
func Parse(url string) (Backend, string, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return "", "", fmt.Errorf("%w: database url is empty (set database.url or DATABASE_URL)",
			domain.ErrInvalidInput)
	case url == MemoryURL:
		return BackendMemory, "", nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return BackendPostgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		return sqlitePath(strings.TrimPrefix(url, "sqlite://"))
	case strings.HasPrefix(url, "sqlite:"):
		return sqlitePath(strings.TrimPrefix(url, "sqlite:"))
	case strings.Contains(url, "://"):
		return "", "", fmt.Errorf("%w: unsupported database url scheme in %q", domain.ErrInvalidInput, url)
	default:
		return sqlitePath(url)
	}
}

func sqlitePath(path string) (Backend, string, error) {
	if path == "" {
		return "", "", fmt.Errorf("%w: sqlite url has no path", domain.ErrInvalidInput)
	}
	return BackendSQLite, path, nil
}

// Open connects to the sink named by url.
func Open(url string) (driven.MessageStore, error) {
	backend, conn, err := Parse(url)
	if err != nil {
		return nil, err
	}

	var store driven.MessageStore
	switch backend {
	case BackendPostgres:
		store, err = postgres.NewStore(conn)
	case BackendMemory:
		store = memory.NewMessageStore()
	default:
		store, err = sqlite.NewStore(conn)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
