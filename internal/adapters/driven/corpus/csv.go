// Package corpus reads message corpora from disk.
package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
	"github.com/custodia-labs/summaryprobs/internal/logger"
)

// DefaultColumn is the header of the message text column.
const DefaultColumn = "Message"

// Ensure CSVReader implements the interface.
var _ driven.CorpusReader = (*CSVReader)(nil)

// CSVReader reads every *.csv file in a directory. Each file is one group,
// keyed by its base name, and contributes the non-empty values of one column.
type CSVReader struct {
	dir    string
	column string
}

// NewCSVReader creates a reader for dir. An empty column means DefaultColumn.
func NewCSVReader(dir, column string) *CSVReader {
	if column == "" {
		column = DefaultColumn
	}
	return &CSVReader{dir: dir, column: column}
}

// Read returns the messages of every file. Any unreadable file fails the
// whole read, so ingestion never starts from a partial corpus.
func (r *CSVReader) Read(ctx context.Context) (map[string][]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrIngestion, r.dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		logger.Warn("No CSV files found in %s", r.dir)
	}

	corpus := make(map[string][]string, len(files))
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		messages, err := r.readFile(filepath.Join(r.dir, name))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrIngestion, name, err)
		}
		logger.Debug("Read %d messages from %s", len(messages), name)
		corpus[name] = messages
	}

	return corpus, nil
}

func (r *CSVReader) readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, name := range header {
		// Excel writes a BOM before the first header.
		if strings.TrimPrefix(name, "\ufeff") == r.column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", r.column)
	}

	var messages []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if msg := record[idx]; msg != "" {
			messages = append(messages, msg)
		}
	}

	return messages, nil
}
