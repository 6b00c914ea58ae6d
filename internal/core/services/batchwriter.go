package services

import (
	"context"
	"fmt"
	"iter"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
)

// InsertFunc writes one chunk to the sink and returns how many records
// were committed. It must not retain batch after returning; the writer
// reuses the backing array for the next chunk.
type InsertFunc[T any] func(ctx context.Context, batch []T) (int, error)

// BatchConfig configures a BatchWriter.
type BatchConfig struct {
	// Size is the number of records per chunk. Defaults to domain.DefaultBatchSize.
	Size int

	// Table, Lang and GroupID describe the write in SinkWriteError.
	Table   string
	Lang    string
	GroupID string

	// Progress is called after every committed chunk. Optional.
	Progress driven.ProgressFunc
}

// BatchWriter streams records into a sink in fixed-size chunks.
//
// Records are buffered in a single array of Size elements that is flushed
// when full and reused, so memory stays bounded however many records pass
// through. Chunk boundaries depend only on Size and input order. The first
// failed chunk stops the writer: nothing is retried and every later call
// returns the same *domain.SinkWriteError.
type BatchWriter[T any] struct {
	cfg       BatchConfig
	insert    InsertFunc[T]
	buf       []T
	chunks    int
	committed int
	err       error
}

// NewBatchWriter creates a writer that sends chunks to insert.
func NewBatchWriter[T any](cfg BatchConfig, insert InsertFunc[T]) *BatchWriter[T] {
	if cfg.Size <= 0 {
		cfg.Size = domain.DefaultBatchSize
	}
	return &BatchWriter[T]{
		cfg:    cfg,
		insert: insert,
		buf:    make([]T, 0, cfg.Size),
	}
}

// Add buffers rec and writes a chunk once the buffer is full.
func (w *BatchWriter[T]) Add(ctx context.Context, rec T) error {
	if w.err != nil {
		return w.err
	}
	w.buf = append(w.buf, rec)
	if len(w.buf) >= w.cfg.Size {
		return w.flush(ctx)
	}
	return nil
}

// Flush writes any buffered records as a final, possibly short, chunk.
// Flushing an empty buffer is a no-op.
func (w *BatchWriter[T]) Flush(ctx context.Context) error {
	if w.err != nil {
		return w.err
	}
	return w.flush(ctx)
}

// WriteAll adds every record of seq, flushes, and returns the total
// number of records committed by this writer.
func (w *BatchWriter[T]) WriteAll(ctx context.Context, seq iter.Seq[T]) (int, error) {
	for rec := range seq {
		if err := w.Add(ctx, rec); err != nil {
			return w.committed, err
		}
	}
	if err := w.Flush(ctx); err != nil {
		return w.committed, err
	}
	return w.committed, nil
}

// Committed returns the number of records committed so far.
func (w *BatchWriter[T]) Committed() int {
	return w.committed
}

// Chunks returns the number of chunks committed so far.
func (w *BatchWriter[T]) Chunks() int {
	return w.chunks
}

// Err returns the error that stopped the writer, if any.
func (w *BatchWriter[T]) Err() error {
	return w.err
}

func (w *BatchWriter[T]) flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}

	n, err := w.insert(ctx, w.buf)
	if err == nil && n != len(w.buf) {
		err = fmt.Errorf("short write: %d of %d records", n, len(w.buf))
	}
	if err != nil {
		w.err = &domain.SinkWriteError{
			Table:     w.cfg.Table,
			Lang:      w.cfg.Lang,
			GroupID:   w.cfg.GroupID,
			Chunk:     w.chunks,
			Committed: w.committed,
			Err:       err,
		}
		return w.err
	}

	w.chunks++
	w.committed += n
	clear(w.buf)
	w.buf = w.buf[:0]

	if w.cfg.Progress != nil {
		w.cfg.Progress(w.committed)
	}
	return nil
}
