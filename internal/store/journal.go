package store

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"textexpander/internal/expander"
)

// Journal batches coordinator activity into the store off the worker
// goroutine.
type Journal struct {
	store  *Store
	runID  string
	logger *slog.Logger

	// BatchSize flushes once this many entries are buffered.
	BatchSize int
	// FlushInterval flushes a partial batch after this long.
	FlushInterval time.Duration

	written atomic.Uint64
	failed  atomic.Uint64
}

// NewJournal creates a journal writer tagging entries with runID.
func NewJournal(s *Store, runID string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		store:         s,
		runID:         runID,
		logger:        logger,
		BatchSize:     32,
		FlushInterval: time.Second,
	}
}

// EntryFor converts a coordinator activity record.
func EntryFor(runID string, a expander.Activity) Entry {
	return Entry{
		RunID:      runID,
		Kind:       a.Kind.String(),
		ShortCode:  a.ShortCode,
		Completion: a.Completion,
		Context:    a.Context.String(),
		Typed:      a.Typed,
		Deleted:    a.Deleted,
		Time:       a.Time,
	}
}

// Consume writes activity until acts closes or ctx is done, flushing what
// is buffered before returning.
func (j *Journal) Consume(ctx context.Context, acts <-chan expander.Activity) error {
	ticker := time.NewTicker(j.FlushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, j.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := j.store.Insert(ctx, batch...); err != nil {
			j.failed.Add(uint64(len(batch)))
			j.logger.Warn("journal write failed", "entries", len(batch), "error", err)
		} else {
			j.written.Add(uint64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// Drain what the coordinator already published.
			for {
				select {
				case a, ok := <-acts:
					if !ok {
						flush(context.Background())
						return ctx.Err()
					}
					batch = append(batch, EntryFor(j.runID, a))
				default:
					flush(context.Background())
					return ctx.Err()
				}
			}
		case a, ok := <-acts:
			if !ok {
				flush(ctx)
				return nil
			}
			batch = append(batch, EntryFor(j.runID, a))
			if len(batch) >= j.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// Written returns the number of entries committed.
func (j *Journal) Written() uint64 { return j.written.Load() }

// Failed returns the number of entries lost to write errors.
func (j *Journal) Failed() uint64 { return j.failed.Load() }
