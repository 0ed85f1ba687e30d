package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/pachinko/internal/cell"
	"github.com/roach88/pachinko/internal/engine"
	"github.com/roach88/pachinko/internal/trace"
)

// Journal is an engine.Observer that buffers drains in memory and writes
// them to a Store on Flush.
//
// Observer callbacks never block on the database. Flush may run on another
// goroutine than the one draining the engine.
type Journal struct {
	store     *Store
	namespace *cell.Context
	logger    *slog.Logger

	mu      sync.Mutex
	nextOrd int64
	current *Drain
	pending []Drain
}

var _ engine.Observer = (*Journal)(nil)

// JournalOption configures a Journal.
type JournalOption func(*Journal)

// WithNamespace makes the journal snapshot the namespace's changed set at
// the end of every drain and then clear it. The journal becomes the owner
// of that changed set.
func WithNamespace(ns *cell.Context) JournalOption {
	return func(j *Journal) {
		j.namespace = ns
	}
}

// WithJournalLogger sets the structured logger. Defaults to slog.Default().
func WithJournalLogger(l *slog.Logger) JournalOption {
	return func(j *Journal) {
		j.logger = l
	}
}

// NewJournal creates a journal that continues the drain order already in
// store.
func NewJournal(ctx context.Context, store *Store, opts ...JournalOption) (*Journal, error) {
	ord, err := store.MaxOrd(ctx)
	if err != nil {
		return nil, err
	}
	j := &Journal{
		store:   store,
		logger:  slog.Default(),
		nextOrd: ord + 1,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// DrainStarted opens a drain record with the next ord.
func (j *Journal) DrainStarted(drainID string, queued int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.current = &Drain{ID: drainID, Ord: j.nextOrd, Queued: queued}
	j.nextOrd++
}

// Evaluated appends an evaluation to the open drain.
func (j *Journal) Evaluated(ev engine.Evaluation) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.current == nil || j.current.ID != ev.DrainID {
		return
	}
	e := Evaluation{
		DrainID:   ev.DrainID,
		Seq:       ev.Seq,
		Rule:      ev.Rule,
		Condition: ev.Condition,
		Acted:     ev.Acted,
	}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	}
	j.current.Evaluations = append(j.current.Evaluations, e)
}

// DrainFinished closes the open drain and queues it for Flush.
func (j *Journal) DrainFinished(drainID string, evaluated int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.current == nil || j.current.ID != drainID {
		return
	}
	d := j.current
	j.current = nil

	d.Evaluated = evaluated
	if err != nil {
		d.Error = err.Error()
	}
	d.Changes = j.snapshot(drainID)
	j.pending = append(j.pending, *d)
}

// Pending returns the number of finished drains not yet flushed.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// Flush writes buffered drains in order. On error the failed drain and
// everything after it stay buffered.
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	batch := j.pending
	j.pending = nil
	j.mu.Unlock()

	for i, d := range batch {
		if err := j.store.WriteDrain(ctx, d); err != nil {
			j.mu.Lock()
			j.pending = append(batch[i:], j.pending...)
			j.mu.Unlock()
			return err
		}
	}

	if len(batch) > 0 {
		j.logger.Debug("journal flushed", "drains", len(batch))
	}
	return nil
}

func (j *Journal) snapshot(drainID string) string {
	if j.namespace == nil {
		return "{}"
	}
	defer j.namespace.ClearChanged()

	b, err := trace.Changes(j.namespace.Arena(), j.namespace.Changed())
	if err != nil {
		j.logger.Warn("journal could not encode changes", "drain_id", drainID, "error", err)
		return "{}"
	}
	return string(b)
}
