package cli

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/pachinko/internal/engine"
	"github.com/roach88/pachinko/internal/store"
)

// journalFlushInterval is how often a long-running command writes buffered
// drains to the journal.
const journalFlushInterval = time.Second

// drainJournal is an opened SQLite journal waiting for a system to record.
// A nil *drainJournal journals nothing.
type drainJournal struct {
	path   string
	st     *store.Store
	maxSeq int64
	logger *slog.Logger
}

// openJournal opens the journal at path and reads where its evaluation
// numbering stopped. An empty path returns nil.
func openJournal(ctx context.Context, path string, logger *slog.Logger) (*drainJournal, error) {
	if path == "" {
		return nil, nil
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	maxSeq, err := st.MaxSeq(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	return &drainJournal{path: path, st: st, maxSeq: maxSeq, logger: logger}, nil
}

// enabled reports whether drains are journaled. A journal owns the
// namespace changed set while it is enabled.
func (j *drainJournal) enabled() bool {
	return j != nil
}

// engineOptions continues the journal's evaluation numbering so seq keeps
// increasing across runs.
func (j *drainJournal) engineOptions() []engine.Option {
	if j == nil {
		return nil
	}
	return []engine.Option{engine.WithClock(engine.NewClockAt(j.maxSeq))}
}

// close releases the store without attaching. Used when setup fails
// before attach.
func (j *drainJournal) close() {
	if j != nil {
		j.st.Close()
	}
}

// attach records every drain of sys and flushes in the background. The
// returned stop function flushes one last time and closes the database.
func (j *drainJournal) attach(ctx context.Context, sys *engine.System) (func() error, error) {
	if j == nil {
		return func() error { return nil }, nil
	}

	jr, err := store.NewJournal(ctx, j.st,
		store.WithNamespace(sys.Namespace()),
		store.WithJournalLogger(j.logger),
	)
	if err != nil {
		j.st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	sys.Observe(jr)

	flushCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(journalFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-flushCtx.Done():
				return
			case <-ticker.C:
				if err := jr.Flush(flushCtx); err != nil && flushCtx.Err() == nil {
					j.logger.Warn("journal flush failed", "pending", jr.Pending(), "error", err)
				}
			}
		}
	}()

	j.logger.Info("journal attached", "path", j.path, "next_seq", j.maxSeq+1)

	var once sync.Once
	var stopErr error
	stop := func() error {
		once.Do(func() {
			cancel()
			wg.Wait()
			stopErr = errors.Join(jr.Flush(context.Background()), j.st.Close())
		})
		return stopErr
	}
	return stop, nil
}
