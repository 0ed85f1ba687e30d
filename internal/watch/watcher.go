package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/fsnotify/fsnotify.v1"

	"github.com/roach88/pachinko/internal/engine"
)

type source struct {
	channel string
	dir     string
	fs      *fsnotify.Watcher
}

type delivery struct {
	channel string
	event   Event
}

// Watcher feeds file-system events into a rule system.
type Watcher struct {
	sys     *engine.System
	ops     Op
	logger  *slog.Logger
	sources []*source

	// keepChanged leaves the namespace changed set to another owner.
	keepChanged bool

	closeOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithOps restricts delivered events to those whose operation intersects
// mask. The default is Create|Write.
func WithOps(mask Op) Option {
	return func(w *Watcher) {
		w.ops = mask
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// KeepChanged stops the watcher from clearing the namespace changed set
// after each delivery. Use it when a journal reads and clears the set.
func KeepChanged() Option {
	return func(w *Watcher) {
		w.keepChanged = true
	}
}

// New creates a watcher over sys. Rules may be added to sys before or after
// sources are added.
func New(sys *engine.System, opts ...Option) *Watcher {
	w := &Watcher{
		sys:    sys,
		ops:    Create | Write,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AddSource watches dir and binds its events to channel. The channel is
// defined as an intrinsic variable of the system and the system is
// reassembled so existing rules that declare it are unified with it.
func (w *Watcher) AddSource(channel, dir string) error {
	for _, src := range w.sources {
		if src.channel == channel {
			return fmt.Errorf("watch: channel %q already has a source", channel)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}

	if err := w.define(channel); err != nil {
		fsw.Close()
		return err
	}

	w.sources = append(w.sources, &source{channel: channel, dir: dir, fs: fsw})
	w.logger.Info("event source added", "channel", channel, "dir", dir)
	return nil
}

// Channels returns the bound channel names in the order sources were added.
func (w *Watcher) Channels() []string {
	out := make([]string, len(w.sources))
	for i, src := range w.sources {
		out[i] = src.channel
	}
	return out
}

// Deliver writes ev to channel and drains the system. Unless KeepChanged
// is set the namespace changed set is cleared afterwards.
func (w *Watcher) Deliver(channel string, ev Event) error {
	ns := w.sys.Namespace()
	if err := ns.Write(channel, ev); err != nil {
		return err
	}
	err := w.sys.ExecuteActivations()
	if !w.keepChanged {
		ns.ClearChanged()
	}
	return err
}

// Run pumps events until ctx is cancelled or a drain fails. Events whose
// operation is outside the watcher's mask are dropped. File-system errors
// are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.sources) == 0 {
		return errors.New("watch: no event sources")
	}

	ctx, cancel := context.WithCancel(ctx)
	deliveries := make(chan delivery)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for _, src := range w.sources {
		wg.Add(1)
		go func(src *source) {
			defer wg.Done()
			w.pump(ctx, src, deliveries)
		}(src)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-deliveries:
			w.logger.Debug("file event",
				"channel", d.channel,
				"path", d.event.Path,
				"op", d.event.Op.String(),
			)
			if err := w.Deliver(d.channel, d.event); err != nil {
				return fmt.Errorf("watch: channel %s: %w", d.channel, err)
			}
		}
	}
}

// Close stops every file-system watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var errs []error
	w.closeOnce.Do(func() {
		for _, src := range w.sources {
			if err := src.fs.Close(); err != nil {
				errs = append(errs, fmt.Errorf("watch: close %s: %w", src.dir, err))
			}
		}
	})
	return errors.Join(errs...)
}

func (w *Watcher) pump(ctx context.Context, src *source, out chan<- delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src.fs.Events:
			if !ok {
				return
			}
			e := fromFSNotify(ev)
			if e.Op&w.ops == 0 {
				continue
			}
			select {
			case out <- delivery{channel: src.channel, event: e}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-src.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "channel", src.channel, "dir", src.dir, "error", err)
		}
	}
}

func (w *Watcher) define(channel string) error {
	if _, err := w.sys.Define(channel, nil); err != nil {
		return fmt.Errorf("watch: define channel %s: %w", channel, err)
	}
	return w.sys.Assemble()
}
