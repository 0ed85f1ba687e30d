package watch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/pachinko/internal/cell"
	"github.com/roach88/pachinko/internal/engine"
)

// ResultVar is the variable ExtensionRule publishes matching file names to.
const ResultVar = "RESULT"

// ExtensionRule fires for events on files whose name ends with an extension
// and writes the file's base name to RESULT.
type ExtensionRule struct {
	channel string
	ext     string

	event, result int
}

// NewExtensionRule returns a rule reading events from channel.
func NewExtensionRule(channel, ext string) (*ExtensionRule, error) {
	if channel == "" {
		return nil, &cell.NullArgumentError{Arg: "channel"}
	}
	return &ExtensionRule{channel: channel, ext: ext}, nil
}

// Name returns "file-ext:<channel>:<ext>".
func (r *ExtensionRule) Name() string {
	return fmt.Sprintf("file-ext:%s:%s", r.channel, r.ext)
}

// Declare declares the channel as required and RESULT as optional.
func (r *ExtensionRule) Declare(d *engine.Declarer) error {
	r.event = d.Require(r.channel)
	r.result = d.Optional(ResultVar)
	return d.Err()
}

// EvaluateCondition reports whether the event path ends in the extension.
func (r *ExtensionRule) EvaluateCondition(ctx *cell.Context) (bool, error) {
	ev, err := r.read(ctx)
	if err != nil {
		return false, err
	}
	return strings.HasSuffix(filepath.Base(ev.Path), r.ext), nil
}

// PerformAction writes the event file name to RESULT.
func (r *ExtensionRule) PerformAction(ctx *cell.Context) error {
	ev, err := r.read(ctx)
	if err != nil {
		return err
	}
	return ctx.WriteAt(r.result, filepath.Base(ev.Path))
}

// Writes returns RESULT.
func (r *ExtensionRule) Writes() []string {
	return []string{ResultVar}
}

func (r *ExtensionRule) read(ctx *cell.Context) (Event, error) {
	v, err := ctx.ReadAt(r.event)
	if err != nil {
		return Event{}, err
	}
	ev, ok := v.(Event)
	if !ok {
		return Event{}, fmt.Errorf("%s: channel holds %T, want watch.Event", r.Name(), v)
	}
	return ev, nil
}
