package testutil

import (
	"github.com/roach88/pachinko/internal/cell"
	"github.com/roach88/pachinko/internal/engine"
)

// CountingRule is a rule whose condition always holds and whose action
// counts how often it ran. When Output is set the running count is written
// there as an int64 after every firing.
type CountingRule struct {
	Label    string
	Reads    []string
	Keys     []string
	Optional []string
	Output   string

	// Filters restricts which writes count for a read or key variable.
	Filters map[string]cell.Value

	Evals int
	Fired int
}

var (
	_ engine.Rule   = (*CountingRule)(nil)
	_ engine.Namer  = (*CountingRule)(nil)
	_ engine.Writer = (*CountingRule)(nil)
)

func (r *CountingRule) Name() string { return r.Label }

func (r *CountingRule) Declare(d *engine.Declarer) error {
	for _, name := range r.Reads {
		d.Require(name, r.filter(name)...)
	}
	for _, name := range r.Keys {
		d.Key(name, r.filter(name)...)
	}
	for _, name := range r.Optional {
		d.Optional(name)
	}
	if r.Output != "" && !d.Has(r.Output) {
		d.Optional(r.Output)
	}
	return d.Err()
}

func (r *CountingRule) EvaluateCondition(*cell.Context) (bool, error) {
	r.Evals++
	return true, nil
}

func (r *CountingRule) PerformAction(ctx *cell.Context) error {
	r.Fired++
	if r.Output == "" {
		return nil
	}
	return ctx.Write(r.Output, int64(r.Fired))
}

func (r *CountingRule) Writes() []string {
	if r.Output == "" {
		return nil
	}
	return []string{r.Output}
}

func (r *CountingRule) filter(name string) []engine.VarOption {
	v, ok := r.Filters[name]
	if !ok {
		return nil
	}
	return []engine.VarOption{engine.WithFilter(v)}
}
