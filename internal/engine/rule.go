package engine

import (
	"github.com/roach88/pachinko/internal/cell"
)

// Rule is one condition/action pair evaluated by a System.
//
// Declare is called exactly once, when the rule is added to a system, and
// must declare every variable the rule reads or writes. The returned
// positions are stable indices into the context later passed to
// EvaluateCondition and PerformAction.
//
// PerformAction runs only when EvaluateCondition returned true. Either may
// write cells through ctx; those writes can enqueue further activations,
// including this rule's own, within the same drain.
type Rule interface {
	Declare(d *Declarer) error
	EvaluateCondition(ctx *cell.Context) (bool, error)
	PerformAction(ctx *cell.Context) error
}

// Namer is implemented by rules that want a stable name in logs, traces
// and the activation journal.
type Namer interface {
	Name() string
}

// Writer is implemented by rules that can list the variables their action
// writes. Only static analysis uses it; the engine never checks it at run
// time.
type Writer interface {
	Writes() []string
}

// VarOption configures a single variable declaration.
type VarOption func(*varSpec)

type varSpec struct {
	initial   cell.Value
	hasFilter bool
	filter    cell.Value
}

// WithFilter makes the variable count only when the written value equals v
// (null-safe). For plain required variables the filter applies to every
// write; for key variables only to the write that first activates them.
func WithFilter(v cell.Value) VarOption {
	return func(s *varSpec) {
		s.hasFilter = true
		s.filter = v
	}
}

// WithInitial sets the value the rule's own cell starts with. If assembly
// unifies the variable with a cell declared earlier, that cell's value wins.
func WithInitial(v cell.Value) VarOption {
	return func(s *varSpec) {
		s.initial = v
	}
}

// Declarer collects a rule's variable declarations into its activation
// record.
//
// Declaration methods return the variable's position, or -1 on failure.
// The first failure is kept and reported by Err; once a Declarer has
// failed, later declarations are ignored.
type Declarer struct {
	rec    *Activation
	closed bool
	err    error
}

// Require declares a required, non-key variable. The rule cannot fire
// until it has been written (and matched its filter, if any), and every
// later accepted write re-fires the rule unless the rule also declares a
// key variable.
func (d *Declarer) Require(name string, opts ...VarOption) int {
	return d.declare(name, roleRequired, opts)
}

// Key declares a required key variable. After the rule has fully activated,
// only writes to key variables re-fire it.
func (d *Declarer) Key(name string, opts ...VarOption) int {
	return d.declare(name, roleKey, opts)
}

// Optional declares a variable the rule may read or write but does not wait
// for. Writes to it never trigger the rule.
func (d *Declarer) Optional(name string, opts ...VarOption) int {
	return d.declare(name, roleOptional, opts)
}

// Has reports whether name has already been declared.
func (d *Declarer) Has(name string) bool {
	return d.rec.ctx.Contains(name)
}

// Err returns the first declaration failure.
func (d *Declarer) Err() error {
	return d.err
}

func (d *Declarer) declare(name string, role varRole, opts []VarOption) int {
	if d.err != nil {
		return -1
	}
	if d.closed {
		d.err = newDeclarationClosedError(d.rec.name, name)
		return -1
	}

	var spec varSpec
	for _, opt := range opts {
		opt(&spec)
	}

	slot, err := d.rec.declare(name, role, spec)
	if err != nil {
		d.err = err
		return -1
	}
	return slot
}
