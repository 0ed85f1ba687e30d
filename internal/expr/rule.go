package expr

import (
	"fmt"
	"slices"

	"github.com/roach88/pachinko/internal/cell"
	"github.com/roach88/pachinko/internal/engine"
)

// Rule is an engine.Rule assembled from a condition and an action.
type Rule struct {
	name string
	cond Expr
	act  Action
	opts map[string][]engine.VarOption
	keys map[string]bool
}

// RuleOption adjusts how a Rule declares its variables.
type RuleOption func(*Rule)

// KeyVar declares the named input as a key variable instead of a plain
// required one.
func KeyVar(name string) RuleOption {
	return func(r *Rule) {
		r.keys[name] = true
	}
}

// VarOptions attaches engine declaration options, such as a filter or an
// initial value, to the named variable.
func VarOptions(name string, opts ...engine.VarOption) RuleOption {
	return func(r *Rule) {
		r.opts[name] = append(r.opts[name], opts...)
	}
}

// NewRule builds a rule. Both cond and act are mandatory; use Nothing for a
// rule that is only observed through the journal.
func NewRule(name string, cond Expr, act Action, opts ...RuleOption) (*Rule, error) {
	if cond == nil {
		return nil, &cell.NullArgumentError{Arg: "condition"}
	}
	if act == nil {
		return nil, &cell.NullArgumentError{Arg: "action"}
	}
	r := &Rule{
		name: name,
		cond: cond,
		act:  act,
		opts: make(map[string][]engine.VarOption),
		keys: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Name returns the rule name.
func (r *Rule) Name() string {
	return r.name
}

// Declare declares every variable the condition and action read as required
// (or key), then any output not already declared as optional. A KeyVar or
// VarOptions name that neither reads nor writes is an error.
func (r *Rule) Declare(d *engine.Declarer) error {
	inputs := union(r.cond.FreeVars(), r.act.FreeVars())
	for _, name := range inputs {
		if r.keys[name] {
			d.Key(name, r.opts[name]...)
		} else {
			d.Require(name, r.opts[name]...)
		}
	}
	for _, name := range r.act.Outputs() {
		if !d.Has(name) {
			d.Optional(name, r.opts[name]...)
		}
	}
	if err := d.Err(); err != nil {
		return err
	}

	read := make(map[string]bool, len(inputs))
	for _, name := range inputs {
		read[name] = true
	}
	for _, name := range sortedKeys(r.keys) {
		if !read[name] {
			return fmt.Errorf("rule %s: key variable %s is not read by the condition or action", r.name, name)
		}
	}
	for _, name := range sortedKeys(r.opts) {
		if !d.Has(name) {
			return fmt.Errorf("rule %s: options for undeclared variable %s", r.name, name)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// EvaluateCondition evaluates the condition, which must produce a bool.
func (r *Rule) EvaluateCondition(ctx *cell.Context) (bool, error) {
	v, err := r.cond.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("rule %s condition: %w", r.name, err)
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeError{Op: "condition", Want: "bool", Got: v}
	}
	return b, nil
}

// PerformAction runs the action.
func (r *Rule) PerformAction(ctx *cell.Context) error {
	return r.act.Run(ctx)
}

// Writes returns the action's outputs.
func (r *Rule) Writes() []string {
	return r.act.Outputs()
}

// String renders the rule for diagnostics.
func (r *Rule) String() string {
	return fmt.Sprintf("%s: when %v", r.name, r.cond)
}
