package expr

import (
	"github.com/roach88/pachinko/internal/cell"
)

// Action is the side-effecting half of a rule.
//
// FreeVars lists the variables the action reads; Outputs the variables it
// writes. A rule declares the union of both.
type Action interface {
	Run(ctx *cell.Context) error
	FreeVars() []string
	Outputs() []string
}

type assign struct {
	name string
	e    Expr
}

// Assign evaluates e and writes the result to the named variable.
func Assign(name string, e Expr) Action {
	return assign{name: name, e: e}
}

func (a assign) Run(ctx *cell.Context) error {
	v, err := a.e.Eval(ctx)
	if err != nil {
		return err
	}
	return ctx.Write(a.name, v)
}

func (a assign) FreeVars() []string { return a.e.FreeVars() }
func (a assign) Outputs() []string  { return []string{a.name} }

type funcAction struct {
	fn     func(ctx *cell.Context) error
	reads  []string
	writes []string
}

// Func wraps fn as an Action. reads and writes must name every variable fn
// touches through ctx.
func Func(fn func(ctx *cell.Context) error, reads, writes []string) Action {
	return funcAction{fn: fn, reads: reads, writes: writes}
}

func (f funcAction) Run(ctx *cell.Context) error { return f.fn(ctx) }
func (f funcAction) FreeVars() []string          { return union(f.reads) }
func (f funcAction) Outputs() []string           { return union(f.writes) }

type seq []Action

// Seq runs actions in order and stops at the first error.
func Seq(actions ...Action) Action {
	return seq(actions)
}

func (s seq) Run(ctx *cell.Context) error {
	for _, a := range s {
		if err := a.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s seq) FreeVars() []string {
	lists := make([][]string, len(s))
	for i, a := range s {
		lists[i] = a.FreeVars()
	}
	return union(lists...)
}

func (s seq) Outputs() []string {
	lists := make([][]string, len(s))
	for i, a := range s {
		lists[i] = a.Outputs()
	}
	return union(lists...)
}

// Nothing is an action that does nothing.
var Nothing Action = seq(nil)
