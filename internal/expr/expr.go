package expr

import (
	"fmt"
	"strings"

	"github.com/roach88/pachinko/internal/cell"
)

// Expr is a value-producing expression over a binding context.
type Expr interface {
	Eval(ctx *cell.Context) (cell.Value, error)
	FreeVars() []string
}

// TypeError reports an operand of the wrong dynamic type.
type TypeError struct {
	Op   string
	Want string
	Got  cell.Value
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("expr %s: want %s, got %T", e.Op, e.Want, e.Got)
}

// Ref reads the variable with the given name.
type Ref string

// Eval reads the variable's current value.
func (r Ref) Eval(ctx *cell.Context) (cell.Value, error) {
	return ctx.Read(string(r))
}

// FreeVars returns the referenced name.
func (r Ref) FreeVars() []string {
	return []string{string(r)}
}

func (r Ref) String() string {
	return string(r)
}

type literal struct {
	v cell.Value
}

// Lit returns an expression that always evaluates to v.
func Lit(v cell.Value) Expr {
	return literal{v: v}
}

func (l literal) Eval(*cell.Context) (cell.Value, error) { return l.v, nil }
func (l literal) FreeVars() []string                     { return nil }
func (l literal) String() string                         { return fmt.Sprintf("%#v", l.v) }

type equal struct {
	a, b Expr
}

// Eq compares two expressions with cell.Equal, so nil equals nil.
func Eq(a, b Expr) Expr {
	return equal{a: a, b: b}
}

func (e equal) Eval(ctx *cell.Context) (cell.Value, error) {
	a, err := e.a.Eval(ctx)
	if err != nil {
		return nil, err
	}
	b, err := e.b.Eval(ctx)
	if err != nil {
		return nil, err
	}
	return cell.Equal(a, b), nil
}

func (e equal) FreeVars() []string { return union(e.a.FreeVars(), e.b.FreeVars()) }
func (e equal) String() string     { return fmt.Sprintf("(%v == %v)", e.a, e.b) }

type not struct {
	e Expr
}

// Not negates a boolean expression.
func Not(e Expr) Expr {
	return not{e: e}
}

func (n not) Eval(ctx *cell.Context) (cell.Value, error) {
	b, err := evalBool("not", n.e, ctx)
	if err != nil {
		return nil, err
	}
	return !b, nil
}

func (n not) FreeVars() []string { return n.e.FreeVars() }
func (n not) String() string     { return fmt.Sprintf("!%v", n.e) }

type logical struct {
	op    string
	and   bool
	terms []Expr
}

// And is true when every term is true. Evaluation stops at the first false
// term. With no terms it is true.
func And(terms ...Expr) Expr {
	return logical{op: "and", and: true, terms: terms}
}

// Or is true when any term is true. Evaluation stops at the first true term.
// With no terms it is false.
func Or(terms ...Expr) Expr {
	return logical{op: "or", terms: terms}
}

func (l logical) Eval(ctx *cell.Context) (cell.Value, error) {
	for _, t := range l.terms {
		b, err := evalBool(l.op, t, ctx)
		if err != nil {
			return nil, err
		}
		if b != l.and {
			return b, nil
		}
	}
	return l.and, nil
}

func (l logical) FreeVars() []string {
	lists := make([][]string, len(l.terms))
	for i, t := range l.terms {
		lists[i] = t.FreeVars()
	}
	return union(lists...)
}

func (l logical) String() string {
	parts := make([]string, len(l.terms))
	for i, t := range l.terms {
		parts[i] = fmt.Sprint(t)
	}
	return fmt.Sprintf("%s(%s)", l.op, strings.Join(parts, ", "))
}

type call struct {
	name string
	fn   func(args ...cell.Value) (cell.Value, error)
	args []Expr
}

// Call applies fn to the values of args. name is used in errors and String.
func Call(name string, fn func(args ...cell.Value) (cell.Value, error), args ...Expr) Expr {
	return call{name: name, fn: fn, args: args}
}

func (c call) Eval(ctx *cell.Context) (cell.Value, error) {
	vals := make([]cell.Value, len(c.args))
	for i, a := range c.args {
		v, err := a.Eval(ctx)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	v, err := c.fn(vals...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	return v, nil
}

func (c call) FreeVars() []string {
	lists := make([][]string, len(c.args))
	for i, a := range c.args {
		lists[i] = a.FreeVars()
	}
	return union(lists...)
}

func (c call) String() string {
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = fmt.Sprint(a)
	}
	return fmt.Sprintf("%s(%s)", c.name, strings.Join(parts, ", "))
}

func evalBool(op string, e Expr, ctx *cell.Context) (bool, error) {
	v, err := e.Eval(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeError{Op: op, Want: "bool", Got: v}
	}
	return b, nil
}

// union concatenates name lists, keeping the first occurrence of each name.
func union(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range lists {
		for _, n := range l {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
