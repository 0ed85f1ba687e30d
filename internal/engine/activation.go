package engine

import (
	"github.com/roach88/pachinko/internal/cell"
)

// Subscription kinds the engine registers with the arena.
const (
	// subVariable: a cell write reaching one variable of a record.
	// Target is the record ID, Slot the variable's position.
	subVariable = cell.SubRouted + iota

	// subRecord: a record forwarding through its private context to the
	// dispatcher. Target is the record ID.
	subRecord
)

type varRole uint8

const (
	roleOptional varRole = iota
	roleRequired
	roleKey
)

type variable struct {
	name      string
	cell      cell.ID
	role      varRole
	hasFilter bool
	filter    cell.Value
	activated bool
}

// Activation is the per-rule record that decides when a rule is ready to
// run and which later writes make it run again.
//
// pending counts required variables that have not yet seen an accepted
// write. It decrements exactly once per required variable and never goes
// back up unless Reset is called. The record is activatable once pending
// reaches zero.
//
// After activation:
//   - with no key variables, any accepted write to a required variable
//     re-fires the rule
//   - with one or more key variables, only writes to key variables do;
//     writes to plain required variables are absorbed
//
// Filters on plain required variables are checked on every write. Filters
// on key variables are checked only until the variable first activates.
type Activation struct {
	id    int
	name  string
	rule  Rule
	arena *cell.Arena
	ctx   *cell.Context

	vars     []variable
	required int
	keys     int
	pending  int

	attached bool
}

func newActivation(id int, name string, rule Rule, arena *cell.Arena) *Activation {
	return &Activation{
		id:    id,
		name:  name,
		rule:  rule,
		arena: arena,
		ctx:   arena.NewContext(),
	}
}

// Name returns the rule's name.
func (a *Activation) Name() string {
	return a.name
}

// Rule returns the rule this record gates.
func (a *Activation) Rule() Rule {
	return a.rule
}

// Context returns the record's private binding context. Positions match
// those returned by the rule's declarations.
func (a *Activation) Context() *cell.Context {
	return a.ctx
}

// Activatable reports whether every required variable has been accepted.
func (a *Activation) Activatable() bool {
	return a.pending <= 0
}

// Pending returns the number of required variables still missing.
func (a *Activation) Pending() int {
	return a.pending
}

// Required returns the number of required variables, key variables
// included.
func (a *Activation) Required() int {
	return a.required
}

// KeyCount returns the number of key variables.
func (a *Activation) KeyCount() int {
	return a.keys
}

// FreeVarNames returns the declared variable names in declaration order.
func (a *Activation) FreeVarNames() []string {
	return a.ctx.Names()
}

// Triggers returns the names of the required and key variables, the ones
// whose writes can enqueue this record.
func (a *Activation) Triggers() []string {
	var out []string
	for _, v := range a.vars {
		if v.role != roleOptional {
			out = append(out, v.name)
		}
	}
	return out
}

// Writes returns the variables the rule reports writing, or nil when the
// rule does not implement Writer.
func (a *Activation) Writes() []string {
	if w, ok := a.rule.(Writer); ok {
		return w.Writes()
	}
	return nil
}

// Activated reports whether the named required variable has been accepted.
func (a *Activation) Activated(name string) bool {
	i := a.ctx.Index(name)
	if i < 0 {
		return false
	}
	return a.vars[i].activated
}

// Reset restores pending to the full required count and deactivates every
// variable, so the rule waits for a fresh write to each required variable
// before it can fire again.
func (a *Activation) Reset() {
	a.pending = a.required
	for i := range a.vars {
		a.vars[i].activated = false
	}
}

func (a *Activation) declare(name string, role varRole, spec varSpec) (int, error) {
	id, err := a.arena.New(name, spec.initial)
	if err != nil {
		return -1, err
	}
	slot, err := a.ctx.Add(id)
	if err != nil {
		return -1, err
	}

	a.vars = append(a.vars, variable{
		name:      a.arena.Name(id),
		cell:      id,
		role:      role,
		hasFilter: spec.hasFilter,
		filter:    spec.filter,
	})

	if role == roleOptional {
		return slot, nil
	}

	a.required++
	a.pending++
	if role == roleKey {
		a.keys++
	}
	a.arena.Subscribe(id, a.variableSub(slot))
	return slot, nil
}

// rebind swaps the cell behind slot without touching activation state.
func (a *Activation) rebind(slot int, id cell.ID) error {
	v := &a.vars[slot]
	if v.cell == id {
		return nil
	}
	if got := a.arena.Name(id); got != v.name {
		return newInvalidBindingError(v.name, got)
	}
	if err := a.ctx.Rebind(slot, id); err != nil {
		return err
	}
	if v.role != roleOptional {
		a.arena.Unsubscribe(v.cell, a.variableSub(slot))
		a.arena.Subscribe(id, a.variableSub(slot))
	}
	v.cell = id
	return nil
}

// detach drops the record's variable subscriptions. Used when a rule fails
// to declare and its record is discarded.
func (a *Activation) detach() {
	for slot, v := range a.vars {
		if v.role != roleOptional {
			a.arena.Unsubscribe(v.cell, a.variableSub(slot))
		}
	}
}

// notify handles a write to the variable at slot.
func (a *Activation) notify(slot int, id cell.ID, via *cell.Context) {
	if slot < 0 || slot >= len(a.vars) {
		return
	}
	v := &a.vars[slot]

	switch v.role {
	case roleKey:
		if !v.activated {
			if v.hasFilter && !cell.Equal(a.arena.Value(id), v.filter) {
				return
			}
			v.activated = true
			a.pending--
		}
		a.forward(id, via)

	case roleRequired:
		if v.hasFilter && !cell.Equal(a.arena.Value(id), v.filter) {
			return
		}
		if !v.activated {
			v.activated = true
			a.pending--
			a.forward(id, via)
			return
		}
		if a.keys == 0 {
			a.forward(id, via)
		}
	}
}

// forward passes an accepted write to the dispatcher through the private
// context, but only once the record is activatable. The private context
// keeps no changed set.
func (a *Activation) forward(id cell.ID, via *cell.Context) {
	if a.Activatable() {
		a.ctx.Forward(id, via)
	}
}

func (a *Activation) variableSub(slot int) cell.Sub {
	return cell.Sub{Kind: subVariable, Target: a.id, Slot: slot}
}
