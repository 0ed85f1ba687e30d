package cell

import (
	"golang.org/x/text/unicode/norm"
)

// Value is the untyped content of a cell. Rules impose their own type
// expectations on what they read.
type Value = any

// ID is a stable handle to a cell inside its Arena.
type ID int32

// NoCell is the zero-information handle returned alongside errors.
const NoCell ID = -1

// SubKind identifies who a subscription delivers to.
type SubKind uint8

const (
	// SubContext delivers to a Context owned by the same arena; Target is
	// the context's index. The arena handles these itself.
	SubContext SubKind = iota + 1

	// SubRouted is the first kind the arena does not interpret. Kinds at or
	// above SubRouted are passed to the Router unchanged.
	SubRouted
)

// Sub is one subscription on a cell or context. Target and Slot are opaque
// to the arena for routed kinds.
type Sub struct {
	Kind   SubKind
	Target int
	Slot   int
}

// Router receives notifications for subscriptions the arena does not
// deliver itself. id is the cell that was written; via is the context the
// write was issued through (nil for direct arena writes).
type Router interface {
	Route(sub Sub, id ID, via *Context)
}

type slot struct {
	name  string
	value Value
	subs  []Sub
}

// Arena owns every cell and context of one rule system.
type Arena struct {
	cells    []slot
	contexts []*Context
	router   Router
}

// NewArena creates an empty arena with no router.
func NewArena() *Arena {
	return &Arena{
		cells: make([]slot, 0, 32),
	}
}

// SetRouter installs the receiver for routed subscriptions. Notifications
// for routed kinds are dropped while no router is set.
func (a *Arena) SetRouter(r Router) {
	a.router = r
}

// New allocates a cell with the given name and initial value. Storing the
// initial value does not notify anyone. Names are NFC-normalized and need not
// be unique within the arena; uniqueness is a property of contexts.
func (a *Arena) New(name string, initial Value) (ID, error) {
	if name == "" {
		return NoCell, &NullArgumentError{Arg: "name"}
	}
	a.cells = append(a.cells, slot{
		name:  norm.NFC.String(name),
		value: initial,
	})
	return ID(len(a.cells) - 1), nil
}

// Len returns the number of cells allocated.
func (a *Arena) Len() int {
	return len(a.cells)
}

// Valid reports whether id addresses a cell in this arena.
func (a *Arena) Valid(id ID) bool {
	return id >= 0 && int(id) < len(a.cells)
}

// Name returns the cell's name, or "" for an invalid handle.
func (a *Arena) Name(id ID) string {
	if !a.Valid(id) {
		return ""
	}
	return a.cells[id].name
}

// Value returns the cell's current value, or nil for an invalid handle.
func (a *Arena) Value(id ID) Value {
	if !a.Valid(id) {
		return nil
	}
	return a.cells[id].value
}

// Write stores v and notifies every subscriber in subscription order. The
// notification happens even if v equals the previous value.
//
// Writes to an invalid handle are ignored.
func (a *Arena) Write(id ID, v Value, via *Context) {
	if !a.Valid(id) {
		return
	}
	a.cells[id].value = v

	// Snapshot the header; subscribers added during fan-out see the next write.
	subs := a.cells[id].subs
	for _, sub := range subs {
		a.deliver(sub, id, via)
	}
}

// Subscribe appends sub to the cell's subscriber list.
func (a *Arena) Subscribe(id ID, sub Sub) {
	if !a.Valid(id) {
		return
	}
	a.cells[id].subs = append(a.cells[id].subs, sub)
}

// Unsubscribe removes the first subscription equal to sub. It reports
// whether one was found.
func (a *Arena) Unsubscribe(id ID, sub Sub) bool {
	if !a.Valid(id) {
		return false
	}
	subs := a.cells[id].subs
	for i, s := range subs {
		if s == sub {
			next := make([]Sub, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			a.cells[id].subs = next
			return true
		}
	}
	return false
}

// Subscribers returns a copy of the cell's subscriber list.
func (a *Arena) Subscribers(id ID) []Sub {
	if !a.Valid(id) {
		return nil
	}
	out := make([]Sub, len(a.cells[id].subs))
	copy(out, a.cells[id].subs)
	return out
}

// NewContext creates an empty binding context owned by this arena.
func (a *Arena) NewContext() *Context {
	c := &Context{
		arena: a,
		index: make(map[string]int),
		self:  len(a.contexts),
	}
	a.contexts = append(a.contexts, c)
	return c
}

func (a *Arena) deliver(sub Sub, id ID, via *Context) {
	if sub.Kind == SubContext {
		if sub.Target >= 0 && sub.Target < len(a.contexts) {
			a.contexts[sub.Target].Notify(id, via)
		}
		return
	}
	if a.router != nil {
		a.router.Route(sub, id, via)
	}
}
