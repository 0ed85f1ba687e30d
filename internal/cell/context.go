package cell

import (
	"golang.org/x/text/unicode/norm"
)

// Context is an ordered, name-unique collection of cell handles.
//
// A context is also listenable: cells it listens to append themselves to its
// changed set on every write, and the context then forwards the notification
// to its own subscribers.
//
// INVARIANTS:
//   - positions never move once assigned (Rebind swaps the handle in place)
//   - names are unique within the context
//   - listening is independent of binding (see Listen)
type Context struct {
	arena   *Arena
	self    int
	ids     []ID
	names   []string
	index   map[string]int
	listens []ID
	changed []ID
	subs    []Sub
}

// Empty is the sentinel context for collaborators that declare no
// variables. Reads yield nil, writes are ignored and index lookups
// return -1.
var Empty = &Context{self: -1}

// Arena returns the arena that owns this context, or nil for Empty.
func (c *Context) Arena() *Arena {
	return c.arena
}

// Add binds the cell under its own name and returns the assigned position.
// Binding does not subscribe the context to the cell.
func (c *Context) Add(id ID) (int, error) {
	if c.arena == nil {
		return -1, &NullArgumentError{Arg: "arena"}
	}
	if !c.arena.Valid(id) {
		return -1, &NullArgumentError{Arg: "cell"}
	}
	name := c.arena.Name(id)
	if _, exists := c.index[name]; exists {
		return -1, &DuplicateBindingError{Name: name}
	}
	c.ids = append(c.ids, id)
	c.names = append(c.names, name)
	c.index[name] = len(c.ids) - 1
	return len(c.ids) - 1, nil
}

// Listen subscribes the context to a cell so writes to it are recorded in
// the changed set and forwarded to the context's subscribers. The cell does
// not have to be bound in this context.
func (c *Context) Listen(id ID) {
	if c.arena == nil {
		return
	}
	c.arena.Subscribe(id, Sub{Kind: SubContext, Target: c.self})
	c.listens = append(c.listens, id)
}

// Rebind points position i at a different cell with the same name. Only the
// handle changes; if the context listened to the old cell it now listens to
// the new one instead.
func (c *Context) Rebind(i int, id ID) error {
	if err := c.checkIndex(i); err != nil {
		return err
	}
	if !c.arena.Valid(id) {
		return &NullArgumentError{Arg: "cell"}
	}
	if name := c.arena.Name(id); name != c.names[i] {
		return &UnknownBindingError{Name: name}
	}
	old := c.ids[i]
	if old == id {
		return nil
	}
	c.ids[i] = id
	for j, l := range c.listens {
		if l == old {
			c.arena.Unsubscribe(old, Sub{Kind: SubContext, Target: c.self})
			c.arena.Subscribe(id, Sub{Kind: SubContext, Target: c.self})
			c.listens[j] = id
		}
	}
	return nil
}

// Clear drops every binding, listen and changed entry. Subscribers of the
// context itself are kept.
func (c *Context) Clear() {
	if c.arena == nil {
		return
	}
	for _, id := range c.listens {
		c.arena.Unsubscribe(id, Sub{Kind: SubContext, Target: c.self})
	}
	c.ids = nil
	c.names = nil
	c.index = make(map[string]int)
	c.listens = nil
	c.changed = nil
}

// AddListener appends a subscriber that is notified whenever the context
// forwards a change. Empty accepts no listeners.
func (c *Context) AddListener(sub Sub) {
	if c.arena == nil {
		return
	}
	c.subs = append(c.subs, sub)
}

// Notify records id in the changed set and forwards the notification to
// the context's subscribers in registration order.
func (c *Context) Notify(id ID, via *Context) {
	if c.arena == nil {
		return
	}
	c.changed = append(c.changed, id)
	c.Forward(id, via)
}

// Forward passes a notification to the context's subscribers without
// recording it in the changed set. Contexts whose changes nobody reads use
// it so the set does not grow.
func (c *Context) Forward(id ID, via *Context) {
	if c.arena == nil {
		return
	}
	subs := c.subs
	for _, sub := range subs {
		c.arena.deliver(sub, id, via)
	}
}

// Len returns the number of bindings.
func (c *Context) Len() int {
	return len(c.ids)
}

// Names returns the bound names in position order.
func (c *Context) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Index returns the position of name, or -1 when it is not bound.
func (c *Context) Index(name string) int {
	if c.arena == nil {
		return -1
	}
	if i, ok := c.index[norm.NFC.String(name)]; ok {
		return i
	}
	return -1
}

// Contains reports whether name is bound.
func (c *Context) Contains(name string) bool {
	return c.Index(name) >= 0
}

// Get returns the handle bound under name.
func (c *Context) Get(name string) (ID, error) {
	i := c.Index(name)
	if i < 0 {
		return NoCell, &UnknownBindingError{Name: name}
	}
	return c.ids[i], nil
}

// At returns the handle at position i.
func (c *Context) At(i int) (ID, error) {
	if err := c.checkIndex(i); err != nil {
		return NoCell, err
	}
	return c.ids[i], nil
}

// Read returns the current value bound under name. Empty reads as nil.
func (c *Context) Read(name string) (Value, error) {
	if c.arena == nil {
		return nil, nil
	}
	id, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	return c.arena.Value(id), nil
}

// ReadAt returns the current value at position i. Empty reads as nil.
func (c *Context) ReadAt(i int) (Value, error) {
	if c.arena == nil {
		return nil, nil
	}
	id, err := c.At(i)
	if err != nil {
		return nil, err
	}
	return c.arena.Value(id), nil
}

// Write stores v into the cell bound under name, issuing the write through
// this context. Writes through Empty are ignored.
func (c *Context) Write(name string, v Value) error {
	if c.arena == nil {
		return nil
	}
	id, err := c.Get(name)
	if err != nil {
		return err
	}
	c.arena.Write(id, v, c)
	return nil
}

// WriteAt stores v into the cell at position i.
func (c *Context) WriteAt(i int, v Value) error {
	if c.arena == nil {
		return nil
	}
	id, err := c.At(i)
	if err != nil {
		return err
	}
	c.arena.Write(id, v, c)
	return nil
}

// Changed returns the cells recorded since the last ClearChanged, in
// notification order. A cell written twice appears twice.
func (c *Context) Changed() []ID {
	out := make([]ID, len(c.changed))
	copy(out, c.changed)
	return out
}

// ClearChanged empties the changed set.
func (c *Context) ClearChanged() {
	if c.arena == nil {
		return
	}
	c.changed = c.changed[:0]
}

func (c *Context) checkIndex(i int) error {
	if c.arena == nil || i < 0 || i >= len(c.ids) {
		return &IndexOutOfRangeError{Index: i, Len: len(c.ids)}
	}
	return nil
}
