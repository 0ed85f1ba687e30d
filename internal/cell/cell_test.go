package cell

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRouter captures routed notifications in delivery order.
type recordingRouter struct {
	got []Sub
	ids []ID
}

func (r *recordingRouter) Route(sub Sub, id ID, via *Context) {
	r.got = append(r.got, sub)
	r.ids = append(r.ids, id)
}

func newCell(t *testing.T, a *Arena, name string, v Value) ID {
	t.Helper()
	id, err := a.New(name, v)
	require.NoError(t, err)
	return id
}

func TestArena_NewAndRead(t *testing.T) {
	a := NewArena()
	id := newCell(t, a, "price", 10)

	assert.Equal(t, "price", a.Name(id))
	assert.Equal(t, 10, a.Value(id))
	assert.Equal(t, 1, a.Len())
}

func TestArena_NewRejectsEmptyName(t *testing.T) {
	a := NewArena()
	id, err := a.New("", nil)
	assert.Equal(t, NoCell, id)
	assert.True(t, IsNullArgument(err))
}

func TestArena_NewNormalizesName(t *testing.T) {
	a := NewArena()
	id := newCell(t, a, "cafe\u0301", nil)
	assert.Equal(t, "caf\u00e9", a.Name(id))

	ctx := a.NewContext()
	_, err := ctx.Add(id)
	require.NoError(t, err)
	assert.Equal(t, 0, ctx.Index("cafe\u0301"))
}

func TestArena_WriteNotifiesEvenWhenUnchanged(t *testing.T) {
	a := NewArena()
	r := &recordingRouter{}
	a.SetRouter(r)
	id := newCell(t, a, "x", 1)
	a.Subscribe(id, Sub{Kind: SubRouted, Target: 7})

	a.Write(id, 1, nil)
	a.Write(id, 1, nil)

	assert.Len(t, r.got, 2)
	assert.Equal(t, 1, a.Value(id))
}

func TestArena_NotificationOrderFollowsSubscriptionOrder(t *testing.T) {
	a := NewArena()
	r := &recordingRouter{}
	a.SetRouter(r)
	id := newCell(t, a, "x", nil)
	for i := 0; i < 4; i++ {
		a.Subscribe(id, Sub{Kind: SubRouted, Target: i})
	}

	a.Write(id, "v", nil)

	require.Len(t, r.got, 4)
	for i, sub := range r.got {
		assert.Equal(t, i, sub.Target)
	}
}

func TestArena_Unsubscribe(t *testing.T) {
	a := NewArena()
	r := &recordingRouter{}
	a.SetRouter(r)
	id := newCell(t, a, "x", nil)
	a.Subscribe(id, Sub{Kind: SubRouted, Target: 1})
	a.Subscribe(id, Sub{Kind: SubRouted, Target: 2})

	assert.True(t, a.Unsubscribe(id, Sub{Kind: SubRouted, Target: 1}))
	assert.False(t, a.Unsubscribe(id, Sub{Kind: SubRouted, Target: 1}))

	a.Write(id, 1, nil)
	require.Len(t, r.got, 1)
	assert.Equal(t, 2, r.got[0].Target)
}

func TestArena_InvalidHandle(t *testing.T) {
	a := NewArena()
	assert.Nil(t, a.Value(42))
	assert.Equal(t, "", a.Name(NoCell))
	a.Write(42, "ignored", nil)
	assert.Nil(t, a.Subscribers(42))
}

func TestContext_AddAndLookup(t *testing.T) {
	a := NewArena()
	ctx := a.NewContext()
	x := newCell(t, a, "x", 1)
	y := newCell(t, a, "y", 2)

	i, err := ctx.Add(x)
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	i, err = ctx.Add(y)
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	assert.Equal(t, []string{"x", "y"}, ctx.Names())
	assert.Equal(t, 1, ctx.Index("y"))
	assert.Equal(t, -1, ctx.Index("z"))

	got, err := ctx.Get("x")
	require.NoError(t, err)
	assert.Equal(t, x, got)

	v, err := ctx.ReadAt(1)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestContext_DuplicateBinding(t *testing.T) {
	a := NewArena()
	ctx := a.NewContext()
	_, err := ctx.Add(newCell(t, a, "x", nil))
	require.NoError(t, err)

	_, err = ctx.Add(newCell(t, a, "x", nil))
	require.Error(t, err)
	assert.True(t, IsDuplicateBinding(err))
	assert.Equal(t, 1, ctx.Len())
}

func TestContext_UnknownBinding(t *testing.T) {
	a := NewArena()
	ctx := a.NewContext()
	_, _ = ctx.Add(newCell(t, a, "x", nil))

	_, err := ctx.Get("missing")
	assert.True(t, IsUnknownBinding(err))

	_, err = ctx.Read("missing")
	assert.True(t, IsUnknownBinding(err))

	err = ctx.Write("missing", 1)
	assert.True(t, IsUnknownBinding(err))

	_, err = ctx.At(5)
	var ie *IndexOutOfRangeError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 5, ie.Index)
	assert.Equal(t, 1, ie.Len)

	_, err = ctx.ReadAt(-1)
	assert.True(t, IsUnknownBinding(err))
}

func TestContext_BindingDoesNotListen(t *testing.T) {
	a := NewArena()
	ctx := a.NewContext()
	x := newCell(t, a, "x", nil)
	_, _ = ctx.Add(x)

	require.NoError(t, ctx.Write("x", 1))
	assert.Empty(t, ctx.Changed())

	ctx.Listen(x)
	require.NoError(t, ctx.Write("x", 2))
	assert.Equal(t, []ID{x}, ctx.Changed())
}

func TestContext_ChangedAccumulatesUntilCleared(t *testing.T) {
	a := NewArena()
	ctx := a.NewContext()
	x := newCell(t, a, "x", nil)
	y := newCell(t, a, "y", nil)
	for _, id := range []ID{x, y} {
		_, _ = ctx.Add(id)
		ctx.Listen(id)
	}

	_ = ctx.Write("x", 1)
	_ = ctx.Write("y", 1)
	_ = ctx.Write("x", 2)
	assert.Equal(t, []ID{x, y, x}, ctx.Changed())

	ctx.ClearChanged()
	assert.Empty(t, ctx.Changed())

	_ = ctx.WriteAt(1, 3)
	assert.Equal(t, []ID{y}, ctx.Changed())
}

func TestContext_ForwardsToListeners(t *testing.T) {
	a := NewArena()
	r := &recordingRouter{}
	a.SetRouter(r)
	ctx := a.NewContext()
	x := newCell(t, a, "x", nil)
	_, _ = ctx.Add(x)
	ctx.Listen(x)
	ctx.AddListener(Sub{Kind: SubRouted, Target: 3})

	_ = ctx.Write("x", "hello")

	require.Len(t, r.got, 1)
	assert.Equal(t, 3, r.got[0].Target)
	assert.Equal(t, x, r.ids[0])
}

func TestContext_ForwardDoesNotRecord(t *testing.T) {
	a := NewArena()
	r := &recordingRouter{}
	a.SetRouter(r)
	ctx := a.NewContext()
	x := newCell(t, a, "x", nil)
	ctx.AddListener(Sub{Kind: SubRouted, Target: 7})

	for i := 0; i < 100; i++ {
		ctx.Forward(x, nil)
	}

	assert.Len(t, r.got, 100)
	assert.Empty(t, ctx.Changed())
}

func TestContext_NestedContextForwarding(t *testing.T) {
	a := NewArena()
	inner := a.NewContext()
	outer := a.NewContext()
	x := newCell(t, a, "x", nil)
	_, _ = inner.Add(x)
	inner.Listen(x)
	inner.AddListener(Sub{Kind: SubContext, Target: outer.self})

	a.Write(x, 1, nil)

	assert.Equal(t, []ID{x}, inner.Changed())
	assert.Equal(t, []ID{x}, outer.Changed())
}

func TestContext_Rebind(t *testing.T) {
	a := NewArena()
	ctx := a.NewContext()
	first := newCell(t, a, "x", "first")
	shared := newCell(t, a, "x", "shared")
	other := newCell(t, a, "y", nil)

	_, _ = ctx.Add(first)
	ctx.Listen(first)

	require.NoError(t, ctx.Rebind(0, shared))
	got, _ := ctx.At(0)
	assert.Equal(t, shared, got)

	v, _ := ctx.Read("x")
	assert.Equal(t, "shared", v)

	// The listen followed the binding.
	a.Write(first, "stale", nil)
	assert.Empty(t, ctx.Changed())
	a.Write(shared, "fresh", nil)
	assert.Equal(t, []ID{shared}, ctx.Changed())

	err := ctx.Rebind(0, other)
	assert.True(t, IsUnknownBinding(err))
}

func TestContext_Clear(t *testing.T) {
	a := NewArena()
	ctx := a.NewContext()
	x := newCell(t, a, "x", nil)
	_, _ = ctx.Add(x)
	ctx.Listen(x)

	ctx.Clear()
	assert.Equal(t, 0, ctx.Len())
	assert.Empty(t, a.Subscribers(x))

	_, err := ctx.Add(x)
	assert.NoError(t, err)
}

func TestEmptyContext(t *testing.T) {
	v, err := Empty.Read("anything")
	assert.NoError(t, err)
	assert.Nil(t, v)

	v, err = Empty.ReadAt(0)
	assert.NoError(t, err)
	assert.Nil(t, v)

	assert.NoError(t, Empty.Write("anything", 1))
	assert.Equal(t, -1, Empty.Index("anything"))
	assert.Equal(t, 0, Empty.Len())
	assert.Empty(t, Empty.Names())

	_, err = Empty.Get("anything")
	assert.True(t, IsUnknownBinding(err))

	_, err = Empty.Add(0)
	assert.True(t, IsNullArgument(err))

	Empty.AddListener(Sub{Kind: SubRouted, Target: 1})
	Empty.ClearChanged()
	assert.Empty(t, Empty.subs, "Empty must not keep listeners")
	assert.Empty(t, Empty.Changed())
}

func TestEqual(t *testing.T) {
	type point struct{ X, Y int }

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"both nil", nil, nil, true},
		{"left nil", nil, 1, false},
		{"right nil", "x", nil, false},
		{"same string", "a", "a", true},
		{"different string", "a", "b", false},
		{"int vs int64", 1, int64(1), false},
		{"struct", point{1, 2}, point{1, 2}, true},
		{"slice", []int{1, 2}, []int{1, 2}, true},
		{"slice differs", []int{1}, []int{2}, false},
		{"map", map[string]int{"a": 1}, map[string]int{"a": 1}, true},
		{"struct with slice", struct{ V any }{[]int{1}}, struct{ V any }{[]int{1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

type caseless string

func (c caseless) Equal(other any) bool {
	o, ok := other.(caseless)
	return ok && strings.EqualFold(string(c), string(o))
}

func TestEqual_Equaler(t *testing.T) {
	assert.True(t, Equal(caseless("MACK"), caseless("mack")))
	assert.False(t, Equal(caseless("MACK"), "mack"))
}
