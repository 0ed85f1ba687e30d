package vwap

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pachinko/internal/cell"
	"github.com/roach88/pachinko/internal/engine"
	"github.com/roach88/pachinko/internal/expr"
	"github.com/roach88/pachinko/internal/window"
)

func newSystem(t *testing.T, rules ...engine.Rule) *engine.System {
	t.Helper()
	s, err := engine.New(rules, engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return s
}

func mustRule(t *testing.T, symbol string, size int64) *Rule {
	t.Helper()
	r, err := NewRule(symbol, size)
	require.NoError(t, err)
	return r
}

func trade(t *testing.T, s *engine.System, channel string, tr Trade) {
	t.Helper()
	require.NoError(t, s.Namespace().Write(channel, tr))
	require.NoError(t, s.ExecuteActivations())
}

func read(t *testing.T, s *engine.System, name string) cell.Value {
	t.Helper()
	v, err := s.Namespace().Read(name)
	require.NoError(t, err)
	return v
}

func TestRule_DeclaresOutputs(t *testing.T) {
	s := newSystem(t, mustRule(t, "MACK", 10))

	assert.Equal(t,
		[]string{"MACK", "MACK_window", "MACK_volume", "MACK_total", "MACK_vwap"},
		s.FreeVarNames())
	assert.Equal(t, int64(0), read(t, s, "MACK_volume"))
	assert.Equal(t, 0.0, read(t, s, "MACK_total"))
	assert.Equal(t, 0.0, read(t, s, "MACK_vwap"))
}

func TestRule_SlidingVWAP(t *testing.T) {
	s := newSystem(t, mustRule(t, "MACK", 3))

	steps := []struct {
		tr     Trade
		volume int64
		total  float64
		vwap   float64
	}{
		{Trade{Tick: 1, Symbol: "MACK", Shares: 100, Price: 10}, 100, 1000, 10},
		{Trade{Tick: 2, Symbol: "MACK", Shares: 200, Price: 20}, 300, 5000, 5000.0 / 300},
		{Trade{Tick: 3, Symbol: "MACK", Shares: 100, Price: 30}, 400, 8000, 20},
		// Tick 4 expires tick 1.
		{Trade{Tick: 4, Symbol: "MACK", Shares: 300, Price: 10}, 600, 10000, 10000.0 / 600},
		// Tick 7 expires ticks 2 through 4.
		{Trade{Tick: 7, Symbol: "MACK", Shares: 50, Price: 12}, 50, 600, 12},
	}

	for i, st := range steps {
		trade(t, s, "MACK", st.tr)
		assert.Equal(t, st.volume, read(t, s, "MACK_volume"), "step %d", i+1)
		assert.InDelta(t, st.total, read(t, s, "MACK_total"), 1e-9, "step %d", i+1)
		assert.InDelta(t, st.vwap, read(t, s, "MACK_vwap"), 1e-9, "step %d", i+1)
	}

	w := read(t, s, "MACK_window").(*window.Window[Trade])
	assert.Equal(t, 1, w.Len())
}

func TestRule_SymbolMatchIgnoresCase(t *testing.T) {
	s := newSystem(t, mustRule(t, "MACK", 10))

	trade(t, s, "MACK", Trade{Tick: 1, Symbol: "OTHER", Shares: 10, Price: 1})
	assert.Equal(t, int64(0), read(t, s, "MACK_volume"))

	trade(t, s, "MACK", Trade{Tick: 2, Symbol: "mack", Shares: 10, Price: 1})
	assert.Equal(t, int64(10), read(t, s, "MACK_volume"))
}

func TestRule_AcceptsTradePointer(t *testing.T) {
	s := newSystem(t, mustRule(t, "MACK", 10))

	require.NoError(t, s.Namespace().Write("MACK", &Trade{Tick: 1, Symbol: "MACK", Shares: 4, Price: 2}))
	require.NoError(t, s.ExecuteActivations())
	assert.Equal(t, 2.0, read(t, s, "MACK_vwap"))
}

func TestRule_SymbolsAreIndependent(t *testing.T) {
	s := newSystem(t, mustRule(t, "MACK", 10), mustRule(t, "ACME", 10))

	trade(t, s, "MACK", Trade{Tick: 1, Symbol: "MACK", Shares: 10, Price: 5})
	trade(t, s, "ACME", Trade{Tick: 1, Symbol: "ACME", Shares: 1, Price: 100})

	assert.Equal(t, 5.0, read(t, s, "MACK_vwap"))
	assert.Equal(t, 100.0, read(t, s, "ACME_vwap"))
}

func TestRule_DownstreamRuleReactsToVWAP(t *testing.T) {
	above := func(args ...cell.Value) (cell.Value, error) {
		return args[0].(float64) > 50, nil
	}
	alert, err := expr.NewRule("alert",
		expr.Call("above", above, expr.Ref("MACK_vwap")),
		expr.Assign("ALERT", expr.Ref("MACK_vwap")),
	)
	require.NoError(t, err)

	s := newSystem(t, mustRule(t, "MACK", 10), alert)

	trade(t, s, "MACK", Trade{Tick: 1, Symbol: "MACK", Shares: 10, Price: 40})
	assert.Nil(t, read(t, s, "ALERT"))

	trade(t, s, "MACK", Trade{Tick: 2, Symbol: "MACK", Shares: 30, Price: 80})
	assert.Equal(t, 70.0, read(t, s, "ALERT"))
}

func TestRule_Errors(t *testing.T) {
	_, err := NewRule("", 10)
	assert.True(t, cell.IsNullArgument(err))

	_, err = NewRule("MACK", 0)
	assert.ErrorContains(t, err, "window size must be positive")

	s := newSystem(t, mustRule(t, "MACK", 10))
	require.NoError(t, s.Namespace().Write("MACK", "not a trade"))
	assert.ErrorContains(t, s.ExecuteActivations(), "channel holds string")

	s = newSystem(t, mustRule(t, "MACK", 10))
	trade(t, s, "MACK", Trade{Tick: 5, Symbol: "MACK", Shares: 1, Price: 1})
	require.NoError(t, s.Namespace().Write("MACK", Trade{Tick: 4, Symbol: "MACK", Shares: 1, Price: 1}))
	err = s.ExecuteActivations()
	var ooe *window.OutOfOrderError
	assert.ErrorAs(t, err, &ooe)
}

func TestRule_Writes(t *testing.T) {
	r := mustRule(t, "MACK", 10)
	assert.Equal(t, "vwap:MACK", r.Name())
	assert.Equal(t, []string{"MACK_window", "MACK_volume", "MACK_total", "MACK_vwap"}, r.Writes())
}
