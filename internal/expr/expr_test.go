package expr

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pachinko/internal/cell"
	"github.com/roach88/pachinko/internal/engine"
)

func newSystem(t *testing.T, rules ...engine.Rule) *engine.System {
	t.Helper()
	s, err := engine.New(rules, engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return s
}

// bind builds a context holding the given variables.
func bind(t *testing.T, vars map[string]cell.Value, order ...string) *cell.Context {
	t.Helper()
	a := cell.NewArena()
	ctx := a.NewContext()
	for _, name := range order {
		id, err := a.New(name, vars[name])
		require.NoError(t, err)
		_, err = ctx.Add(id)
		require.NoError(t, err)
	}
	return ctx
}

func TestExprEval(t *testing.T) {
	ctx := bind(t, map[string]cell.Value{"a": "x", "b": "x", "c": nil, "on": true, "off": false},
		"a", "b", "c", "on", "off")

	tests := []struct {
		name string
		e    Expr
		want cell.Value
	}{
		{"ref", Ref("a"), "x"},
		{"lit", Lit(42), 42},
		{"eq refs", Eq(Ref("a"), Ref("b")), true},
		{"eq lit", Eq(Ref("a"), Lit("y")), false},
		{"eq nil", Eq(Ref("c"), Lit(nil)), true},
		{"eq nil vs value", Eq(Ref("c"), Ref("a")), false},
		{"not", Not(Ref("off")), true},
		{"and", And(Ref("on"), Eq(Ref("a"), Lit("x"))), true},
		{"and false", And(Ref("on"), Ref("off")), false},
		{"and empty", And(), true},
		{"or", Or(Ref("off"), Ref("on")), true},
		{"or empty", Or(), false},
		{"call", Call("upper", func(args ...cell.Value) (cell.Value, error) {
			return strings.ToUpper(args[0].(string)), nil
		}, Ref("a")), "X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.e.Eval(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExprShortCircuit(t *testing.T) {
	ctx := bind(t, map[string]cell.Value{"off": false, "on": true, "s": "str"}, "off", "on", "s")

	// The non-bool operand is never reached.
	got, err := And(Ref("off"), Ref("s")).Eval(ctx)
	require.NoError(t, err)
	assert.Equal(t, false, got)

	got, err = Or(Ref("on"), Ref("s")).Eval(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestExprTypeErrors(t *testing.T) {
	ctx := bind(t, map[string]cell.Value{"s": "str"}, "s")

	_, err := Not(Ref("s")).Eval(ctx)
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "not", te.Op)
	assert.Equal(t, "expr not: want bool, got string", err.Error())

	_, err = And(Ref("s")).Eval(ctx)
	assert.ErrorAs(t, err, &te)
}

func TestExprUnknownRef(t *testing.T) {
	ctx := bind(t, nil)
	_, err := Eq(Ref("missing"), Lit(1)).Eval(ctx)
	assert.True(t, cell.IsUnknownBinding(err))
}

func TestCallErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	e := Call("explode", func(...cell.Value) (cell.Value, error) { return nil, boom })

	_, err := e.Eval(bind(t, nil))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "explode: boom", err.Error())
}

func TestFreeVarsAreDeduplicatedInOrder(t *testing.T) {
	e := And(Eq(Ref("b"), Ref("a")), Not(Ref("b")), Eq(Lit(1), Ref("c")))
	assert.Equal(t, []string{"b", "a", "c"}, e.FreeVars())
	assert.Empty(t, Lit("x").FreeVars())
}

func TestActionVariables(t *testing.T) {
	act := Seq(
		Assign("out", Ref("in")),
		Func(func(*cell.Context) error { return nil }, []string{"in", "extra"}, []string{"log", "out"}),
	)
	assert.Equal(t, []string{"in", "extra"}, act.FreeVars())
	assert.Equal(t, []string{"out", "log"}, act.Outputs())
	assert.Empty(t, Nothing.Outputs())
}

func TestNewRuleRejectsNil(t *testing.T) {
	_, err := NewRule("r", nil, Nothing)
	assert.True(t, cell.IsNullArgument(err))

	_, err = NewRule("r", Lit(true), nil)
	assert.True(t, cell.IsNullArgument(err))
}

func TestRuleDeclaresItsVariables(t *testing.T) {
	r, err := NewRule("alarm",
		And(Eq(Ref("door"), Lit("open")), Ref("armed")),
		Seq(Assign("RESULT", Lit("alarm")), Assign("armed", Lit(false))),
	)
	require.NoError(t, err)

	s := newSystem(t, r)
	rec := s.Records()[0]
	assert.Equal(t, []string{"door", "armed", "RESULT"}, rec.FreeVarNames())
	assert.Equal(t, 2, rec.Required())
	assert.Equal(t, []string{"RESULT", "armed"}, r.Writes())
}

func TestRuleFiresThroughEngine(t *testing.T) {
	r, err := NewRule("alarm",
		And(Eq(Ref("door"), Lit("open")), Ref("armed")),
		Assign("RESULT", Lit("alarm")),
	)
	require.NoError(t, err)
	s := newSystem(t, r)
	ns := s.Namespace()

	require.NoError(t, ns.Write("door", "open"))
	require.NoError(t, s.ExecuteActivations())
	got, _ := ns.Read("RESULT")
	assert.Nil(t, got, "armed not written yet")

	require.NoError(t, ns.Write("armed", false))
	require.NoError(t, s.ExecuteActivations())
	got, _ = ns.Read("RESULT")
	assert.Nil(t, got, "condition false")

	require.NoError(t, ns.Write("armed", true))
	require.NoError(t, s.ExecuteActivations())
	got, _ = ns.Read("RESULT")
	assert.Equal(t, "alarm", got)
}

func TestRuleKeyVarAndFilter(t *testing.T) {
	var fired int
	r, err := NewRule("tick",
		Lit(true),
		Func(func(*cell.Context) error { fired++; return nil }, []string{"clock", "price"}, nil),
		KeyVar("clock"),
		VarOptions("price", engine.WithFilter("ok")),
	)
	require.NoError(t, err)
	s := newSystem(t, r)
	ns := s.Namespace()

	write := func(name string, v cell.Value) {
		require.NoError(t, ns.Write(name, v))
		require.NoError(t, s.ExecuteActivations())
	}

	write("price", "bad")
	write("clock", 1)
	assert.Equal(t, 0, fired)

	write("price", "ok")
	assert.Equal(t, 1, fired)

	write("price", "ok")
	assert.Equal(t, 1, fired, "key variable gates re-firing")

	write("clock", 2)
	assert.Equal(t, 2, fired)
}

func TestRuleRejectsOptionsForUnusedVariables(t *testing.T) {
	tests := []struct {
		name string
		opt  RuleOption
		want string
	}{
		{"key never read", KeyVar("clock"), "key variable clock"},
		{"filter never read", VarOptions("price", engine.WithFilter("ok")), "undeclared variable price"},
		{"key on output only", KeyVar("RESULT"), "key variable RESULT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRule("narrow", Ref("armed"), Assign("RESULT", Lit("go")), tt.opt)
			require.NoError(t, err)
			_, err = engine.New([]engine.Rule{r}, engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	// Options on outputs are allowed.
	r, err := NewRule("seeded", Ref("armed"), Assign("RESULT", Lit("go")),
		VarOptions("RESULT", engine.WithInitial("idle")))
	require.NoError(t, err)
	_, err = engine.New([]engine.Rule{r}, engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
}

func TestRuleConditionMustBeBool(t *testing.T) {
	r, err := NewRule("bad", Ref("x"), Nothing)
	require.NoError(t, err)
	s := newSystem(t, r)

	require.NoError(t, s.Namespace().Write("x", "not a bool"))
	err = s.ExecuteActivations()
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "condition", te.Op)
}

func TestSharedVariablesAcrossExprRules(t *testing.T) {
	upper, err := NewRule("upper", Lit(true), Assign("shout", Call("upper",
		func(args ...cell.Value) (cell.Value, error) {
			s, ok := args[0].(string)
			if !ok {
				return nil, &TypeError{Op: "upper", Want: "string", Got: args[0]}
			}
			return strings.ToUpper(s), nil
		}, Ref("word"))))
	require.NoError(t, err)
	echo, err := NewRule("echo", Lit(true), Assign("RESULT", Ref("shout")))
	require.NoError(t, err)

	s := newSystem(t, upper, echo)
	require.NoError(t, s.Namespace().Write("word", "hey"))
	require.NoError(t, s.ExecuteActivations())

	got, err := s.Namespace().Read("RESULT")
	require.NoError(t, err)
	assert.Equal(t, "HEY", got)
}
