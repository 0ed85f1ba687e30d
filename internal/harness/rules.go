package harness

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/pachinko/internal/cell"
	"github.com/roach88/pachinko/internal/engine"
	"github.com/roach88/pachinko/internal/expr"
	"github.com/roach88/pachinko/internal/testutil"
	"github.com/roach88/pachinko/internal/vwap"
	"github.com/roach88/pachinko/internal/watch"
)

// BuildRule turns a rule spec into an engine rule.
func BuildRule(spec RuleSpec) (engine.Rule, error) {
	switch spec.Type {
	case RuleCounter:
		return &testutil.CountingRule{
			Label:    spec.Name,
			Reads:    spec.Required,
			Keys:     spec.Keys,
			Optional: spec.Optional,
			Output:   spec.Output,
			Filters:  normalizeMap(spec.Filters),
		}, nil

	case RuleEquals:
		cond := expr.Eq(expr.Ref(spec.Var), expr.Lit(normalize(spec.Value)))
		inputs := append(append([]string{}, spec.Required...), spec.Keys...)
		inputs = append(inputs, slices.Sorted(maps.Keys(spec.Filters))...)
		seen := map[string]bool{spec.Var: true}
		for _, name := range inputs {
			if !seen[name] {
				seen[name] = true
				cond = expr.And(cond, expr.Call("bound", bound, expr.Ref(name)))
			}
		}
		var opts []expr.RuleOption
		for _, name := range spec.Keys {
			opts = append(opts, expr.KeyVar(name))
		}
		for name, v := range spec.Filters {
			opts = append(opts, expr.VarOptions(name, engine.WithFilter(normalize(v))))
		}
		act := expr.Assign(spec.Target, expr.Lit(normalize(spec.Set)))
		return expr.NewRule(spec.Name, cond, act, opts...)

	case RuleFileExt:
		return watch.NewExtensionRule(spec.Channel, spec.Ext)

	case RuleVWAP:
		return vwap.NewRule(spec.Symbol, spec.Window)
	}
	return nil, fmt.Errorf("unknown rule type %q", spec.Type)
}

// bound makes an extra required, key or filtered variable part of an
// equals rule's condition without constraining its value.
func bound(...cell.Value) (cell.Value, error) {
	return true, nil
}

// StepValue returns the variable a step writes and the value it writes.
func StepValue(s Step) (string, cell.Value, error) {
	switch {
	case s.Trade != nil:
		channel := s.Trade.Channel
		if channel == "" {
			channel = s.Trade.Symbol
		}
		return channel, vwap.Trade{
			Tick:   s.Trade.Tick,
			Symbol: s.Trade.Symbol,
			Shares: s.Trade.Shares,
			Price:  s.Trade.Price,
		}, nil

	case s.File != nil:
		op := watch.Create
		if s.File.Op != "" {
			parsed, ok := watch.ParseOp(s.File.Op)
			if !ok {
				return "", nil, fmt.Errorf("unknown file op %q", s.File.Op)
			}
			op = parsed
		}
		return s.File.Channel, watch.Event{Path: s.File.Path, Op: op}, nil

	case s.Write != "":
		return s.Write, normalize(s.Value), nil
	}
	return "", nil, fmt.Errorf("step writes nothing")
}

// normalize maps YAML-decoded values onto the types rules produce: every
// integer becomes an int64.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		return normalizeMap(x)
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}
