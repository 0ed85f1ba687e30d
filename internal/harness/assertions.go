package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pachinko/internal/cell"
)

// AssertionError is returned when an assertion fails. It carries the firing
// sequence for context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Fired    []string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFired:\n")
	for i, rule := range e.Fired {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, rule)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFireCount:
			err = assertFireCount(result, assertion)
		case AssertFireOrder:
			err = assertFireOrder(result, assertion)
		case AssertFinalValue:
			err = assertFinalValue(result, assertion)
		case AssertQueueLen:
			err = assertQueueLen(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertFireCount(result *Result, a Assertion) error {
	count := 0
	for _, rule := range result.Fired {
		if rule == a.Rule {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertFireCount,
			Expected: fmt.Sprintf("%d firings of %s", a.Count, a.Rule),
			Actual:   fmt.Sprintf("%d firings", count),
			Fired:    result.Fired,
		}
	}
	return nil
}

func assertFireOrder(result *Result, a Assertion) error {
	if !slices.Equal(result.Fired, a.Rules) {
		return &AssertionError{
			Type:     AssertFireOrder,
			Expected: fmt.Sprintf("%v", a.Rules),
			Actual:   fmt.Sprintf("%v", result.Fired),
			Fired:    result.Fired,
		}
	}
	return nil
}

func assertFinalValue(result *Result, a Assertion) error {
	got, ok := result.Final[a.Var]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("variable %q to exist", a.Var),
			Actual:   "not in namespace",
			Fired:    result.Fired,
		}
	}
	want := normalize(a.Value)
	if !valuesEqual(want, got) {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("%s = %v (type %T)", a.Var, want, want),
			Actual:   fmt.Sprintf("%s = %v (type %T)", a.Var, got, got),
			Fired:    result.Fired,
		}
	}
	return nil
}

func assertQueueLen(result *Result, a Assertion) error {
	if result.QueueLen != a.Count {
		return &AssertionError{
			Type:     AssertQueueLen,
			Expected: fmt.Sprintf("%d pending activations", a.Count),
			Actual:   fmt.Sprintf("%d pending", result.QueueLen),
			Fired:    result.Fired,
		}
	}
	return nil
}

// valuesEqual compares a YAML expectation with a cell value. Numbers
// compare by value, so 12 matches 12.0.
func valuesEqual(want, got any) bool {
	if w, ok := number(want); ok {
		if g, ok := number(got); ok {
			return w == g
		}
	}
	return cell.Equal(want, got)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
