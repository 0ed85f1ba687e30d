package cell

import "reflect"

// Equaler lets a value type define its own equality for filters and
// expression comparisons.
type Equaler interface {
	Equal(other any) bool
}

// Equal compares two cell values with null-safe semantics: two nils are
// equal, a nil and a non-nil are not.
//
// Values implementing Equaler decide for themselves. Otherwise values of the
// same comparable dynamic type use ==, and everything else (slices, maps)
// falls back to reflect.DeepEqual. Values of different dynamic types are
// never equal, so int(1) and int64(1) differ.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	switch ta.Kind() {
	case reflect.Struct, reflect.Array:
		// == panics when a field holds an uncomparable dynamic value.
		return reflect.DeepEqual(a, b)
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
