package cell

import (
	"errors"
	"fmt"
)

// DuplicateBindingError is returned when a name is bound twice in one context.
type DuplicateBindingError struct {
	Name string
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("duplicate binding %q", e.Name)
}

// UnknownBindingError is returned when a lookup names a binding the context
// does not contain.
type UnknownBindingError struct {
	Name string
}

func (e *UnknownBindingError) Error() string {
	return fmt.Sprintf("unknown binding %q", e.Name)
}

// IndexOutOfRangeError is returned for positional lookups outside [0, Len).
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("binding index %d out of range [0, %d)", e.Index, e.Len)
}

// NullArgumentError is returned when a required argument is missing.
type NullArgumentError struct {
	Arg string
}

func (e *NullArgumentError) Error() string {
	return fmt.Sprintf("missing required argument: %s", e.Arg)
}

// IsDuplicateBinding reports whether err is a DuplicateBindingError.
// Uses errors.As to handle wrapped errors.
func IsDuplicateBinding(err error) bool {
	var de *DuplicateBindingError
	return errors.As(err, &de)
}

// IsUnknownBinding reports whether err is an UnknownBindingError or an
// IndexOutOfRangeError. Both mean the lookup did not resolve to a cell.
func IsUnknownBinding(err error) bool {
	var ue *UnknownBindingError
	if errors.As(err, &ue) {
		return true
	}
	var ie *IndexOutOfRangeError
	return errors.As(err, &ie)
}

// IsNullArgument reports whether err is a NullArgumentError.
func IsNullArgument(err error) bool {
	var ne *NullArgumentError
	return errors.As(err, &ne)
}
