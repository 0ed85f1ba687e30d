package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a wiring problem detected by the rule system.
//
// Binding errors (duplicate names, unknown names, missing arguments) come
// from package cell and are returned as-is. RuntimeError covers the cases
// that only make sense at the rule-system level.
//
// Errors raised by a rule's condition or action are never converted into a
// RuntimeError; they propagate out of ExecuteActivations unchanged.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Rule names the rule involved, if any.
	Rule string

	// Variable names the variable involved, if any.
	Variable string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDeclarationClosed indicates a rule declared a variable after its
	// activation record was built.
	ErrCodeDeclarationClosed RuntimeErrorCode = "DECLARATION_CLOSED"

	// ErrCodeInvalidBinding indicates a replacement cell whose name does not
	// match the variable it is meant to replace.
	ErrCodeInvalidBinding RuntimeErrorCode = "INVALID_BINDING"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Rule != "" && e.Variable != "":
		return fmt.Sprintf("%s: %s (rule=%s, variable=%s)", e.Code, e.Message, e.Rule, e.Variable)
	case e.Rule != "":
		return fmt.Sprintf("%s: %s (rule=%s)", e.Code, e.Message, e.Rule)
	case e.Variable != "":
		return fmt.Sprintf("%s: %s (variable=%s)", e.Code, e.Message, e.Variable)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDeclarationClosed returns true if err reports a late declaration.
func IsDeclarationClosed(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDeclarationClosed
	}
	return false
}

// IsInvalidBinding returns true if err reports a mismatched replacement cell.
func IsInvalidBinding(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvalidBinding
	}
	return false
}

func newDeclarationClosedError(rule, variable string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeDeclarationClosed,
		Message:  "variables must be declared before the activation record is built",
		Rule:     rule,
		Variable: variable,
	}
}

func newInvalidBindingError(variable, got string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeInvalidBinding,
		Message:  fmt.Sprintf("replacement cell is named %q", got),
		Variable: variable,
	}
}
