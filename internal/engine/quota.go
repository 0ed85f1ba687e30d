package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts rule evaluations within one drain and enforces a
// maximum.
//
// The engine itself guarantees nothing about termination: an action that
// keeps re-satisfying its own record loops forever. A quota turns that into
// an error for hosts that would rather stop than hang.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
//
// Returns StepsExceededError if the quota is exceeded. The counter is rolled
// back on failure so the caller can report the steps actually taken.
func (q *QuotaEnforcer) Check(drainID string) error {
	q.current++
	if q.current > q.maxSteps {
		q.current--
		return &StepsExceededError{
			DrainID: drainID,
			Steps:   q.current,
			Limit:   q.maxSteps,
		}
	}
	return nil
}

// StepsExceededError is returned when a drain evaluates more records than
// its quota allows. The record that would have exceeded the quota is left at
// the head of the queue.
type StepsExceededError struct {
	DrainID string
	Steps   int
	Limit   int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("drain %s exceeded max steps quota: %d steps, limit %d",
		e.DrainID, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
