package engine

// Evaluation describes one dequeued activation record.
type Evaluation struct {
	// DrainID identifies the ExecuteActivations call.
	DrainID string

	// Seq is the logical clock value assigned to this evaluation.
	Seq int64

	// Rule is the rule's name.
	Rule string

	// Condition is the condition's result. False when the condition failed.
	Condition bool

	// Acted is true when the action ran to completion.
	Acted bool

	// Err is the error returned by the condition or action, if any.
	Err error
}

// Observer receives drain and evaluation events, in order, on the writer's
// goroutine. Implementations must not write cells.
type Observer interface {
	DrainStarted(drainID string, queued int)
	Evaluated(ev Evaluation)
	DrainFinished(drainID string, evaluated int, err error)
}
