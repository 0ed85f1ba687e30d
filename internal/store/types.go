package store

// Drain is one journaled ExecuteActivations call.
type Drain struct {
	ID        string `json:"id"`
	Ord       int64  `json:"ord"`
	Queued    int    `json:"queued"`
	Evaluated int    `json:"evaluated"`
	Error     string `json:"error,omitempty"`

	// Changes is a canonical JSON object of the variables written since the
	// previous drain, this drain's writes included.
	Changes string `json:"changes"`

	Evaluations []Evaluation `json:"evaluations,omitempty"`
}

// Evaluation is one dequeued record.
type Evaluation struct {
	DrainID   string `json:"drain_id"`
	Seq       int64  `json:"seq"`
	Rule      string `json:"rule"`
	Condition bool   `json:"condition"`
	Acted     bool   `json:"acted"`
	Error     string `json:"error,omitempty"`
}
