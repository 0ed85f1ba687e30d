package trace

import (
	"bytes"
	"fmt"

	"github.com/roach88/pachinko/internal/cell"
	"github.com/roach88/pachinko/internal/engine"
)

// Event kinds.
const (
	KindDrainStarted  = "drain_started"
	KindEvaluated     = "evaluated"
	KindDrainFinished = "drain_finished"
)

// Event is one observer callback.
type Event struct {
	Kind    string
	DrainID string

	// drain_started: Queued. drain_finished: Evaluated, Error.
	Queued    int
	Evaluated int

	// evaluated
	Seq       int64
	Rule      string
	Condition bool
	Acted     bool

	Error string
}

// Object returns the event as a JSON object holding only the fields that
// apply to its kind.
func (e Event) Object() map[string]any {
	obj := map[string]any{
		"kind":     e.Kind,
		"drain_id": e.DrainID,
	}
	switch e.Kind {
	case KindDrainStarted:
		obj["queued"] = e.Queued
	case KindEvaluated:
		obj["seq"] = e.Seq
		obj["rule"] = e.Rule
		obj["condition"] = e.Condition
		obj["acted"] = e.Acted
	case KindDrainFinished:
		obj["evaluated"] = e.Evaluated
	}
	if e.Error != "" {
		obj["error"] = e.Error
	}
	return obj
}

// Recorder keeps every observer callback in order.
type Recorder struct {
	events []Event
}

var _ engine.Observer = (*Recorder)(nil)

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) DrainStarted(drainID string, queued int) {
	r.events = append(r.events, Event{Kind: KindDrainStarted, DrainID: drainID, Queued: queued})
}

func (r *Recorder) Evaluated(ev engine.Evaluation) {
	r.events = append(r.events, Event{
		Kind:      KindEvaluated,
		DrainID:   ev.DrainID,
		Seq:       ev.Seq,
		Rule:      ev.Rule,
		Condition: ev.Condition,
		Acted:     ev.Acted,
		Error:     errString(ev.Err),
	})
}

func (r *Recorder) DrainFinished(drainID string, evaluated int, err error) {
	r.events = append(r.events, Event{
		Kind:      KindDrainFinished,
		DrainID:   drainID,
		Evaluated: evaluated,
		Error:     errString(err),
	})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Fired returns the names of rules whose action ran, in execution order.
func (r *Recorder) Fired() []string {
	var out []string
	for _, e := range r.events {
		if e.Kind == KindEvaluated && e.Acted {
			out = append(out, e.Rule)
		}
	}
	return out
}

// FireCount returns how many times rule's action ran.
func (r *Recorder) FireCount(rule string) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == KindEvaluated && e.Acted && e.Rule == rule {
			n++
		}
	}
	return n
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	r.events = nil
}

// JSONLines renders the trace as canonical JSON, one event per line.
func (r *Recorder) JSONLines() ([]byte, error) {
	return EncodeLines(r.events)
}

// EncodeLines renders events as canonical JSON, one event per line.
func EncodeLines(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	for i, e := range events {
		line, err := Canonical(e.Object())
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Changes renders the values of the given cells as a canonical JSON object
// keyed by cell name. When a name occurs more than once the last cell wins.
func Changes(a *cell.Arena, ids []cell.ID) ([]byte, error) {
	obj := make(map[string]any, len(ids))
	for _, id := range ids {
		if !a.Valid(id) {
			continue
		}
		obj[a.Name(id)] = a.Value(id)
	}
	return Canonical(obj)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
