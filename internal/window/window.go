// Package window provides a tick-ordered sliding window usable as a cell
// value.
//
// A Window is mutated in place. Rules that change a window held in a cell
// should write the same pointer back afterwards so the cell's subscribers
// are notified.
package window

import (
	"encoding/json"
	"fmt"
)

// Tick is one event stamped with the logical time it occurred at.
type Tick[T any] struct {
	Tick  int64 `json:"tick"`
	Event T     `json:"event"`
}

// OutOfOrderError is returned by Append when a tick is older than the
// newest tick already in the window.
type OutOfOrderError struct {
	Tick   int64
	Newest int64
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("window: tick %d is older than newest tick %d", e.Tick, e.Newest)
}

// Window holds events in non-decreasing tick order.
type Window[T any] struct {
	ticks []Tick[T]
	head  int
}

// New returns an empty window.
func New[T any]() *Window[T] {
	return &Window[T]{}
}

// Append adds an event at the tail.
func (w *Window[T]) Append(tick int64, event T) error {
	if n := w.Len(); n > 0 {
		if newest := w.ticks[len(w.ticks)-1].Tick; tick < newest {
			return &OutOfOrderError{Tick: tick, Newest: newest}
		}
	}
	w.ticks = append(w.ticks, Tick[T]{Tick: tick, Event: event})
	return nil
}

// Expire removes every event with a tick at or before upTo and returns them
// oldest first.
func (w *Window[T]) Expire(upTo int64) []Tick[T] {
	start := w.head
	for w.head < len(w.ticks) && w.ticks[w.head].Tick <= upTo {
		w.head++
	}
	if w.head == start {
		return nil
	}

	expired := make([]Tick[T], w.head-start)
	copy(expired, w.ticks[start:w.head])

	var zero Tick[T]
	for i := start; i < w.head; i++ {
		w.ticks[i] = zero
	}
	w.compact()
	return expired
}

// Len returns the number of events in the window.
func (w *Window[T]) Len() int {
	return len(w.ticks) - w.head
}

// Empty reports whether the window holds no events.
func (w *Window[T]) Empty() bool {
	return w.Len() == 0
}

// Clear removes every event.
func (w *Window[T]) Clear() {
	w.ticks = nil
	w.head = 0
}

// Ticks returns a copy of the window's events, oldest first.
func (w *Window[T]) Ticks() []Tick[T] {
	out := make([]Tick[T], w.Len())
	copy(out, w.ticks[w.head:])
	return out
}

// compact reclaims the expired prefix once it dominates the backing slice.
func (w *Window[T]) compact() {
	if w.head == len(w.ticks) {
		w.ticks = w.ticks[:0]
		w.head = 0
		return
	}
	if w.head > len(w.ticks)/2 {
		n := copy(w.ticks, w.ticks[w.head:])
		w.ticks = w.ticks[:n]
		w.head = 0
	}
}

// MarshalJSON encodes the window as its events, oldest first.
func (w *Window[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Ticks())
}
