package engine

// activationQueue is the FIFO work list of activation records awaiting
// evaluation.
//
// The same record may appear more than once if it qualifies again before
// the queue drains. Entries are handles to the live record, not snapshots.
//
// Unlike a host-facing event queue there is no locking: enqueues happen
// synchronously inside cell writes on the single writer's call stack.
type activationQueue struct {
	items []*Activation
}

// newActivationQueue creates an empty queue.
func newActivationQueue() *activationQueue {
	return &activationQueue{
		items: make([]*Activation, 0, 64),
	}
}

// Enqueue appends a record to the back of the queue.
func (q *activationQueue) Enqueue(a *Activation) {
	q.items = append(q.items, a)
}

// TryDequeue removes and returns the front record.
// Returns (nil, false) if the queue is empty.
func (q *activationQueue) TryDequeue() (*Activation, bool) {
	if len(q.items) == 0 {
		return nil, false
	}

	a := q.items[0]

	// Nil out the slot so the backing array does not pin drained records.
	q.items[0] = nil

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return a, true
}

// Len returns the current queue length.
func (q *activationQueue) Len() int {
	return len(q.items)
}

// Clear drops every pending entry.
func (q *activationQueue) Clear() {
	for i := range q.items {
		q.items[i] = nil
	}
	q.items = q.items[:0]
}
