package event

// Queue is the FIFO channel between simulation components. It is not safe for
// concurrent use: one loop pushes and pops within a tick.
type Queue struct {
	events []Event
}

// NewQueue creates a new event queue
func NewQueue() *Queue {
	return &Queue{
		events: make([]Event, 0),
	}
}

// Push adds an event to the back of the queue
func (q *Queue) Push(e Event) {
	q.events = append(q.events, e)
}

// Pop removes and returns the next event from the queue, or nil when empty
func (q *Queue) Pop() Event {
	if len(q.events) == 0 {
		return nil
	}

	e := q.events[0]
	q.events[0] = nil
	q.events = q.events[1:]
	return e
}

// IsEmpty returns true if the queue is empty
func (q *Queue) IsEmpty() bool {
	return len(q.events) == 0
}

// Len returns the number of events in the queue
func (q *Queue) Len() int {
	return len(q.events)
}
