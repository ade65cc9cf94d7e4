// Package events buffers unsolicited frames pushed by the gateway.
//
// Inbound frames that match no pending correlation are server push
// notifications. The connection layer appends them here; callers drain or
// peek snapshots and apply whatever semantic filtering they need on their
// side. The buffer itself never filters or deduplicates.
package events

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/havenhome/haven.go/pkg/frame"
)

// Event is one buffered push notification.
type Event struct {
	// ID is assigned at arrival, monotonic with arrival order.
	ID string

	// ReceivedAt is the client-side arrival timestamp.
	ReceivedAt time.Time

	// Type is the frame's payload message type.
	Type string

	// Source is the originating address.
	Source string

	Attributes map[string]any
}

// FromFrame converts an unsolicited inbound frame into an Event, stamping
// arrival time and identifier.
func FromFrame(f *frame.Frame) Event {
	return Event{
		ID:         ulid.Make().String(),
		ReceivedAt: time.Now(),
		Type:       f.Payload.MessageType,
		Source:     f.Headers.Source,
		Attributes: f.Payload.Attributes,
	}
}

// Buffer is a bounded FIFO of Events. Once capacity is exceeded the oldest
// events are evicted first. Safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	events   []Event
	capacity int
}

// NewBuffer returns a Buffer holding at most capacity events. A
// non-positive capacity falls back to 1.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{capacity: capacity}
}

// Append adds an event at the tail, evicting from the head once the buffer
// is over capacity.
func (b *Buffer) Append(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, ev)
	if excess := len(b.events) - b.capacity; excess > 0 {
		b.events = b.events[excess:]
	}
}

// Drain returns every buffered event in arrival order and empties the
// buffer in the same critical section, so no event is both drained and
// retained, and no concurrent append is lost between the read and the clear.
func (b *Buffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	drained := b.events
	b.events = nil
	return drained
}

// Peek returns a snapshot copy in arrival order without mutating the buffer.
func (b *Buffer) Peek() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := make([]Event, len(b.events))
	copy(snapshot, b.events)
	return snapshot
}

// Len reports the current number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
