package connection

import (
	"sync"

	"github.com/havenhome/haven.go/pkg/constants"
	"github.com/havenhome/haven.go/pkg/events"
	"github.com/havenhome/haven.go/pkg/frame"
)

// EventSink receives inbound frames that matched no pending correlation.
// The client wires its event buffer in here so buffered events survive the
// connection they arrived on.
type EventSink interface {
	Append(ev events.Event)
}

// correlationTable maps correlation identifiers to the channel the issuing
// Send call waits on. A delivered response is sent and the channel closed;
// a channel closed without a value means the connection was lost.
//
// Lookup and removal happen under one lock acquisition, so an inbound
// frame is delivered to at most one waiter and the entry is gone before
// anything else can observe it.
type correlationTable struct {
	mu      sync.Mutex
	pending map[string]chan *frame.Frame
	closed  bool
}

func newCorrelationTable() *correlationTable {
	return &correlationTable{pending: make(map[string]chan *frame.Frame)}
}

func (t *correlationTable) register(id string) (chan *frame.Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, constants.ErrConnectionLost
	}
	if _, ok := t.pending[id]; ok {
		return nil, constants.ErrIDInUse
	}

	// Capacity 1 so the dispatch loop never blocks on a waiter that has
	// already timed out.
	ch := make(chan *frame.Frame, 1)
	t.pending[id] = ch
	return ch, nil
}

// take removes and returns the waiter for id, if any.
func (t *correlationTable) take(id string) (chan *frame.Frame, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return ch, ok
}

func (t *correlationTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
}

// failAll closes every pending waiter, failing all outstanding requests
// simultaneously, and refuses registrations from then on.
func (t *correlationTable) failAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
}

func (t *correlationTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
