package events

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenhome/haven.go/pkg/frame"
)

func event(i int) Event {
	return Event{ID: fmt.Sprintf("ev-%03d", i), Type: "base:ValueChange", Source: "DRIV:dev:d1"}
}

func TestBufferEvictsOldestFirst(t *testing.T) {
	b := NewBuffer(100)
	for i := 0; i < 150; i++ {
		b.Append(event(i))
	}

	snapshot := b.Peek()
	require.Len(t, snapshot, 100)
	// Exactly the last 100, still in arrival order.
	for i, ev := range snapshot {
		assert.Equal(t, fmt.Sprintf("ev-%03d", i+50), ev.ID)
	}
}

func TestDrainEmptiesAtomically(t *testing.T) {
	b := NewBuffer(10)
	b.Append(event(0))
	b.Append(event(1))

	drained := b.Drain()
	require.Len(t, drained, 2)
	assert.Empty(t, b.Peek())

	// An append between two drains shows up in the later drain only.
	b.Append(event(2))
	second := b.Drain()
	require.Len(t, second, 1)
	assert.Equal(t, "ev-002", second[0].ID)
	assert.Empty(t, b.Drain())
}

func TestPeekDoesNotMutate(t *testing.T) {
	b := NewBuffer(10)
	b.Append(event(0))

	first := b.Peek()
	second := b.Peek()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, b.Len())

	// The snapshot is a copy, not a view.
	first[0].ID = "mutated"
	assert.Equal(t, "ev-000", b.Peek()[0].ID)
}

func TestConcurrentAppendAndDrainLosesNothing(t *testing.T) {
	const total = 500
	b := NewBuffer(total)

	var wg sync.WaitGroup
	seen := make(map[string]bool)
	var seenMu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			b.Append(event(i))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			for _, ev := range b.Drain() {
				seenMu.Lock()
				assert.False(t, seen[ev.ID], "event %s drained twice", ev.ID)
				seen[ev.ID] = true
				seenMu.Unlock()
			}
			seenMu.Lock()
			done := len(seen) == total
			seenMu.Unlock()
			if done {
				return
			}
		}
	}()

	wg.Wait()
	assert.Len(t, seen, total)
}

func TestFromFrame(t *testing.T) {
	f := &frame.Frame{
		Headers: frame.Headers{Source: "DRIV:dev:d7"},
		Payload: frame.Payload{
			MessageType: "base:ValueChange",
			Attributes:  map[string]any{"temperature": 21.5},
		},
	}

	ev := FromFrame(f)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.ReceivedAt.IsZero())
	assert.Equal(t, "base:ValueChange", ev.Type)
	assert.Equal(t, "DRIV:dev:d7", ev.Source)
	assert.Equal(t, map[string]any{"temperature": 21.5}, ev.Attributes)
}

func TestFromFrameIDsFollowArrivalOrder(t *testing.T) {
	f := &frame.Frame{Payload: frame.Payload{MessageType: "base:ValueChange"}}
	a := FromFrame(f)
	b := FromFrame(f)
	assert.Less(t, a.ID, b.ID)
}
