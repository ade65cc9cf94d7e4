package haven

import "time"

// Backoff steps through a fixed, ordered delay sequence spacing
// reconnection attempts. Once the sequence is exhausted the final value
// repeats for every further attempt; a successful reconnection starts the
// next outage back at the first delay.
type Backoff struct {
	Sequence []time.Duration
}

// Delay returns the wait before the given zero-based attempt, saturating
// at the last element of the sequence.
func (b Backoff) Delay(attempt int) time.Duration {
	if len(b.Sequence) == 0 {
		return 0
	}
	if attempt >= len(b.Sequence) {
		return b.Sequence[len(b.Sequence)-1]
	}
	return b.Sequence[attempt]
}
