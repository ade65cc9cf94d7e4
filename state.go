package haven

import "fmt"

// State is the connection lifecycle state of a Client. It is owned
// exclusively by the client; callers only ever observe it.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateReconnecting:
		return "Reconnecting"
	default:
		return "InvalidState"
	}
}

func (s State) validateTransitionTo(newState State) error {
	// Any state may drop to Disconnected: that transition is reserved for
	// explicit caller-initiated close, which is idempotent.
	if newState == StateDisconnected {
		return nil
	}

	switch s {
	case StateDisconnected:
		if newState == StateConnecting {
			return nil
		}
	case StateConnecting:
		switch newState {
		case StateOpen, StateReconnecting:
			return nil
		}
	case StateOpen:
		if newState == StateReconnecting {
			return nil
		}
	case StateReconnecting:
		if newState == StateConnecting {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %v to %v", s, newState)
}
