package constants

import "errors"

// Errors
var (
	// ErrNotConnected is returned when a request is issued while no
	// connection is open.
	ErrNotConnected = errors.New("not connected")

	// ErrRequestTimeout is returned when a correlated request received no
	// matching response before its deadline. Only the affected request
	// fails; the connection stays up.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrConnectionLost is returned for every request that was outstanding
	// when the transport closed unexpectedly.
	ErrConnectionLost = errors.New("connection lost")

	// ErrConnectionFailed is returned when opening the transport or waiting
	// for the session announcement failed during connect.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrIDInUse guards the invariant that at most one request is pending
	// per correlation identifier.
	ErrIDInUse = errors.New("correlation id already in use")

	ErrNoEndpoint = errors.New("endpoint not set")
)
