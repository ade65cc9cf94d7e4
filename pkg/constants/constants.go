package constants

import "time"

var (
	WebsocketScheme       = "ws"
	WebsocketSecureScheme = "wss"
	HTTPScheme            = "http"
	HTTPSecureScheme      = "https"
)

const (
	// DefaultRequestTimeout bounds how long a correlated request waits for
	// its matching response. The same bound applies to waiting for the
	// session-announcement frame during connect, since the platform gives
	// no other signal that a silent-but-open transport is stuck.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultEventBufferCapacity is the number of unsolicited events kept
	// before the oldest are evicted.
	DefaultEventBufferCapacity = 100

	// LoginPath is the HTTP path the platform exposes for credential login.
	LoginPath = "/login"

	// WebsocketPath is the path the gateway serves the duplex connection on.
	WebsocketPath = "/websocket"

	// AuthTokenCookie is the name of the cookie the login response carries
	// the bearer token in.
	AuthTokenCookie = "havenAuthToken"

	CloseMessageCode = 1000
)

// DefaultBackoff is the delay sequence between reconnection attempts after
// an unplanned disconnect. Once exhausted, the final value repeats.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}
