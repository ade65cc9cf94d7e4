package haven

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/havenhome/haven.go/pkg/auth"
	"github.com/havenhome/haven.go/pkg/connection"
	"github.com/havenhome/haven.go/pkg/constants"
	"github.com/havenhome/haven.go/pkg/events"
	"github.com/havenhome/haven.go/pkg/frame"
	"github.com/havenhome/haven.go/pkg/logger"
)

// Config configures a Client. Endpoint is required; everything else has a
// usable default.
type Config struct {
	// Endpoint is the platform base URL, http(s) or ws(s) scheme. The
	// login exchange and the duplex connection both derive from it.
	Endpoint string

	// Username and Password are exchanged for a token on the first
	// Connect, unless Token is set.
	Username string
	Password string

	// Token, if set, skips the login exchange.
	Token string

	// Timeout bounds each correlated request and the wait for the session
	// announcement. Zero means constants.DefaultRequestTimeout.
	Timeout time.Duration

	// Backoff is the reconnection delay sequence. Nil means
	// constants.DefaultBackoff.
	Backoff []time.Duration

	// BufferCapacity bounds the unsolicited event buffer. Zero means
	// constants.DefaultEventBufferCapacity.
	BufferCapacity int

	// HTTPClient is used for the login exchange only.
	HTTPClient *http.Client

	Logger logger.Logger
}

// Client maintains one logical connection to the gateway: it logs in,
// opens the duplex connection, correlates requests with responses, buffers
// server pushes, and transparently reconnects with backoff after an
// unplanned disconnect.
//
// A Client holds at most one underlying transport at a time; reconnection
// discards the dead one entirely before opening the next.
type Client struct {
	httpURL string
	wsURL   string

	timeout time.Duration
	backoff Backoff
	authc   *auth.Authenticator
	buffer  *events.Buffer
	logger  logger.Logger

	// after is the reconnection timer source, replaced in tests to avoid
	// real delays.
	after func(d time.Duration) <-chan time.Time

	mu          sync.Mutex
	state       State
	conn        *connection.WebSocketConnection
	sess        *frame.Session
	token       string
	username    string
	password    string
	activePlace string
	haltCh      chan struct{}
}

// New builds a Client from the config. It performs no I/O; call Connect to
// establish the session.
func New(conf Config) (*Client, error) {
	httpURL, wsURL, err := endpointURLs(conf.Endpoint)
	if err != nil {
		return nil, err
	}

	timeout := conf.Timeout
	if timeout == 0 {
		timeout = constants.DefaultRequestTimeout
	}
	backoff := conf.Backoff
	if backoff == nil {
		backoff = constants.DefaultBackoff
	}
	capacity := conf.BufferCapacity
	if capacity == 0 {
		capacity = constants.DefaultEventBufferCapacity
	}
	log := conf.Logger
	if log == nil {
		log = logger.New(os.Stderr)
	}

	return &Client{
		httpURL: httpURL,
		wsURL:   wsURL,
		timeout: timeout,
		backoff: Backoff{Sequence: backoff},
		authc: &auth.Authenticator{
			Endpoint:   httpURL,
			HTTPClient: conf.HTTPClient,
		},
		buffer:   events.NewBuffer(capacity),
		logger:   log,
		after:    time.After,
		state:    StateDisconnected,
		token:    conf.Token,
		username: conf.Username,
		password: conf.Password,
	}, nil
}

// endpointURLs derives the login and websocket base URLs from one endpoint.
func endpointURLs(endpoint string) (httpURL, wsURL string, err error) {
	if endpoint == "" {
		return "", "", constants.ErrNoEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", fmt.Errorf("invalid endpoint: %w", err)
	}

	httpScheme, wsScheme := "", ""
	switch u.Scheme {
	case constants.HTTPScheme, constants.WebsocketScheme:
		httpScheme, wsScheme = constants.HTTPScheme, constants.WebsocketScheme
	case constants.HTTPSecureScheme, constants.WebsocketSecureScheme:
		httpScheme, wsScheme = constants.HTTPSecureScheme, constants.WebsocketSecureScheme
	default:
		return "", "", fmt.Errorf("invalid endpoint scheme %q", u.Scheme)
	}

	return fmt.Sprintf("%s://%s", httpScheme, u.Host), fmt.Sprintf("%s://%s", wsScheme, u.Host), nil
}

// Connect establishes the session. It is idempotent while the connection
// is Open: the current session is returned without a new exchange.
//
// On the first call it logs in with the configured credentials unless a
// token was supplied. A connect that fails before the session announcement
// surfaces the failure here and does not engage reconnection; that only
// applies to connections lost after they were established.
func (c *Client) Connect(ctx context.Context) (*frame.Session, error) {
	c.mu.Lock()
	switch c.state {
	case StateOpen:
		sess := c.sess
		c.mu.Unlock()
		return sess, nil
	case StateDisconnected:
	default:
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: connection attempt already in progress (%v)", constants.ErrConnectionFailed, state)
	}
	c.mustTransitionTo(StateConnecting)
	halt := make(chan struct{})
	c.haltCh = halt
	token := c.token
	c.mu.Unlock()

	if token == "" {
		var err error
		token, err = c.authc.Login(ctx, c.username, c.password)
		if err != nil {
			c.disconnectedAfterFailure(halt)
			return nil, err
		}
	}

	sess, conn, err := c.open(ctx, token)
	if err != nil {
		c.disconnectedAfterFailure(halt)
		return nil, err
	}

	c.mu.Lock()
	select {
	case <-halt:
		// Disconnect raced the connect; drop the fresh transport. The
		// state now belongs to whoever ran after the Disconnect.
		c.mu.Unlock()
		closeCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		_ = conn.Close(closeCtx)
		return nil, fmt.Errorf("%w: client disconnected during connect", constants.ErrConnectionFailed)
	default:
	}
	c.token = token
	c.conn = conn
	c.sess = sess
	c.mustTransitionTo(StateOpen)
	c.mu.Unlock()

	c.logger.Info("session established", "personId", sess.PersonID, "places", len(sess.Places))
	return sess, nil
}

// open dials a fresh transport and waits for its session announcement.
func (c *Client) open(ctx context.Context, token string) (*frame.Session, *connection.WebSocketConnection, error) {
	var conn *connection.WebSocketConnection
	conn = connection.New(connection.NewConnectionParams{
		BaseURL: c.wsURL,
		Token:   token,
		Timeout: c.timeout,
		Events:  c.buffer,
		Logger:  c.logger,
		OnClose: func(err error) { c.handleLost(conn, err) },
	})

	sess, err := conn.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	return sess, conn, nil
}

func (c *Client) disconnectedAfterFailure(halt chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-halt:
		// A Disconnect already took the state to Disconnected, and a
		// later Connect may own it again by now.
		return
	default:
	}
	c.mustTransitionTo(StateDisconnected)
}

// Request issues one correlated request against the open connection and
// waits for the matching response frame.
//
// It fails with constants.ErrNotConnected unless the connection is Open,
// constants.ErrRequestTimeout when the deadline passes, and
// constants.ErrConnectionLost when the transport closes first. A
// protocol-level Error frame is returned as a normal completion; inspect
// it with frame.Frame.Err.
func (c *Client) Request(ctx context.Context, destination, messageType string, attributes map[string]any) (*frame.Frame, error) {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return nil, constants.ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	return conn.Send(ctx, destination, messageType, attributes)
}

// SetActivePlace selects the place scoping this session on the server.
// The choice is remembered for the client's lifetime and replayed
// automatically after every successful reconnection.
func (c *Client) SetActivePlace(ctx context.Context, placeID string) error {
	res, err := c.Request(ctx, frame.SessionAddress(), frame.TypeSetActivePlace, map[string]any{
		"placeId": placeID,
	})
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.activePlace = placeID
	c.mu.Unlock()
	return nil
}

// ActivePlace returns the place selected via SetActivePlace, if any.
func (c *Client) ActivePlace() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activePlace
}

// Session returns the session announced on the current connection, or nil
// while no connection is open.
func (c *Client) Session() *frame.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DrainEvents returns all buffered server pushes in arrival order and
// empties the buffer atomically.
func (c *Client) DrainEvents() []events.Event {
	return c.buffer.Drain()
}

// PeekEvents returns a snapshot of the buffered server pushes without
// consuming them.
func (c *Client) PeekEvents() []events.Event {
	return c.buffer.Peek()
}

// Disconnect closes the connection on caller initiative, fails any
// outstanding requests, and permanently halts reconnection for this
// client until Connect is called again. It is idempotent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	if c.haltCh != nil {
		select {
		case <-c.haltCh:
		default:
			close(c.haltCh)
		}
	}
	conn := c.conn
	c.conn = nil
	c.sess = nil
	c.mustTransitionTo(StateDisconnected)
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return conn.Close(ctx)
}

// handleLost is the OnClose hook of the current connection. Anything but
// an unplanned closure of the connection we reached Open on is ignored:
// explicit closes suppress the hook, and a stale hook from an already
// replaced connection must not restart the machine.
func (c *Client) handleLost(conn *connection.WebSocketConnection, cause error) {
	c.mu.Lock()
	if c.conn != conn || c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	c.mustTransitionTo(StateReconnecting)
	halt := c.haltCh
	c.mu.Unlock()

	c.logger.Warn("connection lost, reconnecting", "error", cause)
	go c.reconnectLoop(halt)
}

// reconnectLoop drives reconnection attempts until one succeeds or the
// client is explicitly disconnected. Each attempt opens a completely fresh
// transport with the last known token and runs the same
// open-and-await-announcement sequence as Connect. The backoff index
// resets implicitly on success, since the next outage starts a new loop.
func (c *Client) reconnectLoop(halt chan struct{}) {
	for attempt := 0; ; attempt++ {
		delay := c.backoff.Delay(attempt)
		c.logger.Info("scheduling reconnection attempt", "attempt", attempt+1, "delay", delay)

		select {
		case <-halt:
			return
		case <-c.after(delay):
		}

		// While halt is open this loop owns the state: Disconnect closes
		// halt under the mutex before touching it, and Connect can only
		// run after a Disconnect. Every gate below re-checks halt rather
		// than inferring ownership from the state value, which a newer
		// Connect attempt could have set to the same thing.
		c.mu.Lock()
		select {
		case <-halt:
			c.mu.Unlock()
			return
		default:
		}
		c.mustTransitionTo(StateConnecting)
		token := c.token
		c.mu.Unlock()

		sess, conn, err := c.open(context.Background(), token)
		if err != nil {
			c.logger.Warn("reconnection attempt failed", "attempt", attempt+1, "error", err)
			c.mu.Lock()
			select {
			case <-halt:
				c.mu.Unlock()
				return
			default:
			}
			c.mustTransitionTo(StateReconnecting)
			c.mu.Unlock()
			continue
		}

		c.mu.Lock()
		select {
		case <-halt:
			// Disconnect raced the successful attempt; drop the fresh
			// transport and stay down.
			c.mu.Unlock()
			ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
			_ = conn.Close(ctx)
			cancel()
			return
		default:
		}
		c.conn = conn
		c.sess = sess
		activePlace := c.activePlace
		c.mu.Unlock()

		// Session-scoped server state is rebuilt before recovery is
		// declared complete. Failure here is logged, never raised: the
		// connection itself is good.
		if activePlace != "" {
			c.restoreActivePlace(conn, activePlace)
		}

		c.mu.Lock()
		select {
		case <-halt:
			// Disconnect raced the recovery; it already closed the fresh
			// transport for us.
			c.mu.Unlock()
			return
		default:
		}
		c.mustTransitionTo(StateOpen)
		c.mu.Unlock()
		c.logger.Info("reconnected", "attempts", attempt+1)

		// The transport may have died between the announcement and now;
		// the OnClose hook ignored it because we were not Open yet.
		if conn.Closed() {
			c.handleLost(conn, errors.New("connection closed during recovery"))
		}
		return
	}
}

func (c *Client) restoreActivePlace(conn *connection.WebSocketConnection, placeID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	res, err := conn.Send(ctx, frame.SessionAddress(), frame.TypeSetActivePlace, map[string]any{
		"placeId": placeID,
	})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		c.logger.Warn("failed to restore active place after reconnect", "placeId", placeID, "error", err)
		return
	}
	c.logger.Debug("restored active place after reconnect", "placeId", placeID)
}

func (c *Client) mustTransitionTo(newState State) {
	if err := c.state.validateTransitionTo(newState); err != nil {
		panic(fmt.Sprintf("BUG: %v", err))
	}
	c.state = newState
	c.logger.Debug("client state transitioned", "new_state", newState)
}
