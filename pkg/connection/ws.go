// Package connection owns one transport lifetime of the duplex connection
// to the gateway: dialing, the session announcement handshake, correlated
// request/response exchange, classification of inbound frames, and
// keepalive handling.
//
// Reconnection is deliberately not handled here. A lost connection fails
// every outstanding request, reports through the OnClose hook exactly
// once, and leaves this object dead; the client opens a fresh
// WebSocketConnection for every attempt.
package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"

	"github.com/havenhome/haven.go/pkg/constants"
	"github.com/havenhome/haven.go/pkg/events"
	"github.com/havenhome/haven.go/pkg/frame"
	"github.com/havenhome/haven.go/pkg/logger"
)

// DefaultDialer is the gorilla dialer used by WebSocketConnection, the
// stock dialer with compression enabled.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
}

const controlWriteWait = 5 * time.Second

// NewConnectionParams configures one WebSocketConnection.
type NewConnectionParams struct {
	// BaseURL is the gateway endpoint, e.g. "wss://gateway.example.com".
	BaseURL string

	// Token is the bearer token obtained from the authenticator.
	Token string

	// Timeout bounds each correlated request, and also the wait for the
	// session announcement during Connect. Zero means
	// constants.DefaultRequestTimeout.
	Timeout time.Duration

	// Events receives unsolicited inbound frames.
	Events EventSink

	// OnClose, if set, is invoked exactly once when the transport closes
	// without Close having been called, after all outstanding requests
	// have been failed.
	OnClose func(err error)

	Logger logger.Logger
}

// WebSocketConnection is a single duplex connection to the gateway. It is
// created Disconnected and becomes usable once Connect returns the session
// announced by the server.
type WebSocketConnection struct {
	conn     *gorilla.Conn
	connLock sync.Mutex // serializes outbound writes

	table   *correlationTable
	events  EventSink
	onClose func(err error)

	baseURL string
	token   string
	timeout time.Duration
	logger  logger.Logger

	// sessionCh carries the parsed session announcement from the read
	// loop to the Connect call, capacity 1.
	sessionCh chan *frame.Session

	closeOnce sync.Once
	closeCh   chan struct{}
	explicit  atomic.Bool
}

func New(p NewConnectionParams) *WebSocketConnection {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = constants.DefaultRequestTimeout
	}
	return &WebSocketConnection{
		table:     newCorrelationTable(),
		events:    p.Events,
		onClose:   p.OnClose,
		baseURL:   p.BaseURL,
		token:     p.Token,
		timeout:   timeout,
		logger:    p.Logger,
		sessionCh: make(chan *frame.Session, 1),
		closeCh:   make(chan struct{}),
	}
}

// Connect dials the gateway, starts the read loop and waits for the
// session announcement. No inbound frame before the announcement is
// meaningful; the connection is usable only after Connect returns.
//
// The wait for the announcement is bounded by the request timeout: an open
// but silent transport fails the connect rather than hanging it.
func (ws *WebSocketConnection) Connect(ctx context.Context) (*frame.Session, error) {
	if ws.baseURL == "" {
		return nil, constants.ErrNoEndpoint
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+ws.token)

	conn, res, err := DefaultDialer.DialContext(ctx, ws.baseURL+constants.WebsocketPath, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", constants.ErrConnectionFailed, err)
	}
	defer res.Body.Close()

	ws.conn = conn
	ws.conn.SetPingHandler(func(appData string) error {
		// Keepalive probes are answered in-protocol and never surface.
		ws.logger.Debug("answering keepalive ping")
		return ws.conn.WriteControl(gorilla.PongMessage, []byte(appData), time.Now().Add(controlWriteWait))
	})

	go ws.readLoop()

	timer := time.NewTimer(ws.timeout)
	defer timer.Stop()

	select {
	case sess := <-ws.sessionCh:
		return sess, nil
	case <-ws.closeCh:
		return nil, fmt.Errorf("%w: transport closed before session announcement", constants.ErrConnectionFailed)
	case <-timer.C:
		ws.teardown(fmt.Errorf("session announcement not received within %v", ws.timeout))
		return nil, fmt.Errorf("%w: session announcement not received within %v", constants.ErrConnectionFailed, ws.timeout)
	case <-ctx.Done():
		ws.teardown(ctx.Err())
		return nil, fmt.Errorf("%w: %v", constants.ErrConnectionFailed, ctx.Err())
	}
}

// Send issues one correlated request and waits for the matching response.
//
// It returns the inbound frame on correlation, constants.ErrRequestTimeout
// once the deadline passes, or constants.ErrConnectionLost if the
// transport closes first. Multiple Sends may be outstanding concurrently;
// completion order follows server response timing only.
//
// A protocol-level Error frame is a valid completion: it is returned with
// a nil error and callers inspect it via frame.Frame.Err.
func (ws *WebSocketConnection) Send(ctx context.Context, destination, messageType string, attributes map[string]any) (*frame.Frame, error) {
	select {
	case <-ws.closeCh:
		return nil, constants.ErrConnectionLost
	default:
	}

	id := uuid.NewString()
	responseChan, err := ws.table.register(id)
	if err != nil {
		return nil, err
	}
	defer ws.table.remove(id)

	req := frame.NewRequest(destination, messageType, id, attributes)
	if err := ws.write(req); err != nil {
		return nil, fmt.Errorf("%w: %v", constants.ErrConnectionLost, err)
	}

	timer := time.NewTimer(ws.timeout)
	defer timer.Stop()

	select {
	case res, open := <-responseChan:
		if !open {
			return nil, constants.ErrConnectionLost
		}
		return res, nil
	case <-timer.C:
		// The deferred remove drops the table entry; a late frame with
		// this correlation id will be classified as unsolicited.
		return nil, constants.ErrRequestTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the connection down on caller initiative. Outstanding
// requests fail, but the OnClose hook is suppressed so no reconnection is
// triggered. Safe to call more than once.
func (ws *WebSocketConnection) Close(ctx context.Context) error {
	ws.explicit.Store(true)

	if ws.Closed() {
		return nil
	}
	if ws.conn == nil {
		ws.teardown(nil)
		return nil
	}

	// Best effort close message first, so the server learns about the
	// shutdown; the transport is torn down regardless.
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- ws.conn.WriteControl(
			gorilla.CloseMessage,
			gorilla.FormatCloseMessage(constants.CloseMessageCode, ""),
			time.Now().Add(controlWriteWait),
		)
	}()

	select {
	case err := <-writeErr:
		if err != nil {
			ws.logger.Debug("failed to write close message", "error", err)
		}
	case <-ctx.Done():
	}

	// teardown closes the transport itself; routing everything through it
	// keeps Close idempotent against a racing read-loop exit.
	ws.teardown(nil)
	return nil
}

// Closed reports whether the connection has been torn down, by either side.
func (ws *WebSocketConnection) Closed() bool {
	select {
	case <-ws.closeCh:
		return true
	default:
		return false
	}
}

// PendingRequests reports how many correlated requests are outstanding.
func (ws *WebSocketConnection) PendingRequests() int {
	return ws.table.len()
}

func (ws *WebSocketConnection) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ws.connLock.Lock()
	defer ws.connLock.Unlock()
	return ws.conn.WriteMessage(gorilla.TextMessage, data)
}

// readLoop is the single reader of the transport. Frames are dispatched
// inline: the connection delivers them strictly serially, which is what
// keeps correlation-table mutation free of registered-versus-arrived races.
func (ws *WebSocketConnection) readLoop() {
	announced := false
	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			ws.teardown(err)
			return
		}
		announced = ws.dispatch(data, announced)
	}
}

// dispatch classifies one inbound frame. It returns whether the session
// announcement has been seen, which gates all meaningful traffic.
func (ws *WebSocketConnection) dispatch(data []byte, announced bool) bool {
	var f frame.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		// Malformed frames are dropped; they never surface to a caller.
		ws.logger.Debug("dropping malformed frame", "error", err)
		return announced
	}

	if !announced {
		if !f.IsSessionCreated() {
			ws.logger.Debug("dropping frame received before session announcement", "messageType", f.Payload.MessageType)
			return false
		}
		sess, err := frame.SessionFromFrame(&f)
		if err != nil {
			ws.logger.Debug("dropping malformed session announcement", "error", err)
			return false
		}
		ws.sessionCh <- sess
		return true
	}

	if id := f.Headers.CorrelationID; id != "" {
		if responseChan, ok := ws.table.take(id); ok {
			responseChan <- &f
			close(responseChan)
			return true
		}
	}

	ws.events.Append(events.FromFrame(&f))
	return true
}

// teardown runs exactly once per connection. It closes the transport,
// fails every outstanding request with ErrConnectionLost, and fires the
// OnClose hook unless the close was caller-initiated.
func (ws *WebSocketConnection) teardown(cause error) {
	ws.closeOnce.Do(func() {
		close(ws.closeCh)
		if ws.conn != nil {
			_ = ws.conn.Close()
		}
		ws.table.failAll()

		if ws.explicit.Load() {
			return
		}
		if cause != nil {
			ws.logger.Debug("transport closed", "error", cause)
		}
		if ws.onClose != nil {
			ws.onClose(cause)
		}
	})
}
