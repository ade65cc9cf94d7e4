// Package gatewaytest provides a fake gateway for tests. It serves the
// login exchange over HTTP and speaks the frame protocol over WebSocket:
// it announces a session on every new connection, answers correlated
// requests through scripted responders, pushes unsolicited frames, and can
// drop connections to exercise reconnection paths.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	gorilla "github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/havenhome/haven.go/pkg/constants"
	"github.com/havenhome/haven.go/pkg/frame"
)

// Responder produces the response for one received request frame. A nil
// return means the request is left unanswered.
type Responder func(req *frame.Frame) *frame.Frame

// Server is a fake gateway running on an httptest server.
type Server struct {
	hs       *httptest.Server
	upgrader gorilla.Upgrader

	token    string
	announce bool
	session  frame.Session

	mu         sync.Mutex
	conns      []*serverConn
	received   []frame.Frame
	responders map[string]Responder

	total atomic.Int64
	group errgroup.Group

	pongs chan string
}

type serverConn struct {
	conn    *gorilla.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

func (sc *serverConn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.conn.WriteMessage(gorilla.TextMessage, data)
}

func (sc *serverConn) writeRaw(data []byte) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.conn.WriteMessage(gorilla.TextMessage, data)
}

type Option func(*Server)

// WithSession replaces the session announced on each new connection.
func WithSession(s frame.Session) Option {
	return func(srv *Server) { srv.session = s }
}

// WithoutAnnouncement keeps the server silent after the upgrade, for
// exercising the bounded announcement wait.
func WithoutAnnouncement() Option {
	return func(srv *Server) { srv.announce = false }
}

// WithToken sets the token value the login endpoint hands out.
func WithToken(token string) Option {
	return func(srv *Server) { srv.token = token }
}

// WithResponder scripts the response for one message type.
func WithResponder(messageType string, r Responder) Option {
	return func(srv *Server) { srv.responders[messageType] = r }
}

// New starts a fake gateway. Callers must Close it.
func New(opts ...Option) *Server {
	srv := &Server{
		token:    "test-token",
		announce: true,
		session: frame.Session{
			PersonID: "person-1",
			Places: []frame.Place{
				{PlaceID: "place-1", PlaceName: "Home", AccountID: "account-1", Role: "OWNER"},
			},
		},
		responders: map[string]Responder{},
		pongs:      make(chan string, 16),
	}
	for _, opt := range opts {
		opt(srv)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(constants.LoginPath, srv.handleLogin)
	mux.HandleFunc(constants.WebsocketPath, srv.handleWebsocket)
	srv.hs = httptest.NewServer(mux)
	return srv
}

// URL returns the http base URL of the fake gateway.
func (srv *Server) URL() string { return srv.hs.URL }

func (srv *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: constants.AuthTokenCookie, Value: srv.token})
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sc := &serverConn{conn: conn}
	conn.SetPongHandler(func(appData string) error {
		select {
		case srv.pongs <- appData:
		default:
		}
		return nil
	})

	srv.mu.Lock()
	srv.conns = append(srv.conns, sc)
	srv.mu.Unlock()
	srv.total.Add(1)

	if srv.announce {
		_ = sc.writeJSON(Announcement(srv.session))
	}

	srv.group.Go(func() error {
		srv.serve(sc)
		return nil
	})
}

func (srv *Server) serve(sc *serverConn) {
	for {
		_, data, err := sc.conn.ReadMessage()
		if err != nil {
			sc.closed.Store(true)
			return
		}

		var req frame.Frame
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		srv.mu.Lock()
		srv.received = append(srv.received, req)
		responder := srv.responders[req.Payload.MessageType]
		srv.mu.Unlock()

		var res *frame.Frame
		if responder != nil {
			res = responder(&req)
		} else {
			res = EmptyResponse(&req)
		}
		if res != nil {
			_ = sc.writeJSON(res)
		}
	}
}

// EmptyResponse is the default scripted completion: an EmptyMessage echoing
// the request's correlation identifier from the destination it addressed.
func EmptyResponse(req *frame.Frame) *frame.Frame {
	return &frame.Frame{
		Headers: frame.Headers{
			CorrelationID: req.Headers.CorrelationID,
			Source:        req.Headers.Destination,
		},
		Payload: frame.Payload{
			MessageType: frame.TypeEmptyMessage,
			Attributes:  map[string]any{},
		},
	}
}

// ErrorResponse scripts a protocol-level Error completion.
func ErrorResponse(req *frame.Frame, code, message string) *frame.Frame {
	return &frame.Frame{
		Headers: frame.Headers{
			CorrelationID: req.Headers.CorrelationID,
			Source:        req.Headers.Destination,
		},
		Payload: frame.Payload{
			MessageType: frame.TypeError,
			Attributes:  map[string]any{"code": code, "message": message},
		},
	}
}

// Push writes an unsolicited frame to every live connection.
func (srv *Server) Push(f *frame.Frame) {
	for _, sc := range srv.liveConns() {
		_ = sc.writeJSON(f)
	}
}

// PushRaw writes raw bytes to every live connection, for malformed-frame
// scenarios.
func (srv *Server) PushRaw(data []byte) {
	for _, sc := range srv.liveConns() {
		_ = sc.writeRaw(data)
	}
}

// Ping sends a keepalive ping to every live connection. Answered pongs
// arrive on Pongs.
func (srv *Server) Ping(payload string) {
	for _, sc := range srv.liveConns() {
		sc.writeMu.Lock()
		_ = sc.conn.WriteControl(gorilla.PingMessage, []byte(payload), time.Now().Add(time.Second))
		sc.writeMu.Unlock()
	}
}

// Pongs exposes the keepalive answers received from clients.
func (srv *Server) Pongs() <-chan string { return srv.pongs }

// DropConnections abruptly closes every live connection, simulating an
// unplanned transport loss.
func (srv *Server) DropConnections() {
	for _, sc := range srv.liveConns() {
		_ = sc.conn.Close()
	}
}

// Respond registers or replaces the responder for a message type.
func (srv *Server) Respond(messageType string, r Responder) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.responders[messageType] = r
}

// Received returns a copy of every request frame seen so far.
func (srv *Server) Received() []frame.Frame {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	out := make([]frame.Frame, len(srv.received))
	copy(out, srv.received)
	return out
}

// ReceivedOf filters Received by payload message type.
func (srv *Server) ReceivedOf(messageType string) []frame.Frame {
	var out []frame.Frame
	for _, f := range srv.Received() {
		if f.Payload.MessageType == messageType {
			out = append(out, f)
		}
	}
	return out
}

// TotalConnections counts every websocket ever accepted, including dropped
// ones. Tests use it to await a reconnection.
func (srv *Server) TotalConnections() int64 { return srv.total.Load() }

func (srv *Server) liveConns() []*serverConn {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	live := make([]*serverConn, 0, len(srv.conns))
	for _, sc := range srv.conns {
		if !sc.closed.Load() {
			live = append(live, sc)
		}
	}
	return live
}

// Close tears the fake gateway down and waits for its connection
// goroutines.
func (srv *Server) Close() {
	srv.mu.Lock()
	conns := srv.conns
	srv.mu.Unlock()
	for _, sc := range conns {
		_ = sc.conn.Close()
	}
	srv.hs.Close()
	_ = srv.group.Wait()
}

// Announcement builds the session-announcement frame the gateway sends
// first on every connection.
func Announcement(s frame.Session) *frame.Frame {
	return &frame.Frame{
		Headers: frame.Headers{Source: frame.SessionAddress()},
		Payload: frame.Payload{
			MessageType: frame.TypeSessionCreated,
			Attributes:  sessionAttributes(s),
		},
	}
}

// sessionAttributes flattens a session into announcement attributes the
// way the platform serializes them.
func sessionAttributes(s frame.Session) map[string]any {
	places := make([]any, 0, len(s.Places))
	for _, p := range s.Places {
		places = append(places, map[string]any{
			"placeId":   p.PlaceID,
			"placeName": p.PlaceName,
			"accountId": p.AccountID,
			"role":      p.Role,
		})
	}
	return map[string]any{
		"personId": s.PersonID,
		"places":   places,
	}
}
