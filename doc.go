// The [haven] package implements the client side of the Haven gateway
// bridge: one persistent duplex connection over which discrete commands
// become correlated request/response exchanges, while server pushes are
// captured into a bounded buffer.
//
// # Lifecycle
//
// Build a [Client] with [New] and call [Client.Connect]. The client logs
// in, opens the websocket and waits for the gateway's session
// announcement; the resulting [frame.Session] lists the places the
// authenticated person may operate on. Scope the session with
// [Client.SetActivePlace].
//
// If the transport drops after the session was established, the client
// fails every outstanding request with
// [github.com/havenhome/haven.go/pkg/constants.ErrConnectionLost] and
// retries in the background on a fixed backoff sequence, re-selecting the
// active place before it reports itself Open again. [Client.Disconnect]
// stops all of it.
//
// # Requests and events
//
// [Client.Request] issues one correlated exchange: it addresses a frame
// (see the builders in [github.com/havenhome/haven.go/pkg/frame]), waits
// for the response carrying the same correlation identifier, and times out
// on its own without affecting other in-flight requests. Responses whose
// payload is an Error frame complete normally; inspect them with
// [frame.Frame.Err].
//
// Inbound frames matching no pending request are push notifications.
// [Client.DrainEvents] consumes them in arrival order; [Client.PeekEvents]
// looks without consuming. The buffer is bounded and evicts oldest first.
package haven
