// Package frame implements the JSON message envelope spoken over the
// gateway's duplex connection.
//
// Every message is a Frame: headers carrying routing and correlation
// information, and a payload carrying a namespaced message type with its
// attributes. The single exception to namespacing is the session
// announcement, which is the first meaningful inbound frame after the
// transport opens.
package frame

import (
	"encoding/json"
	"fmt"
)

// Message types with special meaning to the connection layer.
const (
	// TypeSessionCreated is the session-announcement message type. Unlike
	// every other message type on the platform it carries no namespace
	// prefix.
	TypeSessionCreated = "SessionCreated"

	// TypeError marks a correlated response whose payload encodes an
	// application-level error.
	TypeError = "Error"

	// TypeEmptyMessage is the platform's acknowledgement for requests that
	// produce no attributes.
	TypeEmptyMessage = "EmptyMessage"

	// TypeSetActivePlace selects the place scoping subsequent session
	// state on the server side.
	TypeSetActivePlace = "sess:SetActivePlace"
)

// Headers carries routing and correlation metadata.
//
// Outbound requests set Destination, CorrelationID and IsRequest and never a
// Source; inbound frames set Source and echo the CorrelationID, if any.
type Headers struct {
	Destination   string `json:"destination,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	IsRequest     bool   `json:"isRequest,omitempty"`
	Source        string `json:"source,omitempty"`
}

type Payload struct {
	MessageType string         `json:"messageType"`
	Attributes  map[string]any `json:"attributes"`
}

type Frame struct {
	Type    string  `json:"type,omitempty"`
	Headers Headers `json:"headers"`
	Payload Payload `json:"payload"`
}

// NewRequest builds an outbound request frame. The caller supplies a fresh
// correlation identifier; the connection layer routes the matching
// response back through it.
func NewRequest(destination, messageType, correlationID string, attributes map[string]any) *Frame {
	if attributes == nil {
		attributes = map[string]any{}
	}
	return &Frame{
		Type: messageType,
		Headers: Headers{
			Destination:   destination,
			CorrelationID: correlationID,
			IsRequest:     true,
		},
		Payload: Payload{
			MessageType: messageType,
			Attributes:  attributes,
		},
	}
}

// IsSessionCreated reports whether this frame is the session announcement.
// The message type is matched literally; it is the only non-namespaced type
// the platform emits, so no prefix heuristics apply.
func (f *Frame) IsSessionCreated() bool {
	return f.Payload.MessageType == TypeSessionCreated
}

// IsError reports whether the payload encodes an application error.
func (f *Frame) IsError() bool {
	return f.Payload.MessageType == TypeError
}

// Err returns the application error carried by an Error frame, or nil for
// any other frame.
func (f *Frame) Err() error {
	if !f.IsError() {
		return nil
	}
	var e Error
	if err := decodeAttributes(f.Payload.Attributes, &e); err != nil {
		return &Error{Message: fmt.Sprintf("malformed error attributes: %v", err)}
	}
	return &e
}

// Error is the machine-readable application error carried by an Error
// frame's attributes.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// decodeAttributes round-trips an attribute map through JSON into dest.
// Attribute maps come out of the generic envelope decode as map[string]any,
// so this is the one place we pay for typed views of them.
func decodeAttributes(attributes map[string]any, dest any) error {
	raw, err := json.Marshal(attributes)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
