package frame

import "fmt"

// Place is one location the authenticated person may scope the session to.
type Place struct {
	PlaceID   string `json:"placeId"`
	PlaceName string `json:"placeName"`
	AccountID string `json:"accountId"`
	Role      string `json:"role"`
}

// Session is the state announced by the gateway on every (re)connection.
// It is replaced wholesale each time the announcement arrives; nothing in
// it survives a reconnect.
type Session struct {
	PersonID string  `json:"personId"`
	Places   []Place `json:"places"`
}

// SessionFromFrame parses a session announcement's attributes.
func SessionFromFrame(f *Frame) (*Session, error) {
	if !f.IsSessionCreated() {
		return nil, fmt.Errorf("not a session announcement: %q", f.Payload.MessageType)
	}
	var s Session
	if err := decodeAttributes(f.Payload.Attributes, &s); err != nil {
		return nil, fmt.Errorf("malformed session announcement: %w", err)
	}
	return &s, nil
}
