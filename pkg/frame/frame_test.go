package frame

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestWireShape(t *testing.T) {
	req := NewRequest("SERV:scene:abc", "scene:Fire", "corr-1", map[string]any{"actor": "test"})

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "scene:Fire", decoded["type"])

	headers, ok := decoded["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SERV:scene:abc", headers["destination"])
	assert.Equal(t, "corr-1", headers["correlationId"])
	assert.Equal(t, true, headers["isRequest"])
	// Outbound headers never carry a source.
	_, hasSource := headers["source"]
	assert.False(t, hasSource)

	payload, ok := decoded["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "scene:Fire", payload["messageType"])
	assert.Equal(t, map[string]any{"actor": "test"}, payload["attributes"])
}

func TestNewRequestNilAttributes(t *testing.T) {
	req := NewRequest("SERV:sess:", "sess:ListAvailablePlaces", "corr-2", nil)
	assert.NotNil(t, req.Payload.Attributes)
}

func TestIsSessionCreated(t *testing.T) {
	assert.True(t, (&Frame{Payload: Payload{MessageType: TypeSessionCreated}}).IsSessionCreated())
	// Namespaced types are never announcements, even when the suffix matches.
	assert.False(t, (&Frame{Payload: Payload{MessageType: "sess:SessionCreated"}}).IsSessionCreated())
	assert.False(t, (&Frame{Payload: Payload{MessageType: "scene:Fire"}}).IsSessionCreated())
}

func TestErr(t *testing.T) {
	ok := &Frame{Payload: Payload{MessageType: TypeEmptyMessage}}
	assert.NoError(t, ok.Err())

	errFrame := &Frame{Payload: Payload{
		MessageType: TypeError,
		Attributes:  map[string]any{"code": "request.invalid", "message": "no such scene"},
	}}
	err := errFrame.Err()
	require.Error(t, err)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "request.invalid", fe.Code)
	assert.Equal(t, "no such scene", fe.Message)
	assert.Equal(t, "request.invalid: no such scene", fe.Error())
}

func TestSessionFromFrame(t *testing.T) {
	f := &Frame{Payload: Payload{
		MessageType: TypeSessionCreated,
		Attributes: map[string]any{
			"personId": "u1",
			"places": []any{
				map[string]any{
					"placeId":   "p1",
					"placeName": "Cabin",
					"accountId": "a1",
					"role":      "OWNER",
				},
			},
		},
	}}

	sess, err := SessionFromFrame(f)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.PersonID)
	require.Len(t, sess.Places, 1)
	assert.Equal(t, Place{PlaceID: "p1", PlaceName: "Cabin", AccountID: "a1", Role: "OWNER"}, sess.Places[0])
}

func TestSessionFromFrameRejectsOtherTypes(t *testing.T) {
	_, err := SessionFromFrame(&Frame{Payload: Payload{MessageType: "scene:Fire"}})
	assert.Error(t, err)
}

func TestAddresses(t *testing.T) {
	assert.Equal(t, "SERV:sess:", SessionAddress())
	assert.Equal(t, "SERV:rule:", ServiceAddress("rule"))
	assert.Equal(t, "SERV:place:p1", PlaceAddress("p1"))
	assert.Equal(t, "SERV:person:u1", PersonAddress("u1"))
	assert.Equal(t, "SERV:scene:abc", SceneAddress("abc"))
	assert.Equal(t, "SERV:rule:r9", RuleAddress("r9"))
	assert.Equal(t, "DRIV:dev:d4", DeviceAddress("d4"))
	// The hub pattern differs from every other entity.
	assert.Equal(t, "HUB:LWG-1234:hub", HubAddress("LWG-1234"))
}
