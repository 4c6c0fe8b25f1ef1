package gateway

import "encoding/json"

// ClientEvent is a message from a connected client. The only event a client
// sends is join-user-room, subscribing the channel to its user's room; the
// user id is taken from the authenticated connection, never from the frame.
type ClientEvent struct {
	Event string `json:"event"`
}

// ServerEvent is a message pushed to a client. Data is present only for
// new-message; the refresh hints carry no payload.
type ServerEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode encodes data to JSON bytes
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Decode decodes JSON bytes to struct
func Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// NewServerEvent builds an encoded server event frame
func NewServerEvent(event string, payload interface{}) ([]byte, error) {
	ev := ServerEvent{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		ev.Data = data
	}
	return json.Marshal(ev)
}
