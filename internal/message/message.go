// internal/message/message.go
// Contains the envelopes exchanged over the websocket and the payloads the server produces.
package message

import "encoding/json"

// Version is stamped on every envelope the server writes.
const Version = "1.0"

// Envelope is the frame format in both directions. Data is carried verbatim;
// for relayed signaling it is never decoded by the server.
type Envelope struct {
	Version   string          `json:"version,omitempty"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
}

// UserUpdate is the payload of the outbound user_update event.
type UserUpdate struct {
	Count int `json:"count"`
}

// ChatMessage is the payload of the outbound receive_message event.
type ChatMessage struct {
	User      string `json:"user"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ChatRequest is the payload a client sends with send_message.
type ChatRequest struct {
	Message string `json:"message"`
}

// New builds an envelope around an already-encoded payload.
func New(eventType string, data json.RawMessage) Envelope {
	return Envelope{
		Version: Version,
		Type:    eventType,
		Data:    data,
	}
}

// Encode marshals payload and wraps it in an envelope of the given type.
func Encode(eventType string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return New(eventType, data), nil
}

// Error builds a transport-level error envelope.
func Error(code, detail string) Envelope {
	data, _ := json.Marshal(detail)
	return Envelope{
		Version:   Version,
		Type:      "error",
		Data:      data,
		ErrorCode: code,
	}
}
