package session

import (
	"time"

	"github.com/erilali/duet/internal/message"
)

// EventKind is the type name of an event on the wire. Names are part of the
// client protocol and must not change.
type EventKind string

const (
	EventConnect    EventKind = "connect"
	EventDisconnect EventKind = "disconnect"

	EventSendMessage EventKind = "send_message"
	EventChat        EventKind = "chat"

	EventOffer        EventKind = "offer"
	EventAnswer       EventKind = "answer"
	EventICECandidate EventKind = "ice_candidate"

	EventCallRequest  EventKind = "call_request"
	EventCallAnswer   EventKind = "call_answer"
	EventCallRejected EventKind = "call_rejected"
	EventCallEnded    EventKind = "call_ended"

	EventUserUpdate     EventKind = "user_update"
	EventReceiveMessage EventKind = "receive_message"
)

func (k EventKind) IsChat() bool {
	return k == EventSendMessage || k == EventChat
}

// IsSignal reports whether k is media negotiation data.
func (k EventKind) IsSignal() bool {
	switch k {
	case EventOffer, EventAnswer, EventICECandidate:
		return true
	}
	return false
}

// IsCallControl reports whether k is a call-control signal layered on top of
// negotiation.
func (k EventKind) IsCallControl() bool {
	switch k {
	case EventCallRequest, EventCallAnswer, EventCallRejected, EventCallEnded:
		return true
	}
	return false
}

// Inbound reports whether clients may send k.
func (k EventKind) Inbound() bool {
	return k.IsChat() || k.IsSignal() || k.IsCallControl()
}

// Sender is the transport handle of one connection. Deliver must not block;
// it returns false when the message could not be queued.
type Sender interface {
	Deliver(env message.Envelope) bool
	Close()
}

const (
	ActivityOccupancy = "occupancy"
	ActivityChat      = "chat"
	ActivityRelay     = "relay"
)

// Activity describes something that happened in the room, for observers.
// Relayed payloads are never included.
type Activity struct {
	Type      string    `json:"type"`
	Identity  string    `json:"identity,omitempty"`
	Kind      EventKind `json:"kind,omitempty"`
	Count     int       `json:"count"`
	Delivered int       `json:"delivered,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	At        time.Time `json:"at"`
}

// EventSink receives room activity after the transition that produced it.
type EventSink interface {
	Publish(activity Activity)
}

type nopSink struct{}

func (nopSink) Publish(Activity) {}
