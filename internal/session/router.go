package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erilali/duet/internal/message"
)

// TimestampLayout formats the server-assigned time of a chat message.
const TimestampLayout = "15:04"

// Delivery is a routing decision: which connections receive which envelope.
type Delivery struct {
	Targets  []ConnID
	Envelope message.Envelope

	// Chat is set when the delivery is a chat message.
	Chat *message.ChatMessage
}

// Router decides where inbound events go. It reads registry and directory
// state but never mutates it.
type Router struct {
	policy           Policy
	maxMessageLength int
	now              func() time.Time
}

func NewRouter(policy Policy, maxMessageLength int) *Router {
	return &Router{
		policy:           policy,
		maxMessageLength: maxMessageLength,
		now:              time.Now,
	}
}

func (r *Router) Policy() Policy {
	return r.policy
}

// Plan resolves the destinations of an event sent by connection from.
// Signaling payloads are carried through unchanged.
func (r *Router) Plan(reg *Registry, dir *Directory, kind EventKind, from ConnID, payload json.RawMessage) (Delivery, error) {
	sender, ok := dir.Lookup(from)
	if !ok {
		return Delivery{}, ErrUnbound
	}
	strict := r.policy == PolicyStrict

	switch {
	case kind.IsChat():
		if strict && !reg.Full() {
			return Delivery{}, ErrRoomNotFull
		}
		chat, err := r.chatMessage(sender, payload)
		if err != nil {
			return Delivery{}, err
		}
		env, err := message.Encode(string(EventReceiveMessage), chat)
		if err != nil {
			return Delivery{}, err
		}
		return Delivery{Targets: dir.All(), Envelope: env, Chat: &chat}, nil

	case kind.IsSignal():
		var targets []ConnID
		if strict {
			if !reg.Full() {
				return Delivery{}, ErrRoomNotFull
			}
			targets = dir.PeersOf(sender)
		} else {
			targets = dir.AllExcept(from)
		}
		if len(targets) == 0 {
			return Delivery{}, ErrNoPeer
		}
		return Delivery{Targets: targets, Envelope: message.New(string(kind), payload)}, nil

	case kind.IsCallControl():
		if strict && !reg.Full() {
			return Delivery{}, ErrRoomNotFull
		}
		targets := dir.PeersOf(sender)
		if len(targets) == 0 {
			return Delivery{}, ErrNoPeer
		}
		return Delivery{Targets: targets, Envelope: message.New(string(kind), payload)}, nil
	}

	return Delivery{}, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
}

func (r *Router) chatMessage(sender string, payload json.RawMessage) (message.ChatMessage, error) {
	var req message.ChatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return message.ChatMessage{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	content := strings.TrimSpace(req.Message)
	if content == "" {
		return message.ChatMessage{}, ErrEmptyMessage
	}
	if r.maxMessageLength > 0 && utf8.RuneCountInString(content) > r.maxMessageLength {
		return message.ChatMessage{}, ErrMessageTooLong
	}
	return message.ChatMessage{
		User:      sender,
		Content:   content,
		Timestamp: r.now().Format(TimestampLayout),
	}, nil
}
