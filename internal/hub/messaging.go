// internal/hub/messaging.go
package hub

import (
	"github.com/erilali/duet/internal/message"
	"github.com/erilali/duet/internal/session"
)

// HandleClientMessage validates the envelope and routes it through the room.
// Envelopes the room drops are logged and otherwise ignored.
func (h *Hub) HandleClientMessage(client *Client, env message.Envelope) {
	if env.Version != "" && env.Version != message.Version {
		h.SendErrorMessage(client, "INVALID_VERSION", "Unsupported version.")
		return
	}

	kind := session.EventKind(env.Type)
	if !kind.Inbound() {
		h.SendErrorMessage(client, "UNKNOWN_TYPE", "Unknown message type.")
		return
	}

	if err := h.room.Route(client.ID, kind, env.Data); err != nil {
		h.Logger.WithFields(map[string]interface{}{
			"conn":     string(client.ID),
			"username": client.Username,
			"type":     env.Type,
		}).Debugf("Dropped inbound message: %v", err)
	}
}

// SendErrorMessage queues an error envelope for a single client.
func (h *Hub) SendErrorMessage(client *Client, code, detail string) {
	if !client.Deliver(message.Error(code, detail)) {
		h.Logger.Debugf("Could not queue %s error for %s", code, client.Username)
	}
}
