// internal/hub/websocket.go
package hub

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/erilali/duet/internal/message"
	"github.com/erilali/duet/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	webSocketReadDeadline  = 60 * time.Second
	webSocketWriteDeadline = 10 * time.Second
	webSocketPingPeriod    = (webSocketReadDeadline * 9) / 10 // Must be less than readDeadline
)

// The session cookie authenticates the upgrade, so the default same-origin
// check stays on.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ServeWs upgrades the request to a websocket for an already authenticated
// username and claim generation, and registers the connection.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, username, generation string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}

	client := newClient(session.ConnID(uuid.NewString()), username, generation, conn, h.sendBuffer)
	if !h.register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	go h.WritePump(client)
	go h.ReadPump(client)
}

// ReadPump reads envelopes from the connection and hands them to the hub.
func (h *Hub) ReadPump(client *Client) {
	defer func() {
		h.unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(h.maxFrameBytes)
	_ = client.Conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
	})

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.LogEvent("error", "read_error", client.Username, err.Error())
			}
			return
		}
		var env message.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.SendErrorMessage(client, "INVALID_JSON", "Invalid JSON format.")
			continue
		}
		if !h.submit(client, env) {
			return
		}
	}
}

// WritePump writes queued envelopes to the connection, one frame each, and
// keeps it alive with pings.
func (h *Hub) WritePump(client *Client) {
	ticker := time.NewTicker(webSocketPingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case env, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(webSocketWriteDeadline))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(env); err != nil {
				h.Logger.Debugf("Error writing to websocket for %s: %v", client.Username, err)
				return
			}

		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(webSocketWriteDeadline))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
