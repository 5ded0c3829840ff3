// internal/hub/hub.go
// Provides the Hub, which feeds websocket connection events into the room one at a time.
package hub

import (
	"context"
	"sync/atomic"

	"github.com/erilali/duet/internal/logger"
	"github.com/erilali/duet/internal/message"
	"github.com/erilali/duet/internal/session"
)

// Options configures a Hub.
type Options struct {
	MaxFrameBytes int
	SendBuffer    int
	Logger        *logger.Logger
}

type inboundEnvelope struct {
	client   *Client
	envelope message.Envelope
}

// Hub owns the live websocket clients. Its Run loop is the only goroutine
// that touches Clients, and it hands every register, unregister and inbound
// message to the room in arrival order.
type Hub struct {
	Clients    map[session.ConnID]*Client
	Register   chan *Client
	Unregister chan *Client
	Inbound    chan inboundEnvelope

	room          *session.Room
	maxFrameBytes int64
	sendBuffer    int
	connections   atomic.Int64
	done          chan struct{}
	Logger        *logger.Logger
}

// NewHub creates a Hub serving room.
func NewHub(room *session.Room, opts Options) *Hub {
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = 64 * 1024
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger("hub")
	}
	return &Hub{
		Clients:       make(map[session.ConnID]*Client),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		Inbound:       make(chan inboundEnvelope),
		room:          room,
		maxFrameBytes: int64(opts.MaxFrameBytes),
		sendBuffer:    opts.SendBuffer,
		done:          make(chan struct{}),
		Logger:        opts.Logger,
	}
}

// Run processes connection events until ctx is cancelled, then closes every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for id, client := range h.Clients {
				h.room.Disconnect(id)
				client.Close()
				delete(h.Clients, id)
			}
			h.connections.Store(0)
			h.Logger.Info("Hub stopped")
			return

		case client := <-h.Register:
			if err := h.room.Connect(client.ID, client.Username, client.Generation, client); err != nil {
				reason, _ := session.RejectionReason(err)
				client.Deliver(message.Error("JOIN_REJECTED", string(reason)))
				client.Close()
				h.Logger.Warnf("Connection for %s rejected: %v", client.Username, err)
				continue
			}
			h.Clients[client.ID] = client
			h.connections.Store(int64(len(h.Clients)))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client.ID]; ok {
				delete(h.Clients, client.ID)
				h.connections.Store(int64(len(h.Clients)))
			}
			h.room.Disconnect(client.ID)
			client.Close()

		case in := <-h.Inbound:
			h.HandleClientMessage(in.client, in.envelope)
		}
	}
}

// Connections returns the number of registered websocket clients.
func (h *Hub) Connections() int {
	return int(h.connections.Load())
}

func (h *Hub) register(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) submit(client *Client, env message.Envelope) bool {
	select {
	case h.Inbound <- inboundEnvelope{client: client, envelope: env}:
		return true
	case <-h.done:
		return false
	}
}
