// internal/hub/client.go
package hub

import (
	"sync"

	"github.com/erilali/duet/internal/message"
	"github.com/erilali/duet/internal/session"
	"github.com/gorilla/websocket"
)

// Client is one websocket connection of a participant. Generation is the
// seat claim the connection's session was issued for.
type Client struct {
	ID         session.ConnID
	Username   string
	Generation string
	Conn       *websocket.Conn
	Send       chan message.Envelope

	mu     sync.Mutex
	closed bool
}

func newClient(id session.ConnID, username, generation string, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		ID:         id,
		Username:   username,
		Generation: generation,
		Conn:       conn,
		Send:       make(chan message.Envelope, buffer),
	}
}

// Deliver queues env without blocking. A client whose buffer is full is
// closed; its read pump then reports the disconnect.
func (c *Client) Deliver(env message.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- env:
		return true
	default:
		c.closeLocked()
		return false
	}
}

// Close stops the write pump after it has flushed what is already queued.
// It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}
