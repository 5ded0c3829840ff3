package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/erilali/duet/internal/logger"
	"github.com/erilali/duet/internal/message"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Options configures a Room.
type Options struct {
	Policy           Policy
	MaxMessageLength int
	Sink             EventSink
	Logger           *logger.Logger
}

// Participant is a read-only view of one claimed seat.
type Participant struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// Snapshot is a consistent view of the room at one instant.
type Snapshot struct {
	Count        int           `json:"count"`
	Capacity     int           `json:"capacity"`
	Policy       Policy        `json:"policy"`
	Participants []Participant `json:"participants"`
}

// Room drives the join, connect, disconnect and logout transitions and routes
// inbound events. A single mutex covers the registry and the directory, so
// every transition is observed whole. A connection close releases the seat of
// the identity it was bound to.
type Room struct {
	mu        sync.Mutex
	registry  *Registry
	directory *Directory
	router    *Router
	sink      EventSink
	logger    *logger.Logger
}

func NewRoom(opts Options) *Room {
	if opts.Policy == "" {
		opts.Policy = PolicyStrict
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger("room")
	}
	return &Room{
		registry:  NewRegistry(Capacity),
		directory: NewDirectory(),
		router:    NewRouter(opts.Policy, opts.MaxMessageLength),
		sink:      opts.Sink,
		logger:    opts.Logger,
	}
}

// Join claims a seat for name and returns the generation of the claim.
// Later calls that act on the seat must present that generation.
func (r *Room) Join(name string) (string, error) {
	r.mu.Lock()
	err := r.registry.Claim(name)
	generation := r.registry.Generation(name)
	r.mu.Unlock()
	if err != nil {
		r.logger.LogEvent("debug", "join_rejected", name, err.Error())
		return "", err
	}
	r.logger.LogEvent("info", "identity_claimed", name, "")
	return generation, nil
}

// Connect binds connection id to name and broadcasts the new occupancy.
//
// A claimed name only accepts connections carrying the generation of its
// current claim; anything else is rejected as TAKEN. A name whose seat was
// freed by an earlier disconnect is claimed again under the usual rules and
// keeps the presented generation, or gets a new one if none was given. If
// name already has a live connection, that connection is unbound and closed.
// If id was bound to another name, that name is released.
func (r *Room) Connect(id ConnID, name, generation string, sender Sender) error {
	r.mu.Lock()
	var superseded Sender
	switch r.registry.State(name) {
	case Unclaimed:
		if generation == "" {
			generation = uuid.NewString()
		}
		if err := r.registry.claim(name, generation); err != nil {
			r.mu.Unlock()
			r.logger.LogEvent("debug", "connect_rejected", name, err.Error())
			return err
		}
	default:
		if !r.registry.Holds(name, generation) {
			r.mu.Unlock()
			r.logger.LogEvent("warn", "connect_rejected", name, "stale session")
			return &RejectedError{Reason: ReasonTaken, Name: name}
		}
		if old, ok := r.directory.ConnOf(name); ok && old != id {
			superseded, _ = r.directory.sender(old)
			r.directory.Unbind(old)
		}
	}
	previous, rebound := r.directory.Lookup(id)
	rebound = rebound && previous != name
	if rebound {
		r.directory.Unbind(id)
		r.registry.Release(previous)
	}
	r.directory.Bind(id, name, sender)
	r.registry.setState(name, Connected)
	count := r.broadcastCountLocked()
	r.mu.Unlock()

	if superseded != nil {
		superseded.Close()
		r.logger.LogEvent("info", "connection_superseded", name, string(id))
	}
	if rebound {
		r.logger.LogEvent("info", "identity_released", previous, "")
	}
	r.logger.LogEvent("info", "client_connected", name, "")
	r.publish(Activity{Type: ActivityOccupancy, Identity: name, Count: count})
	return nil
}

// Disconnect handles a closed connection. It reports whether the connection
// was bound; an unknown connection is a no-op.
func (r *Room) Disconnect(id ConnID) bool {
	r.mu.Lock()
	name, ok := r.directory.Unbind(id)
	if !ok {
		r.mu.Unlock()
		return false
	}
	r.registry.Release(name)
	count := r.broadcastCountLocked()
	r.mu.Unlock()

	r.logger.LogEvent("info", "client_disconnected", name, "")
	r.publish(Activity{Type: ActivityOccupancy, Identity: name, Count: count})
	return true
}

// Logout releases name and closes its connection, if any. It only acts when
// generation matches the current claim, and reports whether it did.
func (r *Room) Logout(name, generation string) bool {
	r.mu.Lock()
	if !r.registry.Holds(name, generation) {
		r.mu.Unlock()
		return false
	}
	r.registry.Release(name)
	var closing Sender
	if id, ok := r.directory.ConnOf(name); ok {
		closing, _ = r.directory.sender(id)
		r.directory.Unbind(id)
	}
	count := r.broadcastCountLocked()
	r.mu.Unlock()

	if closing != nil {
		closing.Close()
	}
	r.logger.LogEvent("info", "identity_released", name, "")
	r.publish(Activity{Type: ActivityOccupancy, Identity: name, Count: count})
	return true
}

// Route delivers an inbound event from connection from. A non-nil error is
// the reason the event was dropped.
func (r *Room) Route(from ConnID, kind EventKind, payload json.RawMessage) error {
	r.mu.Lock()
	d, err := r.router.Plan(r.registry, r.directory, kind, from, payload)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	identity, _ := r.directory.Lookup(from)
	delivered := r.dispatchLocked(d.Targets, d.Envelope)
	count := r.registry.Count()
	r.mu.Unlock()

	if d.Chat != nil {
		r.logger.LogEvent("info", "message_received", identity, d.Chat.Content)
		r.publish(Activity{
			Type:      ActivityChat,
			Identity:  identity,
			Kind:      kind,
			Count:     count,
			Delivered: delivered,
			Content:   d.Chat.Content,
			Timestamp: d.Chat.Timestamp,
		})
		return nil
	}
	r.logger.LogEvent("debug", "signal_relayed", identity, string(kind))
	r.publish(Activity{Type: ActivityRelay, Identity: identity, Kind: kind, Count: count, Delivered: delivered})
	return nil
}

func (r *Room) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Count()
}

func (r *Room) IsClaimed(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.IsClaimed(name)
}

// Holds reports whether name is claimed under generation.
func (r *Room) Holds(name, generation string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Holds(name, generation)
}

func (r *Room) Policy() Policy {
	return r.router.Policy()
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Count:    r.registry.Count(),
		Capacity: r.registry.Capacity(),
		Policy:   r.router.Policy(),
		Participants: lo.Map(r.registry.Names(), func(name string, _ int) Participant {
			return Participant{Name: name, Connected: r.registry.State(name) == Connected}
		}),
	}
}

// broadcastCountLocked sends user_update with the current count to every
// connection and returns that count.
func (r *Room) broadcastCountLocked() int {
	count := r.registry.Count()
	env, err := message.Encode(string(EventUserUpdate), message.UserUpdate{Count: count})
	if err != nil {
		r.logger.Errorf("Error encoding user update: %v", err)
		return count
	}
	r.dispatchLocked(r.directory.All(), env)
	return count
}

func (r *Room) dispatchLocked(targets []ConnID, env message.Envelope) int {
	delivered := 0
	for _, id := range targets {
		sender, ok := r.directory.sender(id)
		if !ok {
			continue
		}
		if sender.Deliver(env) {
			delivered++
		} else {
			r.logger.Debugf("Dropped %s for connection %s", env.Type, id)
		}
	}
	return delivered
}

func (r *Room) publish(activity Activity) {
	if activity.At.IsZero() {
		activity.At = time.Now()
	}
	r.sink.Publish(activity)
}
