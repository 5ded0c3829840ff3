package session

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/erilali/duet/internal/logger"
	"github.com/erilali/duet/internal/message"
	"github.com/stretchr/testify/require"
)

// recorder is a Sender that keeps everything delivered to it.
type recorder struct {
	mu       sync.Mutex
	received []message.Envelope
	closed   bool
	full     bool
}

func (r *recorder) Deliver(env message.Envelope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.full {
		return false
	}
	r.received = append(r.received, env)
	return true
}

func (r *recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recorder) envelopes() []message.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message.Envelope(nil), r.received...)
}

func (r *recorder) ofType(eventType EventKind) []message.Envelope {
	var out []message.Envelope
	for _, env := range r.envelopes() {
		if env.Type == string(eventType) {
			out = append(out, env)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = nil
}

// lastCount returns the count of the most recent user_update.
func (r *recorder) lastCount(t *testing.T) int {
	t.Helper()
	updates := r.ofType(EventUserUpdate)
	require.NotEmpty(t, updates, "no user_update received")
	var update message.UserUpdate
	require.NoError(t, json.Unmarshal(updates[len(updates)-1].Data, &update))
	return update.Count
}

// sinkRecorder is an EventSink that keeps published activity.
type sinkRecorder struct {
	mu         sync.Mutex
	activities []Activity
}

func (s *sinkRecorder) Publish(a Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, a)
}

func (s *sinkRecorder) all() []Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Activity(nil), s.activities...)
}

func newTestRoom(policy Policy) (*Room, *sinkRecorder) {
	sink := &sinkRecorder{}
	return NewRoom(Options{
		Policy:           policy,
		MaxMessageLength: 500,
		Sink:             sink,
		Logger:           logger.Nop(),
	}), sink
}

// join claims name and returns the claim generation.
func join(t *testing.T, room *Room, name string) string {
	t.Helper()
	generation, err := room.Join(name)
	require.NoError(t, err)
	require.NotEmpty(t, generation)
	return generation
}
