package session

import (
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Capacity is the number of seats in a room.
const Capacity = 2

// SlotState is the lifecycle state of a claimed name.
type SlotState int

const (
	Unclaimed SlotState = iota
	Claimed
	Connected
)

func (s SlotState) String() string {
	switch s {
	case Claimed:
		return "claimed"
	case Connected:
		return "connected"
	default:
		return "unclaimed"
	}
}

type slot struct {
	state      SlotState
	generation string
}

// Registry tracks which names are claimed and enforces the seat limit.
// Every claim gets a fresh generation, so a name claimed again after a
// release can be told apart from the earlier claim.
// It is not safe for concurrent use; Room serializes access.
type Registry struct {
	capacity int
	slots    map[string]slot
}

func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		slots:    make(map[string]slot),
	}
}

// Claim adds name to the claimed set under a new generation. The checks and
// the insert happen in one step, and a rejected claim leaves the registry
// untouched.
func (r *Registry) Claim(name string) error {
	return r.claim(name, uuid.NewString())
}

func (r *Registry) claim(name, generation string) error {
	if strings.TrimSpace(name) == "" {
		return &RejectedError{Reason: ReasonInvalid, Name: name}
	}
	if _, ok := r.slots[name]; ok {
		return &RejectedError{Reason: ReasonTaken, Name: name}
	}
	if len(r.slots) >= r.capacity {
		return &RejectedError{Reason: ReasonFull, Name: name}
	}
	r.slots[name] = slot{state: Claimed, generation: generation}
	return nil
}

// Release removes name. It reports whether name was claimed.
func (r *Registry) Release(name string) bool {
	if _, ok := r.slots[name]; !ok {
		return false
	}
	delete(r.slots, name)
	return true
}

func (r *Registry) Count() int {
	return len(r.slots)
}

func (r *Registry) Capacity() int {
	return r.capacity
}

func (r *Registry) Full() bool {
	return len(r.slots) >= r.capacity
}

func (r *Registry) IsClaimed(name string) bool {
	_, ok := r.slots[name]
	return ok
}

func (r *Registry) State(name string) SlotState {
	return r.slots[name].state
}

// Generation returns the generation of the current claim on name, or "" when
// name is not claimed.
func (r *Registry) Generation(name string) string {
	return r.slots[name].generation
}

// Holds reports whether name is claimed under generation.
func (r *Registry) Holds(name, generation string) bool {
	s, ok := r.slots[name]
	return ok && generation != "" && s.generation == generation
}

// setState changes the state of an already claimed name.
func (r *Registry) setState(name string, state SlotState) {
	if s, ok := r.slots[name]; ok {
		s.state = state
		r.slots[name] = s
	}
}

// Names returns the claimed names in sorted order.
func (r *Registry) Names() []string {
	names := lo.Keys(r.slots)
	slices.Sort(names)
	return names
}
