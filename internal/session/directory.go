package session

import (
	"slices"

	"github.com/samber/lo"
)

// ConnID identifies one live transport connection.
type ConnID string

type binding struct {
	identity string
	sender   Sender
}

// Directory maps live connections to the identities they represent and back.
// Lookups of unknown connections return empty results rather than errors,
// since disconnect races are expected. Not safe for concurrent use.
type Directory struct {
	bindings   map[ConnID]binding
	byIdentity map[string]ConnID
}

func NewDirectory() *Directory {
	return &Directory{
		bindings:   make(map[ConnID]binding),
		byIdentity: make(map[string]ConnID),
	}
}

// Bind records that id represents identity. An existing binding for id is
// replaced.
func (d *Directory) Bind(id ConnID, identity string, sender Sender) {
	if prev, ok := d.bindings[id]; ok && d.byIdentity[prev.identity] == id {
		delete(d.byIdentity, prev.identity)
	}
	d.bindings[id] = binding{identity: identity, sender: sender}
	d.byIdentity[identity] = id
}

// Unbind removes the binding for id and returns the identity it had.
func (d *Directory) Unbind(id ConnID) (string, bool) {
	b, ok := d.bindings[id]
	if !ok {
		return "", false
	}
	delete(d.bindings, id)
	if d.byIdentity[b.identity] == id {
		delete(d.byIdentity, b.identity)
	}
	return b.identity, true
}

// Lookup returns the identity bound to id.
func (d *Directory) Lookup(id ConnID) (string, bool) {
	b, ok := d.bindings[id]
	return b.identity, ok
}

// ConnOf returns the most recently bound connection of identity.
func (d *Directory) ConnOf(identity string) (ConnID, bool) {
	id, ok := d.byIdentity[identity]
	return id, ok
}

// PeersOf returns every live connection not bound to identity.
func (d *Directory) PeersOf(identity string) []ConnID {
	return d.filter(func(_ ConnID, b binding) bool {
		return b.identity != identity
	})
}

// AllExcept returns every live connection other than id.
func (d *Directory) AllExcept(id ConnID) []ConnID {
	return d.filter(func(other ConnID, _ binding) bool {
		return other != id
	})
}

// All returns every live connection.
func (d *Directory) All() []ConnID {
	return d.filter(func(ConnID, binding) bool { return true })
}

func (d *Directory) Len() int {
	return len(d.bindings)
}

func (d *Directory) sender(id ConnID) (Sender, bool) {
	b, ok := d.bindings[id]
	return b.sender, ok
}

func (d *Directory) filter(keep func(ConnID, binding) bool) []ConnID {
	ids := lo.Keys(lo.PickBy(d.bindings, keep))
	slices.Sort(ids)
	return ids
}
