package hub

import (
	"context"
	"slices"
	"sync"
)

// Conn is a real-time connection that can receive events.
type Conn interface {
	ID() string
	Send(ctx context.Context, event string, data any) error
}

// Registry maps sighting ids to the connections currently subscribed to
// them. It also indexes memberships by connection so Leave removes every
// entry a connection holds. A connection belongs to at most one sighting:
// joining another moves it.
//
// Registry state is in memory only; a restart drops every session and
// clients re-join on reconnect.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string][]Conn
	memberships map[string]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string][]Conn),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Join subscribes c to sightID. It returns the sightings c was moved out of.
// Joining a sighting c is already in leaves the registry unchanged.
func (r *Registry) Join(sightID string, c Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ID()
	var moved []string
	for other := range r.memberships[id] {
		if other == sightID {
			continue
		}
		r.removeLocked(other, id)
		moved = append(moved, other)
	}

	if _, ok := r.memberships[id][sightID]; ok {
		return moved
	}
	r.sessions[sightID] = append(r.sessions[sightID], c)
	r.memberships[id] = map[string]struct{}{sightID: {}}
	slices.Sort(moved)
	return moved
}

// Leave removes connID from every sighting it belongs to and returns those sightings.
func (r *Registry) Leave(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for sightID := range r.memberships[connID] {
		r.removeLocked(sightID, connID)
		left = append(left, sightID)
	}
	delete(r.memberships, connID)
	slices.Sort(left)
	return left
}

func (r *Registry) removeLocked(sightID, connID string) {
	subs := slices.DeleteFunc(r.sessions[sightID], func(c Conn) bool {
		return c.ID() == connID
	})
	if len(subs) == 0 {
		delete(r.sessions, sightID)
	} else {
		r.sessions[sightID] = subs
	}
	if m := r.memberships[connID]; m != nil {
		delete(m, sightID)
		if len(m) == 0 {
			delete(r.memberships, connID)
		}
	}
}

// Subscribers returns a snapshot of the connections subscribed to sightID in join order.
func (r *Registry) Subscribers(sightID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.sessions[sightID])
}

// Memberships returns the sightings connID is subscribed to.
func (r *Registry) Memberships(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.memberships[connID]))
	for id := range r.memberships[connID] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Sessions returns the subscriber count of every active sighting.
func (r *Registry) Sessions() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.sessions))
	for id, subs := range r.sessions {
		out[id] = len(subs)
	}
	return out
}

// Delivery is the outcome of sending to one subscriber.
type Delivery struct {
	ConnID string
	Err    error
}

// Broadcast sends event to every subscriber of sightID, one connection at a
// time. A failed send does not stop delivery to the rest.
func (r *Registry) Broadcast(ctx context.Context, sightID, event string, data any) []Delivery {
	subs := r.Subscribers(sightID)
	out := make([]Delivery, 0, len(subs))
	for _, c := range subs {
		out = append(out, Delivery{ConnID: c.ID(), Err: send(ctx, c, event, data)})
	}
	return out
}

// send isolates a panicking connection from the caller.
func send(ctx context.Context, c Conn, event string, data any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p}
		}
	}()
	return c.Send(ctx, event, data)
}
