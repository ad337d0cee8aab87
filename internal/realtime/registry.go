package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks which connections belong to which channel. It is the one
// piece of shared mutable state in the broadcast path, so it is safe for
// concurrent use and injected into the Hub rather than held as package state.
//
// Membership is connection-scoped: the same user connected from two tabs
// holds two independent memberships.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[uuid.UUID]struct{}
	conns    map[uuid.UUID]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[uuid.UUID]struct{}),
		conns:    make(map[uuid.UUID]map[string]struct{}),
	}
}

// AddConnection starts tracking a connection with no channel memberships.
func (r *Registry) AddConnection(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; !ok {
		r.conns[connID] = make(map[string]struct{})
	}
}

// RemoveConnection drops the connection and all its memberships. Returns the
// channels the connection was in so callers can emit leave notifications.
func (r *Registry) RemoveConnection(connID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.conns[connID]
	if !ok {
		return nil
	}
	delete(r.conns, connID)

	channels := make([]string, 0, len(joined))
	for ch := range joined {
		channels = append(channels, ch)
		r.dropMember(ch, connID)
	}
	return channels
}

// Join adds the connection to a channel, creating the channel lazily.
// Returns false if the connection is not tracked: a connection that
// disconnected while its join was outstanding never gains membership.
func (r *Registry) Join(connID uuid.UUID, channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.conns[connID]
	if !ok {
		return false
	}
	joined[channel] = struct{}{}

	members, ok := r.channels[channel]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		r.channels[channel] = members
	}
	members[connID] = struct{}{}
	return true
}

// Leave removes the connection from a channel. Idempotent: leaving a channel
// not joined is a no-op and returns false.
func (r *Registry) Leave(connID uuid.UUID, channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.conns[connID]
	if !ok {
		return false
	}
	if _, member := joined[channel]; !member {
		return false
	}
	delete(joined, channel)
	r.dropMember(channel, connID)
	return true
}

// Members returns the connections currently in a channel.
func (r *Registry) Members(channel string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.channels[channel]
	out := make([]uuid.UUID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// Channels returns the channels a connection has joined.
func (r *Registry) Channels(connID uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.conns[connID]
	out := make([]string, 0, len(joined))
	for ch := range joined {
		out = append(out, ch)
	}
	return out
}

// InChannel reports whether the connection is a member of the channel.
func (r *Registry) InChannel(connID uuid.UUID, channel string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.channels[channel][connID]
	return ok
}

// ConnectionCount returns the number of tracked connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// dropMember removes a connection from a channel's member set, discarding the
// channel when its membership drops to zero. Caller holds the write lock.
func (r *Registry) dropMember(channel string, connID uuid.UUID) {
	members, ok := r.channels[channel]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.channels, channel)
	}
}
