package client

import (
	"maps"
	"sync"

	"github.com/google/uuid"
)

// MutationState tracks the lifecycle of an optimistic mutation.
type MutationState string

const (
	MutationPending    MutationState = "pending"
	MutationConfirmed  MutationState = "confirmed"
	MutationRolledBack MutationState = "rolled_back"
)

type mutationKind int

const (
	mutationCreate mutationKind = iota
	mutationUpdate
	mutationDelete
)

// Collection is a client-local cache of entities keyed by id: the single
// source of truth the UI renders from. It is mutated by optimistic
// mutations, by confirmed write responses, and by inbound broadcast events,
// and converges to exactly one entry per entity id regardless of how those
// interleave.
type Collection[T any] struct {
	mu    sync.Mutex
	idFn  func(T) uuid.UUID
	items map[uuid.UUID]T
}

// Mutation is the client-local record of one optimistic edit: the id it
// introduced (temporary for creates), the state snapshot taken before the
// edit, and its settlement state.
type Mutation[T any] struct {
	c        *Collection[T]
	kind     mutationKind
	localID  uuid.UUID
	snapshot map[uuid.UUID]T
	state    MutationState
}

// NewCollection creates an empty collection. idFn extracts an entity's id.
func NewCollection[T any](idFn func(T) uuid.UUID) *Collection[T] {
	return &Collection[T]{idFn: idFn, items: make(map[uuid.UUID]T)}
}

// Replace swaps the entire contents, used after a full re-fetch.
func (c *Collection[T]) Replace(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[uuid.UUID]T, len(items))
	for _, item := range items {
		c.items[c.idFn(item)] = item
	}
}

// Get returns the entity with the given id.
func (c *Collection[T]) Get(id uuid.UUID) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	return item, ok
}

// Len returns the number of entities.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Items returns a copy of the current entities.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]T, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	return out
}

// StageCreate inserts item under its temporary id before the write request
// is issued and returns the mutation to settle when it completes.
func (c *Collection[T]) StageCreate(item T) *Mutation[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := &Mutation[T]{
		c:        c,
		kind:     mutationCreate,
		localID:  c.idFn(item),
		snapshot: maps.Clone(c.items),
		state:    MutationPending,
	}
	c.items[m.localID] = item
	return m
}

// StageUpdate applies the edited item immediately.
func (c *Collection[T]) StageUpdate(item T) *Mutation[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := &Mutation[T]{
		c:        c,
		kind:     mutationUpdate,
		localID:  c.idFn(item),
		snapshot: maps.Clone(c.items),
		state:    MutationPending,
	}
	c.items[m.localID] = item
	return m
}

// StageDelete removes the entity immediately.
func (c *Collection[T]) StageDelete(id uuid.UUID) *Mutation[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := &Mutation[T]{
		c:        c,
		kind:     mutationDelete,
		localID:  id,
		snapshot: maps.Clone(c.items),
		state:    MutationPending,
	}
	delete(c.items, id)
	return m
}

// Confirm settles the mutation with the server-confirmed entity. For creates
// the temporary id entry is replaced by the server-assigned one; for deletes
// the argument is ignored. Confirm after Rollback is a no-op.
func (m *Mutation[T]) Confirm(serverItem T) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	if m.state != MutationPending {
		return
	}
	m.state = MutationConfirmed

	switch m.kind {
	case mutationCreate:
		delete(m.c.items, m.localID)
		m.c.items[m.c.idFn(serverItem)] = serverItem
	case mutationUpdate:
		m.c.items[m.c.idFn(serverItem)] = serverItem
	case mutationDelete:
		// Already removed optimistically.
	}
}

// Rollback restores the collection to its pre-mutation snapshot after a
// failed write. No partial state is left behind.
func (m *Mutation[T]) Rollback() {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	if m.state != MutationPending {
		return
	}
	m.state = MutationRolledBack
	m.c.items = maps.Clone(m.snapshot)
}

// State returns the mutation's settlement state.
func (m *Mutation[T]) State() MutationState {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	return m.state
}

// ApplyCreated merges a creation broadcast. Deduplicated by id: an entity
// already present, including one just confirmed from the origin client's own
// write, is left untouched. Returns whether the entity was inserted.
func (c *Collection[T]) ApplyCreated(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.idFn(item)
	if _, exists := c.items[id]; exists {
		return false
	}
	c.items[id] = item
	return true
}

// ApplyUpdated merges an update broadcast unconditionally (last write wins).
func (c *Collection[T]) ApplyUpdated(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[c.idFn(item)] = item
}

// ApplyDeleted merges a deletion broadcast unconditionally.
func (c *Collection[T]) ApplyDeleted(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

// snapshot returns a copy of the current contents. Used by tests to verify
// rollback restores state exactly.
func (c *Collection[T]) snapshot() map[uuid.UUID]T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.items)
}
