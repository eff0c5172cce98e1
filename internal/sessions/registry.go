// Package sessions owns the per-guild and per-user state the bot keeps in memory.
//
// A [Registry] replaces implicit first-touch maps with an explicit lifecycle: values are
// created through a factory, looked up by Discord id and evicted on request or when idle.
package sessions

import (
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/goose/internal/shared"
	"github.com/disgoorg/snowflake/v2"
)

type entry[T any] struct {
	value    T
	lastUsed time.Time
}

// Registry maps Discord ids to session values.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[snowflake.ID]*entry[T]
	create  func(id snowflake.ID) T
	onEvict func(id snowflake.ID, v T)
	now     func() time.Time
}

type Option[T any] func(*Registry[T])

// WithOnEvict runs fn for every value removed from the registry, outside the registry lock.
func WithOnEvict[T any](fn func(id snowflake.ID, v T)) Option[T] {
	return func(r *Registry[T]) { r.onEvict = fn }
}

// WithClock replaces time.Now for idle tracking.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(r *Registry[T]) { r.now = now }
}

// NewRegistry creates an empty registry whose values are built by create.
func NewRegistry[T any](create func(id snowflake.ID) T, opts ...Option[T]) *Registry[T] {
	r := &Registry[T]{
		entries: map[snowflake.ID]*entry[T]{},
		create:  create,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create builds and registers a value for id. It fails if one is already registered.
func (r *Registry[T]) Create(id snowflake.ID) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", shared.ErrSessionExists, id)
	}
	v := r.create(id)
	r.entries[id] = &entry[T]{value: v, lastUsed: r.now()}
	return v, nil
}

// Get returns the value for id and marks it used.
func (r *Registry[T]) Get(id snowflake.ID) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	e.lastUsed = r.now()
	return e.value, true
}

// GetOrCreate returns the value for id, creating it first if needed. created reports which.
func (r *Registry[T]) GetOrCreate(id snowflake.ID) (v T, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		e.lastUsed = r.now()
		return e.value, false
	}
	v = r.create(id)
	r.entries[id] = &entry[T]{value: v, lastUsed: r.now()}
	return v, true
}

// Evict removes id. It reports false when nothing was registered.
func (r *Registry[T]) Evict(id snowflake.ID) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if ok && r.onEvict != nil {
		r.onEvict(id, e.value)
	}
	return ok
}

// EvictIdle removes every value unused for longer than ttl and returns how many went.
func (r *Registry[T]) EvictIdle(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	evicted := map[snowflake.ID]T{}
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			evicted[id] = e.value
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	if r.onEvict != nil {
		for id, v := range evicted {
			r.onEvict(id, v)
		}
	}
	return len(evicted)
}

// Len returns the number of registered values.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Range calls fn for each value until fn returns false. fn runs on a snapshot, so it may
// call back into the registry.
func (r *Registry[T]) Range(fn func(id snowflake.ID, v T) bool) {
	r.mu.Lock()
	snapshot := make(map[snowflake.ID]T, len(r.entries))
	for id, e := range r.entries {
		snapshot[id] = e.value
	}
	r.mu.Unlock()

	for id, v := range snapshot {
		if !fn(id, v) {
			return
		}
	}
}
