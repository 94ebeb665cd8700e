// Package store keeps the chunks the world has built, keyed by chunk
// coordinate, together with their active flag and last-active tick.
package store

import (
	"sort"

	"terrascape.ai/internal/sim/world/terrain/gen"
)

type ChunkKey = gen.ChunkKey

type entry[V any] struct {
	val        V
	active     bool
	lastActive uint64
}

// Registry is not safe for concurrent use; the world loop owns it.
type Registry[V any] struct {
	entries map[ChunkKey]*entry[V]
	policy  EvictionPolicy
}

func NewRegistry[V any](policy EvictionPolicy) *Registry[V] {
	if policy == nil {
		policy = Never{}
	}
	return &Registry[V]{
		entries: map[ChunkKey]*entry[V]{},
		policy:  policy,
	}
}

func (r *Registry[V]) Get(k ChunkKey) (V, bool) {
	e, ok := r.entries[k]
	if !ok {
		var zero V
		return zero, false
	}
	return e.val, true
}

// Set stores v under k. A replaced chunk keeps its active flag.
func (r *Registry[V]) Set(k ChunkKey, v V) {
	if e, ok := r.entries[k]; ok {
		e.val = v
		return
	}
	r.entries[k] = &entry[V]{val: v}
}

func (r *Registry[V]) Exists(k ChunkKey) bool {
	_, ok := r.entries[k]
	return ok
}

func (r *Registry[V]) Remove(k ChunkKey) bool {
	if _, ok := r.entries[k]; !ok {
		return false
	}
	delete(r.entries, k)
	return true
}

func (r *Registry[V]) Clear() {
	r.entries = map[ChunkKey]*entry[V]{}
}

func (r *Registry[V]) Count() int { return len(r.entries) }

// Keys returns every stored key ordered by CX, then CY.
func (r *Registry[V]) Keys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// ActiveKeys returns the active subset of Keys.
func (r *Registry[V]) ActiveKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(r.entries))
	for k, e := range r.entries {
		if e.active {
			keys = append(keys, k)
		}
	}
	SortKeys(keys)
	return keys
}

// Activate marks k visible as of tick. Unknown keys are ignored.
func (r *Registry[V]) Activate(k ChunkKey, tick uint64) bool {
	e, ok := r.entries[k]
	if !ok {
		return false
	}
	e.active = true
	e.lastActive = tick
	return true
}

func (r *Registry[V]) Deactivate(k ChunkKey, tick uint64) bool {
	e, ok := r.entries[k]
	if !ok {
		return false
	}
	if e.active {
		e.lastActive = tick
	}
	e.active = false
	return true
}

func (r *Registry[V]) IsActive(k ChunkKey) bool {
	e, ok := r.entries[k]
	return ok && e.active
}

// Evict applies the eviction policy and returns the removed keys in the
// order they were chosen.
func (r *Registry[V]) Evict() []ChunkKey {
	cands := make([]Candidate, 0, len(r.entries))
	for k, e := range r.entries {
		cands = append(cands, Candidate{Key: k, Active: e.active, LastActive: e.lastActive})
	}
	victims := r.policy.Victims(cands)
	out := victims[:0]
	for _, k := range victims {
		if e, ok := r.entries[k]; ok && !e.active {
			delete(r.entries, k)
			out = append(out, k)
		}
	}
	return out
}

func SortKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CY < keys[j].CY
	})
}
