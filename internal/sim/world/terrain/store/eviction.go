package store

import "sort"

// Candidate describes one stored chunk to an EvictionPolicy.
type Candidate struct {
	Key        ChunkKey
	Active     bool
	LastActive uint64
}

// EvictionPolicy picks chunks to drop. The registry never removes an active
// chunk, whatever the policy returns.
type EvictionPolicy interface {
	Victims(all []Candidate) []ChunkKey
}

// Never keeps every chunk for the lifetime of the world.
type Never struct{}

func (Never) Victims([]Candidate) []ChunkKey { return nil }

// LRU drops the inactive chunks that were visible longest ago until at most
// Capacity chunks remain. Capacity <= 0 disables eviction.
type LRU struct {
	Capacity int
}

func (p LRU) Victims(all []Candidate) []ChunkKey {
	if p.Capacity <= 0 || len(all) <= p.Capacity {
		return nil
	}
	idle := make([]Candidate, 0, len(all))
	for _, c := range all {
		if !c.Active {
			idle = append(idle, c)
		}
	}
	sort.Slice(idle, func(i, j int) bool {
		a, b := idle[i], idle[j]
		if a.LastActive != b.LastActive {
			return a.LastActive < b.LastActive
		}
		if a.Key.CX != b.Key.CX {
			return a.Key.CX < b.Key.CX
		}
		return a.Key.CY < b.Key.CY
	})
	n := min(len(all)-p.Capacity, len(idle))
	out := make([]ChunkKey, 0, n)
	for _, c := range idle[:n] {
		out = append(out, c.Key)
	}
	return out
}
