// Package buffer provides the capped FIFO history used by every bounded
// collection in the governance layer (alerts, snapshots, reports, usage).
package buffer

import "encoding/json"

// Ring is a fixed-capacity append-only buffer with FIFO eviction. Append
// evicts the oldest entry in the same call, so an observer never sees the
// buffer above capacity. Not safe for concurrent use; callers hold their
// own locks.
type Ring[T any] struct {
	capacity int
	items    []T
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{capacity: capacity}
}

// Append adds v, evicting the oldest entry if the ring is full.
func (r *Ring[T]) Append(v T) {
	if len(r.items) >= r.capacity {
		n := copy(r.items, r.items[len(r.items)-r.capacity+1:])
		r.items = r.items[:n]
	}
	r.items = append(r.items, v)
}

// Items returns the entries oldest first. The returned slice is a copy.
func (r *Ring[T]) Items() []T {
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Last returns up to n most recent entries, oldest first.
func (r *Ring[T]) Last(n int) []T {
	if n >= len(r.items) {
		return r.Items()
	}
	out := make([]T, n)
	copy(out, r.items[len(r.items)-n:])
	return out
}

func (r *Ring[T]) Len() int { return len(r.items) }

func (r *Ring[T]) Cap() int { return r.capacity }

// Replace swaps the full contents, trimming to capacity from the front.
// Used when restoring a persisted history.
func (r *Ring[T]) Replace(items []T) {
	if len(items) > r.capacity {
		items = items[len(items)-r.capacity:]
	}
	r.items = make([]T, len(items))
	copy(r.items, items)
}

// MarshalJSON encodes the ring as a plain array, oldest first.
func (r *Ring[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.items)
}

// UnmarshalJSON restores from a plain array, trimming to capacity.
func (r *Ring[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	r.Replace(items)
	return nil
}
