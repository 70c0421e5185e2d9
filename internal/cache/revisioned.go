package cache

import "sync"

// AllRevisions pops every revision of a key.
const AllRevisions = -1

// Revisioned keeps a LIFO stack of values per key. The newest revision is
// visible to readers; invalidation pops revisions and removes the key once its
// stack is empty. It is safe for concurrent use.
type Revisioned[K comparable, V any] struct {
	mu     sync.Mutex
	stacks map[K][]V
}

// NewRevisioned creates an empty revisioned cache.
func NewRevisioned[K comparable, V any]() *Revisioned[K, V] {
	return &Revisioned[K, V]{stacks: make(map[K][]V)}
}

// Get returns the most recent revision of key.
func (r *Revisioned[K, V]) Get(key K) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stack := r.stacks[key]
	if len(stack) == 0 {
		var zero V
		return zero, false
	}
	return stack[len(stack)-1], true
}

// Set pushes a new revision for key.
func (r *Revisioned[K, V]) Set(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stacks[key] = append(r.stacks[key], value)
}

// Invalidate pops up to maxRevisions revisions of key. Zero is treated as one;
// AllRevisions pops them all.
func (r *Revisioned[K, V]) Invalidate(key K, maxRevisions int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stack, ok := r.stacks[key]
	if !ok {
		return
	}
	switch {
	case maxRevisions == AllRevisions || maxRevisions >= len(stack):
		delete(r.stacks, key)
		return
	case maxRevisions <= 0:
		maxRevisions = 1
	}
	stack = stack[:len(stack)-maxRevisions]
	if len(stack) == 0 {
		delete(r.stacks, key)
		return
	}
	r.stacks[key] = stack
}

// Revisions returns the number of stacked revisions for key.
func (r *Revisioned[K, V]) Revisions(key K) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stacks[key])
}

// Keys returns every key with at least one revision, in no particular order.
func (r *Revisioned[K, V]) Keys() []K {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]K, 0, len(r.stacks))
	for k := range r.stacks {
		keys = append(keys, k)
	}
	return keys
}
