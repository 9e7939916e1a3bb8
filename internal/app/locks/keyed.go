// Package locks provides per-key mutual exclusion for member records.
package locks

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed serializes read-modify-write cycles on a per-key basis. Operations
// touching a single member take that member's lock; upline propagation takes
// one ancestor lock at a time while walking toward the root.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty lock table.
func New() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Lock acquires the lock for key and returns the matching unlock function.
func (k *Keyed) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
