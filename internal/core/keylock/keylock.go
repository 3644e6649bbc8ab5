// Package keylock provides per-key mutual exclusion for ledger mutations.
//
// Every mutating stock operation must hold the lock for each ingredient it
// touches before reading the cached quantity, so that two concurrent
// stock-outs can never both pass the sufficiency check against a stale
// balance. Multi-key acquisition is ordered (ascending key) to avoid
// deadlock between transactions touching overlapping ingredient sets.
package keylock

import (
	"sort"
	"sync"

	"mise/internal/core/id"
)

// KeyedMutex is a set of mutexes addressed by entity ID.
// Locks are created on first use and kept for the process lifetime;
// the ingredient catalog is small enough that cleanup is not needed.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[id.ID]*sync.Mutex
}

// New creates an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[id.ID]*sync.Mutex),
	}
}

func (k *KeyedMutex) get(key id.ID) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock acquires the mutexes for all given keys in ascending key order and
// returns an unlock function releasing them in reverse order.
// Duplicate keys are acquired once.
func (k *KeyedMutex) Lock(keys ...id.ID) (unlock func()) {
	ordered := dedupeSorted(keys)

	acquired := make([]*sync.Mutex, 0, len(ordered))
	for _, key := range ordered {
		m := k.get(key)
		m.Lock()
		acquired = append(acquired, m)
	}

	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}

// dedupeSorted returns the unique keys in ascending byte order.
func dedupeSorted(keys []id.ID) []id.ID {
	if len(keys) <= 1 {
		return keys
	}

	ordered := make([]id.ID, len(keys))
	copy(ordered, keys)
	sort.Slice(ordered, func(i, j int) bool {
		return less(ordered[i], ordered[j])
	})

	out := ordered[:1]
	for _, key := range ordered[1:] {
		if key != out[len(out)-1] {
			out = append(out, key)
		}
	}
	return out
}

func less(a, b id.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
