package store

import "sync"

// LockTable hands out per-conversation mutexes for turn serialization.
// Entries are reference counted and removed on last release, so the table
// is bounded by the number of in-flight turns rather than by the number of
// conversation ids ever seen.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLockTable creates an empty table.
func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]*lockEntry)}
}

// Acquire blocks until the id's lock is held and returns its release
// function. Waiters blocked on the same id share the entry, so serialization
// holds across the entry's removal and recreation.
func (t *LockTable) Acquire(id string) func() {
	t.mu.Lock()
	e, ok := t.locks[id]
	if !ok {
		e = &lockEntry{}
		t.locks[id] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.locks, id)
		}
		t.mu.Unlock()
	}
}

// Len reports the number of ids with a holder or waiters.
func (t *LockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
