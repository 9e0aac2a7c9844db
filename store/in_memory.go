package store

import (
	"sort"
	"sync"
	"time"

	"github.com/erni-gruppe/building-agents/core"
	"github.com/erni-gruppe/building-agents/logging"
)

// Default bounds chosen to match the service's historical cache behavior.
const (
	DefaultTTL        = time.Hour
	DefaultMaxEntries = 1000
)

// Options configures an InMemoryStore.
type Options struct {
	// TTL after which an entry becomes unreachable, measured from its last
	// write. Defaults to DefaultTTL.
	TTL time.Duration

	// MaxEntries bounds the number of live entries. When a save would exceed
	// the bound the store evicts the oldest entries by last write, breaking
	// ties by id, until within bound. Defaults to DefaultMaxEntries.
	MaxEntries int

	// SweepInterval enables a background sweep when positive. Expired
	// entries are also dropped inline on Get and Save, so the sweeper only
	// bounds how long dead entries occupy memory.
	SweepInterval time.Duration

	// OnEvict is invoked (outside the store lock) for every evicted id.
	OnEvict func(id string, reason EvictionReason)

	Logger logging.Logger
}

// InMemoryStore is a process-local Store guarded by a single RWMutex, with a
// per-conversation lock map for turn serialization. Returned state is cloned
// so callers never alias stored memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]*core.State

	locks *LockTable

	opts Options
	stop chan struct{}
	once sync.Once
}

// NewInMemoryStore constructs a store with optional overrides.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		TTL:        DefaultTTL,
		MaxEntries: DefaultMaxEntries,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &InMemoryStore{
		states: make(map[string]*core.State),
		locks:  NewLockTable(),
		opts:   opts,
		stop:   make(chan struct{}),
	}
	if opts.SweepInterval > 0 {
		go s.sweepLoop()
	}
	return s
}

// Close stops the background sweeper if one is running.
func (s *InMemoryStore) Close() { s.once.Do(func() { close(s.stop) }) }

// Get returns a clone of the stored state. Entries past their TTL are
// dropped on read and reported as ErrNotFound, indistinguishable from ids
// that never existed.
func (s *InMemoryStore) Get(id string) (*core.State, error) {
	s.mu.Lock()
	st, ok := s.states[id]
	if ok && s.expired(st, time.Now()) {
		delete(s.states, id)
		ok = false
		s.mu.Unlock()
		s.notifyEvict(id, EvictExpired)
		return nil, ErrNotFound
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

// Save upserts a clone of the state, stamps its last-write time and enforces
// the TTL and capacity bounds.
func (s *InMemoryStore) Save(state *core.State) error {
	now := time.Now()
	clone := state.Clone()
	clone.Updated = now

	s.mu.Lock()
	s.states[clone.ID] = clone
	evicted := s.enforceBoundsLocked(now)
	s.mu.Unlock()

	for _, ev := range evicted {
		s.notifyEvict(ev.id, ev.reason)
	}
	return nil
}

// Lock returns the release function of the per-conversation mutex.
func (s *InMemoryStore) Lock(id string) func() {
	return s.locks.Acquire(id)
}

// Len reports the number of live (unexpired) entries.
func (s *InMemoryStore) Len() int {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.states {
		if !s.expired(st, now) {
			n++
		}
	}
	return n
}

type eviction struct {
	id     string
	reason EvictionReason
}

// enforceBoundsLocked drops expired entries, then evicts oldest-by-last-write
// (id as tie-break) until the capacity bound holds. The entry written by the
// triggering save is itself eligible once everything older is gone.
func (s *InMemoryStore) enforceBoundsLocked(now time.Time) []eviction {
	var evicted []eviction
	for id, st := range s.states {
		if s.expired(st, now) {
			delete(s.states, id)
			evicted = append(evicted, eviction{id: id, reason: EvictExpired})
		}
	}

	if s.opts.MaxEntries <= 0 || len(s.states) <= s.opts.MaxEntries {
		return evicted
	}

	type entry struct {
		id      string
		updated time.Time
	}
	entries := make([]entry, 0, len(s.states))
	for id, st := range s.states {
		entries = append(entries, entry{id: id, updated: st.Updated})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].updated.Equal(entries[j].updated) {
			return entries[i].id < entries[j].id
		}
		return entries[i].updated.Before(entries[j].updated)
	})
	for _, e := range entries {
		if len(s.states) <= s.opts.MaxEntries {
			break
		}
		delete(s.states, e.id)
		evicted = append(evicted, eviction{id: e.id, reason: EvictCapacity})
	}
	return evicted
}

func (s *InMemoryStore) expired(st *core.State, now time.Time) bool {
	return s.opts.TTL > 0 && now.Sub(st.Updated) > s.opts.TTL
}

func (s *InMemoryStore) notifyEvict(id string, reason EvictionReason) {
	s.opts.Logger.Debug("store.evict", "conversation_id", id, "reason", string(reason))
	if s.opts.OnEvict != nil {
		s.opts.OnEvict(id, reason)
	}
}

func (s *InMemoryStore) sweepLoop() {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			evicted := s.enforceBoundsLocked(now)
			s.mu.Unlock()
			for _, ev := range evicted {
				s.notifyEvict(ev.id, ev.reason)
			}
		}
	}
}
