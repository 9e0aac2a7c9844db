// Package bolt provides a durable conversation store backed by a bbolt
// database file. It enforces the same TTL and capacity semantics as the
// in-memory store so the two are interchangeable behind store.Store.
package bolt

import (
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/erni-gruppe/building-agents/core"
	"github.com/erni-gruppe/building-agents/logging"
	"github.com/erni-gruppe/building-agents/store"
)

var bucketConversations = []byte("conversations")

// Options configures a Store.
type Options struct {
	TTL        time.Duration
	MaxEntries int
	Logger     logging.Logger
	OnEvict    func(id string, reason store.EvictionReason)
}

// Store persists conversation state in a single bbolt bucket keyed by
// conversation id. State is stored as JSON; malformed entries are skipped on
// read rather than failing the whole operation.
type Store struct {
	db   *bbolt.DB
	opts Options

	locks *store.LockTable
}

// Open opens (or creates) the database file at path.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		TTL:        store.DefaultTTL,
		MaxEntries: store.DefaultMaxEntries,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketConversations)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: init bucket: %w", err)
	}
	return &Store{db: db, opts: opts, locks: store.NewLockTable()}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the stored state or store.ErrNotFound. Entries past their TTL
// are deleted on read and reported as missing.
func (s *Store) Get(id string) (*core.State, error) {
	var st *core.State
	expired := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketConversations).Get([]byte(id))
		if raw == nil {
			return nil
		}
		var decoded core.State
		if err := json.Unmarshal(raw, &decoded); err != nil {
			s.opts.Logger.Warn("bolt.get.malformed", "conversation_id", id, "error", err.Error())
			return nil
		}
		if s.expired(&decoded, time.Now()) {
			expired = true
			return nil
		}
		st = &decoded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: get %s: %w", id, err)
	}
	if expired {
		if delErr := s.delete(id); delErr != nil {
			return nil, delErr
		}
		s.notifyEvict(id, store.EvictExpired)
	}
	if st == nil {
		return nil, store.ErrNotFound
	}
	return st, nil
}

// Save upserts the state, stamps its last-write time and enforces the TTL
// and capacity bounds in the same transaction.
func (s *Store) Save(state *core.State) error {
	clone := state.Clone()
	clone.Updated = time.Now().UTC()

	var evicted []eviction
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketConversations)
		raw, err := json.Marshal(clone)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(clone.ID), raw); err != nil {
			return err
		}
		evicted, err = s.enforceBounds(b, clone.Updated)
		return err
	})
	if err != nil {
		return fmt.Errorf("bolt: save %s: %w", clone.ID, err)
	}
	for _, ev := range evicted {
		s.notifyEvict(ev.id, ev.reason)
	}
	return nil
}

// Lock acquires the per-conversation mutex.
func (s *Store) Lock(id string) func() {
	return s.locks.Acquire(id)
}

type eviction struct {
	id     string
	reason store.EvictionReason
}

// enforceBounds drops expired entries then evicts oldest-by-last-write (id
// as tie-break) until the capacity bound holds. Must run inside an update
// transaction on the conversations bucket.
func (s *Store) enforceBounds(b *bbolt.Bucket, now time.Time) ([]eviction, error) {
	type entry struct {
		id      string
		updated time.Time
	}
	var live []entry
	var evicted []eviction

	err := b.ForEach(func(k, v []byte) error {
		var decoded core.State
		if err := json.Unmarshal(v, &decoded); err != nil {
			// Malformed entries count as dead weight.
			evicted = append(evicted, eviction{id: string(k), reason: store.EvictExpired})
			return nil
		}
		if s.expired(&decoded, now) {
			evicted = append(evicted, eviction{id: string(k), reason: store.EvictExpired})
			return nil
		}
		live = append(live, entry{id: string(k), updated: decoded.Updated})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.opts.MaxEntries > 0 && len(live) > s.opts.MaxEntries {
		// Selection by repeated minimum keeps this simple; bucket sizes stay
		// in the hundreds under the configured bound.
		for len(live) > s.opts.MaxEntries {
			oldest := 0
			for i := 1; i < len(live); i++ {
				li, lo := live[i], live[oldest]
				if li.updated.Before(lo.updated) || (li.updated.Equal(lo.updated) && li.id < lo.id) {
					oldest = i
				}
			}
			evicted = append(evicted, eviction{id: live[oldest].id, reason: store.EvictCapacity})
			live = append(live[:oldest], live[oldest+1:]...)
		}
	}

	for _, ev := range evicted {
		if err := b.Delete([]byte(ev.id)); err != nil {
			return nil, err
		}
	}
	return evicted, nil
}

func (s *Store) delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConversations).Delete([]byte(id))
	})
}

func (s *Store) expired(st *core.State, now time.Time) bool {
	return s.opts.TTL > 0 && now.Sub(st.Updated) > s.opts.TTL
}

func (s *Store) notifyEvict(id string, reason store.EvictionReason) {
	s.opts.Logger.Debug("store.evict", "conversation_id", id, "reason", string(reason))
	if s.opts.OnEvict != nil {
		s.opts.OnEvict(id, reason)
	}
}
