// Package store provides the bounded, time-expiring conversation store: a
// key-value cache of per-conversation state with TTL and capacity eviction
// plus per-conversation mutual exclusion so two in-flight turns on one
// conversation can never interleave transcript appends.
package store

import (
	"errors"

	"github.com/erni-gruppe/building-agents/core"
)

// ErrNotFound is returned by Get for unknown or evicted conversations.
// Callers must treat an evicted id exactly like one that never existed.
var ErrNotFound = errors.New("store: conversation not found")

// Store persists conversation state between turns.
//
// Get and Save are safe under concurrent calls from independent
// conversations. Turns targeting the same conversation id must additionally
// be serialized by holding the per-id lock for the whole turn.
type Store interface {
	// Get returns a copy of the stored state or ErrNotFound.
	Get(id string) (*core.State, error)

	// Save upserts the state and enforces the TTL and capacity bounds.
	Save(state *core.State) error

	// Lock acquires the per-conversation mutex and returns its release
	// function.
	Lock(id string) (release func())
}

// EvictionReason labels why an entry was removed.
type EvictionReason string

// Eviction reasons reported to the OnEvict hook.
const (
	EvictExpired  EvictionReason = "expired"
	EvictCapacity EvictionReason = "capacity"
)
