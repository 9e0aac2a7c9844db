package guardrail

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

// Cache defaults matching the service's historical tuning.
const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = time.Hour
)

// CacheOptions configures a Cache.
type CacheOptions struct {
	// MaxEntries bounds the number of cached verdicts. Oldest entries are
	// evicted first when the bound is exceeded. Defaults to DefaultCacheSize.
	MaxEntries int

	// TTL is how long a cached verdict stays valid. Defaults to
	// DefaultCacheTTL.
	TTL time.Duration

	// OnHit and OnMiss, when set, are invoked with the guardrail name on
	// each lookup. Used for metrics.
	OnHit  func(guardrailName string)
	OnMiss func(guardrailName string)

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type cacheEntry struct {
	verdict Verdict
	stored  time.Time
}

// Cache is a bounded TTL cache of guardrail verdicts keyed by the SHA-256
// hash of the evaluated input, scoped per guardrail name so distinct
// classifiers never share results. Safe for concurrent use.
type Cache struct {
	opts    CacheOptions
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache creates a verdict cache.
func NewCache(optFns ...func(o *CacheOptions)) *Cache {
	opts := CacheOptions{
		MaxEntries: DefaultCacheSize,
		TTL:        DefaultCacheTTL,
		Now:        time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultCacheSize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{opts: opts, entries: make(map[string]cacheEntry)}
}

// Get returns the cached verdict for the given guardrail and input, if a
// fresh one exists.
func (c *Cache) Get(guardrailName, input string) (Verdict, bool) {
	key := cacheKey(guardrailName, input)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if ok && c.opts.Now().Sub(entry.stored) >= c.opts.TTL {
		delete(c.entries, key)
		ok = false
	}
	if ok {
		if c.opts.OnHit != nil {
			c.opts.OnHit(guardrailName)
		}
		return entry.verdict, true
	}
	if c.opts.OnMiss != nil {
		c.opts.OnMiss(guardrailName)
	}
	return Verdict{}, false
}

// Put stores a verdict, evicting expired then oldest entries as needed to
// stay within the configured bound.
func (c *Cache) Put(guardrailName, input string, v Verdict) {
	key := cacheKey(guardrailName, input)
	now := c.opts.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{verdict: v, stored: now}
	if len(c.entries) <= c.opts.MaxEntries {
		return
	}

	for k, e := range c.entries {
		if now.Sub(e.stored) >= c.opts.TTL {
			delete(c.entries, k)
		}
	}
	if excess := len(c.entries) - c.opts.MaxEntries; excess > 0 {
		type aged struct {
			key    string
			stored time.Time
		}
		all := make([]aged, 0, len(c.entries))
		for k, e := range c.entries {
			all = append(all, aged{k, e.stored})
		}
		sort.Slice(all, func(i, j int) bool {
			if !all[i].stored.Equal(all[j].stored) {
				return all[i].stored.Before(all[j].stored)
			}
			return all[i].key < all[j].key
		})
		for _, a := range all[:excess] {
			delete(c.entries, a.key)
		}
	}
}

// Len reports the number of cached verdicts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func cacheKey(guardrailName, input string) string {
	sum := sha256.Sum256([]byte(input))
	return guardrailName + ":" + hex.EncodeToString(sum[:])
}
