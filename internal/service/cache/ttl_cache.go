package cache

import (
	"strings"
	"sync"
	"time"
)

type entry struct {
	v       any
	created time.Time
	exp     time.Time
}

// TTLCache is a keyed in-process store with per-entry expiry. Expired entries
// are dropped on read or by an explicit Sweep; nothing runs in the background.
type TTLCache struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

type TTLOption func(*TTLCache)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) TTLOption {
	return func(c *TTLCache) { c.now = now }
}

func NewTTLCache(opts ...TTLOption) *TTLCache {
	c := &TTLCache{m: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TTLCache) Get(key string) (any, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && now.After(e.exp) {
		c.mu.Lock()
		if cur, still := c.m[key]; still && cur.exp.Equal(e.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.v, true
}

// Set stores v; ttl <= 0 means no expiry.
func (c *TTLCache) Set(key string, v any, ttl time.Duration) {
	now := c.now()
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = entry{v: v, created: now, exp: exp}
	c.mu.Unlock()
}

func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

// DeletePrefix removes every key starting with prefix and returns the count.
func (c *TTLCache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.m {
		if strings.HasPrefix(k, prefix) {
			delete(c.m, k)
			n++
		}
	}
	return n
}

func (c *TTLCache) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry)
	c.mu.Unlock()
}

func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Sweep removes expired entries and returns how many were removed.
func (c *TTLCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
			n++
		}
	}
	return n
}

// SweepOlderThan removes entries created more than age ago, or already expired.
func (c *TTLCache) SweepOlderThan(age time.Duration) int {
	now := c.now()
	cutoff := now.Add(-age)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.m {
		if e.created.Before(cutoff) || (!e.exp.IsZero() && now.After(e.exp)) {
			delete(c.m, k)
			n++
		}
	}
	return n
}
