// Package cache provides caching implementations for Warrant resolutions.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/warrant"
)

// Compile-time interface check.
var _ warrant.Cache = (*Memory)(nil)

// Memory is an in-memory per-user cache with TTL-based expiration.
// An entry answers only for resolution instants in [AsOf, StableUntil),
// so grant expiry and elevation window boundaries are never served stale.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type entry struct {
	res       *warrant.Resolution
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cached users.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// WithClock overrides the wall clock used for TTL expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     30 * time.Second,
		maxSize: 10000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached resolution for userID re-stamped at asOf.
func (m *Memory) Get(_ context.Context, userID string, asOf time.Time) (*warrant.Resolution, bool) {
	m.mu.RLock()
	e, ok := m.entries[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		if cur, still := m.entries[userID]; still && cur == e {
			delete(m.entries, userID)
		}
		m.mu.Unlock()
		return nil, false
	}
	if asOf.Before(e.res.AsOf) {
		return nil, false
	}
	if until := e.res.StableUntil(); !until.IsZero() && !asOf.Before(until) {
		return nil, false
	}
	out := e.res.Clone()
	out.AsOf = asOf
	return out, true
}

// Set stores a resolution, replacing any previous entry for its user.
func (m *Memory) Set(_ context.Context, res *warrant.Resolution) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[res.UserID]; !exists && len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[res.UserID] = &entry{
		res:       res,
		expiresAt: m.now().Add(m.ttl),
	}
}

// InvalidateUser removes the cached resolution for one user.
func (m *Memory) InvalidateUser(_ context.Context, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
}

// InvalidateAll removes every cached resolution.
func (m *Memory) InvalidateAll(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
}

// Len returns the number of cached users.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := m.now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
