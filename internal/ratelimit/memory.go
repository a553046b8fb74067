package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count int
	start time.Time
}

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	policy Policy

	mu      sync.Mutex
	windows map[string]*window
}

// NewMemoryStore creates an empty store enforcing policy.
func NewMemoryStore(policy Policy) *MemoryStore {
	return &MemoryStore{
		policy:  policy,
		windows: make(map[string]*window),
	}
}

// Allow implements Store.
func (m *MemoryStore) Allow(_ context.Context, key string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || m.policy.expired(w.start, now) {
		m.windows[key] = &window{count: 1, start: now}
		return true, nil
	}
	if w.count >= m.policy.Max {
		return false, nil
	}
	w.count++
	return true, nil
}

// Prune implements Store.
func (m *MemoryStore) Prune(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, w := range m.windows {
		if m.policy.expired(w.start, now) {
			delete(m.windows, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of tracked keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
