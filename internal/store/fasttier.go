package store

import (
	"sync"
	"time"
)

type fastEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryFastTier is an in-process FastTier implementation. It holds a
// read-optimized copy of session records with per-entry TTL and is safe for
// concurrent use. Contents do not survive restart; the durable store remains
// authoritative.
type MemoryFastTier struct {
	mu      sync.RWMutex
	entries map[string]fastEntry
	now     func() time.Time
}

var _ FastTier = (*MemoryFastTier)(nil)

// NewMemoryFastTier creates an empty in-memory fast tier.
func NewMemoryFastTier() *MemoryFastTier {
	return &MemoryFastTier{
		entries: make(map[string]fastEntry),
		now:     time.Now,
	}
}

// Get returns the cached bytes for id if the entry has not expired.
func (m *MemoryFastTier) Get(id string) ([]byte, bool) {
	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok || m.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// Put caches data for id with the given TTL. A non-positive TTL drops the
// entry instead of caching it forever.
func (m *MemoryFastTier) Put(id string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		m.Delete(id)
		return
	}
	copied := append([]byte(nil), data...)
	m.mu.Lock()
	m.entries[id] = fastEntry{data: copied, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

// Delete evicts id.
func (m *MemoryFastTier) Delete(id string) {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
}

// SweepExpired evicts entries whose TTL elapsed.
func (m *MemoryFastTier) SweepExpired() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live and expired entries currently held.
func (m *MemoryFastTier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
