package session

import (
	"context"
	"sync"
)

// lockTable hands out one exclusive lock per session ID. Entries are
// refcounted so the table does not grow with every session ever seen.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the per-ID lock is held or ctx is done. The returned
// release function must be called exactly once.
func (t *lockTable) acquire(ctx context.Context, id string) (func(), error) {
	t.mu.Lock()
	entry, ok := t.entries[id]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		t.entries[id] = entry
	}
	entry.refs++
	t.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return func() {
			<-entry.ch
			t.put(id, entry)
		}, nil
	case <-ctx.Done():
		t.put(id, entry)
		return nil, ctx.Err()
	}
}

func (t *lockTable) put(id string, entry *lockEntry) {
	t.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(t.entries, id)
	}
	t.mu.Unlock()
}
