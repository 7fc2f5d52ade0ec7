// Package session composes the fast tier and durable store into one
// consistent session-record API.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/skillcheck/internal/domain"
	"github.com/ashureev/skillcheck/internal/store"
)

// ErrPersistenceUnavailable indicates the durable store rejected a write.
// The attempted transition must be discarded by the caller; no state has
// changed.
var ErrPersistenceUnavailable = errors.New("persistence unavailable")

// Manager owns the authoritative copy of session records. Reads go through
// the fast tier when it holds a fresh copy; writes go through to the durable
// store first, so an acknowledged save survives fast-tier loss.
type Manager struct {
	durable   store.DurableStore
	fast      store.FastTier // nil when the fast tier is disabled
	staleness time.Duration
	locks     *lockTable
	logger    *slog.Logger
}

// NewManager creates a Manager over the given tiers. fast may be nil.
func NewManager(durable store.DurableStore, fast store.FastTier, staleness time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if staleness <= 0 {
		staleness = 30 * time.Second
	}
	return &Manager{
		durable:   durable,
		fast:      fast,
		staleness: staleness,
		locks:     newLockTable(),
		logger:    logger,
	}
}

// Load returns the committed record for id, or (nil, nil) when no record
// exists. The fast tier is consulted first; a miss, an expired entry, or a
// corrupt payload falls through to the durable store and repopulates the
// fast tier.
func (m *Manager) Load(ctx context.Context, id string) (*domain.SessionRecord, error) {
	if m.fast != nil {
		if data, ok := m.fast.Get(id); ok {
			record, err := domain.UnmarshalSessionRecord(data)
			if err == nil {
				return record, nil
			}
			// A corrupt fast-tier entry degrades to a durable read.
			m.logger.Warn("evicting corrupt fast tier entry", "session_id", id, "error", err)
			m.fast.Delete(id)
		}
	}

	data, err := m.durable.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if data == nil {
		return nil, nil
	}

	record, err := domain.UnmarshalSessionRecord(data)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	if m.fast != nil {
		m.fast.Put(id, data, m.staleness)
	}
	return record, nil
}

// Save persists record write-through: the durable write must succeed before
// the fast tier is updated, and a durable failure surfaces
// ErrPersistenceUnavailable with nothing changed.
func (m *Manager) Save(ctx context.Context, record *domain.SessionRecord) error {
	data, err := record.Marshal()
	if err != nil {
		return fmt.Errorf("save session %s: %w", record.ID, err)
	}

	if err := m.durable.Put(ctx, record.ID, data); err != nil {
		m.logger.Error("durable write failed", "session_id", record.ID, "error", err)
		return fmt.Errorf("save session %s: %w: %v", record.ID, ErrPersistenceUnavailable, err)
	}

	if m.fast != nil {
		m.fast.Put(record.ID, data, m.staleness)
	}
	return nil
}

// WithLock runs fn while holding the exclusive per-session lock for id.
// This is the only permitted mutation path: all committed states of one
// session are totally ordered by lock acquisition. Acquisition respects ctx
// cancellation and never leaves the lock held.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	release, err := m.locks.acquire(ctx, id)
	if err != nil {
		return fmt.Errorf("acquire session lock %s: %w", id, err)
	}
	defer release()
	return fn(ctx)
}

// ListByState returns IDs of durable records in the given state.
func (m *Manager) ListByState(ctx context.Context, state domain.State) ([]string, error) {
	ids, err := m.durable.List(ctx, string(state))
	if err != nil {
		return nil, fmt.Errorf("list sessions by state %s: %w", state, err)
	}
	return ids, nil
}

// StartReconciler runs a background sweep that evicts fast-tier entries
// older than the staleness window. Evicted entries repopulate lazily on the
// next read; the sweep never blocks foreground paths.
func (m *Manager) StartReconciler(ctx context.Context, interval time.Duration) {
	if m.fast == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		m.logger.Info("fast tier reconciler started", "interval", interval, "staleness_window", m.staleness)

		for {
			select {
			case <-ticker.C:
				if removed := m.fast.SweepExpired(); removed > 0 {
					m.logger.Debug("fast tier sweep evicted stale entries", "count", removed)
				}
			case <-ctx.Done():
				m.logger.Info("fast tier reconciler shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
