// Package store provides the persistence tiers backing session records.
package store

import (
	"context"
	"time"
)

// DurableStore is the crash-consistent persistence layer. A Put that
// returned nil must survive process restart.
type DurableStore interface {
	// Get retrieves the serialized record for id. Returns (nil, nil) when
	// no record exists.
	Get(ctx context.Context, id string) ([]byte, error)

	// Put writes the serialized record for id, overwriting any prior value.
	Put(ctx context.Context, id string, data []byte) error

	// List returns the IDs of records in the given state. An empty state
	// matches everything.
	List(ctx context.Context, state string) ([]string, error)

	// Ping verifies connectivity and returns an error if the store is
	// unreachable.
	Ping(ctx context.Context) error

	// Close releases the underlying storage handle.
	Close() error
}

// FastTier is the optional low-latency, possibly volatile cache in front of
// the durable store. Losing its contents never loses acknowledged data.
type FastTier interface {
	// Get returns the cached bytes for id and whether a live entry exists.
	Get(id string) ([]byte, bool)

	// Put caches data for id with the given time to live.
	Put(id string, data []byte, ttl time.Duration)

	// Delete evicts id.
	Delete(id string)

	// SweepExpired evicts entries whose TTL elapsed and returns how many
	// were removed.
	SweepExpired() int
}
