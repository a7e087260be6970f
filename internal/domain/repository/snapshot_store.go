// Package repository declares the persistence contracts consumed by
// the domain/application layers; GORM and in-memory implementations
// live under infrastructure/persistence.
package repository

import "context"

// SnapshotStore is the snapshot persistence contract: an
// opaque-bytes upsert/fetch keyed by room_id. Bytes are
// never interpreted here; encode/decode is the CRDT engine's job.
type SnapshotStore interface {
	// Load returns the previously saved bytes for room_id, or (nil, false)
	// if no row exists or the row was not found. Any other failure is
	// returned as an error and must be treated by the caller as a miss
	// (start empty).
	Load(ctx context.Context, roomID string) (data []byte, found bool, err error)

	// Save upserts room_id -> data. Idempotent, last-write-wins.
	Save(ctx context.Context, roomID string, data []byte) error
}
