// Package broadcast provides cross-process fan-out for room deltas.
// The default in-memory implementation is a no-op beyond the local
// Hub's own fan-out (the single-process model); the optional Redis-backed one additionally republishes to
// a room-scoped Pub/Sub channel so a second server process sharing the
// same snapshot store also relays deltas.
package broadcast

import (
	"context"
	"sync"
)

// Broadcaster publishes a room-scoped delta to any other process
// listening for the same room, and lets a local Hub subscribe for
// deltas published by other processes.
type Broadcaster interface {
	// Publish fans out delta for roomID to any other subscribed process.
	// The publishing Hub has already applied and fanned delta out to its
	// own local connections; Publish only reaches other processes.
	Publish(ctx context.Context, roomID string, delta []byte) error

	// Subscribe returns a channel of deltas published by other
	// processes for roomID, and an unsubscribe func. The channel is
	// closed once unsubscribe is called or ctx is done.
	Subscribe(ctx context.Context, roomID string) (<-chan []byte, func())
}

// NoopBroadcaster is the default single-process Broadcaster: Publish is
// a no-op and Subscribe never yields anything. Every test exercises
// this path since it requires no external service.
type NoopBroadcaster struct{}

func (NoopBroadcaster) Publish(context.Context, string, []byte) error { return nil }

func (NoopBroadcaster) Subscribe(ctx context.Context, _ string) (<-chan []byte, func()) {
	ch := make(chan []byte)
	var once sync.Once
	closeCh := func() { once.Do(func() { close(ch) }) }
	stop := context.AfterFunc(ctx, closeCh)
	return ch, func() {
		stop()
		closeCh()
	}
}

var _ Broadcaster = NoopBroadcaster{}
