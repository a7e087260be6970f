// Package crdt implements the document state engine: a
// merge-convergent map of records with full-state encode/decode and
// an update observer.
//
// No published Go module provides this shape (an object-keyed
// last-writer-wins map with an encode/apply/observe capability); see
// DESIGN.md for why automerge-go and the IPFS CRDT datastore don't
// fit. Each record carries the logical clock of the write that
// produced it, so concurrent writers converge per key regardless of
// delivery order. BoardObject records, not characters, are the unit
// of convergence: whole-record LWW is enough for a whiteboard.
package crdt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/robin-raq/collabboard/internal/domain/board"
)

// record is one map-slot: either a live object or a tombstone, each
// carrying the clock of the write that produced it so concurrent
// writers converge deterministically.
type record struct {
	Clock     clock        `json:"clock"`
	Tombstone bool         `json:"tombstone,omitempty"`
	Obj       *board.Object `json:"obj,omitempty"`
}

// Engine is the Document implementation: an in-memory LWW object map.
type Engine struct {
	mu       sync.RWMutex
	entries  map[string]*record
	clock    *source
	observer board.UpdateObserver
}

// New creates an empty engine. nodeID distinguishes this process's
// writes from a peer process's writes when clocks tie on wall time;
// any unique-per-process string works (hostname+pid, a UUID, etc).
func New(nodeID string) *Engine {
	return &Engine{
		entries: make(map[string]*record),
		clock:   newSource(nodeID),
	}
}

var _ board.Document = (*Engine)(nil)

// Objects returns a snapshot of the live (non-tombstoned) objects.
func (e *Engine) Objects() map[string]*board.Object {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]*board.Object, len(e.entries))
	for id, rec := range e.entries {
		if rec.Tombstone {
			continue
		}
		cp := *rec.Obj
		out[id] = &cp
	}
	return out
}

// Len reports the live object count.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, rec := range e.entries {
		if !rec.Tombstone {
			n++
		}
	}
	return n
}

// PutObject writes/replaces one object and returns the encoded delta.
func (e *Engine) PutObject(ctx context.Context, obj *board.Object, origin board.Origin) (board.Update, error) {
	cp := *obj
	rec := &record{Clock: e.clock.next(), Obj: &cp}
	return e.applyLocal(ctx, obj.ID, rec, origin)
}

// DeleteObject tombstones one object and returns the encoded delta.
func (e *Engine) DeleteObject(ctx context.Context, id string, origin board.Origin) (board.Update, error) {
	rec := &record{Clock: e.clock.next(), Tombstone: true}
	return e.applyLocal(ctx, id, rec, origin)
}

// applyLocal installs rec for key, fires the observer, and encodes the
// single-entry delta the caller (and remote peers, via ApplyUpdate) can
// use to replay this write.
func (e *Engine) applyLocal(_ context.Context, id string, rec *record, origin board.Origin) (board.Update, error) {
	e.mu.Lock()
	e.entries[id] = rec
	observer := e.observer
	e.mu.Unlock()

	delta, err := json.Marshal(map[string]*record{id: rec})
	if err != nil {
		return board.Update{}, fmt.Errorf("crdt: encode delta: %w", err)
	}

	u := board.Update{Delta: delta, Origin: origin}
	if observer != nil {
		observer(u)
	}
	return u, nil
}

// ApplyUpdate merges a remote delta using last-writer-wins per key: an
// incoming record only replaces the current one if its clock is
// strictly newer, which is what makes repeated application of the
// same delta a no-op.
func (e *Engine) ApplyUpdate(_ context.Context, delta []byte) error {
	if len(delta) == 0 {
		return nil
	}
	var incoming map[string]*record
	if err := json.Unmarshal(delta, &incoming); err != nil {
		// Malformed delta: drop the frame, keep the connection open.
		return fmt.Errorf("crdt: decode delta: %w", err)
	}

	e.mu.Lock()
	for id, rec := range incoming {
		cur, exists := e.entries[id]
		if !exists || rec.Clock.after(cur.Clock) {
			e.entries[id] = rec
		}
	}
	observer := e.observer
	e.mu.Unlock()

	// The Room Manager's registered observer is responsible for not
	// re-broadcasting origin=remote deltas; the Hub's own message path
	// already relayed this frame to co-tenants.
	if observer != nil {
		observer(board.Update{Delta: delta, Origin: board.OriginRemote})
	}
	return nil
}

// OnUpdate registers the single supported observer.
func (e *Engine) OnUpdate(fn board.UpdateObserver) {
	e.mu.Lock()
	e.observer = fn
	e.mu.Unlock()
}

// EncodeState returns the full map (including tombstones, so peers
// that merge this snapshot don't resurrect deleted objects).
func (e *Engine) EncodeState() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return json.Marshal(e.entries)
}

// LoadState replaces the engine's content with a previously encoded
// snapshot. Only meaningful right after construction.
func (e *Engine) LoadState(state []byte) error {
	if len(state) == 0 {
		return nil
	}
	var entries map[string]*record
	if err := json.Unmarshal(state, &entries); err != nil {
		return fmt.Errorf("crdt: decode snapshot: %w", err)
	}
	e.mu.Lock()
	e.entries = entries
	e.mu.Unlock()
	return nil
}
