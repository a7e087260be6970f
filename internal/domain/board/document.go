package board

import "context"

// Origin tags a document mutation so the Connection Hub can tell which
// deltas it already relayed on the wire and which ones it still owes a
// broadcast.
type Origin string

const (
	OriginRemote Origin = "remote" // applied from a frame received over the wire
	OriginLocal  Origin = "local"  // applied by the tool executor / AI pipeline
)

// Update is one CRDT delta together with the origin that produced it.
type Update struct {
	Delta  []byte
	Origin Origin
}

// UpdateObserver is invoked synchronously after every successful
// mutation (ApplyUpdate, PutObject, DeleteObject). Implementations must
// not block for long; the Room Manager's observer marks the room dirty
// and hands local-origin deltas to its fan-out function.
type UpdateObserver func(u Update)

// Document is the capability contract the CRDT engine must supply.
// It deliberately does not expose the CRDT's own internal op format;
// only encode/apply/observe and a read-only object snapshot, so any
// engine with the same merge semantics can sit behind it.
type Document interface {
	// Objects returns a read-only snapshot of the object map. Callers
	// must not mutate the returned map or its values.
	Objects() map[string]*Object

	// PutObject creates or replaces one object transactionally and
	// produces an Update tagged with origin. Used by the tool executor
	// (origin=local).
	PutObject(ctx context.Context, obj *Object, origin Origin) (Update, error)

	// DeleteObject removes one object transactionally.
	DeleteObject(ctx context.Context, id string, origin Origin) (Update, error)

	// ApplyUpdate merges an externally-produced delta (origin=remote,
	// received over the wire) into the document. Idempotent: applying
	// the same delta twice is a no-op the second time.
	ApplyUpdate(ctx context.Context, delta []byte) error

	// EncodeState returns the full encoded state, suitable for a new
	// joiner's initial frame or for persistence via the snapshot store.
	EncodeState() ([]byte, error)

	// LoadState replaces the document's content with a previously
	// encoded state. Only valid immediately after construction.
	LoadState(state []byte) error

	// OnUpdate registers an observer fired after every successful
	// mutation (both ApplyUpdate and Put/DeleteObject). Only one
	// observer is supported; registering again replaces the previous one.
	OnUpdate(fn UpdateObserver)

	// Len reports the current object count, used by the object-cap checks.
	Len() int
}
