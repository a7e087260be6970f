package websocket

import (
	"bytes"
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/robin-raq/collabboard/internal/application/roomservice"
	"github.com/robin-raq/collabboard/internal/domain/board"
	"github.com/robin-raq/collabboard/internal/domain/service"
	"github.com/robin-raq/collabboard/internal/infrastructure/broadcast"
	"github.com/robin-raq/collabboard/internal/infrastructure/crdt"
	"github.com/robin-raq/collabboard/internal/infrastructure/persistence"
)

func newTestHub(t *testing.T) (*Hub, *roomservice.Manager) {
	t.Helper()
	m := roomservice.NewManager(
		persistence.NewMemorySnapshotStore(),
		func(roomID string) board.Document { return crdt.New("hub-test") },
		roomservice.Options{},
		zap.NewNop())
	h := NewHub(context.Background(), m, broadcast.NoopBroadcaster{}, zap.NewNop())
	m.SetFanOut(h.BroadcastServerDelta)
	return h, m
}

// testConn builds a socket-less member connection so routing can be
// exercised without a live transport.
func testConn(id, roomID string) *Conn {
	c := newConn(id, roomID, "", nil, zap.NewNop())
	c.markReady()
	return c
}

func recvFrame(t *testing.T, c *Conn) []byte {
	t.Helper()
	select {
	case frame := <-c.send:
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return nil
	}
}

func assertNoFrame(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case frame := <-c.send:
		t.Fatalf("unexpected frame delivered: %v", frame[:min(8, len(frame))])
	default:
	}
}

func makeDelta(t *testing.T, id string) []byte {
	t.Helper()
	peer := crdt.New("peer-" + id)
	u, err := peer.PutObject(context.Background(), &board.Object{
		ID: id, Type: board.TypeSticky, X: 10, Y: 10, Width: 200, Height: 150, Fill: "#FFD700",
	}, board.OriginLocal)
	if err != nil {
		t.Fatalf("peer put: %v", err)
	}
	return u.Delta
}

func TestDeltaFrameFanOut(t *testing.T) {
	h, m := newTestHub(t)
	room, err := m.GetOrCreate(context.Background(), "r2")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	a := testConn("a", "r2")
	b := testConn("b", "r2")
	h.register(a)
	h.register(b)

	frame := encodeFrame(FrameDelta, makeDelta(t, "o1"))
	h.handleFrame(room, a, frame)

	// The co-tenant receives the frame byte-identical; the sender does not.
	got := recvFrame(t, b)
	if !bytes.Equal(got, frame) {
		t.Fatal("forwarded frame differs from the one sent")
	}
	assertNoFrame(t, a)

	// The server applied it too.
	if _, ok := room.Doc.Objects()["o1"]; !ok {
		t.Fatal("server document missing o1 after apply")
	}
	if !room.IsDirty() {
		t.Fatal("delta did not dirty the room")
	}
}

func TestAwarenessFrameBroadcastOnly(t *testing.T) {
	h, m := newTestHub(t)
	room, _ := m.GetOrCreate(context.Background(), "r1")
	room.ClearDirty()

	a := testConn("a", "r1")
	b := testConn("b", "r1")
	h.register(a)
	h.register(b)

	frame := encodeFrame(FrameAwareness, []byte(`{"cursor":[4,2]}`))
	h.handleFrame(room, a, frame)

	if got := recvFrame(t, b); !bytes.Equal(got, frame) {
		t.Fatal("awareness frame not forwarded verbatim")
	}
	if room.Doc.Len() != 0 {
		t.Fatal("awareness frame was applied to the document")
	}
	if room.IsDirty() {
		t.Fatal("awareness frame dirtied the room")
	}
}

func TestShortAndOversizeFramesDropped(t *testing.T) {
	h, m := newTestHub(t)
	room, _ := m.GetOrCreate(context.Background(), "r1")

	a := testConn("a", "r1")
	b := testConn("b", "r1")
	h.register(a)
	h.register(b)

	h.handleFrame(room, a, []byte{FrameDelta})
	assertNoFrame(t, b)

	// Exactly at the limit is forwardable; one byte past is not.
	edge := make([]byte, service.MaxWSMessageBytes)
	edge[0] = FrameAwareness
	h.handleFrame(room, a, edge)
	if got := recvFrame(t, b); len(got) != service.MaxWSMessageBytes {
		t.Fatalf("frame at the limit not forwarded, got %d bytes", len(got))
	}

	over := make([]byte, service.MaxWSMessageBytes+1)
	over[0] = FrameAwareness
	h.handleFrame(room, a, over)
	assertNoFrame(t, b)
}

func TestMalformedDeltaNotBroadcast(t *testing.T) {
	h, m := newTestHub(t)
	room, _ := m.GetOrCreate(context.Background(), "r1")

	a := testConn("a", "r1")
	b := testConn("b", "r1")
	h.register(a)
	h.register(b)

	h.handleFrame(room, a, encodeFrame(FrameDelta, []byte("not json")))
	assertNoFrame(t, b)
	if room.Doc.Len() != 0 {
		t.Fatal("malformed delta mutated the document")
	}
}

func TestServerDeltaReachesEveryMember(t *testing.T) {
	h, m := newTestHub(t)
	room, _ := m.GetOrCreate(context.Background(), "r1")

	a := testConn("a", "r1")
	b := testConn("b", "r1")
	h.register(a)
	h.register(b)

	// A tool execution mutates the document with origin=local; the
	// manager's observer pushes the delta back through the hub.
	u, err := room.Doc.PutObject(context.Background(), &board.Object{
		ID: "tool-1", Type: board.TypeRect, X: 0, Y: 0, Width: 150, Height: 100, Fill: "#87CEEB",
	}, board.OriginLocal)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	want := encodeFrame(FrameDelta, u.Delta)
	for _, c := range []*Conn{a, b} {
		if got := recvFrame(t, c); !bytes.Equal(got, want) {
			t.Fatalf("member %s got wrong server delta", c.ID)
		}
	}
}

func TestPendingFramesFlushAfterInitialState(t *testing.T) {
	joiner := newConn("late", "r1", "", nil, zap.NewNop())

	// Frames fanned out while the document load is in flight buffer on
	// the connection instead of racing ahead of the snapshot.
	joiner.trySend([]byte{FrameDelta, 1})
	joiner.trySend([]byte{FrameDelta, 2})

	initial := []byte{FrameDelta, 0}
	joiner.sendInitial(initial)
	joiner.markReady()

	wantOrder := [][]byte{initial, {FrameDelta, 1}, {FrameDelta, 2}}
	for i, want := range wantOrder {
		got := recvFrame(t, joiner)
		if !bytes.Equal(got, want) {
			t.Fatalf("frame %d out of order: got %v want %v", i, got, want)
		}
	}
}

func TestUnregisterTearsDownEmptyRoom(t *testing.T) {
	h, m := newTestHub(t)
	if _, err := m.GetOrCreate(context.Background(), "r1"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	a := testConn("a", "r1")
	h.register(a)
	if got := h.ConnectionCount("r1"); got != 1 {
		t.Fatalf("ConnectionCount = %d, want 1", got)
	}

	h.unregister(a)
	if got := h.ConnectionCount("r1"); got != 0 {
		t.Fatalf("ConnectionCount after leave = %d, want 0", got)
	}
	// Double-unregister is harmless.
	h.unregister(a)
}
