package crdt

import (
	"context"
	"testing"

	"github.com/robin-raq/collabboard/internal/domain/board"
)

func TestPutObject_VisibleAndCounted(t *testing.T) {
	e := New("node-a")
	ctx := context.Background()

	obj := &board.Object{ID: "o1", Type: board.TypeSticky, X: 10, Y: 10, Width: 200, Height: 150, Fill: "#FFD700"}
	if _, err := e.PutObject(ctx, obj, board.OriginLocal); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	if e.Len() != 1 {
		t.Fatalf("expected 1 object, got %d", e.Len())
	}
	got := e.Objects()["o1"]
	if got == nil || got.Fill != "#FFD700" {
		t.Fatalf("unexpected object: %+v", got)
	}
}

func TestApplyUpdate_Idempotent(t *testing.T) {
	src := New("node-a")
	dst := New("node-b")
	ctx := context.Background()

	obj := &board.Object{ID: "o1", Type: board.TypeRect, X: 0, Y: 0, Width: 150, Height: 100, Fill: "#87CEEB"}
	update, err := src.PutObject(ctx, obj, board.OriginLocal)
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	if err := dst.ApplyUpdate(ctx, update.Delta); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	first, err := dst.EncodeState()
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}

	if err := dst.ApplyUpdate(ctx, update.Delta); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	second, err := dst.EncodeState()
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}

	if string(first) != string(second) {
		t.Fatalf("applying the same delta twice changed state:\n%s\nvs\n%s", first, second)
	}
}

func TestApplyUpdate_LastWriterWins(t *testing.T) {
	dst := New("node-b")
	ctx := context.Background()

	older := &board.Object{ID: "o1", Type: board.TypeRect, X: 0, Y: 0, Width: 150, Height: 100, Fill: "#87CEEB"}
	src1 := New("node-a")
	u1, _ := src1.PutObject(ctx, older, board.OriginLocal)
	if err := dst.ApplyUpdate(ctx, u1.Delta); err != nil {
		t.Fatal(err)
	}

	newer := &board.Object{ID: "o1", Type: board.TypeRect, X: 5, Y: 5, Width: 150, Height: 100, Fill: "#FF6B6B"}
	src2 := New("node-c")
	u2, _ := src2.PutObject(ctx, newer, board.OriginLocal)
	if err := dst.ApplyUpdate(ctx, u2.Delta); err != nil {
		t.Fatal(err)
	}

	got := dst.Objects()["o1"]
	if got.Fill != "#FF6B6B" {
		t.Fatalf("expected last writer's fill to win, got %s", got.Fill)
	}

	// Re-applying the older delta must not resurrect the stale value.
	if err := dst.ApplyUpdate(ctx, u1.Delta); err != nil {
		t.Fatal(err)
	}
	if got := dst.Objects()["o1"]; got.Fill != "#FF6B6B" {
		t.Fatalf("stale delta overwrote newer state: %+v", got)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	e := New("node-a")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		e.PutObject(ctx, &board.Object{ID: id, Type: board.TypeSticky, Width: 200, Height: 150, Fill: "#FFD700"}, board.OriginLocal)
	}

	state, err := e.EncodeState()
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}

	fresh := New("node-b")
	if err := fresh.LoadState(state); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	if fresh.Len() != e.Len() {
		t.Fatalf("expected %d objects after round trip, got %d", e.Len(), fresh.Len())
	}
	for id, obj := range e.Objects() {
		got := fresh.Objects()[id]
		if got == nil || got.Fill != obj.Fill {
			t.Fatalf("round-trip mismatch for %s", id)
		}
	}
}

func TestDeleteObject_Tombstoned(t *testing.T) {
	e := New("node-a")
	ctx := context.Background()
	e.PutObject(ctx, &board.Object{ID: "o1", Type: board.TypeRect, Width: 10, Height: 10, Fill: "#fff"}, board.OriginLocal)
	if e.Len() != 1 {
		t.Fatalf("expected 1 object")
	}
	if _, err := e.DeleteObject(ctx, "o1", board.OriginLocal); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if e.Len() != 0 {
		t.Fatalf("expected 0 live objects after delete, got %d", e.Len())
	}
	if _, ok := e.Objects()["o1"]; ok {
		t.Fatalf("tombstoned object still visible")
	}
}

func TestMalformedDelta_Dropped(t *testing.T) {
	e := New("node-a")
	err := e.ApplyUpdate(context.Background(), []byte("not json"))
	if err == nil {
		t.Fatal("expected an error for a malformed delta")
	}
}
