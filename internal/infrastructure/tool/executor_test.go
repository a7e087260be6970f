package tool

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/robin-raq/collabboard/internal/domain/board"
	"github.com/robin-raq/collabboard/internal/domain/service"
	"github.com/robin-raq/collabboard/internal/infrastructure/crdt"
)

func decodeResult(t *testing.T, a board.ToolAction) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(a.Result), &m); err != nil {
		t.Fatalf("result not valid JSON: %v (%s)", err, a.Result)
	}
	return m
}

func TestCreateObject_DefaultsByType(t *testing.T) {
	doc := crdt.New("test-node")
	exec := New(doc, 1)

	action, err := exec.Execute("createObject", map[string]interface{}{"type": "sticky", "x": 10.0, "y": 10.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := decodeResult(t, action)
	if result["success"] != true {
		t.Fatalf("expected success, got %v", result)
	}
	if result["width"].(float64) != 200 || result["height"].(float64) != 150 {
		t.Fatalf("expected sticky defaults, got %v", result)
	}
}

func TestCreateObject_CollisionAvoidance(t *testing.T) {
	doc := crdt.New("test-node")
	exec := New(doc, 1)

	first, _ := exec.Execute("createObject", map[string]interface{}{"type": "rect", "x": 0.0, "y": 0.0})
	firstResult := decodeResult(t, first)

	second, _ := exec.Execute("createObject", map[string]interface{}{"type": "rect", "x": 0.0, "y": 0.0})
	secondResult := decodeResult(t, second)

	if firstResult["x"] == secondResult["x"] && firstResult["y"] == secondResult["y"] {
		t.Fatalf("expected the second rect to be placed elsewhere, got same position: %v", secondResult)
	}
	// Second rect should have scanned rightward by w+padding.
	if secondResult["x"].(float64) != 150+20 {
		t.Fatalf("expected scan-right placement at x=170, got %v", secondResult["x"])
	}
}

func TestCreateObject_SkipCollisionCheckOverlaps(t *testing.T) {
	doc := crdt.New("test-node")
	exec := New(doc, 1)

	exec.Execute("createObject", map[string]interface{}{"type": "rect", "x": 0.0, "y": 0.0})
	second, _ := exec.Execute("createObject", map[string]interface{}{
		"type": "rect", "x": 0.0, "y": 0.0, "skipCollisionCheck": true,
	})
	result := decodeResult(t, second)
	if result["x"].(float64) != 0 || result["y"].(float64) != 0 {
		t.Fatalf("expected verbatim placement when skipCollisionCheck, got %v", result)
	}
}

func TestCreateObject_AutoParenting(t *testing.T) {
	doc := crdt.New("test-node")
	exec := New(doc, 1)

	frameAction, _ := exec.Execute("createObject", map[string]interface{}{
		"type": "frame", "x": 0.0, "y": 0.0, "width": 400.0, "height": 400.0,
	})
	frameID := decodeResult(t, frameAction)["id"].(string)

	stickyAction, _ := exec.Execute("createObject", map[string]interface{}{
		"type": "sticky", "x": 50.0, "y": 50.0, "skipCollisionCheck": true,
	})
	result := decodeResult(t, stickyAction)
	if result["parentId"] != frameID {
		t.Fatalf("expected auto-parent to frame %s, got %v", frameID, result["parentId"])
	}
}

func TestCreateObject_FramesNeverAutoParent(t *testing.T) {
	doc := crdt.New("test-node")
	exec := New(doc, 1)

	exec.Execute("createObject", map[string]interface{}{
		"type": "frame", "x": 0.0, "y": 0.0, "width": 1000.0, "height": 1000.0,
	})
	innerFrame, _ := exec.Execute("createObject", map[string]interface{}{
		"type": "frame", "x": 50.0, "y": 50.0, "width": 100.0, "height": 100.0, "skipCollisionCheck": true,
	})
	result := decodeResult(t, innerFrame)
	if _, has := result["parentId"]; has {
		t.Fatalf("frames must never auto-parent, got %v", result)
	}
}

func TestUpdateObject_AppliesPresentFields(t *testing.T) {
	doc := crdt.New("test-node")
	exec := New(doc, 1)

	created, _ := exec.Execute("createObject", map[string]interface{}{"type": "sticky", "x": 0.0, "y": 0.0})
	id := decodeResult(t, created)["id"].(string)

	updated, _ := exec.Execute("updateObject", map[string]interface{}{"id": id, "text": "hello", "fill": "#FF0000"})
	result := decodeResult(t, updated)
	if result["success"] != true {
		t.Fatalf("expected success, got %v", result)
	}
	fields := result["updated"].([]interface{})
	if len(fields) != 2 {
		t.Fatalf("expected 2 updated fields, got %v", fields)
	}
}

func TestUpdateObject_UnknownID(t *testing.T) {
	doc := crdt.New("test-node")
	exec := New(doc, 1)

	action, _ := exec.Execute("updateObject", map[string]interface{}{"id": "missing", "text": "x"})
	result := decodeResult(t, action)
	if result["success"] != false {
		t.Fatalf("expected failure for unknown id, got %v", result)
	}
}

func TestMoveObject_ChangesPositionOnly(t *testing.T) {
	doc := crdt.New("test-node")
	exec := New(doc, 1)

	created, _ := exec.Execute("createObject", map[string]interface{}{"type": "circle", "x": 0.0, "y": 0.0})
	id := decodeResult(t, created)["id"].(string)

	moved, _ := exec.Execute("moveObject", map[string]interface{}{"id": id, "x": 500.0, "y": 600.0})
	result := decodeResult(t, moved)
	if result["x"].(float64) != 500 || result["y"].(float64) != 600 {
		t.Fatalf("expected move to (500,600), got %v", result)
	}
}

func TestGetBoardState_ContainsStableSubstrings(t *testing.T) {
	doc := crdt.New("test-node")
	exec := New(doc, 1)

	exec.Execute("createObject", map[string]interface{}{"type": "frame", "x": 0.0, "y": 0.0})
	childAction, _ := exec.Execute("createObject", map[string]interface{}{
		"type": "sticky", "x": 50.0, "y": 50.0, "skipCollisionCheck": true,
	})
	_ = childAction

	state, _ := exec.Execute("getBoardState", nil)
	if !strings.Contains(state.Result, "total") {
		t.Fatalf("expected board state to mention total count, got: %s", state.Result)
	}
	if !strings.Contains(state.Result, "Parent:") {
		t.Fatalf("expected board state to mention parent, got: %s", state.Result)
	}
	if !strings.Contains(state.Result, "Occupied bounding box") {
		t.Fatalf("expected board state to mention bounding box, got: %s", state.Result)
	}
}

func TestBuildBoardContext_CapsAtThirty(t *testing.T) {
	objects := make(map[string]*board.Object)
	for i := 0; i < 40; i++ {
		id := "obj-" + strconv.Itoa(i)
		objects[id] = &board.Object{ID: id, Type: board.TypeSticky, X: float64(i * 10), Y: 0, Width: 5, Height: 5}
	}
	ctx := BuildBoardContext(objects)
	if !strings.Contains(ctx, "40 total") {
		t.Fatalf("expected total count of 40, got: %s", ctx)
	}
	if !strings.Contains(ctx, "nearest the occupied centroid") {
		t.Fatalf("expected capped-listing notice, got: %s", ctx)
	}
}

func TestCreateObject_RejectsAtObjectCap(t *testing.T) {
	doc := crdt.New("test-node")
	exec := New(doc, 1)
	ctx := context.Background()

	// Seed directly through the document so the test doesn't pay the
	// placement scan 5000 times.
	for i := 0; i < service.MaxObjectsPerRoom-1; i++ {
		obj := &board.Object{
			ID: "seed-" + strconv.Itoa(i), Type: board.TypeSticky,
			X: float64(i * 10), Y: 0, Width: 200, Height: 150, Fill: "#FFD700",
		}
		if _, err := doc.PutObject(ctx, obj, board.OriginLocal); err != nil {
			t.Fatalf("seed put %d: %v", i, err)
		}
	}

	// One slot left: the create goes through.
	action, err := exec.Execute("createObject", map[string]interface{}{
		"type": "sticky", "x": 0.0, "y": 0.0, "skipCollisionCheck": true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result := decodeResult(t, action); result["success"] != true {
		t.Fatalf("create at %d objects should succeed, got %v", service.MaxObjectsPerRoom-1, result)
	}
	if doc.Len() != service.MaxObjectsPerRoom {
		t.Fatalf("doc has %d objects, want %d", doc.Len(), service.MaxObjectsPerRoom)
	}

	// At the cap: rejected, document unchanged.
	action, err = exec.Execute("createObject", map[string]interface{}{
		"type": "sticky", "x": 0.0, "y": 0.0, "skipCollisionCheck": true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result := decodeResult(t, action); result["success"] != false {
		t.Fatalf("create at the cap should fail, got %v", result)
	}
	if doc.Len() != service.MaxObjectsPerRoom {
		t.Fatalf("doc grew past the cap: %d", doc.Len())
	}
}
