package persistence

import (
	"context"
	"testing"

	"github.com/robin-raq/collabboard/internal/domain/repository"
	"github.com/robin-raq/collabboard/internal/infrastructure/config"
)

func TestMemorySnapshotStore_LoadMiss(t *testing.T) {
	store := NewMemorySnapshotStore()
	_, found, err := store.Load(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected miss for unknown room")
	}
}

func TestMemorySnapshotStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewMemorySnapshotStore()
	ctx := context.Background()

	if err := store.Save(ctx, "room-1", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, found, err := store.Load(ctx, "room-1")
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected data: %s", data)
	}

	// Overwrite.
	if err := store.Save(ctx, "room-1", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	data, _, _ = store.Load(ctx, "room-1")
	if string(data) != `{"a":2}` {
		t.Fatalf("expected overwritten data, got %s", data)
	}
}

func TestGormSnapshotStore_SaveLoadRoundTrip(t *testing.T) {
	db, err := NewDBConnection(config.DatabaseConfig{Type: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("NewDBConnection: %v", err)
	}

	var store repository.SnapshotStore = NewGormSnapshotStore(db)
	ctx := context.Background()

	_, found, err := store.Load(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error on miss: %v", err)
	}
	if found {
		t.Fatal("expected miss for unknown room")
	}

	if err := store.Save(ctx, "room-1", []byte("hello")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, found, err := store.Load(ctx, "room-1")
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected data: %s", data)
	}

	if err := store.Save(ctx, "room-1", []byte("world")); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	data, _, _ = store.Load(ctx, "room-1")
	if string(data) != "world" {
		t.Fatalf("expected overwritten data, got %s", data)
	}
}
