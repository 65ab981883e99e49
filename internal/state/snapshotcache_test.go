package state

import (
	"path/filepath"
	"testing"
)

func TestSnapshotCachePutGet(t *testing.T) {
	t.Parallel()
	cache, err := OpenSnapshotCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenSnapshotCache: %v", err)
	}
	defer cache.Close()

	err = cache.Put("board-1", ItemSnapshot{
		ItemID:      "item-1",
		ContentKind: "draft",
		FieldValues: map[string]any{"status": "Todo"},
		SyncedAt:    "2026-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := cache.Get("board-1", "item-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected the snapshot to be present")
	}
	if got.FieldValues["status"] != "Todo" {
		t.Fatalf("unexpected field values: %+v", got.FieldValues)
	}
}

func TestSnapshotCacheGetMissing(t *testing.T) {
	t.Parallel()
	cache, err := OpenSnapshotCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenSnapshotCache: %v", err)
	}
	defer cache.Close()

	_, ok, err := cache.Get("board-1", "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected no snapshot for an unknown item")
	}
}

func TestSnapshotCachePurge(t *testing.T) {
	t.Parallel()
	cache, err := OpenSnapshotCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenSnapshotCache: %v", err)
	}
	defer cache.Close()

	if err := cache.Put("board-1", ItemSnapshot{ItemID: "item-1", ContentKind: "draft", FieldValues: map[string]any{}, SyncedAt: "now"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := cache.Purge("board-1"); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	_, ok, err := cache.Get("board-1", "item-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected the purged snapshot to be gone")
	}
}
