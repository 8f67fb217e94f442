package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestDir_PutGetRoundTrip(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir() failed: %v", err)
	}
	ctx := context.Background()

	if err := d.Put(ctx, "sessions/abc/session.json", `{"id":"abc"}`, "application/json", nil); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	obj, err := d.Get(ctx, "sessions/abc/session.json")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if obj.Content != `{"id":"abc"}` {
		t.Errorf("content = %q, want %q", obj.Content, `{"id":"abc"}`)
	}
	if obj.Size != int64(len(obj.Content)) {
		t.Errorf("size = %d, want %d", obj.Size, len(obj.Content))
	}
	if obj.LastModified.IsZero() {
		t.Error("LastModified is zero")
	}
}

func TestDir_GetMissingReturnsNotFound(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir() failed: %v", err)
	}

	_, err = d.Get(context.Background(), "missing/key.txt")
	if !IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestDir_PutOverwrites(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir() failed: %v", err)
	}
	ctx := context.Background()

	if err := d.Put(ctx, "a.txt", "first", "", nil); err != nil {
		t.Fatalf("first Put() failed: %v", err)
	}
	if err := d.Put(ctx, "a.txt", "second", "", nil); err != nil {
		t.Fatalf("second Put() failed: %v", err)
	}

	obj, err := d.Get(ctx, "a.txt")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if obj.Content != "second" {
		t.Errorf("content = %q, want %q", obj.Content, "second")
	}
}

func TestDir_ListFiltersByPrefix(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir() failed: %v", err)
	}
	ctx := context.Background()

	keys := []string{
		"events/s1_events.jsonl",
		"events/s2_events.jsonl",
		"sessions/s1/session.json",
	}
	for _, key := range keys {
		if err := d.Put(ctx, key, "x", "", nil); err != nil {
			t.Fatalf("Put(%q) failed: %v", key, err)
		}
	}

	infos, err := d.List(ctx, "events/")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List() returned %d objects, want 2", len(infos))
	}
	if infos[0].Key != "events/s1_events.jsonl" || infos[1].Key != "events/s2_events.jsonl" {
		t.Errorf("unexpected keys: %v, %v", infos[0].Key, infos[1].Key)
	}
}

func TestDir_DeleteIsIdempotent(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir() failed: %v", err)
	}
	ctx := context.Background()

	if err := d.Put(ctx, "a.txt", "x", "", nil); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if err := d.Delete(ctx, "a.txt"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	// Second delete of a missing key is not an error.
	if err := d.Delete(ctx, "a.txt"); err != nil {
		t.Errorf("Delete() of missing key failed: %v", err)
	}

	exists, err := d.Exists(ctx, "a.txt")
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if exists {
		t.Error("object still exists after delete")
	}
}

func TestDir_RejectsTraversalKeys(t *testing.T) {
	base := filepath.Join(t.TempDir(), "store")
	d, err := NewDir(base)
	if err != nil {
		t.Fatalf("NewDir() failed: %v", err)
	}

	for _, key := range []string{"../outside.txt", "/etc/passwd", "a/../../b"} {
		if err := d.Put(context.Background(), key, "x", "", nil); err == nil {
			t.Errorf("Put(%q) should have been rejected", key)
		}
	}
}
