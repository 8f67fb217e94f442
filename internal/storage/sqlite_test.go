package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSQLite_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpenSQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	for i := 0; i < 3; i++ {
		s, err := OpenSQLite(path)
		if err != nil {
			t.Fatalf("OpenSQLite() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestSQLite_PutGetRoundTrip(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	metadata := map[string]string{"session_id": "abc", "event_count": "3"}
	if err := s.Put(ctx, "events/abc_events.jsonl", "line1\nline2", "application/x-jsonlines", metadata); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	obj, err := s.Get(ctx, "events/abc_events.jsonl")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if obj.Content != "line1\nline2" {
		t.Errorf("content = %q, want %q", obj.Content, "line1\nline2")
	}
	if obj.ContentType != "application/x-jsonlines" {
		t.Errorf("content type = %q, want %q", obj.ContentType, "application/x-jsonlines")
	}
	if obj.Metadata["event_count"] != "3" {
		t.Errorf("metadata event_count = %q, want %q", obj.Metadata["event_count"], "3")
	}
}

func TestSQLite_GetMissingReturnsNotFound(t *testing.T) {
	s := openTestSQLite(t)

	_, err := s.Get(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestSQLite_PutUpserts(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	if err := s.Put(ctx, "a", "first", "", nil); err != nil {
		t.Fatalf("first Put() failed: %v", err)
	}
	if err := s.Put(ctx, "a", "second", "", nil); err != nil {
		t.Fatalf("second Put() failed: %v", err)
	}

	obj, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if obj.Content != "second" {
		t.Errorf("content = %q, want %q", obj.Content, "second")
	}

	infos, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("List() returned %d objects, want 1", len(infos))
	}
}

func TestSQLite_ListEscapesLikeMetacharacters(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	if err := s.Put(ctx, "a_b/file", "x", "", nil); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if err := s.Put(ctx, "axb/file", "x", "", nil); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	// "_" must match literally, not as a LIKE wildcard.
	infos, err := s.List(ctx, "a_b/")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "a_b/file" {
		t.Errorf("List(a_b/) = %v, want exactly [a_b/file]", infos)
	}
}

func TestSQLite_DeleteAndExists(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	if err := s.Put(ctx, "a", "x", "", nil); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	exists, err := s.Exists(ctx, "a")
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if !exists {
		t.Error("Exists() = false after Put")
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Errorf("Delete() of missing key failed: %v", err)
	}

	exists, err = s.Exists(ctx, "a")
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if exists {
		t.Error("Exists() = true after Delete")
	}
}
