package session

import (
	"context"
	"strings"
	"testing"

	"github.com/roach88/polarsmith/internal/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := storage.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewManager(store, nil)
}

func TestCreateValidatesName(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "   "); !IsValidation(err) {
		t.Fatalf("empty name: err = %v, want validation error", err)
	}
	if _, err := m.Create(ctx, strings.Repeat("x", MaxNameLength+1)); !IsValidation(err) {
		t.Fatalf("long name: err = %v, want validation error", err)
	}

	sess, err := m.Create(ctx, "  RBAC Policy  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Name != "RBAC Policy" {
		t.Fatalf("name = %q, want trimmed", sess.Name)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, "Round Trip")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sess.RequirementsText = "Only admins may delete documents."
	sess.Notes = "drafted with the team"
	tokens := 512
	p1 := NewGeneratedPolicy("allow(u, \"delete\", d) if u.admin;", "claude-3", &tokens, 1.2)
	sess.AddPolicy(p1)
	p2 := NewGeneratedPolicy("allow(u, \"delete\", d) if u.role = \"admin\";", "claude-3", nil, 0.9)
	sess.AddPolicy(p2)
	sess.AddValidation(NewValidationResult(p1.ID, false, "unknown term admin", 0.05))
	sess.AddValidation(NewValidationResult(p2.ID, true, "", 0.04))

	if err := m.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := m.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Name != sess.Name {
		t.Fatalf("name = %q", loaded.Name)
	}
	if loaded.RequirementsText != sess.RequirementsText {
		t.Fatalf("requirements = %q", loaded.RequirementsText)
	}
	if loaded.Notes != sess.Notes {
		t.Fatalf("notes = %q", loaded.Notes)
	}
	if len(loaded.Policies) != 2 {
		t.Fatalf("policies = %d, want 2", len(loaded.Policies))
	}

	cur := loaded.CurrentPolicy()
	if cur == nil || cur.ID != p2.ID {
		t.Fatalf("current policy = %+v, want %s", cur, p2.ID)
	}
	older := loaded.Policy(p1.ID)
	if older == nil || older.TokensUsed == nil || *older.TokensUsed != 512 {
		t.Fatalf("policy %s tokens = %+v", p1.ID, older)
	}
	if older.Content != p1.Content {
		t.Fatalf("policy content = %q", older.Content)
	}

	if len(loaded.Validations) != 2 {
		t.Fatalf("validations = %d, want 2", len(loaded.Validations))
	}
	latest := loaded.LatestValidation(p2.ID)
	if latest == nil || !latest.IsValid {
		t.Fatalf("latest validation for %s = %+v", p2.ID, latest)
	}
}

func TestLoadMissingSession(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Load(context.Background(), "no-such-session")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestListSearchAndLimit(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, name := range []string{"Access Control", "Access Review", "Billing"} {
		if _, err := m.Create(ctx, name); err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
	}

	all, err := m.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].UpdatedAt.After(all[i-1].UpdatedAt) {
			t.Fatal("listing not sorted newest first")
		}
	}

	matched, err := m.List(ctx, "access", 0)
	if err != nil {
		t.Fatalf("List(access): %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("search matched %d, want 2", len(matched))
	}

	limited, err := m.List(ctx, "", 1)
	if err != nil {
		t.Fatalf("List(limit): %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited = %d, want 1", len(limited))
	}
}

func TestDeleteRemovesAllFiles(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, "Ephemeral")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sess.AddPolicy(NewGeneratedPolicy("content", "model", nil, 0.1))
	if err := m.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := m.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	exists, err := m.Exists(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("session should be gone")
	}

	// Deleting again is a no-op.
	if err := m.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}
