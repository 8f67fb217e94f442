package session

import (
	"testing"
	"time"
)

func TestNewSession(t *testing.T) {
	sess := New("Access Control")
	if sess.ID == "" {
		t.Fatal("expected generated id")
	}
	if sess.Name != "Access Control" {
		t.Fatalf("name = %q", sess.Name)
	}
	if sess.CreatedAt.IsZero() || sess.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
	if sess.CurrentPolicy() != nil {
		t.Fatal("new session should have no current policy")
	}
}

func TestAddPolicyDemotesPrevious(t *testing.T) {
	sess := New("demo")

	first := NewGeneratedPolicy("allow(u, r) if true;", "model-a", nil, 0.5)
	sess.AddPolicy(first)
	if !first.IsCurrent {
		t.Fatal("first policy should be current")
	}

	second := NewGeneratedPolicy("allow(u, r) if u.admin;", "model-a", nil, 0.7)
	sess.AddPolicy(second)

	if first.IsCurrent {
		t.Fatal("first policy should have been demoted")
	}
	if !second.IsCurrent {
		t.Fatal("second policy should be current")
	}
	if got := sess.CurrentPolicy(); got != second {
		t.Fatalf("CurrentPolicy = %v, want second", got)
	}
	if len(sess.Policies) != 2 {
		t.Fatalf("policy count = %d", len(sess.Policies))
	}
}

func TestPolicyLookup(t *testing.T) {
	sess := New("demo")
	p := NewGeneratedPolicy("content", "model", nil, 0.1)
	sess.AddPolicy(p)

	if got := sess.Policy(p.ID); got != p {
		t.Fatalf("Policy(%q) = %v", p.ID, got)
	}
	if got := sess.Policy("missing"); got != nil {
		t.Fatalf("Policy(missing) = %v, want nil", got)
	}
}

func TestLatestValidation(t *testing.T) {
	sess := New("demo")
	p := NewGeneratedPolicy("content", "model", nil, 0.1)
	sess.AddPolicy(p)

	if sess.LatestValidation(p.ID) != nil {
		t.Fatal("no validations yet")
	}

	older := ValidationResult{
		ID: "v1", PolicyID: p.ID, IsValid: false,
		ErrorMessage: "syntax error",
		ValidatedAt:  time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	newer := ValidationResult{
		ID: "v2", PolicyID: p.ID, IsValid: true,
		ValidatedAt: time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC),
	}
	sess.AddValidation(older)
	sess.AddValidation(newer)
	sess.AddValidation(ValidationResult{
		ID: "v3", PolicyID: "other", IsValid: true,
		ValidatedAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	})

	got := sess.LatestValidation(p.ID)
	if got == nil || got.ID != "v2" {
		t.Fatalf("LatestValidation = %+v, want v2", got)
	}
	if !got.IsValid {
		t.Fatal("latest validation should be valid")
	}
}

func TestInfoSummary(t *testing.T) {
	sess := New("demo")
	info := sess.Info()
	if info.HasRequirements || info.HasPolicies || info.PolicyCount != 0 {
		t.Fatalf("empty session info = %+v", info)
	}

	sess.RequirementsText = "Admins can read everything."
	sess.AddPolicy(NewGeneratedPolicy("content", "model", nil, 0.1))
	info = sess.Info()
	if !info.HasRequirements || !info.HasPolicies || info.PolicyCount != 1 {
		t.Fatalf("populated session info = %+v", info)
	}
}

func TestRestoreHelpersKeepModificationTime(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	sess := Restore("sess-1", "Rehydrated", created, created)

	first := NewGeneratedPolicy("allow(u, r) if true;", "model-a", nil, 0.5)
	second := NewGeneratedPolicy("allow(u, r) if u.admin;", "model-a", nil, 0.5)
	sess.RestorePolicy(first)
	sess.RestorePolicy(second)
	sess.RestoreValidation(ValidationResult{ID: "val-1", PolicyID: second.ID, IsValid: true})

	if !sess.UpdatedAt.Equal(created) {
		t.Fatalf("updated_at = %v, want %v unchanged", sess.UpdatedAt, created)
	}
	if first.IsCurrent || !second.IsCurrent {
		t.Fatal("restored policies should keep the current-policy invariant")
	}
	if len(sess.Validations) != 1 {
		t.Fatalf("validations = %d", len(sess.Validations))
	}

	// The mutating path still advances the timestamp.
	sess.AddPolicy(NewGeneratedPolicy("allow(u, r) if false;", "model-a", nil, 0.5))
	if !sess.UpdatedAt.After(created) {
		t.Fatal("AddPolicy should advance updated_at")
	}
}
