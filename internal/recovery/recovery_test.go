package recovery

import (
	"context"
	"strings"
	"testing"

	"github.com/roach88/polarsmith/internal/event"
	"github.com/roach88/polarsmith/internal/eventlog"
	"github.com/roach88/polarsmith/internal/session"
	"github.com/roach88/polarsmith/internal/storage"
)

type fixture struct {
	store   storage.Store
	manager *session.Manager
	log     *eventlog.Log
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	manager := session.NewManager(store, nil)
	log := eventlog.New(store)
	return &fixture{
		store:   store,
		manager: manager,
		log:     log,
		svc:     NewService(manager, log, store, nil),
	}
}

// seedSession creates a healthy session with an event stream.
func (f *fixture) seedSession(t *testing.T, name string) *session.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := f.manager.Create(ctx, name)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	events := []event.Event{
		event.NewSessionCreated(sess.ID, name, ""),
		event.NewPolicyGenerated(sess.ID, "pol-1", "gpt-4", nil, 1.0, ""),
		event.NewValidationCompleted(sess.ID, "pol-1", true, "", 0.1, ""),
	}
	if err := f.log.AppendMany(ctx, events); err != nil {
		t.Fatalf("AppendMany: %v", err)
	}
	return sess
}

func TestAnalyzeIntegrityHealthy(t *testing.T) {
	f := newFixture(t)
	sess := f.seedSession(t, "Healthy")

	issues := f.svc.AnalyzeIntegrity(context.Background(), sess.ID)
	if len(issues) != 0 {
		t.Fatalf("issues = %+v, want none", issues)
	}
}

func TestAnalyzeIntegrityFindsCorruption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.seedSession(t, "Corrupt")

	// Corrupt the descriptor.
	if err := f.store.Put(ctx, session.DescriptorKey(sess.ID), "{not json", "application/json", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	issues := f.svc.AnalyzeIntegrity(ctx, sess.ID)
	if len(issues) != 1 || issues[0].Type != IssueInvalidJSON {
		t.Fatalf("issues = %+v, want one invalid_json", issues)
	}
	if !issues[0].AutoFixable {
		t.Fatal("descriptor corruption should be fixable via replay")
	}

	// A session with nothing at all reports missing descriptor and events.
	issues = f.svc.AnalyzeIntegrity(ctx, "ghost-session")
	types := map[IssueType]bool{}
	for _, issue := range issues {
		types[issue.Type] = true
	}
	if !types[IssueMissingSessionFile] || !types[IssueMissingEvents] {
		t.Fatalf("issues = %+v", issues)
	}
}

func TestRecoverHealthySessionIsNoop(t *testing.T) {
	f := newFixture(t)
	sess := f.seedSession(t, "Fine")

	result := f.svc.Recover(context.Background(), sess.ID, false, false)
	if result.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", result.Status)
	}
	if result.BackupCreated {
		t.Fatal("no backup requested")
	}
	if len(result.IssuesFound) != 0 {
		t.Fatalf("issues = %+v", result.IssuesFound)
	}
}

func TestRecoverCorruptDescriptorViaReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.seedSession(t, "Replayable")

	if err := f.store.Put(ctx, session.DescriptorKey(sess.ID), "{not json", "application/json", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	result := f.svc.Recover(ctx, sess.ID, true, false)
	if result.Status != StatusSuccess {
		t.Fatalf("status = %s, want success via event replay (result %+v)", result.Status, result)
	}
	if !result.BackupCreated {
		t.Fatal("expected a backup")
	}
	if len(result.IssuesFixed) != len(result.IssuesFound) {
		t.Fatalf("fixed %d of %d issues", len(result.IssuesFixed), len(result.IssuesFound))
	}

	// The replayed session is loadable again with its original name.
	loaded, err := f.manager.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Load after recovery: %v", err)
	}
	if loaded.Name != "Replayable" {
		t.Fatalf("name = %q", loaded.Name)
	}
	if len(loaded.Policies) != 1 {
		t.Fatalf("policies = %d, want 1 from replay", len(loaded.Policies))
	}
}

func TestRecoverSalvagesFilesWithoutEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Requirements survive, but descriptor and events are gone.
	const sessionID = "11112222-3333-4444-5555-666677778888"
	err := f.store.Put(ctx, session.RequirementsKey(sessionID), "admins may delete", "text/plain", nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	result := f.svc.Recover(ctx, sessionID, false, false)
	if result.Status != StatusPartial {
		t.Fatalf("status = %s, want partial", result.Status)
	}

	loaded, err := f.manager.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Load after salvage: %v", err)
	}
	if loaded.Name != "Recovered Session 11112222" {
		t.Fatalf("name = %q", loaded.Name)
	}
	if loaded.RequirementsText != "admins may delete" {
		t.Fatalf("requirements = %q", loaded.RequirementsText)
	}
}

func TestRecoverNothingLeftYieldsStub(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const sessionID = "dead-beef-0000"

	result := f.svc.Recover(ctx, sessionID, false, false)
	if result.Status != StatusPartial {
		t.Fatalf("status = %s, want partial stub", result.Status)
	}

	loaded, err := f.manager.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Load after stub recovery: %v", err)
	}
	if !strings.HasPrefix(loaded.Name, "Recovered Session ") {
		t.Fatalf("name = %q", loaded.Name)
	}
	if !strings.Contains(loaded.Notes, "recovered with minimal data") {
		t.Fatalf("notes = %q", loaded.Notes)
	}
}

func TestScanAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedSession(t, "Healthy One")
	broken := f.seedSession(t, "Broken")
	if err := f.store.Delete(ctx, session.DescriptorKey(broken.ID)); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	report := f.svc.ScanAll(ctx)
	if report.TotalSessions != 2 {
		t.Fatalf("total = %d, want 2", report.TotalSessions)
	}
	if report.HealthySessions != 1 || report.CorruptedSessions != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.RecoverableSessions != 1 {
		t.Fatalf("recoverable = %d", report.RecoverableSessions)
	}
	if report.IssuesByType[IssueMissingSessionFile] != 1 {
		t.Fatalf("issues by type = %+v", report.IssuesByType)
	}
	if len(report.Recommendations) == 0 {
		t.Fatal("expected recommendations")
	}
}

func TestAutoRecover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	healthy := f.seedSession(t, "Untouched")
	broken := f.seedSession(t, "Fixable")
	if err := f.store.Delete(ctx, session.DescriptorKey(broken.ID)); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	results := f.svc.AutoRecover(ctx, 5)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 (healthy session skipped)", len(results))
	}
	if results[0].SessionID != broken.ID || results[0].Status != StatusSuccess {
		t.Fatalf("result = %+v", results[0])
	}
	if _, err := f.manager.Load(ctx, broken.ID); err != nil {
		t.Fatalf("Load after auto-recover: %v", err)
	}
	if _, err := f.manager.Load(ctx, healthy.ID); err != nil {
		t.Fatalf("healthy session disturbed: %v", err)
	}
}
