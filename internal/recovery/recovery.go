package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/polarsmith/internal/eventlog"
	"github.com/roach88/polarsmith/internal/session"
	"github.com/roach88/polarsmith/internal/storage"
)

// DefaultAutoRecoverLimit bounds one unattended AutoRecover run.
const DefaultAutoRecoverLimit = 10

// Service detects session corruption and repairs it via a fallback
// chain of strategies.
type Service struct {
	manager *session.Manager
	log     *eventlog.Log
	store   storage.Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a recovery Service. logger may be nil.
func NewService(manager *session.Manager, log *eventlog.Log, store storage.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		manager: manager,
		log:     log,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// AnalyzeIntegrity inspects a session's files and event stream and
// returns any detected issues. It never mutates anything.
func (s *Service) AnalyzeIntegrity(ctx context.Context, sessionID string) []Issue {
	var issues []Issue

	descriptorKey := session.DescriptorKey(sessionID)
	obj, err := s.store.Get(ctx, descriptorKey)
	switch {
	case err == nil:
		if !json.Valid([]byte(obj.Content)) {
			issues = append(issues, Issue{
				Type:          IssueInvalidJSON,
				Severity:      SeverityHigh,
				Description:   fmt.Sprintf("Invalid JSON in %s", descriptorKey),
				AffectedFiles: []string{descriptorKey},
				SuggestedFix:  "Recover from events or restore from backup",
				AutoFixable:   true,
			})
		}
	case storage.IsNotFound(err):
		issues = append(issues, Issue{
			Type:          IssueMissingSessionFile,
			Severity:      SeverityCritical,
			Description:   fmt.Sprintf("Missing required file: %s", descriptorKey),
			AffectedFiles: []string{descriptorKey},
			SuggestedFix:  "Recover from events or create minimal file",
			AutoFixable:   true,
		})
	default:
		issues = append(issues, Issue{
			Type:          IssueMissingSessionFile,
			Severity:      SeverityCritical,
			Description:   fmt.Sprintf("Failed to read %s: %v", descriptorKey, err),
			AffectedFiles: []string{descriptorKey},
			SuggestedFix:  "Manual investigation required",
		})
	}

	streamKey := eventlog.StreamKey(sessionID)
	events, err := s.log.All(ctx, sessionID)
	if err != nil || len(events) == 0 {
		issues = append(issues, Issue{
			Type:          IssueMissingEvents,
			Severity:      SeverityMedium,
			Description:   "No events found for session",
			AffectedFiles: []string{streamKey},
			SuggestedFix:  "Events cannot be recovered, but session may still be usable",
		})
		return issues
	}

	report, err := s.log.ValidateIntegrity(ctx, sessionID)
	if err != nil {
		s.logger.Error("event validation failed", "session_id", sessionID, "error", err)
		return issues
	}
	if !report.IsValid {
		for _, desc := range report.Issues {
			issues = append(issues, Issue{
				Type:          IssueEventIntegrity,
				Severity:      SeverityMedium,
				Description:   fmt.Sprintf("Event integrity issue: %s", desc),
				AffectedFiles: []string{streamKey},
				SuggestedFix:  "Attempt event replay recovery",
				AutoFixable:   true,
			})
		}
	}
	return issues
}

// Recover repairs one session. forceReplay runs the fallback chain
// even when analysis found nothing wrong. Every outcome is reported in
// the Result; no error escapes.
func (s *Service) Recover(ctx context.Context, sessionID string, createBackup, forceReplay bool) Result {
	start := s.now()
	result := Result{Status: StatusFailed, SessionID: sessionID}

	issues := s.AnalyzeIntegrity(ctx, sessionID)
	result.IssuesFound = issues

	if len(issues) == 0 && !forceReplay {
		if _, err := s.manager.Load(ctx, sessionID); err == nil {
			result.Status = StatusSuccess
			result.RecoveryTime = s.now().Sub(start).Seconds()
			s.logger.Info("session healthy, no recovery needed", "session_id", sessionID)
			return result
		}
		s.logger.Warn("session failed to load despite clean analysis", "session_id", sessionID)
	}

	if createBackup {
		if err := s.CreateBackup(ctx, sessionID); err != nil {
			s.logger.Warn("backup failed before recovery", "session_id", sessionID, "error", err)
		} else {
			result.BackupCreated = true
		}
	}

	recovered := false

	// Strategy 1: event replay.
	if sess, err := s.log.ReplaySession(ctx, sessionID); err == nil {
		if saveErr := s.manager.Save(ctx, sess); saveErr == nil {
			recovered = true
			result.IssuesFixed = filterIssues(issues, func(i Issue) bool { return i.AutoFixable })
			s.logger.Info("session recovered from events", "session_id", sessionID)
		} else {
			s.logger.Error("failed to save replayed session", "session_id", sessionID, "error", saveErr)
		}
	} else if !eventlog.IsReplayError(err) {
		s.logger.Error("event replay recovery failed", "session_id", sessionID, "error", err)
	}

	// Strategy 2: salvage surviving files.
	if !recovered {
		if sess, found := s.salvageFromFiles(ctx, sessionID); found {
			if err := s.manager.Save(ctx, sess); err == nil {
				recovered = true
				result.Status = StatusPartial
				result.IssuesFixed = filterIssues(issues, func(i Issue) bool { return i.Type != IssueMissingEvents })
				s.logger.Info("session partially recovered from files", "session_id", sessionID)
			} else {
				s.logger.Error("partial file recovery failed", "session_id", sessionID, "error", err)
			}
		}
	}

	// Strategy 3: minimal stub, so recovery always yields a session.
	if !recovered {
		sess := s.minimalSession(sessionID)
		if err := s.manager.Save(ctx, sess); err == nil {
			recovered = true
			result.Status = StatusPartial
			s.logger.Info("minimal session created", "session_id", sessionID)
		} else {
			s.logger.Error("minimal session creation failed", "session_id", sessionID, "error", err)
		}
	}

	if recovered {
		if result.Status != StatusPartial {
			if len(result.IssuesFixed) == len(result.IssuesFound) {
				result.Status = StatusSuccess
			} else {
				result.Status = StatusPartial
			}
		}
	} else {
		result.Status = StatusFailed
		result.ErrorMessage = "All recovery strategies failed"
	}
	result.RecoveryTime = s.now().Sub(start).Seconds()
	return result
}

// salvageFromFiles assembles a best-effort session from whatever files
// survive, ignoring anything unreadable. found is false when not a
// single session file could be read, so the caller falls through to
// the stub strategy.
func (s *Service) salvageFromFiles(ctx context.Context, sessionID string) (sess *session.Session, found bool) {
	now := s.now().UTC()
	sess = session.Restore(sessionID, recoveredName(sessionID), now, now)

	if obj, err := s.store.Get(ctx, session.RequirementsKey(sessionID)); err == nil {
		sess.RequirementsText = obj.Content
		found = true
	}
	if obj, err := s.store.Get(ctx, session.NotesKey(sessionID)); err == nil {
		sess.Notes = obj.Content
		found = true
	}
	if obj, err := s.store.Get(ctx, session.DescriptorKey(sessionID)); err == nil {
		found = true
		var desc struct {
			Name      string         `json:"name"`
			CreatedAt time.Time      `json:"created_at"`
			Metadata  map[string]any `json:"metadata"`
		}
		if json.Unmarshal([]byte(obj.Content), &desc) == nil {
			if desc.Name != "" {
				sess.Name = desc.Name
			}
			if !desc.CreatedAt.IsZero() {
				sess.CreatedAt = desc.CreatedAt
			}
			if desc.Metadata != nil {
				sess.Metadata = desc.Metadata
			}
		}
	}
	return sess, found
}

// minimalSession is the last-resort stub: a near-empty session whose
// content explains the loss.
func (s *Service) minimalSession(sessionID string) *session.Session {
	now := s.now().UTC()
	sess := session.Restore(sessionID, recoveredName(sessionID), now, now)
	sess.RequirementsText = "# Session recovered with minimal data\n# Please re-enter your requirements"
	sess.Notes = "This session was recovered with minimal data due to corruption."
	return sess
}

func recoveredName(sessionID string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("Recovered Session %s", short)
}

// ScanAll analyzes every known session and aggregates the findings
// with qualitative recommendations.
func (s *Service) ScanAll(ctx context.Context) Report {
	start := s.now()
	report := Report{IssuesByType: make(map[IssueType]int)}

	sessionIDs, err := s.knownSessionIDs(ctx)
	if err != nil {
		report.Recommendations = []string{fmt.Sprintf("Scan failed: %v", err)}
		report.ScanTime = s.now().Sub(start).Seconds()
		return report
	}
	report.TotalSessions = len(sessionIDs)

	for _, sessionID := range sessionIDs {
		issues := s.AnalyzeIntegrity(ctx, sessionID)
		if len(issues) == 0 {
			report.HealthySessions++
			continue
		}
		report.CorruptedSessions++
		if isRecoverable(issues) {
			report.RecoverableSessions++
		}
		for _, issue := range issues {
			report.IssuesByType[issue.Type]++
		}
	}

	report.Recommendations = recommendations(report)
	report.ScanTime = s.now().Sub(start).Seconds()
	return report
}

// AutoRecover repairs up to maxSessions sessions that fail to load and
// whose issues are all auto-fixable. Sessions with any non-auto-fixable
// issue are skipped.
func (s *Service) AutoRecover(ctx context.Context, maxSessions int) []Result {
	if maxSessions <= 0 {
		maxSessions = DefaultAutoRecoverLimit
	}

	sessionIDs, err := s.knownSessionIDs(ctx)
	if err != nil {
		s.logger.Error("auto-recover scan failed", "error", err)
		return nil
	}

	var candidates []string
	for _, sessionID := range sessionIDs {
		if len(candidates) >= maxSessions {
			break
		}
		if _, err := s.manager.Load(ctx, sessionID); err == nil {
			continue
		}
		issues := s.AnalyzeIntegrity(ctx, sessionID)
		if len(issues) == 0 || !allAutoFixable(issues) {
			continue
		}
		candidates = append(candidates, sessionID)
	}

	s.logger.Info("auto-recovering sessions", "count", len(candidates))
	results := make([]Result, 0, len(candidates))
	for _, sessionID := range candidates {
		results = append(results, s.Recover(ctx, sessionID, true, false))
	}
	return results
}

// knownSessionIDs collects session ids from both session files and
// event streams, so sessions that lost their descriptor still appear.
func (s *Service) knownSessionIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)

	infos, err := s.store.List(ctx, "sessions/")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for _, info := range infos {
		parts := strings.Split(info.Key, "/")
		if len(parts) >= 2 && parts[1] != "" {
			seen[parts[1]] = true
		}
	}

	streams, err := s.store.List(ctx, "events/")
	if err != nil {
		return nil, fmt.Errorf("list event streams: %w", err)
	}
	for _, info := range streams {
		name := strings.TrimPrefix(info.Key, "events/")
		if id, ok := strings.CutSuffix(name, "_events.jsonl"); ok && id != "" {
			seen[id] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func isRecoverable(issues []Issue) bool {
	critical := 0
	autoFixable := 0
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			critical++
		}
		if issue.AutoFixable {
			autoFixable++
		}
	}
	return critical == 0 || autoFixable == len(issues)
}

func allAutoFixable(issues []Issue) bool {
	for _, issue := range issues {
		if !issue.AutoFixable {
			return false
		}
	}
	return true
}

func recommendations(report Report) []string {
	if report.CorruptedSessions == 0 {
		return []string{"All sessions are healthy"}
	}
	var recs []string
	if report.RecoverableSessions > 0 {
		recs = append(recs, fmt.Sprintf("%d sessions can be automatically recovered", report.RecoverableSessions))
	}
	if n := report.IssuesByType[IssueMissingEvents]; n > 0 {
		recs = append(recs, fmt.Sprintf("%d sessions missing event logs", n))
	}
	if n := report.IssuesByType[IssueInvalidJSON]; n > 0 {
		recs = append(recs, fmt.Sprintf("%d sessions have corrupted JSON files", n))
	}
	if n := report.IssuesByType[IssueMissingSessionFile]; n > 0 {
		recs = append(recs, fmt.Sprintf("%d sessions have missing descriptor files", n))
	}
	recs = append(recs, "Run integrity scans regularly to detect issues early")
	return recs
}

func filterIssues(issues []Issue, keep func(Issue) bool) []Issue {
	var out []Issue
	for _, issue := range issues {
		if keep(issue) {
			out = append(out, issue)
		}
	}
	return out
}
