package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/polarsmith/internal/event"
	"github.com/roach88/polarsmith/internal/storage"
)

const (
	// DefaultBatchSize is the pending-event count that triggers a flush.
	DefaultBatchSize = 10
	// DefaultMaxBatchAge is how long a pending batch may sit before the
	// next Append flushes it.
	DefaultMaxBatchAge = 30 * time.Second
	// DefaultRetentionDays is the default event-stream retention window.
	DefaultRetentionDays = 90
)

// Log is an append-only event log over a storage.Store.
//
// Appends collect into a pending batch that is flushed inline when it
// reaches the size or age limit. Pending events are lost on crash;
// callers needing immediate durability use AppendMany or Flush.
// Safe for concurrent use.
type Log struct {
	store  storage.Store
	logger *slog.Logger

	batchSize   int
	maxBatchAge time.Duration
	now         func() time.Time

	mu           sync.Mutex
	pending      *event.Batch
	batchStarted time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithBatchSize overrides the flush-triggering batch size.
func WithBatchSize(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithMaxBatchAge overrides the flush-triggering batch age.
func WithMaxBatchAge(d time.Duration) Option {
	return func(l *Log) {
		if d > 0 {
			l.maxBatchAge = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Log with the default batch limits.
func New(store storage.Store, opts ...Option) *Log {
	l := &Log{
		store:       store,
		logger:      slog.Default(),
		batchSize:   DefaultBatchSize,
		maxBatchAge: DefaultMaxBatchAge,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StreamKey returns the storage key holding a session's event stream.
func StreamKey(sessionID string) string {
	return fmt.Sprintf("events/%s_events.jsonl", sessionID)
}

// Append adds an event to the pending batch, flushing inline when the
// batch reaches its size or age limit.
func (l *Log) Append(ctx context.Context, ev event.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == nil {
		l.pending = event.NewBatch()
		l.batchStarted = l.now()
	}
	l.pending.Add(ev)

	if l.pending.Len() >= l.batchSize || l.now().Sub(l.batchStarted) >= l.maxBatchAge {
		if err := l.flushLocked(ctx); err != nil {
			return &StorageError{Op: fmt.Sprintf("append event %s", ev.ID), Err: err}
		}
	}
	return nil
}

// AppendMany persists the given events immediately, bypassing the
// pending batch.
func (l *Log) AppendMany(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.write(ctx, events); err != nil {
		return &StorageError{Op: "append batch", Err: err}
	}
	return nil
}

// Flush persists any pending events.
func (l *Log) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.flushLocked(ctx); err != nil {
		return &StorageError{Op: "flush", Err: err}
	}
	return nil
}

// Pending reports the number of unflushed events.
func (l *Log) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return 0
	}
	return l.pending.Len()
}

func (l *Log) flushLocked(ctx context.Context) error {
	if l.pending == nil || l.pending.Len() == 0 {
		return nil
	}
	if err := l.write(ctx, l.pending.Events); err != nil {
		return err
	}
	l.logger.Debug("event batch flushed", "events", l.pending.Len())
	l.pending = nil
	l.batchStarted = time.Time{}
	return nil
}

// write merges events into each session's stored stream. Events whose
// id already exists in the stream are skipped, making retried writes
// idempotent.
func (l *Log) write(ctx context.Context, events []event.Event) error {
	bySession := make(map[string][]event.Event)
	var order []string
	for _, ev := range events {
		if _, ok := bySession[ev.SessionID]; !ok {
			order = append(order, ev.SessionID)
		}
		bySession[ev.SessionID] = append(bySession[ev.SessionID], ev)
	}

	for _, sessionID := range order {
		existing, err := l.readStream(ctx, sessionID)
		if err != nil {
			return err
		}

		seen := make(map[string]bool, len(existing))
		for _, ev := range existing {
			seen[ev.ID] = true
		}
		merged := existing
		for _, ev := range bySession[sessionID] {
			if seen[ev.ID] {
				continue
			}
			seen[ev.ID] = true
			merged = append(merged, ev)
		}

		content, err := event.MarshalJSONL(merged)
		if err != nil {
			return fmt.Errorf("encode stream for session %s: %w", sessionID, err)
		}
		metadata := map[string]string{
			"session_id":   sessionID,
			"event_count":  strconv.Itoa(len(merged)),
			"last_updated": l.now().UTC().Format(time.RFC3339),
		}
		if err := l.store.Put(ctx, StreamKey(sessionID), content, "application/x-jsonlines", metadata); err != nil {
			return fmt.Errorf("write stream for session %s: %w", sessionID, err)
		}
	}
	return nil
}

func (l *Log) readStream(ctx context.Context, sessionID string) ([]event.Event, error) {
	obj, err := l.store.Get(ctx, StreamKey(sessionID))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read stream for session %s: %w", sessionID, err)
	}
	events, err := event.UnmarshalJSONL(obj.Content)
	if err != nil {
		return nil, fmt.Errorf("decode stream for session %s: %w", sessionID, err)
	}
	return events, nil
}

// Query returns a session's stored events sorted by timestamp
// ascending, optionally filtered by type and time range. A session
// with no stream yields an empty slice, not an error.
func (l *Log) Query(ctx context.Context, sessionID string, types []event.Type, start, end *time.Time) ([]event.Event, error) {
	events, err := l.readStream(ctx, sessionID)
	if err != nil {
		return nil, &StorageError{Op: fmt.Sprintf("query session %s", sessionID), Err: err}
	}

	var typeSet map[event.Type]bool
	if len(types) > 0 {
		typeSet = make(map[event.Type]bool, len(types))
		for _, t := range types {
			typeSet[t] = true
		}
	}

	filtered := events[:0]
	for _, ev := range events {
		if typeSet != nil && !typeSet[ev.Type] {
			continue
		}
		if start != nil && ev.Timestamp.Before(*start) {
			continue
		}
		if end != nil && ev.Timestamp.After(*end) {
			continue
		}
		filtered = append(filtered, ev)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})
	return filtered, nil
}

// All returns every stored event for a session in chronological order.
func (l *Log) All(ctx context.Context, sessionID string) ([]event.Event, error) {
	return l.Query(ctx, sessionID, nil, nil, nil)
}

// TimelineEntry is one line of a session's human-readable history.
type TimelineEntry struct {
	Timestamp  time.Time  `json:"timestamp"`
	EventType  event.Type `json:"event_type"`
	UserID     string     `json:"user_id"`
	DocumentID string     `json:"document_id"`
	Version    int        `json:"version"`
	Summary    string     `json:"summary"`
}

// Timeline returns one summarized entry per stored event, in
// chronological order.
func (l *Log) Timeline(ctx context.Context, sessionID string) ([]TimelineEntry, error) {
	events, err := l.All(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	entries := make([]TimelineEntry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, TimelineEntry{
			Timestamp:  ev.Timestamp,
			EventType:  ev.Type,
			UserID:     ev.UserID,
			DocumentID: ev.DocumentID,
			Version:    ev.Version,
			Summary:    event.Summary(ev),
		})
	}
	return entries, nil
}

// IntegrityReport is the result of validating a session's event stream.
type IntegrityReport struct {
	SessionID  string     `json:"session_id"`
	IsValid    bool       `json:"is_valid"`
	EventCount int        `json:"event_count"`
	Issues     []string   `json:"issues,omitempty"`
	FirstEvent *time.Time `json:"first_event,omitempty"`
	LastEvent  *time.Time `json:"last_event,omitempty"`
}

// ValidateIntegrity checks a session's stream for a SessionCreated
// head, non-decreasing timestamps, unique event ids, and replayability.
// It never mutates the stream.
func (l *Log) ValidateIntegrity(ctx context.Context, sessionID string) (IntegrityReport, error) {
	// Read the raw stream so stored order, not query order, is checked.
	events, err := l.readStream(ctx, sessionID)
	if err != nil {
		return IntegrityReport{}, &StorageError{Op: fmt.Sprintf("validate session %s", sessionID), Err: err}
	}

	report := IntegrityReport{SessionID: sessionID, EventCount: len(events)}
	if len(events) == 0 {
		report.IsValid = true
		report.Issues = []string{"No events found - session may not exist"}
		return report, nil
	}

	if events[0].Type != event.TypeSessionCreated {
		report.Issues = append(report.Issues, "First event is not SESSION_CREATED")
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			report.Issues = append(report.Issues, fmt.Sprintf("Events out of chronological order at index %d", i))
		}
	}
	ids := make(map[string]bool, len(events))
	duplicate := false
	for _, ev := range events {
		if ids[ev.ID] {
			duplicate = true
			break
		}
		ids[ev.ID] = true
	}
	if duplicate {
		report.Issues = append(report.Issues, "Duplicate event IDs found")
	}
	if _, err := Replay(events); err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("Session replay failed: %v", err))
	}

	report.IsValid = len(report.Issues) == 0
	first := events[0].Timestamp
	last := events[len(events)-1].Timestamp
	report.FirstEvent = &first
	report.LastEvent = &last
	return report, nil
}

// CleanupOlderThan deletes whole event-stream objects not modified
// within the retention window and returns the count removed. It works
// at stream granularity only.
func (l *Log) CleanupOlderThan(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	cutoff := l.now().UTC().AddDate(0, 0, -retentionDays)

	infos, err := l.store.List(ctx, "events/")
	if err != nil {
		return 0, &StorageError{Op: "cleanup", Err: err}
	}

	removed := 0
	for _, info := range infos {
		if !info.LastModified.Before(cutoff) {
			continue
		}
		if err := l.store.Delete(ctx, info.Key); err != nil {
			return removed, &StorageError{Op: fmt.Sprintf("cleanup %s", info.Key), Err: err}
		}
		removed++
	}
	if removed > 0 {
		l.logger.Info("cleaned up old event streams", "removed", removed, "retention_days", retentionDays)
	}
	return removed, nil
}

// Stats summarizes event storage usage. Event counts are estimated
// from stream sizes, not read from the streams.
type Stats struct {
	SessionsWithEvents   int    `json:"total_sessions_with_events"`
	EstimatedTotalEvents int    `json:"estimated_total_events"`
	TotalStorageBytes    int64  `json:"total_storage_bytes"`
	StorageBackend       string `json:"storage_backend"`
}

// estimatedEventSize is the assumed average serialized event size used
// for the Stats event-count estimate.
const estimatedEventSize = 200

// Stats reports aggregate event-storage statistics.
func (l *Log) Stats(ctx context.Context) (Stats, error) {
	infos, err := l.store.List(ctx, "events/")
	if err != nil {
		return Stats{}, &StorageError{Op: "stats", Err: err}
	}

	stats := Stats{
		SessionsWithEvents: len(infos),
		StorageBackend:     backendName(l.store),
	}
	for _, info := range infos {
		stats.TotalStorageBytes += info.Size
		estimated := int(info.Size / estimatedEventSize)
		if estimated < 1 {
			estimated = 1
		}
		stats.EstimatedTotalEvents += estimated
	}
	return stats, nil
}

func backendName(store storage.Store) string {
	name := fmt.Sprintf("%T", store)
	return strings.TrimPrefix(name, "*")
}
