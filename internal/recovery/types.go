package recovery

import "time"

// Status is the outcome class of a recovery attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IssueType classifies a detected corruption.
type IssueType string

const (
	IssueMissingSessionFile IssueType = "missing_session_file"
	IssueInvalidJSON        IssueType = "invalid_json"
	IssueMissingEvents      IssueType = "missing_events"
	IssueEventIntegrity     IssueType = "event_integrity"
)

// Severity grades how badly an issue compromises the session.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Issue is one detected corruption with a suggested remedy.
type Issue struct {
	Type          IssueType `json:"type"`
	Severity      Severity  `json:"severity"`
	Description   string    `json:"description"`
	AffectedFiles []string  `json:"affected_files"`
	SuggestedFix  string    `json:"suggested_fix"`
	AutoFixable   bool      `json:"auto_fixable"`
}

// Result reports one recovery attempt. Strategy failures land in
// ErrorMessage; a Result is always produced.
type Result struct {
	Status        Status  `json:"status"`
	SessionID     string  `json:"session_id"`
	IssuesFound   []Issue `json:"issues_found"`
	IssuesFixed   []Issue `json:"issues_fixed"`
	BackupCreated bool    `json:"backup_created"`
	RecoveryTime  float64 `json:"recovery_time"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}

// Report aggregates an integrity scan over all sessions.
type Report struct {
	TotalSessions       int               `json:"total_sessions"`
	HealthySessions     int               `json:"healthy_sessions"`
	CorruptedSessions   int               `json:"corrupted_sessions"`
	RecoverableSessions int               `json:"recoverable_sessions"`
	IssuesByType        map[IssueType]int `json:"issues_by_type"`
	Recommendations     []string          `json:"recommendations"`
	ScanTime            float64           `json:"scan_time"`
}

// BackupInfo describes one archived backup object.
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp string    `json:"timestamp"`
	Size      int64     `json:"size"`
	Created   time.Time `json:"created"`
}
