package validate

import "time"

// Request asks for one policy text to be validated in a session's
// context.
type Request struct {
	SessionID string
	PolicyID  string
	Content   string
}

// Result is the outcome of one validation. Failures carry an error
// message instead of a Go error so callers can treat them as data.
type Result struct {
	IsValid        bool     `json:"is_valid"`
	ErrorMessage   string   `json:"error_message,omitempty"`
	ErrorDetails   []string `json:"error_details,omitempty"`
	ValidationTime float64  `json:"validation_time"`
}

// HistoryEntry records one validation attempt, cache hits included.
type HistoryEntry struct {
	SessionID   string    `json:"session_id"`
	PolicyID    string    `json:"policy_id"`
	ContentHash string    `json:"content_hash"`
	Result      Result    `json:"result"`
	Timestamp   time.Time `json:"timestamp"`
	RetryCount  int       `json:"retry_count"`
	CacheHit    bool      `json:"cache_hit"`
}

// Stats summarizes validation activity. Cache fields are only
// populated for global stats; per-session stats are derived from
// history.
type Stats struct {
	Total        int     `json:"total_validations"`
	Successful   int     `json:"successful_validations"`
	Failed       int     `json:"failed_validations"`
	CacheHits    int     `json:"cache_hits"`
	CacheMisses  int     `json:"cache_misses"`
	AverageTime  float64 `json:"average_validation_time"`
	SuccessRate  float64 `json:"success_rate"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}
