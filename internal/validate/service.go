package validate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultCacheTTL is how long a cached validation result stays
	// fresh.
	DefaultCacheTTL = time.Hour
	// DefaultPoolSize bounds concurrent external validator calls.
	DefaultPoolSize = 5
	// DefaultHistoryLimit caps the process-wide history length.
	DefaultHistoryLimit = 1000

	// retryWindow is how far back the retry-count heuristic looks for
	// earlier attempts on the same content.
	retryWindow = time.Hour
)

type cacheEntry struct {
	result    Result
	timestamp time.Time
}

// Service fronts a Validator with caching, history, statistics, and a
// bounded worker pool. Safe for concurrent use; the cache and history
// share one lock, while validator calls run outside it.
type Service struct {
	validator Validator
	logger    *slog.Logger

	ttl          time.Duration
	historyLimit int
	sem          chan struct{}
	now          func() time.Time

	mu      sync.Mutex
	closed  bool
	cache   map[string]cacheEntry
	history []HistoryEntry

	total       int
	successful  int
	failed      int
	cacheHits   int
	cacheMisses int
	averageTime float64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCacheTTL overrides the cache entry lifetime.
func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPoolSize overrides the worker pool bound.
func WithPoolSize(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		}
	}
}

// WithHistoryLimit overrides the history cap.
func WithHistoryLimit(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithServiceLogger sets the structured logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service around the given validator.
func NewService(validator Validator, opts ...ServiceOption) *Service {
	s := &Service{
		validator:    validator,
		logger:       slog.Default(),
		ttl:          DefaultCacheTTL,
		historyLimit: DefaultHistoryLimit,
		sem:          make(chan struct{}, DefaultPoolSize),
		now:          time.Now,
		cache:        make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cacheKey(sessionID, contentHash string) string {
	return sessionID + ":" + contentHash
}

// Validate checks one request, serving from cache when a fresh result
// for the same (session, content) exists. Cache misses run on the
// bounded pool; the caller blocks only on its own request.
func (s *Service) Validate(ctx context.Context, req Request) Result {
	hash := ContentHash(req.Content)
	key := cacheKey(req.SessionID, hash)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return failed("Validation error: service is closed")
	}
	if entry, ok := s.cache[key]; ok {
		if s.now().Sub(entry.timestamp) <= s.ttl {
			s.cacheHits++
			s.recordHistoryLocked(req, hash, entry.result, true)
			s.mu.Unlock()
			s.logger.Debug("validation cache hit", "session_id", req.SessionID, "policy_id", req.PolicyID)
			return entry.result
		}
		delete(s.cache, key)
	}
	s.cacheMisses++
	s.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return failed(fmt.Sprintf("Validation error: %v", ctx.Err()))
	}
	start := s.now()
	result := s.validator.Validate(ctx, req.Content)
	result.ValidationTime = s.now().Sub(start).Seconds()
	<-s.sem

	s.mu.Lock()
	if !s.closed {
		s.cache[key] = cacheEntry{result: result, timestamp: s.now()}
	}
	s.recordHistoryLocked(req, hash, result, false)
	s.total++
	if result.IsValid {
		s.successful++
	} else {
		s.failed++
	}
	s.averageTime += (result.ValidationTime - s.averageTime) / float64(s.total)
	s.mu.Unlock()

	s.logger.Info("validation completed",
		"session_id", req.SessionID, "policy_id", req.PolicyID,
		"valid", result.IsValid, "time_s", result.ValidationTime)
	return result
}

// ValidateMany validates all requests concurrently on the shared pool
// and returns results in input order. A failing member yields a failed
// result, never an aborted batch.
func (s *Service) ValidateMany(ctx context.Context, reqs []Request) []Result {
	if len(reqs) == 0 {
		return nil
	}
	results := make([]Result, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			results[i] = s.Validate(ctx, req)
		}(i, req)
	}
	wg.Wait()
	return results
}

// recordHistoryLocked appends a history entry, computing the
// retry-count heuristic from recent attempts on the same content.
// Caller holds s.mu.
func (s *Service) recordHistoryLocked(req Request, hash string, result Result, cacheHit bool) {
	now := s.now()
	retryCount := 0
	for i := len(s.history) - 1; i >= 0; i-- {
		entry := &s.history[i]
		if now.Sub(entry.Timestamp) > retryWindow {
			break
		}
		if entry.SessionID == req.SessionID && entry.ContentHash == hash {
			if entry.RetryCount+1 > retryCount {
				retryCount = entry.RetryCount + 1
			}
		}
	}

	s.history = append(s.history, HistoryEntry{
		SessionID:   req.SessionID,
		PolicyID:    req.PolicyID,
		ContentHash: hash,
		Result:      result,
		Timestamp:   now,
		RetryCount:  retryCount,
		CacheHit:    cacheHit,
	})
	if len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}
}

// History returns a session's validation attempts newest-first.
// limit <= 0 means all.
func (s *Service) History(sessionID string, limit int) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []HistoryEntry
	for _, entry := range s.history {
		if entry.SessionID == sessionID {
			entries = append(entries, entry)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Stats returns validation statistics, per session when sessionID is
// non-empty and global otherwise. Per-session numbers are derived from
// history and exclude cache hits.
func (s *Service) Stats(sessionID string) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		stats := Stats{
			Total:       s.total,
			Successful:  s.successful,
			Failed:      s.failed,
			CacheHits:   s.cacheHits,
			CacheMisses: s.cacheMisses,
			AverageTime: s.averageTime,
		}
		if s.total > 0 {
			stats.SuccessRate = float64(s.successful) / float64(s.total)
		}
		if lookups := s.cacheHits + s.cacheMisses; lookups > 0 {
			stats.CacheHitRate = float64(s.cacheHits) / float64(lookups)
		}
		return stats
	}

	var stats Stats
	var totalTime float64
	for _, entry := range s.history {
		if entry.SessionID != sessionID {
			continue
		}
		if entry.CacheHit {
			stats.CacheHits++
			continue
		}
		stats.Total++
		totalTime += entry.Result.ValidationTime
		if entry.Result.IsValid {
			stats.Successful++
		} else {
			stats.Failed++
		}
	}
	if stats.Total > 0 {
		stats.AverageTime = totalTime / float64(stats.Total)
		stats.SuccessRate = float64(stats.Successful) / float64(stats.Total)
	}
	if lookups := stats.CacheHits + stats.Total; lookups > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(lookups)
	}
	return stats
}

// ClearCache drops cached results, for one session when sessionID is
// non-empty or all of them otherwise, and returns the count removed.
func (s *Service) ClearCache(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		removed := len(s.cache)
		s.cache = make(map[string]cacheEntry)
		return removed
	}
	prefix := sessionID + ":"
	removed := 0
	for key := range s.cache {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(s.cache, key)
			removed++
		}
	}
	return removed
}

// EvictExpired removes cache entries past their TTL and returns the
// count removed. There is no background timer; callers invoke this
// periodically.
func (s *Service) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.cache {
		if now.Sub(entry.timestamp) > s.ttl {
			delete(s.cache, key)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("evicted expired validation cache entries", "removed", removed)
	}
	return removed
}

// Close shuts the service down. The cache is dropped and subsequent
// Validate calls return a failed result without reaching the validator.
// In-flight validations are left to finish.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.cache = nil
	return nil
}
