// Package session defines the Session aggregate and its persistence.
//
// A Session is only ever constructed through New (fresh sessions), the
// event replay fold, or recovery salvage. The one structural invariant is
// the current-policy rule: at most one GeneratedPolicy is current at any
// time, and AddPolicy demotes all previous policies when a new one arrives.
package session

import (
	"time"

	"github.com/google/uuid"
)

// GeneratedPolicy is one generated policy artifact with its generation
// metadata. Immutable after creation except for the IsCurrent flag, which
// the owning Session manages.
type GeneratedPolicy struct {
	ID             string
	Content        string
	GeneratedAt    time.Time
	ModelUsed      string
	TokensUsed     *int
	GenerationTime float64
	IsCurrent      bool
}

// NewGeneratedPolicy creates a policy marked current with a generated ID.
func NewGeneratedPolicy(content, modelUsed string, tokensUsed *int, generationTime float64) *GeneratedPolicy {
	return &GeneratedPolicy{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Content:        content,
		GeneratedAt:    time.Now().UTC(),
		ModelUsed:      modelUsed,
		TokensUsed:     tokensUsed,
		GenerationTime: generationTime,
		IsCurrent:      true,
	}
}

// ValidationResult is the session-scoped record of one validation outcome.
// Multiple results may reference the same policy; the latest per policy is
// the one with the greatest ValidatedAt.
type ValidationResult struct {
	ID             string
	PolicyID       string
	IsValid        bool
	ErrorMessage   string
	ValidatedAt    time.Time
	ValidationTime float64
}

// NewValidationResult creates a validation result with a generated ID.
func NewValidationResult(policyID string, isValid bool, errorMessage string, validationTime float64) ValidationResult {
	return ValidationResult{
		ID:             uuid.Must(uuid.NewV7()).String(),
		PolicyID:       policyID,
		IsValid:        isValid,
		ErrorMessage:   errorMessage,
		ValidatedAt:    time.Now().UTC(),
		ValidationTime: validationTime,
	}
}

// Session is the aggregate reconstructed from events or loaded from the
// session store.
type Session struct {
	ID               string
	Name             string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	RequirementsText string
	Policies         []*GeneratedPolicy
	Validations      []ValidationResult
	Notes            string
	Metadata         map[string]any
}

// New creates a session with a generated ID and current UTC timestamps.
func New(name string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]any{},
	}
}

// Restore builds a session shell with explicit identity and timestamps.
// Used by replay and recovery, which own the timestamps they apply.
func Restore(id, name string, createdAt, updatedAt time.Time) *Session {
	return &Session{
		ID:        id,
		Name:      name,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Metadata:  map[string]any{},
	}
}

// Touch advances the session's last-modified timestamp to now.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// AddPolicy appends a policy and marks it current, demoting every
// previously current policy.
func (s *Session) AddPolicy(p *GeneratedPolicy) {
	s.RestorePolicy(p)
	s.Touch()
}

// RestorePolicy appends a policy and marks it current without touching
// the modification time. Rehydration paths use this so timestamps stay
// derived from recorded history, not the clock.
func (s *Session) RestorePolicy(p *GeneratedPolicy) {
	for _, existing := range s.Policies {
		existing.IsCurrent = false
	}
	p.IsCurrent = true
	s.Policies = append(s.Policies, p)
}

// CurrentPolicy returns the active policy, or nil if none exists.
func (s *Session) CurrentPolicy() *GeneratedPolicy {
	for _, p := range s.Policies {
		if p.IsCurrent {
			return p
		}
	}
	return nil
}

// Policy returns the policy with the given ID, or nil.
func (s *Session) Policy(policyID string) *GeneratedPolicy {
	for _, p := range s.Policies {
		if p.ID == policyID {
			return p
		}
	}
	return nil
}

// AddValidation appends a validation result.
func (s *Session) AddValidation(r ValidationResult) {
	s.RestoreValidation(r)
	s.Touch()
}

// RestoreValidation appends a validation result without touching the
// modification time.
func (s *Session) RestoreValidation(r ValidationResult) {
	s.Validations = append(s.Validations, r)
}

// LatestValidation returns the most recent validation result for a policy,
// or nil if the policy has never been validated.
func (s *Session) LatestValidation(policyID string) *ValidationResult {
	var latest *ValidationResult
	for i := range s.Validations {
		r := &s.Validations[i]
		if r.PolicyID != policyID {
			continue
		}
		if latest == nil || r.ValidatedAt.After(latest.ValidatedAt) {
			latest = r
		}
	}
	return latest
}

// Info is a lightweight summary for listing and selection.
type Info struct {
	ID              string    `json:"session_id"`
	Name            string    `json:"name"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	HasRequirements bool      `json:"has_requirements"`
	HasPolicies     bool      `json:"has_policies"`
	PolicyCount     int       `json:"policy_count"`
}

// Info returns the session's listing summary.
func (s *Session) Info() Info {
	return Info{
		ID:              s.ID,
		Name:            s.Name,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		HasRequirements: len(s.RequirementsText) > 0,
		HasPolicies:     len(s.Policies) > 0,
		PolicyCount:     len(s.Policies),
	}
}
