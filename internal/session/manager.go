package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/polarsmith/internal/storage"
)

// MaxNameLength bounds session names at creation and save time.
const MaxNameLength = 100

// Manager provides session persistence on top of a storage.Store.
//
// Layout per session under "sessions/{id}/":
//
//	session.json                     descriptor (required)
//	requirements.txt                 requirements text (optional)
//	notes.md                         notes (optional)
//	policies/{pid}.polar             policy content
//	policies/{pid}_metadata.json     policy metadata
//	validation_results/{rid}.json    validation results
type Manager struct {
	store  storage.Store
	logger *slog.Logger
}

// NewManager creates a Manager. logger may be nil.
func NewManager(store storage.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// descriptor is the persisted shape of session.json.
type descriptor struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// policyMetadata is the persisted shape of policies/{pid}_metadata.json.
// Content is stored as a sibling .polar file, not here.
type policyMetadata struct {
	ID             string    `json:"id"`
	GeneratedAt    time.Time `json:"generated_at"`
	ModelUsed      string    `json:"model_used"`
	TokensUsed     *int      `json:"tokens_used,omitempty"`
	GenerationTime float64   `json:"generation_time"`
	IsCurrent      bool      `json:"is_current"`
}

// validationRecord is the persisted shape of validation_results/{rid}.json.
type validationRecord struct {
	ID             string    `json:"id"`
	PolicyID       string    `json:"policy_id"`
	IsValid        bool      `json:"is_valid"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ValidatedAt    time.Time `json:"validated_at"`
	ValidationTime float64   `json:"validation_time"`
}

func sessionPrefix(sessionID string) string {
	return fmt.Sprintf("sessions/%s/", sessionID)
}

func sessionKey(sessionID, filename string) string {
	return sessionPrefix(sessionID) + filename
}

// DescriptorKey returns the storage key of a session's descriptor file.
func DescriptorKey(sessionID string) string {
	return sessionKey(sessionID, "session.json")
}

// RequirementsKey returns the storage key of a session's requirements file.
func RequirementsKey(sessionID string) string {
	return sessionKey(sessionID, "requirements.txt")
}

// NotesKey returns the storage key of a session's notes file.
func NotesKey(sessionID string) string {
	return sessionKey(sessionID, "notes.md")
}

// Prefix returns the storage prefix holding all of a session's files.
func Prefix(sessionID string) string {
	return sessionPrefix(sessionID)
}

// Create validates the name, creates a new session and persists it.
func (m *Manager) Create(ctx context.Context, name string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if len(name) > MaxNameLength {
		return nil, &ValidationError{Field: "name", Message: fmt.Sprintf("cannot exceed %d characters", MaxNameLength)}
	}

	sess := New(name)
	if err := m.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	m.logger.Info("session created", "session_id", sess.ID, "name", sess.Name)
	return sess, nil
}

// Load reconstructs a full session from storage.
func (m *Manager) Load(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, &ValidationError{Field: "id", Message: "cannot be empty"}
	}

	obj, err := m.store.Get(ctx, DescriptorKey(sessionID))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, &NotFoundError{SessionID: sessionID}
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	var desc descriptor
	if err := json.Unmarshal([]byte(obj.Content), &desc); err != nil {
		return nil, fmt.Errorf("load session %s: parse descriptor: %w", sessionID, err)
	}

	sess := Restore(desc.ID, desc.Name, desc.CreatedAt, desc.UpdatedAt)
	if desc.Metadata != nil {
		sess.Metadata = desc.Metadata
	}

	if req, err := m.store.Get(ctx, RequirementsKey(sessionID)); err == nil {
		sess.RequirementsText = req.Content
	} else if !storage.IsNotFound(err) {
		return nil, fmt.Errorf("load session %s: requirements: %w", sessionID, err)
	}
	if notes, err := m.store.Get(ctx, NotesKey(sessionID)); err == nil {
		sess.Notes = notes.Content
	} else if !storage.IsNotFound(err) {
		return nil, fmt.Errorf("load session %s: notes: %w", sessionID, err)
	}

	if err := m.loadPolicies(ctx, sess); err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if err := m.loadValidations(ctx, sess); err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	return sess, nil
}

func (m *Manager) loadPolicies(ctx context.Context, sess *Session) error {
	prefix := sessionKey(sess.ID, "policies/")
	infos, err := m.store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list policies: %w", err)
	}

	for _, info := range infos {
		if !strings.HasSuffix(info.Key, "_metadata.json") {
			continue
		}
		metaObj, err := m.store.Get(ctx, info.Key)
		if err != nil {
			return fmt.Errorf("read %s: %w", info.Key, err)
		}
		var meta policyMetadata
		if err := json.Unmarshal([]byte(metaObj.Content), &meta); err != nil {
			return fmt.Errorf("parse %s: %w", info.Key, err)
		}

		policy := &GeneratedPolicy{
			ID:             meta.ID,
			GeneratedAt:    meta.GeneratedAt,
			ModelUsed:      meta.ModelUsed,
			TokensUsed:     meta.TokensUsed,
			GenerationTime: meta.GenerationTime,
			IsCurrent:      meta.IsCurrent,
		}
		contentKey := prefix + meta.ID + ".polar"
		if contentObj, err := m.store.Get(ctx, contentKey); err == nil {
			policy.Content = contentObj.Content
		} else if !storage.IsNotFound(err) {
			return fmt.Errorf("read %s: %w", contentKey, err)
		}
		sess.Policies = append(sess.Policies, policy)
	}

	// Ordering by generation time defines version history.
	sort.Slice(sess.Policies, func(i, j int) bool {
		return sess.Policies[i].GeneratedAt.Before(sess.Policies[j].GeneratedAt)
	})
	return nil
}

func (m *Manager) loadValidations(ctx context.Context, sess *Session) error {
	prefix := sessionKey(sess.ID, "validation_results/")
	infos, err := m.store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list validation results: %w", err)
	}

	for _, info := range infos {
		obj, err := m.store.Get(ctx, info.Key)
		if err != nil {
			return fmt.Errorf("read %s: %w", info.Key, err)
		}
		var rec validationRecord
		if err := json.Unmarshal([]byte(obj.Content), &rec); err != nil {
			return fmt.Errorf("parse %s: %w", info.Key, err)
		}
		sess.Validations = append(sess.Validations, ValidationResult{
			ID:             rec.ID,
			PolicyID:       rec.PolicyID,
			IsValid:        rec.IsValid,
			ErrorMessage:   rec.ErrorMessage,
			ValidatedAt:    rec.ValidatedAt,
			ValidationTime: rec.ValidationTime,
		})
	}

	sort.Slice(sess.Validations, func(i, j int) bool {
		return sess.Validations[i].ValidatedAt.Before(sess.Validations[j].ValidatedAt)
	})
	return nil
}

// Save validates and persists the full session state, advancing its
// updated-at timestamp.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	if err := validateSession(sess); err != nil {
		return err
	}
	sess.Touch()

	desc := descriptor{
		ID:        sess.ID,
		Name:      sess.Name,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
		Metadata:  sess.Metadata,
	}
	descJSON, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return fmt.Errorf("save session %s: encode descriptor: %w", sess.ID, err)
	}
	if err := m.store.Put(ctx, DescriptorKey(sess.ID), string(descJSON), "application/json", nil); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}

	if sess.RequirementsText != "" {
		if err := m.store.Put(ctx, RequirementsKey(sess.ID), sess.RequirementsText, "text/plain", nil); err != nil {
			return fmt.Errorf("save session %s: requirements: %w", sess.ID, err)
		}
	}
	if sess.Notes != "" {
		if err := m.store.Put(ctx, NotesKey(sess.ID), sess.Notes, "text/markdown", nil); err != nil {
			return fmt.Errorf("save session %s: notes: %w", sess.ID, err)
		}
	}

	for _, policy := range sess.Policies {
		if policy.ID == "" {
			return &ValidationError{Field: "policy", Message: "policy id cannot be empty"}
		}
		if err := m.savePolicy(ctx, sess.ID, policy); err != nil {
			return fmt.Errorf("save session %s: %w", sess.ID, err)
		}
	}
	for i := range sess.Validations {
		if err := m.saveValidation(ctx, sess.ID, &sess.Validations[i]); err != nil {
			return fmt.Errorf("save session %s: %w", sess.ID, err)
		}
	}

	m.logger.Debug("session saved", "session_id", sess.ID,
		"policies", len(sess.Policies), "validations", len(sess.Validations))
	return nil
}

func (m *Manager) savePolicy(ctx context.Context, sessionID string, policy *GeneratedPolicy) error {
	meta := policyMetadata{
		ID:             policy.ID,
		GeneratedAt:    policy.GeneratedAt,
		ModelUsed:      policy.ModelUsed,
		TokensUsed:     policy.TokensUsed,
		GenerationTime: policy.GenerationTime,
		IsCurrent:      policy.IsCurrent,
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode policy %s metadata: %w", policy.ID, err)
	}
	metaKey := sessionKey(sessionID, "policies/"+policy.ID+"_metadata.json")
	if err := m.store.Put(ctx, metaKey, string(metaJSON), "application/json", nil); err != nil {
		return err
	}
	contentKey := sessionKey(sessionID, "policies/"+policy.ID+".polar")
	return m.store.Put(ctx, contentKey, policy.Content, "text/plain", nil)
}

func (m *Manager) saveValidation(ctx context.Context, sessionID string, result *ValidationResult) error {
	rec := validationRecord{
		ID:             result.ID,
		PolicyID:       result.PolicyID,
		IsValid:        result.IsValid,
		ErrorMessage:   result.ErrorMessage,
		ValidatedAt:    result.ValidatedAt,
		ValidationTime: result.ValidationTime,
	}
	recJSON, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode validation %s: %w", result.ID, err)
	}
	key := sessionKey(sessionID, "validation_results/"+result.ID+".json")
	return m.store.Put(ctx, key, string(recJSON), "application/json", nil)
}

// List returns session summaries sorted by update time, newest first.
// search filters by case-insensitive substring on the name; limit <= 0
// means unlimited.
func (m *Manager) List(ctx context.Context, search string, limit int) ([]Info, error) {
	infos, err := m.store.List(ctx, "sessions/")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var result []Info
	for _, info := range infos {
		if !strings.HasSuffix(info.Key, "/session.json") {
			continue
		}
		parts := strings.Split(info.Key, "/")
		if len(parts) != 3 {
			continue
		}
		sessionID := parts[1]

		sess, err := m.Load(ctx, sessionID)
		if err != nil {
			// A session that cannot be fully loaded still appears in the
			// listing so recovery tooling can find it.
			m.logger.Warn("listing degraded session", "session_id", sessionID, "error", err)
			result = append(result, Info{ID: sessionID, Name: sessionID})
			continue
		}
		result = append(result, sess.Info())
	}

	if search = strings.TrimSpace(search); search != "" {
		lower := strings.ToLower(search)
		filtered := result[:0]
		for _, info := range result {
			if strings.Contains(strings.ToLower(info.Name), lower) {
				filtered = append(filtered, info)
			}
		}
		result = filtered
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Delete removes all of a session's files. Deleting a missing session is
// not an error.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return &ValidationError{Field: "id", Message: "cannot be empty"}
	}
	infos, err := m.store.List(ctx, Prefix(sessionID))
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	for _, info := range infos {
		if err := m.store.Delete(ctx, info.Key); err != nil {
			return fmt.Errorf("delete session %s: %w", sessionID, err)
		}
	}
	m.logger.Info("session deleted", "session_id", sessionID, "files", len(infos))
	return nil
}

// Exists reports whether a session descriptor is present.
func (m *Manager) Exists(ctx context.Context, sessionID string) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, nil
	}
	return m.store.Exists(ctx, DescriptorKey(sessionID))
}

func validateSession(sess *Session) error {
	if sess == nil {
		return &ValidationError{Field: "session", Message: "cannot be nil"}
	}
	if strings.TrimSpace(sess.ID) == "" {
		return &ValidationError{Field: "id", Message: "cannot be empty"}
	}
	if strings.TrimSpace(sess.Name) == "" {
		return &ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if len(sess.Name) > MaxNameLength {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("cannot exceed %d characters", MaxNameLength)}
	}
	return nil
}
