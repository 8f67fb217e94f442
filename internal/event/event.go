package event

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of session event.
type Type string

const (
	TypeSessionCreated      Type = "SessionCreated"
	TypeSessionUpdated      Type = "SessionUpdated"
	TypeDocumentCreated     Type = "DocumentCreated"
	TypeDocumentEdited      Type = "DocumentEdited"
	TypeTestRun             Type = "TestRun"
	TypeValidationCompleted Type = "ValidationCompleted"
	TypeDocumentReworked    Type = "DocumentReworked"
	TypeNotesAdded          Type = "NotesAdded"
	TypePolicyGenerated     Type = "PolicyGenerated"
	TypePolicyValidated     Type = "PolicyValidated"
)

// DefaultUserID is recorded when no user is attributed to an event.
const DefaultUserID = "default_user"

// Well-known document IDs for events that concern session-level documents
// rather than generated artifacts.
const (
	DocumentRequirements = "requirements"
	DocumentNotes        = "notes"
)

// Event is a single immutable fact in a session's audit log.
//
// Timestamps are UTC and expected to be non-decreasing per session; the
// expectation is checked by integrity validation, not enforced at creation.
type Event struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       Type           `json:"event_type"`
	UserID     string         `json:"user_id"`
	DocumentID string         `json:"document_id"`
	Version    int            `json:"version"`
	Data       map[string]any `json:"data"`
}

// New creates an event with a generated UUIDv7 ID and the current UTC time.
// Most callers should prefer the typed constructors below.
func New(sessionID string, eventType Type, userID, documentID string, data map[string]any) Event {
	if userID == "" {
		userID = DefaultUserID
	}
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:         NewID(),
		SessionID:  sessionID,
		Timestamp:  time.Now().UTC(),
		Type:       eventType,
		UserID:     userID,
		DocumentID: documentID,
		Version:    1,
		Data:       data,
	}
}

// NewID returns a time-sortable UUIDv7 string.
//
// UUIDv7 embeds a timestamp in the most significant bits, which keeps IDs
// roughly ordered by creation time in listings and traces.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewSessionCreated records the creation of a session. It must be the first
// event in any valid session stream.
func NewSessionCreated(sessionID, sessionName, userID string) Event {
	return New(sessionID, TypeSessionCreated, userID, sessionID, map[string]any{
		"session_name": sessionName,
	})
}

// NewRequirementsEdited records an edit to the requirements document.
// Only the content length is recorded; the text itself lives out-of-band.
func NewRequirementsEdited(sessionID string, contentLength int, userID string) Event {
	return New(sessionID, TypeDocumentEdited, userID, DocumentRequirements, map[string]any{
		"document_type":  "requirements",
		"content_length": contentLength,
	})
}

// NewPolicyGenerated records a successful policy generation.
// tokensUsed may be nil when the model does not report usage.
func NewPolicyGenerated(sessionID, policyID, modelUsed string, tokensUsed *int, generationTime float64, userID string) Event {
	data := map[string]any{
		"model_used":      modelUsed,
		"generation_time": generationTime,
	}
	if tokensUsed != nil {
		data["tokens_used"] = *tokensUsed
	}
	return New(sessionID, TypePolicyGenerated, userID, policyID, data)
}

// NewValidationCompleted records the outcome of a policy validation.
func NewValidationCompleted(sessionID, policyID string, isValid bool, errorMessage string, validationTime float64, userID string) Event {
	data := map[string]any{
		"is_valid":        isValid,
		"validation_time": validationTime,
	}
	if errorMessage != "" {
		data["error_message"] = errorMessage
	}
	return New(sessionID, TypeValidationCompleted, userID, policyID, data)
}

// NewNotesAdded records an update to the session notes document.
func NewNotesAdded(sessionID string, notesLength int, userID string) Event {
	return New(sessionID, TypeNotesAdded, userID, DocumentNotes, map[string]any{
		"notes_length": notesLength,
	})
}

// NewSessionUpdated records a change to session-level metadata.
func NewSessionUpdated(sessionID, userID string) Event {
	return New(sessionID, TypeSessionUpdated, userID, sessionID, nil)
}

// String helpers for reading Data payloads. JSON decoding produces
// map[string]any with float64 numbers, so numeric reads go through these.

// DataString returns the string value under key, or fallback.
func (e Event) DataString(key, fallback string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return fallback
}

// DataBool returns the bool value under key, or fallback.
func (e Event) DataBool(key string, fallback bool) bool {
	if v, ok := e.Data[key].(bool); ok {
		return v
	}
	return fallback
}

// DataFloat returns the numeric value under key, or fallback.
func (e Event) DataFloat(key string, fallback float64) float64 {
	switch v := e.Data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// DataInt returns the integer value under key, or nil when absent.
func (e Event) DataInt(key string) *int {
	switch v := e.Data[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		n := v
		return &n
	}
	return nil
}
