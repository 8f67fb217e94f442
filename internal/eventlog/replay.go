package eventlog

import (
	"context"
	"fmt"

	"github.com/roach88/polarsmith/internal/event"
	"github.com/roach88/polarsmith/internal/session"
)

// Replay folds events, in the order given, into a session. The fold is
// deterministic: the same sequence always yields the same session.
// Policy and requirements content is not restored; those live outside
// the event stream.
func Replay(events []event.Event) (*session.Session, error) {
	if len(events) == 0 {
		return nil, &ReplayError{Reason: "no events"}
	}

	var sess *session.Session
	for _, ev := range events {
		next, err := apply(sess, ev)
		if err != nil {
			return nil, err
		}
		sess = next
	}
	if sess == nil {
		return nil, &ReplayError{SessionID: events[0].SessionID, Reason: "no SESSION_CREATED event in stream"}
	}
	return sess, nil
}

func apply(sess *session.Session, ev event.Event) (*session.Session, error) {
	switch ev.Type {
	case event.TypeSessionCreated:
		if sess != nil {
			return nil, &ReplayError{
				SessionID: ev.SessionID,
				Reason:    fmt.Sprintf("duplicate SESSION_CREATED event %s", ev.ID),
			}
		}
		name := ev.DataString("session_name", "Unnamed Session")
		sess = session.Restore(ev.SessionID, name, ev.Timestamp, ev.Timestamp)

	case event.TypeDocumentEdited:
		if sess == nil {
			return nil, beforeCreated(ev)
		}
		// Edited content lives out-of-band; only the fact of the edit
		// advances the session.

	case event.TypePolicyGenerated:
		if sess == nil {
			return nil, beforeCreated(ev)
		}
		policy := &session.GeneratedPolicy{
			ID:             ev.DocumentID,
			GeneratedAt:    ev.Timestamp,
			ModelUsed:      ev.DataString("model_used", "unknown"),
			TokensUsed:     ev.DataInt("tokens_used"),
			GenerationTime: ev.DataFloat("generation_time", 0),
		}
		sess.RestorePolicy(policy)

	case event.TypeValidationCompleted:
		if sess == nil {
			return nil, beforeCreated(ev)
		}
		sess.RestoreValidation(session.ValidationResult{
			ID:             "val_" + ev.ID,
			PolicyID:       ev.DocumentID,
			IsValid:        ev.DataBool("is_valid", false),
			ErrorMessage:   ev.DataString("error_message", ""),
			ValidatedAt:    ev.Timestamp,
			ValidationTime: ev.DataFloat("validation_time", 0),
		})

	case event.TypeNotesAdded, event.TypeSessionUpdated:
		if sess == nil {
			return nil, beforeCreated(ev)
		}

	default:
		if sess == nil {
			return nil, beforeCreated(ev)
		}
	}

	// Every event advances the session's updated-at watermark.
	if sess != nil && ev.Timestamp.After(sess.UpdatedAt) {
		sess.UpdatedAt = ev.Timestamp
	}
	return sess, nil
}

func beforeCreated(ev event.Event) error {
	return &ReplayError{
		SessionID: ev.SessionID,
		Reason:    fmt.Sprintf("%s event %s before SESSION_CREATED", ev.Type, ev.ID),
	}
}

// ReplaySession loads a session's stored events and replays them.
func (l *Log) ReplaySession(ctx context.Context, sessionID string) (*session.Session, error) {
	events, err := l.All(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, &ReplayError{SessionID: sessionID, Reason: "no events"}
	}
	return Replay(events)
}
