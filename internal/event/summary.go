package event

import "fmt"

// Summary returns a one-line human-readable description of an event for
// timeline views. Unknown or unhandled event types fall back to their raw
// type name so new types render without code changes here.
func Summary(ev Event) string {
	switch ev.Type {
	case TypeSessionCreated:
		return fmt.Sprintf("Session %q created", ev.DataString("session_name", "Unnamed"))
	case TypeDocumentEdited:
		return fmt.Sprintf("Requirements document edited (%d chars)", int(ev.DataFloat("content_length", 0)))
	case TypePolicyGenerated:
		return fmt.Sprintf("Policy generated using %s model", ev.DataString("model_used", "unknown"))
	case TypeValidationCompleted:
		if ev.DataBool("is_valid", false) {
			return "Validation passed"
		}
		return "Validation failed"
	case TypeNotesAdded:
		return fmt.Sprintf("Notes updated (%d chars)", int(ev.DataFloat("notes_length", 0)))
	case TypeSessionUpdated:
		return "Session metadata updated"
	case TypeDocumentReworked:
		return "Document reworked based on feedback"
	default:
		return fmt.Sprintf("%s event", ev.Type)
	}
}
