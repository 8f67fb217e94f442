package event

import (
	"strings"
	"testing"
	"time"
)

func TestNewSessionCreated(t *testing.T) {
	ev := NewSessionCreated("sess-1", "My Session", "")

	if ev.Type != TypeSessionCreated {
		t.Errorf("type = %q, want %q", ev.Type, TypeSessionCreated)
	}
	if ev.SessionID != "sess-1" {
		t.Errorf("session_id = %q, want %q", ev.SessionID, "sess-1")
	}
	if ev.DocumentID != "sess-1" {
		t.Errorf("document_id = %q, want session id", ev.DocumentID)
	}
	if ev.UserID != DefaultUserID {
		t.Errorf("user_id = %q, want default", ev.UserID)
	}
	if ev.DataString("session_name", "") != "My Session" {
		t.Errorf("session_name = %q, want %q", ev.DataString("session_name", ""), "My Session")
	}
	if ev.ID == "" {
		t.Error("event id not generated")
	}
	if ev.Timestamp.Location() != time.UTC {
		t.Error("timestamp not UTC")
	}
}

func TestNewPolicyGenerated_OmitsNilTokens(t *testing.T) {
	ev := NewPolicyGenerated("sess-1", "pol-1", "gpt-4", nil, 1.5, "")

	if _, present := ev.Data["tokens_used"]; present {
		t.Error("tokens_used should be absent when nil")
	}

	tokens := 420
	ev = NewPolicyGenerated("sess-1", "pol-1", "gpt-4", &tokens, 1.5, "")
	if got := ev.DataInt("tokens_used"); got == nil || *got != 420 {
		t.Errorf("tokens_used = %v, want 420", got)
	}
}

func TestJSONLRoundTrip(t *testing.T) {
	events := []Event{
		NewSessionCreated("sess-1", "Demo", ""),
		NewPolicyGenerated("sess-1", "pol-1", "gpt-4", nil, 2.25, "alice"),
		NewValidationCompleted("sess-1", "pol-1", false, "syntax error at line 3", 0.4, ""),
	}

	content, err := MarshalJSONL(events)
	if err != nil {
		t.Fatalf("MarshalJSONL() failed: %v", err)
	}
	if got := strings.Count(content, "\n"); got != len(events)-1 {
		t.Errorf("content has %d newlines, want %d", got, len(events)-1)
	}

	decoded, err := UnmarshalJSONL(content)
	if err != nil {
		t.Fatalf("UnmarshalJSONL() failed: %v", err)
	}
	if len(decoded) != len(events) {
		t.Fatalf("decoded %d events, want %d", len(decoded), len(events))
	}
	for i := range events {
		if decoded[i].ID != events[i].ID {
			t.Errorf("event %d id = %q, want %q", i, decoded[i].ID, events[i].ID)
		}
		if decoded[i].Type != events[i].Type {
			t.Errorf("event %d type = %q, want %q", i, decoded[i].Type, events[i].Type)
		}
	}

	// Round-tripped payloads must read back through the typed accessors.
	if decoded[2].DataBool("is_valid", true) {
		t.Error("is_valid should decode to false")
	}
	if decoded[2].DataString("error_message", "") != "syntax error at line 3" {
		t.Errorf("error_message lost in round trip")
	}
}

func TestUnmarshalJSONL_SkipsBlankLines(t *testing.T) {
	ev := NewNotesAdded("sess-1", 12, "")
	content, err := MarshalJSONL([]Event{ev})
	if err != nil {
		t.Fatalf("MarshalJSONL() failed: %v", err)
	}

	decoded, err := UnmarshalJSONL("\n" + content + "\n\n")
	if err != nil {
		t.Fatalf("UnmarshalJSONL() failed: %v", err)
	}
	if len(decoded) != 1 {
		t.Errorf("decoded %d events, want 1", len(decoded))
	}
}

func TestUnmarshalJSONL_MalformedLine(t *testing.T) {
	_, err := UnmarshalJSONL(`{"id":"a"}` + "\n" + `not json`)
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q should name the failing line", err)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"session created", NewSessionCreated("s", "Demo", ""), `Session "Demo" created`},
		{"policy generated", NewPolicyGenerated("s", "p", "gpt-4", nil, 0, ""), "Policy generated using gpt-4 model"},
		{"validation passed", NewValidationCompleted("s", "p", true, "", 0, ""), "Validation passed"},
		{"validation failed", NewValidationCompleted("s", "p", false, "boom", 0, ""), "Validation failed"},
		{"notes", NewNotesAdded("s", 42, ""), "Notes updated (42 chars)"},
		{"unknown type falls back", New("s", TypeTestRun, "", "", nil), "TestRun event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summary(tt.ev); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}
