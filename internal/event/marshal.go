package event

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Batch is a transient, ordered collection of events used to amortize
// storage writes. It is never persisted as its own concept; its events are
// serialized as newline-delimited JSON records under one key per session.
type Batch struct {
	ID        string
	CreatedAt time.Time
	Events    []Event
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{
		ID:        uuid.Must(uuid.NewV7()).String(),
		CreatedAt: time.Now().UTC(),
	}
}

// Add appends an event to the batch.
func (b *Batch) Add(ev Event) {
	b.Events = append(b.Events, ev)
}

// Len returns the number of events in the batch.
func (b *Batch) Len() int { return len(b.Events) }

// MarshalJSONL serializes events as newline-delimited JSON, one event per
// line, preserving order. Timestamps are RFC 3339 UTC.
func MarshalJSONL(events []Event) (string, error) {
	var buf bytes.Buffer
	for i, ev := range events {
		line, err := json.Marshal(ev)
		if err != nil {
			return "", fmt.Errorf("marshal event %s: %w", ev.ID, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(line)
	}
	return buf.String(), nil
}

// UnmarshalJSONL parses newline-delimited JSON event records. Blank lines
// are skipped; a malformed line fails the whole parse with its line number.
func UnmarshalJSONL(content string) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, fmt.Errorf("parse event line %d: %w", lineNo, err)
		}
		if ev.Data == nil {
			ev.Data = map[string]any{}
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event lines: %w", err)
	}
	return events, nil
}
