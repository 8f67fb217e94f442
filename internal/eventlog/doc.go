// Package eventlog persists session events as an append-only stream and
// rebuilds session state from them.
//
// Events accumulate in an in-memory batch and are flushed to the store
// when the batch reaches its size or age limit, or on an explicit Flush.
// Each session's events live under one key, "events/{id}_events.jsonl",
// as newline-delimited JSON. Flushing merges the pending batch with the
// stored stream and drops duplicate event ids, so a retried flush never
// duplicates events.
//
// Replay folds a session's events in timestamp order into a Session.
// Policy and requirements content is not carried in events; replay
// restores structure and ordering, not content.
package eventlog
