// Package storage provides key/value blob storage for session data and
// event streams.
//
// The Store interface is deliberately small: Get, Put, List, Delete and an
// existence check. Keys are slash-separated paths ("sessions/{id}/session.json",
// "events/{id}_events.jsonl") and content is text. Two backends are provided:
//
//   - Dir: plain files under a base directory. Zero setup, human-inspectable,
//     no metadata persistence.
//   - SQLite: a single-table blob store with WAL mode. Durable metadata,
//     single-file deployment.
//
// All errors from backends are *storage.Error values with a Code that callers
// can branch on via IsNotFound and friends. A missing object is always
// CodeNotFound regardless of backend.
package storage
