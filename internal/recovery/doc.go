// Package recovery detects and repairs corrupted sessions.
//
// AnalyzeIntegrity inspects a session's files and event stream and
// produces issues with severities and suggested fixes. Recover walks a
// fallback chain until something works: event replay first, then
// best-effort salvage of surviving files, then a minimal stub session,
// so recovery always terminates with a usable session. Backups archive
// every file under a session's prefix plus its event stream into one
// timestamped object under "backups/".
//
// Recover never returns a Go error; every outcome, including total
// strategy failure, is reported in the Result.
package recovery
