// Package session defines the policy session aggregate and its
// persistence.
//
// A Session carries requirements text, generated policy versions,
// validation results, and free-form notes. Exactly one policy is
// current at a time; AddPolicy demotes the rest. Manager persists
// sessions to a storage.Store under "sessions/{id}/", with the
// descriptor in session.json and policies and validation results as
// individual files.
package session
