// Package event defines the immutable facts recorded in a session's
// audit log.
//
// An Event is created once and never mutated. The Data payload is an open
// string-keyed map rather than per-type structs so the on-disk JSONL format
// stays stable as event types are added; the typed factory constructors
// (NewSessionCreated, NewPolicyGenerated, ...) are the supported way to
// build well-formed payloads.
//
// Events deliberately exclude large content such as full policy text or
// requirements documents. They are an ordering and audit trail; content
// durability is the session store's job.
package event
