// Package generate drives the generate-validate-retry loop for policy
// sessions.
//
// A Generator produces policy text from requirements; the Runner
// chains generation and validation, feeding validation errors back
// into retry prompts up to a bounded attempt count. Generation
// failures are terminal for a call; only validation failures are
// retried. Every public entry point returns a structured result, never
// a bare error.
package generate
