// Package validate wraps external policy validators with caching,
// history, and bounded concurrency.
//
// Validation failures are data, not errors: every path, including a
// missing or timed-out validator binary, produces a Result with
// IsValid false and an error message. Results are cached per
// (session, content hash) with a TTL, every attempt is recorded in a
// capped in-memory history, and external validator calls share a
// bounded worker pool.
package validate
