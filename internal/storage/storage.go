package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Object is a stored blob with its metadata.
type Object struct {
	Key          string
	Content      string
	ContentType  string
	Size         int64
	LastModified time.Time
	Metadata     map[string]string
}

// ObjectInfo is a lightweight listing entry. Content is not loaded.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is the minimal blob-storage contract the session engine depends on.
//
// Implementations must be safe for concurrent use. Put overwrites any
// existing object under the same key.
type Store interface {
	// Get retrieves an object. Returns a CodeNotFound error if the key
	// does not exist.
	Get(ctx context.Context, key string) (Object, error)

	// Put stores an object, overwriting any previous content.
	// Metadata may be nil; backends that cannot persist metadata drop it.
	Put(ctx context.Context, key, content, contentType string, metadata map[string]string) error

	// List returns info for all objects whose key starts with prefix,
	// ordered by key ascending.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is present under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases backend resources.
	Close() error
}

// ErrorCode categorizes storage failures.
type ErrorCode string

const (
	// CodeNotFound indicates the requested object does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodePermission indicates the backend denied access.
	CodePermission ErrorCode = "PERMISSION"

	// CodeConnection indicates the backend could not be reached or opened.
	CodeConnection ErrorCode = "CONNECTION"

	// CodeQuota indicates the backend is out of space.
	CodeQuota ErrorCode = "QUOTA"

	// CodeIntegrity indicates stored data failed an internal consistency check.
	CodeIntegrity ErrorCode = "INTEGRITY"
)

// Error is the structured error type returned by all Store implementations.
type Error struct {
	Code ErrorCode
	Key  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s: %s: %v", e.Code, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Code, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewNotFoundError builds a CodeNotFound error for key.
func NewNotFoundError(key string) *Error {
	return &Error{Code: CodeNotFound, Key: key, Err: errors.New("object not found")}
}

// IsNotFound reports whether err is a storage error with CodeNotFound.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == CodeNotFound
}

// IsPermission reports whether err is a storage error with CodePermission.
func IsPermission(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == CodePermission
}
