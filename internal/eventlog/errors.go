package eventlog

import (
	"errors"
	"fmt"
)

// StorageError wraps a failure to read or write an event stream.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("event storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ReplayError reports a failure to fold an event stream into a session.
type ReplayError struct {
	SessionID string
	Reason    string
}

func (e *ReplayError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("replay: %s", e.Reason)
	}
	return fmt.Sprintf("replay session %s: %s", e.SessionID, e.Reason)
}

// IsReplayError reports whether err is a ReplayError.
func IsReplayError(err error) bool {
	var re *ReplayError
	return errors.As(err, &re)
}
