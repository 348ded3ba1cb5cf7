package sessions

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation names a session that does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidState is returned by RegenerateLastReply when the session does
	// not end in a user message followed by an assistant reply.
	ErrInvalidState = errors.New("invalid session state")
)

// PersistenceError wraps a Load or Save failure. The store only logs these.
type PersistenceError struct {
	Op  string // "load", "save"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
