package reconcile

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when another process holds the run lock for
// the same owner scope.
var ErrRunInProgress = errors.New("reconciliation run already in progress")

// MatchingKeyError means an attribution record had no usable URL to join on.
type MatchingKeyError struct {
	RecordID string
	URL      string
}

func (e *MatchingKeyError) Error() string {
	return fmt.Sprintf("attribution record %s has no usable url (%q)", e.RecordID, e.URL)
}

// PersistenceError means a merged signal could not be written.
type PersistenceError struct {
	RecordID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting merged signal for %s: %v", e.RecordID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
