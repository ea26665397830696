package utils

import (
	"errors"
	"fmt"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrNotFound is the sentinel for lookups of unknown identifiers, in both
// the active set and the recycle bin.
var ErrNotFound = errors.New("not found")

// ErrTaskNotFound returns an error for when a task is not found.
func ErrTaskNotFound(id string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("task %w: %s", ErrNotFound, id),
		Suggestion: "Check the identifier or use 'gridtask list' to see all tasks",
	}
}

// ErrTombstoneNotFound returns an error for when a recycle-bin entry is not
// found. Restoring past the retention window hits this, never a crash.
func ErrTombstoneNotFound(id string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("deleted task %w: %s", ErrNotFound, id),
		Suggestion: "Deleted tasks are only recoverable for 24 hours; use 'gridtask trash' to see what is left",
	}
}

// ErrSubtaskNotFound returns an error for when a subtask is not found on
// its parent.
func ErrSubtaskNotFound(taskID, subID string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("subtask %w: %s on task %s", ErrNotFound, subID, taskID),
		Suggestion: "Use 'gridtask show' on the parent task to list its subtasks",
	}
}

// ErrNotSignedIn returns an error when a remote operation requires an
// authenticated identity.
func ErrNotSignedIn() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("not signed in"),
		Suggestion: "Run 'gridtask signin' to connect this device to your account",
	}
}

// ErrSyncNotConfigured returns an error when no remote store is configured.
func ErrSyncNotConfigured() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("sync is not configured"),
		Suggestion: "Set remote.url in your config file",
	}
}

// ErrInvalidPosition returns an error for a grid coordinate outside [0,100].
func ErrInvalidPosition(axis string, v float64) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid %s: %.1f", axis, v),
		Suggestion: "Grid positions must be between 0 and 100",
	}
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date: %s", dateStr),
		Suggestion: "Use date format YYYY-MM-DD (e.g., 2026-09-15)",
	}
}

// ErrCredentialsNotFound returns an error when no auth token is stored.
func ErrCredentialsNotFound(account string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("no stored token for account %s", account),
		Suggestion: "Run 'gridtask signin' to store a token, or set GRIDTASK_TOKEN",
	}
}
