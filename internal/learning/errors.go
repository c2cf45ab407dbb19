package learning

import "errors"

// Error taxonomy. Callers wrap these with context and test with errors.Is.
var (
	// ErrValidation marks missing or malformed request fields.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced path, task or assignment that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExternalService marks a failed or unparseable AI / content API call.
	// It is always retryable from the user's point of view.
	ErrExternalService = errors.New("external service failed")
	// ErrInvalidScore marks a score outside [0,100].
	ErrInvalidScore = errors.New("invalid score")
	// ErrConflict marks a write that no longer fits the current state, such as
	// grading a task that is already completed or a paused path.
	ErrConflict = errors.New("conflict")
	// ErrAttemptsExhausted marks an assignment with no submissions left.
	ErrAttemptsExhausted = errors.New("no attempts remaining")
)
