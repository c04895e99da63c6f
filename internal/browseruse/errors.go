package browseruse

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskStopped is reported when the remote task reached "stopped".
	ErrTaskStopped = errors.New("browser use task stopped")
	// ErrTaskTimedOut is reported when the poll budget ran out.
	ErrTaskTimedOut = errors.New("browser use task timed out")
	// ErrCancelled is reported when the caller context ended first.
	ErrCancelled = errors.New("extraction cancelled")
)

// ValidationError is returned for malformed input before any remote call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmissionFailure is returned when the task-creation call fails.
type SubmissionFailure struct {
	Status int
	Body   string
	Reason string
	Err    error
}

func (e *SubmissionFailure) Error() string {
	switch {
	case e.Reason != "":
		return e.Reason
	case e.Err != nil:
		return fmt.Sprintf("Browser Use task creation failed: %v", e.Err)
	default:
		return fmt.Sprintf("Browser Use task creation failed (%d)", e.Status)
	}
}

func (e *SubmissionFailure) Unwrap() error { return e.Err }

// PollingFailure is returned when a status check fails at the transport or HTTP level.
type PollingFailure struct {
	TaskID string
	Status int
	Body   string
	Err    error
}

func (e *PollingFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Browser Use polling failed: %v", e.Err)
	}
	return fmt.Sprintf("Browser Use polling failed (%d)", e.Status)
}

func (e *PollingFailure) Unwrap() error { return e.Err }

// OutcomeLabel classifies err for metrics and logs.
func OutcomeLabel(err error) string {
	var (
		verr *ValidationError
		serr *SubmissionFailure
		perr *PollingFailure
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &verr):
		return "validation_error"
	case errors.As(err, &serr):
		return "submission_failure"
	case errors.As(err, &perr):
		return "polling_failure"
	case errors.Is(err, ErrTaskStopped):
		return "stopped"
	case errors.Is(err, ErrTaskTimedOut):
		return "timeout"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "error"
	}
}
