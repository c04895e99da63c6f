package browseruse

import (
	"errors"
)

const (
	notesUnexpectedShape = "Browser Use returned an unexpected output shape."
	notesStopped         = "Browser Use task stopped before completion (possibly timeout, interruption, or site blocking)."
	notesTimedOut        = "Browser Use task timed out before completion."
	notesCancelled       = "Extraction cancelled before the Browser Use task completed."
)

// Outcome is the single value every extraction path returns. A nil Err is
// the success variant; otherwise Err classifies the failure and Result
// still carries a well-formed payload.
type Outcome struct {
	Result   ExtractionResult
	Err      error
	TaskID   string
	Attempts int
}

// Failed reports the error flag.
func (o Outcome) Failed() bool { return o.Err != nil }

// OutcomeView is the JSON shape handed to tool callers and HTTP clients.
type OutcomeView struct {
	ExtractionResult
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// View flattens the outcome. Stopped and timed-out tasks only carry notes;
// request, submission and polling failures also carry error/details.
func (o Outcome) View() OutcomeView {
	view := OutcomeView{ExtractionResult: o.Result}
	if view.Data == nil {
		view.Data = []map[string]any{}
	}
	var (
		verr *ValidationError
		serr *SubmissionFailure
		perr *PollingFailure
	)
	switch {
	case o.Err == nil:
	case errors.As(o.Err, &verr):
		view.Error = verr.Error()
	case errors.As(o.Err, &serr):
		view.Error = serr.Error()
		view.Details = serr.Body
	case errors.As(o.Err, &perr):
		view.Error = perr.Error()
		view.Details = perr.Body
	case errors.Is(o.Err, ErrCancelled):
		view.Error = o.Err.Error()
	}
	return view
}

func successOutcome(result ExtractionResult) Outcome {
	return Outcome{Result: result}
}

func failureOutcome(req ExtractionRequest, err error, notes string) Outcome {
	return Outcome{Result: emptyResult(req, notes), Err: err}
}
