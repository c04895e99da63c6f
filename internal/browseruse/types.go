package browseruse

import (
	"encoding/json"
	"strings"

	"github.com/mohammad-safakhou/webscraper/internal/helpers"
)

// ExtractionRequest is the caller input: a page to open and what to pull out of it.
type ExtractionRequest struct {
	URL     string `json:"url"`
	Request string `json:"request"`
}

// Validate checks the request and returns the hostname the remote browser is scoped to.
func (r ExtractionRequest) Validate() (string, error) {
	u, err := helpers.AbsoluteURL(r.URL)
	if err != nil {
		return "", &ValidationError{Field: "url", Reason: err.Error()}
	}
	if strings.TrimSpace(r.Request) == "" {
		return "", &ValidationError{Field: "request", Reason: "must not be empty"}
	}
	return u.Hostname(), nil
}

// ExtractionResult is the canonical output shape. Data is never nil.
type ExtractionResult struct {
	URL     string           `json:"url"`
	Request string           `json:"request"`
	Data    []map[string]any `json:"data"`
	Notes   *string          `json:"notes,omitempty"`
}

// NotesText returns the notes or an empty string when absent.
func (r ExtractionResult) NotesText() string {
	if r.Notes == nil {
		return ""
	}
	return *r.Notes
}

func emptyResult(req ExtractionRequest, notes string) ExtractionResult {
	return ExtractionResult{
		URL:     req.URL,
		Request: req.Request,
		Data:    []map[string]any{},
		Notes:   &notes,
	}
}

// TaskStatus is the remote-reported lifecycle state of a task.
type TaskStatus string

const (
	StatusFinished TaskStatus = "finished"
	StatusStopped  TaskStatus = "stopped"
)

// non-terminal states the service is known to report
var pendingStatuses = map[TaskStatus]struct{}{
	"":        {},
	"created": {},
	"started": {},
	"running": {},
	"paused":  {},
}

// Terminal reports whether no further progress will occur.
func (s TaskStatus) Terminal() bool {
	return s == StatusFinished || s == StatusStopped
}

// Known reports whether the status is one the service is documented to return.
func (s TaskStatus) Known() bool {
	if s.Terminal() {
		return true
	}
	_, ok := pendingStatuses[s]
	return ok
}

// TaskStatusResponse mirrors GET /tasks/{id}/status.
type TaskStatusResponse struct {
	Status TaskStatus      `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
}
