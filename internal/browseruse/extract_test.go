package browseruse

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func newTestExtractor(api TaskAPI, reg prometheus.Registerer) *Extractor {
	return NewExtractor(api, PollConfig{Interval: time.Millisecond, MaxAttempts: 5}, zerolog.Nop(), NewMetrics(reg))
}

func TestExtractorRejectsInvalidInputWithoutRemoteCall(t *testing.T) {
	api := &fakeAPI{submitID: "t1"}
	out := newTestExtractor(api, nil).Run(context.Background(), ExtractionRequest{URL: "example.com", Request: "x"})

	var verr *ValidationError
	if !errors.As(out.Err, &verr) || verr.Field != "url" {
		t.Fatalf("expected url ValidationError, got %v", out.Err)
	}
	if api.submits != 0 || api.pollCount() != 0 {
		t.Fatalf("expected no remote calls, got submits=%d polls=%d", api.submits, api.pollCount())
	}
	if out.Result.URL != "example.com" || out.Result.Data == nil || out.View().Error == "" {
		t.Fatalf("expected well-formed failure result, got %+v", out.View())
	}
}

func TestExtractorSubmissionFailure(t *testing.T) {
	api := &fakeAPI{submitErr: &SubmissionFailure{Status: 429, Body: "slow down"}}
	out := newTestExtractor(api, nil).Run(context.Background(), testReq)

	var sf *SubmissionFailure
	if !errors.As(out.Err, &sf) {
		t.Fatalf("expected SubmissionFailure, got %v", out.Err)
	}
	if api.pollCount() != 0 {
		t.Fatalf("expected no polling after failed submission")
	}
	view := out.View()
	if view.Error != "Browser Use task creation failed (429)" || view.Details != "slow down" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if len(view.Data) != 0 || view.URL != testReq.URL {
		t.Fatalf("expected canonical result shape, got %+v", view)
	}
}

func TestExtractorSuccessRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	api := &fakeAPI{submitID: "t9", steps: []step{
		{resp: TaskStatusResponse{Status: "created"}},
		{resp: TaskStatusResponse{Status: StatusFinished, Output: json.RawMessage(`{"data":[{"a":1},{"a":2}]}`)}},
	}}
	e := newTestExtractor(api, reg)
	out := e.Run(context.Background(), testReq)

	if out.Failed() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if out.TaskID != "t9" || out.Attempts != 2 || len(out.Result.Data) != 2 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if got := testutil.ToFloat64(e.metrics.extractions.WithLabelValues("success")); got != 1 {
		t.Fatalf("success counter = %v", got)
	}

	stopped := &fakeAPI{submitID: "t10", steps: []step{{resp: TaskStatusResponse{Status: StatusStopped}}}}
	e.api = stopped
	e.poller = NewPoller(stopped, PollConfig{Interval: time.Millisecond, MaxAttempts: 5}, zerolog.Nop())
	out = e.Run(context.Background(), testReq)
	if !out.Failed() {
		t.Fatalf("expected failure outcome")
	}
	if got := testutil.ToFloat64(e.metrics.extractions.WithLabelValues("stopped")); got != 1 {
		t.Fatalf("stopped counter = %v", got)
	}
	if view := out.View(); view.Error != "" || view.NotesText() == "" {
		t.Fatalf("stopped view should carry notes only, got %+v", view)
	}
}

func TestExtractorCancelledDuringSubmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	api := &fakeAPI{submitErr: &SubmissionFailure{Err: context.Canceled}}
	out := newTestExtractor(api, nil).Run(ctx, testReq)
	if !errors.Is(out.Err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", out.Err)
	}
}

func TestOutcomeLabel(t *testing.T) {
	tests := map[string]error{
		"success":            nil,
		"validation_error":   &ValidationError{Field: "url", Reason: "x"},
		"submission_failure": &SubmissionFailure{Status: 500},
		"polling_failure":    &PollingFailure{Status: 500},
		"stopped":            ErrTaskStopped,
		"timeout":            ErrTaskTimedOut,
		"cancelled":          ErrCancelled,
		"error":              errors.New("other"),
	}
	for want, err := range tests {
		if got := OutcomeLabel(err); got != want {
			t.Fatalf("OutcomeLabel(%v) = %q, want %q", err, got, want)
		}
	}
}
