package browseruse

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Extractor runs the full submit-then-poll flow and never fails past its
// own boundary: every path returns an Outcome.
type Extractor struct {
	api     TaskAPI
	poller  *Poller
	logger  zerolog.Logger
	metrics *Metrics
}

// NewExtractor wires an extractor around api.
func NewExtractor(api TaskAPI, cfg PollConfig, logger zerolog.Logger, metrics *Metrics) *Extractor {
	logger = logger.With().Str("component", "browseruse").Logger()
	return &Extractor{
		api:     api,
		poller:  NewPoller(api, cfg, logger),
		logger:  logger,
		metrics: metrics,
	}
}

// Run validates req, submits the task and polls it to a terminal state.
func (e *Extractor) Run(ctx context.Context, req ExtractionRequest) Outcome {
	start := time.Now()
	out := e.run(ctx, req)
	elapsed := time.Since(start)
	e.metrics.Observe(out, elapsed)

	ev := e.logger.Info()
	if out.Failed() {
		ev = e.logger.Warn().Err(out.Err)
	}
	ev.Str("url", req.URL).
		Str("task_id", out.TaskID).
		Str("outcome", OutcomeLabel(out.Err)).
		Int("attempts", out.Attempts).
		Int("rows", len(out.Result.Data)).
		Dur("elapsed", elapsed).
		Msg("extraction finished")
	return out
}

func (e *Extractor) run(ctx context.Context, req ExtractionRequest) Outcome {
	if _, err := req.Validate(); err != nil {
		return failureOutcome(req, err, err.Error())
	}
	taskID, err := e.api.SubmitTask(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return failureOutcome(req, ErrCancelled, notesCancelled)
		}
		return failureOutcome(req, err, err.Error())
	}
	e.logger.Debug().Str("task_id", taskID).Str("url", req.URL).Msg("task submitted")
	return e.poller.PollUntilTerminal(ctx, taskID, req)
}
