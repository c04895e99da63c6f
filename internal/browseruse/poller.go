package browseruse

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 180
)

// StatusChecker reports the status of a remote task.
type StatusChecker interface {
	TaskStatus(ctx context.Context, taskID string) (TaskStatusResponse, error)
}

// PollConfig bounds the polling loop.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// Normalize fills unset values with the defaults (2s x 180).
func (c PollConfig) Normalize() PollConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// Poller waits for a remote task to reach a terminal state.
type Poller struct {
	checker StatusChecker
	cfg     PollConfig
	logger  zerolog.Logger
}

// NewPoller constructs a Poller.
func NewPoller(checker StatusChecker, cfg PollConfig, logger zerolog.Logger) *Poller {
	return &Poller{checker: checker, cfg: cfg.Normalize(), logger: logger}
}

// PollUntilTerminal polls taskID sequentially. Each attempt waits the full
// interval before its status call. A failed status call ends the loop at
// once; only non-terminal statuses are retried.
func (p *Poller) PollUntilTerminal(ctx context.Context, taskID string, req ExtractionRequest) Outcome {
	log := p.logger.With().Str("task_id", taskID).Logger()
	unknown := make(map[TaskStatus]struct{})

	out := p.poll(ctx, taskID, req, log, unknown)
	out.TaskID = taskID
	return out
}

func (p *Poller) poll(ctx context.Context, taskID string, req ExtractionRequest, log zerolog.Logger, unknown map[TaskStatus]struct{}) Outcome {
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := sleep(ctx, p.cfg.Interval); err != nil {
			out := failureOutcome(req, ErrCancelled, notesCancelled)
			out.Attempts = attempt - 1
			return out
		}

		status, err := p.checker.TaskStatus(ctx, taskID)
		if err != nil {
			var out Outcome
			if ctx.Err() != nil {
				out = failureOutcome(req, ErrCancelled, notesCancelled)
			} else {
				log.Warn().Err(err).Int("attempt", attempt).Msg("status check failed")
				out = failureOutcome(req, err, err.Error())
			}
			out.Attempts = attempt
			return out
		}

		switch status.Status {
		case StatusFinished:
			result := Normalize(ParseOutput(status.Output), req.URL, req.Request)
			out := successOutcome(result)
			out.Attempts = attempt
			return out
		case StatusStopped:
			out := failureOutcome(req, ErrTaskStopped, notesStopped)
			out.Attempts = attempt
			return out
		}

		if !status.Status.Known() {
			if _, seen := unknown[status.Status]; !seen {
				unknown[status.Status] = struct{}{}
				log.Warn().Str("status", string(status.Status)).Int("attempt", attempt).Msg("unrecognized task status, treating as pending")
			}
		} else {
			log.Debug().Str("status", string(status.Status)).Int("attempt", attempt).Msg("task pending")
		}
	}
	out := failureOutcome(req, ErrTaskTimedOut, notesTimedOut)
	out.Attempts = p.cfg.MaxAttempts
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
