package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/webscraper/internal/browseruse"
	"github.com/mohammad-safakhou/webscraper/internal/queue/streams"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultClaimIdle = 2 * time.Minute
	readRetryDelay   = time.Second
)

// Runner runs one extraction end to end.
type Runner interface {
	Run(ctx context.Context, req browseruse.ExtractionRequest) browseruse.Outcome
}

// JobStore captures the store methods required by the processor.
type JobStore interface {
	Get(ctx context.Context, id string) (Job, error)
	MarkRunning(ctx context.Context, id string) (Job, error)
	Complete(ctx context.Context, id string, out browseruse.Outcome) (Job, error)
}

// Source is the consumer-group view of the request stream.
type Source interface {
	EnsureGroup(ctx context.Context, stream string) error
	Read(ctx context.Context, stream string, opts ...streams.ConsumerOption) ([]streams.Message, error)
	Ack(ctx context.Context, stream string, ids ...string) error
	AutoClaim(ctx context.Context, stream string, minIdle time.Duration, start string, count int64) ([]streams.Message, string, error)
	LagMetrics(ctx context.Context, stream string) (streams.LagMetrics, error)
}

type ProcessorConfig struct {
	Stream      string
	Concurrency int
	Block       time.Duration
	// ClaimIdle is how long an entry may sit unacknowledged before it is taken over.
	ClaimIdle time.Duration
	// ReclaimEvery is how often a running worker sweeps the pending list. Defaults to ClaimIdle.
	ReclaimEvery time.Duration
}

// Processor consumes extraction.requested entries and runs up to Concurrency
// extractions at once.
type Processor struct {
	logger  zerolog.Logger
	store   JobStore
	source  Source
	runner  Runner
	cfg     ProcessorConfig
	metrics *Metrics
}

func NewProcessor(logger zerolog.Logger, st JobStore, src Source, runner Runner, cfg ProcessorConfig, metrics *Metrics) *Processor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.ClaimIdle <= 0 {
		cfg.ClaimIdle = defaultClaimIdle
	}
	if cfg.ReclaimEvery <= 0 {
		cfg.ReclaimEvery = cfg.ClaimIdle
	}
	return &Processor{
		logger:  logger.With().Str("component", "worker").Str("stream", cfg.Stream).Logger(),
		store:   st,
		source:  src,
		runner:  runner,
		cfg:     cfg,
		metrics: metrics,
	}
}

// Start blocks, processing entries until ctx is cancelled. Entries left
// unacknowledged, by a previous worker or by a store error in this one, are
// reclaimed at startup and then every ReclaimEvery.
func (p *Processor) Start(ctx context.Context) error {
	if err := p.source.EnsureGroup(ctx, p.cfg.Stream); err != nil {
		return fmt.Errorf("ensure group: %w", err)
	}
	p.logger.Info().Int("concurrency", p.cfg.Concurrency).Msg("worker processor starting")

	p.sweep(ctx)
	nextSweep := time.Now().Add(p.cfg.ReclaimEvery)

	for {
		if !time.Now().Before(nextSweep) {
			p.sweep(ctx)
			nextSweep = time.Now().Add(p.cfg.ReclaimEvery)
		}
		if ctx.Err() != nil {
			p.logger.Info().Msg("worker processor stopping")
			return nil
		}
		msgs, err := p.source.Read(ctx, p.cfg.Stream,
			streams.WithBlock(p.cfg.Block),
			streams.WithCount(int64(p.cfg.Concurrency)))
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Error().Err(err).Msg("read stream")
			sleep(ctx, readRetryDelay)
			continue
		}
		if len(msgs) > 0 {
			p.handleBatch(ctx, msgs)
		}
		p.sampleLag(ctx)
	}
}

func (p *Processor) sweep(ctx context.Context) {
	if err := p.reclaim(ctx); err != nil && ctx.Err() == nil {
		p.logger.Warn().Err(err).Msg("reclaim pending entries failed")
	}
}

func (p *Processor) reclaim(ctx context.Context) error {
	start := "0-0"
	for {
		msgs, next, err := p.source.AutoClaim(ctx, p.cfg.Stream, p.cfg.ClaimIdle, start, int64(p.cfg.Concurrency))
		if err != nil {
			return err
		}
		if len(msgs) > 0 {
			p.logger.Info().Int("count", len(msgs)).Msg("reclaimed pending entries")
			p.handleBatch(ctx, msgs)
		}
		if next == "" || next == "0-0" || ctx.Err() != nil {
			return nil
		}
		start = next
	}
}

func (p *Processor) handleBatch(ctx context.Context, msgs []streams.Message) {
	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for _, msg := range msgs {
		g.Go(func() error {
			p.handle(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
}

// handle acks every entry it has finished with. An entry whose extraction was
// cut short by shutdown stays pending for reclaim.
func (p *Processor) handle(ctx context.Context, msg streams.Message) {
	log := p.logger.With().Str("message_id", msg.ID).Logger()
	result, ack := p.process(ctx, msg, log)
	p.metrics.observe(result)
	if !ack {
		return
	}
	if err := p.source.Ack(context.WithoutCancel(ctx), p.cfg.Stream, msg.ID); err != nil {
		log.Warn().Err(err).Msg("ack failed")
	}
}

func (p *Processor) process(ctx context.Context, msg streams.Message, log zerolog.Logger) (result string, ack bool) {
	if msg.Envelope.EventType != streams.EventExtractionRequested {
		log.Warn().Str("event_type", msg.Envelope.EventType).Msg("skipping unexpected event")
		return "skipped", true
	}
	var payload streams.ExtractionRequested
	if err := msg.Envelope.Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("dropping undecodable payload")
		return "dropped", true
	}
	log = log.With().Str("job_id", payload.JobID).Logger()

	job, err := p.store.Get(ctx, payload.JobID)
	switch {
	case errors.Is(err, ErrJobNotFound):
		log.Warn().Msg("job expired or unknown; dropping")
		return "dropped", true
	case err != nil:
		log.Error().Err(err).Msg("load job")
		return "store_error", false
	case job.Status.Terminal():
		log.Debug().Str("status", string(job.Status)).Msg("job already complete")
		return "duplicate", true
	}

	if _, err := p.store.MarkRunning(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("mark running")
		return "store_error", false
	}

	out := p.runner.Run(ctx, browseruse.ExtractionRequest{URL: payload.URL, Request: payload.Request})
	if errors.Is(out.Err, browseruse.ErrCancelled) && ctx.Err() != nil {
		log.Info().Msg("extraction interrupted by shutdown; left pending")
		return "interrupted", false
	}

	if _, err := p.store.Complete(context.WithoutCancel(ctx), job.ID, out); err != nil {
		log.Error().Err(err).Msg("complete job")
		return "store_error", false
	}
	return browseruse.OutcomeLabel(out.Err), true
}

func (p *Processor) sampleLag(ctx context.Context) {
	lag, err := p.source.LagMetrics(ctx, p.cfg.Stream)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Debug().Err(err).Msg("sample lag")
		}
		return
	}
	// a sweep runs every ReclaimEvery, so anything older than both is not being retried
	if lag.Stuck(p.cfg.ClaimIdle + p.cfg.ReclaimEvery) {
		p.logger.Warn().
			Int64("pending", lag.Pending).
			Dur("oldest_idle", lag.OldestIdle).
			Msg("pending entries are not being reclaimed")
	}
	p.metrics.setLag(lag)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
