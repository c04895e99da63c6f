package jobs

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/webscraper/internal/browseruse"
	"github.com/mohammad-safakhou/webscraper/internal/queue/streams"
)

// Publisher enqueues extraction requests.
type Publisher interface {
	PublishExtraction(ctx context.Context, stream string, req streams.ExtractionRequested) (string, error)
}

// Records is the part of Store the producer side needs.
type Records interface {
	Create(ctx context.Context, req browseruse.ExtractionRequest) (Job, error)
	Discard(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	LatestForURL(ctx context.Context, rawURL string) (Job, error)
}

// Service is the producer side used by the HTTP API: it records a job and
// publishes the request for a worker.
type Service struct {
	store  Records
	pub    Publisher
	stream string
}

func NewService(store Records, pub Publisher, stream string) *Service {
	return &Service{store: store, pub: pub, stream: stream}
}

// Enqueue validates req, creates a queued job and publishes it. Invalid
// requests return a *browseruse.ValidationError and create nothing. A job whose
// publish fails is discarded so it does not linger as queued.
func (s *Service) Enqueue(ctx context.Context, req browseruse.ExtractionRequest) (Job, error) {
	if _, err := req.Validate(); err != nil {
		return Job{}, err
	}
	job, err := s.store.Create(ctx, req)
	if err != nil {
		return Job{}, err
	}
	if _, err := s.pub.PublishExtraction(ctx, s.stream, streams.ExtractionRequested{
		JobID:   job.ID,
		URL:     job.URL,
		Request: job.Request,
	}); err != nil {
		if derr := s.store.Discard(context.WithoutCancel(ctx), job); derr != nil {
			return Job{}, fmt.Errorf("publish job %s: %w (discard: %v)", job.ID, err, derr)
		}
		return Job{}, fmt.Errorf("publish job %s: %w", job.ID, err)
	}
	return job, nil
}

func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) LatestForURL(ctx context.Context, rawURL string) (Job, error) {
	return s.store.LatestForURL(ctx, rawURL)
}
