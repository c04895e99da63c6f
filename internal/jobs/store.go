// Package jobs tracks asynchronous extractions: a Redis-backed job record per
// request and a stream processor that runs them.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/webscraper/internal/browseruse"
	"github.com/mohammad-safakhou/webscraper/internal/helpers"
	"github.com/redis/go-redis/v9"
)

var ErrJobNotFound = errors.New("job not found")

const (
	jobKeyPrefix = "extraction:job:"
	urlKeyPrefix = "extraction:url:"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the job has an outcome.
func (s Status) Terminal() bool { return s == StatusSucceeded || s == StatusFailed }

type Job struct {
	ID        string                  `json:"id"`
	URL       string                  `json:"url"`
	Request   string                  `json:"request"`
	Status    Status                  `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
	TaskID    string                  `json:"task_id,omitempty"`
	Attempts  int                     `json:"attempts,omitempty"`
	Outcome   string                  `json:"outcome,omitempty"`
	IsError   bool                    `json:"is_error"`
	Result    *browseruse.OutcomeView `json:"result,omitempty"`
}

// Store keeps one JSON value per job plus a pointer from each canonical URL
// to its most recent job. Both expire after ttl.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Create records a queued job for req and makes it the latest job for its URL.
func (s *Store) Create(ctx context.Context, req browseruse.ExtractionRequest) (Job, error) {
	now := s.now()
	job := Job{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Request:   req.Request,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("marshal job: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, raw, s.ttl)
	if fp, err := helpers.URLFingerprint(req.URL); err == nil {
		pipe.Set(ctx, urlKeyPrefix+fp, job.ID, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return Job{}, fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return job, nil
}

func (s *Store) Get(ctx context.Context, id string) (Job, error) {
	raw, err := s.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Job{}, ErrJobNotFound
		}
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return Job{}, fmt.Errorf("decode job %s: %w", id, err)
	}
	return job, nil
}

// LatestForURL returns the most recent job created for the canonical form of rawURL.
func (s *Store) LatestForURL(ctx context.Context, rawURL string) (Job, error) {
	fp, err := helpers.URLFingerprint(rawURL)
	if err != nil {
		return Job{}, ErrJobNotFound
	}
	id, err := s.client.Get(ctx, urlKeyPrefix+fp).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Job{}, ErrJobNotFound
		}
		return Job{}, fmt.Errorf("lookup url index: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Store) MarkRunning(ctx context.Context, id string) (Job, error) {
	return s.update(ctx, id, func(job *Job) {
		job.Status = StatusRunning
	})
}

// Complete stores the outcome and moves the job to succeeded or failed.
func (s *Store) Complete(ctx context.Context, id string, out browseruse.Outcome) (Job, error) {
	view := out.View()
	return s.update(ctx, id, func(job *Job) {
		job.Status = StatusSucceeded
		if out.Failed() {
			job.Status = StatusFailed
		}
		job.TaskID = out.TaskID
		job.Attempts = out.Attempts
		job.Outcome = browseruse.OutcomeLabel(out.Err)
		job.IsError = out.Failed()
		job.Result = &view
	})
}

var discardScript = redis.NewScript(`
if redis.call("GET", KEYS[2]) == ARGV[1] then
	redis.call("DEL", KEYS[2])
end
return redis.call("DEL", KEYS[1])
`)

// Discard removes a job that never reached the stream. The URL index is
// cleared only while it still points at this job.
func (s *Store) Discard(ctx context.Context, job Job) error {
	keys := []string{jobKeyPrefix + job.ID, urlKeyPrefix}
	if fp, err := helpers.URLFingerprint(job.URL); err == nil {
		keys[1] = urlKeyPrefix + fp
	}
	if err := discardScript.Run(ctx, s.client, keys, job.ID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("discard job %s: %w", job.ID, err)
	}
	return nil
}

// update rewrites the job with its remaining TTL preserved. The write only
// lands if the key still exists, so an expired job is never resurrected
// without a TTL.
func (s *Store) update(ctx context.Context, id string, mutate func(*Job)) (Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	mutate(&job)
	job.UpdatedAt = s.now()
	raw, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("marshal job: %w", err)
	}
	err = s.client.SetArgs(ctx, jobKeyPrefix+id, raw, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("save job %s: %w", id, err)
	}
	return job, nil
}
