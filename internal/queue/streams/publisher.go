package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher appends extraction events to a Redis stream. Payloads are checked
// against the registry before anything is written.
type Publisher struct {
	client   *redis.Client
	registry *SchemaRegistry
	maxLen   int64
	now      func() time.Time
}

type PublisherOption func(*Publisher)

// WithMaxLen trims the stream to roughly n entries on every write. Zero keeps
// the stream unbounded.
func WithMaxLen(n int64) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.maxLen = n
		}
	}
}

// NewPublisher creates a Publisher. registry may be nil to skip payload checks.
func NewPublisher(client *redis.Client, registry *SchemaRegistry, opts ...PublisherOption) *Publisher {
	p := &Publisher{client: client, registry: registry, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishExtraction enqueues one extraction request as its first attempt.
func (p *Publisher) PublishExtraction(ctx context.Context, stream string, req ExtractionRequested) (string, error) {
	if req.JobID == "" {
		return "", errors.New("extraction request has no job id")
	}
	return p.publish(ctx, stream, EventExtractionRequested, VersionV1, req)
}

func (p *Publisher) publish(ctx context.Context, stream, eventType, version string, payload any) (string, error) {
	if stream == "" {
		return "", errors.New("stream name is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	if p.registry != nil {
		if err := p.registry.Validate(eventType, version, data); err != nil {
			return "", err
		}
	}
	env := Envelope{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		OccurredAt:     p.now(),
		Attempt:        1,
		PayloadVersion: version,
		Data:           data,
	}
	raw, err := env.Marshal()
	if err != nil {
		return "", err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: map[string]any{envelopeField: raw},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("publish %s to %s: %w", eventType, stream, err)
	}
	return id, nil
}
