package streams

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LagMetrics is a snapshot of the consumer group backlog. Lag is -1 when the
// group does not exist yet or the server does not report it.
type LagMetrics struct {
	Pending    int64         `json:"pending"`
	Lag        int64         `json:"lag"`
	Consumers  int64         `json:"consumers"`
	OldestIdle time.Duration `json:"oldest_idle_ns"`
}

// Stuck reports whether the oldest unacknowledged entry has been idle longer
// than claimIdle, i.e. a sweep should already have taken it over.
func (m LagMetrics) Stuck(claimIdle time.Duration) bool {
	return m.Pending > 0 && claimIdle > 0 && m.OldestIdle > claimIdle
}

// LagMetrics returns the backlog of the consumer's group on stream.
func (c *Consumer) LagMetrics(ctx context.Context, stream string) (LagMetrics, error) {
	if stream == "" {
		return LagMetrics{}, errors.New("stream name is required")
	}
	groups, err := c.client.XInfoGroups(ctx, stream).Result()
	if err != nil {
		return LagMetrics{}, fmt.Errorf("xinfo groups %s: %w", stream, err)
	}
	snap := LagMetrics{Lag: -1}
	for _, g := range groups {
		if g.Name == c.group {
			snap.Pending = g.Pending
			snap.Lag = g.Lag
			snap.Consumers = int64(g.Consumers)
			break
		}
	}
	if snap.Pending == 0 {
		return snap, nil
	}

	// the lowest pending id stands in for the longest idle entry
	oldest, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  c.group,
		Start:  "-",
		End:    "+",
		Count:  1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return LagMetrics{}, fmt.Errorf("xpending %s: %w", stream, err)
	}
	if len(oldest) > 0 {
		snap.OldestIdle = oldest[0].Idle
	}
	return snap, nil
}
