package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// webhookSeenTTL bounds how long a delivery ID occupies Redis. The
// webhook_events table remains the durable dedup record; Redis only
// short-circuits the common retry burst.
const webhookSeenTTL = 24 * time.Hour

// IdempotencyGuard is the fast-path webhook deduplicator. MarkSeen is
// a Redis SETNX: the first caller for an event ID wins, retries of
// the same delivery are answered without touching MySQL.
type IdempotencyGuard struct {
	rdb *redis.Client
}

func NewIdempotencyGuard(rdb *redis.Client) *IdempotencyGuard {
	return &IdempotencyGuard{rdb: rdb}
}

// MarkSeen returns true if this event ID has not been seen before.
// Redis being down fails open: the database unique index still
// catches the duplicate.
func (g *IdempotencyGuard) MarkSeen(ctx context.Context, eventID string) bool {
	if g == nil || g.rdb == nil {
		return true
	}
	ok, err := g.rdb.SetNX(ctx, "webhook:seen:"+eventID, 1, webhookSeenTTL).Result()
	if err != nil {
		return true
	}
	return ok
}

// Forget releases an event ID so a failed processing attempt can be
// retried by the provider.
func (g *IdempotencyGuard) Forget(ctx context.Context, eventID string) {
	if g == nil || g.rdb == nil {
		return
	}
	g.rdb.Del(ctx, "webhook:seen:"+eventID)
}
