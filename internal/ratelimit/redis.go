package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements the sliding-window contract against a shared Redis
// store using a per-key sorted set: members are request timestamps (as
// nanosecond scores), expired entries are trimmed on each call. On backend
// unavailability it fails open (allows the request) and logs, per spec §4.3.
type RedisLimiter struct {
	client *redis.Client
	logger *slog.Logger
	max    int
	window time.Duration
}

// NewRedisLimiter creates a limiter backed by the given Redis client.
func NewRedisLimiter(client *redis.Client, logger *slog.Logger, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, logger: logger, max: max, window: window}
}

// Allow admits or rejects one request for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	cutoff := now.Add(-l.window)
	redisKey := fmt.Sprintf("ratelimit:{%s}", key)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff.UnixNano(), 10))
	card := pipe.ZCard(ctx, redisKey)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("rate limiter: redis unavailable, failing open", "error", err)
		return Result{Allowed: true, Remaining: l.max, Limit: l.max}, nil
	}

	count := int(card.Val())
	if count >= l.max {
		retryAfter := 1
		if vals := oldest.Val(); len(vals) > 0 {
			oldestAt := time.Unix(0, int64(vals[0].Score))
			retryAfter = int(math.Ceil(oldestAt.Sub(cutoff).Seconds())) + 1
		}
		return Result{
			Allowed:     false,
			RetryAfterS: retryAfter,
			Remaining:   0,
			Limit:       l.max,
		}, nil
	}

	member := strconv.FormatInt(now.UnixNano(), 10)
	addPipe := l.client.TxPipeline()
	addPipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	addPipe.Expire(ctx, redisKey, l.window)
	if _, err := addPipe.Exec(ctx); err != nil {
		l.logger.Warn("rate limiter: redis unavailable on record, failing open", "error", err)
		return Result{Allowed: true, Remaining: l.max, Limit: l.max}, nil
	}

	return Result{
		Allowed:   true,
		Remaining: l.max - count - 1,
		Limit:     l.max,
	}, nil
}
