package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/local/easypdf/internal/metrics"
)

const (
	breakerKeyPrefix = "easypdf:breaker:"
	failureWindow    = 5 * time.Minute
)

// Breaker tracks consecutive failures of an external tool (ghostscript,
// libreoffice) in Redis and holds a cooldown after repeated failures so a
// broken tool does not burn every worker slot. With no Redis client the
// breaker is a no-op.
type Breaker struct {
	rdb       *redis.Client
	threshold int64
	base      time.Duration
	max       time.Duration
}

// NewBreaker returns a breaker over rdb. A nil client disables it.
func NewBreaker(rdb *redis.Client, threshold int, base, max time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if base <= 0 {
		base = 30 * time.Second
	}
	if max < base {
		max = 10 * base
	}
	return &Breaker{rdb: rdb, threshold: int64(threshold), base: base, max: max}
}

// IsOpen reports whether the tool is in cooldown.
func (b *Breaker) IsOpen(ctx context.Context, tool string) bool {
	if b == nil || b.rdb == nil {
		return false
	}
	n, err := b.rdb.Exists(ctx, breakerKeyPrefix+tool+":open").Result()
	if err != nil {
		log.Warn().Err(err).Str("tool", tool).Msg("breaker check failed, allowing request")
		return false
	}
	return n > 0
}

// RecordFailure counts a tool failure and trips the breaker after
// tripThreshold failures inside the window. The cooldown doubles with
// each consecutive trip, capped at maxCooldown.
func (b *Breaker) RecordFailure(ctx context.Context, tool string) {
	if b == nil || b.rdb == nil {
		return
	}
	failKey := breakerKeyPrefix + tool + ":failures"
	count, err := b.rdb.Incr(ctx, failKey).Result()
	if err != nil {
		log.Warn().Err(err).Str("tool", tool).Msg("breaker failure count update failed")
		return
	}
	if count == 1 {
		b.rdb.Expire(ctx, failKey, failureWindow)
	}
	if count < b.threshold {
		return
	}

	trips, _ := b.rdb.Incr(ctx, breakerKeyPrefix+tool+":trips").Result()
	cooldown := b.base
	for i := int64(1); i < trips; i++ {
		cooldown *= 2
		if cooldown >= b.max {
			cooldown = b.max
			break
		}
	}
	if err := b.rdb.Set(ctx, breakerKeyPrefix+tool+":open", "1", cooldown).Err(); err != nil {
		log.Warn().Err(err).Str("tool", tool).Msg("breaker open failed")
		return
	}
	b.rdb.Del(ctx, failKey)
	metrics.BreakerOpened(tool)
	log.Warn().Str("tool", tool).Dur("cooldown", cooldown).Int64("trips", trips).
		Msg("tool breaker opened")
}

// RecordSuccess clears the failure window and trip counter.
func (b *Breaker) RecordSuccess(ctx context.Context, tool string) {
	if b == nil || b.rdb == nil {
		return
	}
	removed, err := b.rdb.Del(ctx, breakerKeyPrefix+tool+":failures", breakerKeyPrefix+tool+":trips").Result()
	if err != nil {
		log.Warn().Err(err).Str("tool", tool).Msg("breaker reset failed")
		return
	}
	if removed > 0 {
		metrics.BreakerClosed(tool)
	}
}

// ConnectRedis dials Redis using the given URL. Empty URL means the
// breaker stays disabled.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
