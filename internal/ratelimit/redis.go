package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements a sliding-window limiter shared by all instances.
// Each client key holds a sorted set of request timestamps trimmed to the
// last minute.
type Redis struct {
	client    *redis.Client
	perMinute int
}

func NewRedis(redisURL string, perMinute int) (*Redis, error) {
	if perMinute < 0 {
		perMinute = DefaultPerMinute
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Redis{client: client, perMinute: perMinute}, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, int, time.Duration, error) {
	redisKey := "ratelimit:" + key
	now := time.Now()
	windowStart := now.Add(-time.Minute)

	pipe := r.client.Pipeline()

	pipe.ZRemRangeByScore(ctx, redisKey, "0", formatTime(windowStart))

	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})

	countCmd := pipe.ZCard(ctx, redisKey)

	pipe.Expire(ctx, redisKey, time.Minute)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, 0, err
	}

	count := int(countCmd.Val())
	remaining := r.perMinute - count
	if remaining < 0 {
		remaining = 0
	}

	if count > r.perMinute {
		return false, remaining, time.Minute, nil
	}

	return true, remaining, 0, nil
}

func formatTime(t time.Time) string {
	return fmt.Sprintf("%d", t.UnixNano())
}

// Ping reports whether the backing Redis is reachable, for readiness
// probes.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
