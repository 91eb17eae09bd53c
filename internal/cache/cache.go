// Package cache keeps the dashboard aggregate warm between requests.
// The stats query walks the full experiment history while dashboards
// poll it on an interval, so a short TTL absorbs nearly all of that
// read load. Run outcomes themselves are never cached; every generation
// unit is a real sample.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/promptlab/promptlab/internal/store"
)

// StatsKey is the cache key for the dashboard aggregate.
const StatsKey = "promptlab:dashboard:stats"

// DefaultTTL bounds how stale the dashboard may get.
const DefaultTTL = 30 * time.Second

// Cache stores the dashboard aggregate between refreshes.
type Cache interface {
	Get(ctx context.Context, key string) (*store.DashboardStats, bool)
	Set(ctx context.Context, key string, stats *store.DashboardStats, ttl time.Duration) error
}

// InMemory caches stats for a single instance.
type InMemory struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

type item struct {
	stats     *store.DashboardStats
	expiresAt time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		items: make(map[string]item),
		now:   time.Now,
	}
}

func (c *InMemory) Get(ctx context.Context, key string) (*store.DashboardStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || c.now().After(it.expiresAt) {
		return nil, false
	}
	return it.stats, true
}

func (c *InMemory) Set(ctx context.Context, key string, stats *store.DashboardStats, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item{stats: stats, expiresAt: c.now().Add(ttl)}
	return nil
}

// Purge drops expired entries.
func (c *InMemory) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, key)
		}
	}
}

// PurgeLoop runs Purge on an interval until ctx is done.
func (c *InMemory) PurgeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}

// Redis shares the cached aggregate across instances.
type Redis struct {
	client *redis.Client
}

func NewRedis(redisURL string) (*Redis, error) {
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

	return &Redis{client: client}, nil
}

func (c *Redis) Get(ctx context.Context, key string) (*store.DashboardStats, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var stats store.DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false
	}
	return &stats, true
}

func (c *Redis) Set(ctx context.Context, key string, stats *store.DashboardStats, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}
