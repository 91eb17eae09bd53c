// Package ratelimit throttles experiment submissions per client.
// The in-memory backend keeps one token bucket per client key; the Redis
// backend shares a sliding window across instances.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPerMinute matches the submission limit of the hosted deployment.
const DefaultPerMinute = 10

// Limiter decides whether a request from the given client key may proceed.
// retryAfter is only meaningful when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, retryAfter time.Duration, err error)
}

// InMemory implements per-client token buckets for single-instance
// deployments. Buckets refill continuously at perMinute/60 tokens per
// second with a burst of perMinute.
type InMemory struct {
	perMinute int

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewInMemory(perMinute int) *InMemory {
	if perMinute < 0 {
		perMinute = DefaultPerMinute
	}
	return &InMemory{
		perMinute: perMinute,
		clients:   make(map[string]*client),
	}
}

func (l *InMemory) Allow(ctx context.Context, key string) (bool, int, time.Duration, error) {
	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute)}
		l.clients[key] = c
	}
	c.lastSeen = time.Now()
	l.mu.Unlock()

	if c.limiter.Allow() {
		remaining := int(c.limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		return true, remaining, 0, nil
	}

	// Peek at the next token without consuming it to size Retry-After.
	res := c.limiter.Reserve()
	ok = res.OK()
	retryAfter := res.Delay()
	res.Cancel()
	if !ok {
		// A zero limit never refills; report the window length instead
		// of an infinite delay.
		retryAfter = time.Minute
	}
	return false, 0, retryAfter, nil
}

// Purge drops buckets idle longer than maxIdle so the client map does not
// grow without bound.
func (l *InMemory) Purge(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

// PurgeLoop runs Purge on the interval until the context is canceled.
func (l *InMemory) PurgeLoop(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Purge(maxIdle)
		}
	}
}
