package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestInMemory_Allow(t *testing.T) {
	rl := NewInMemory(3)
	ctx := context.Background()

	allowed, remaining, _, err := rl.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("expected allowed to be true")
	}
	if remaining != 2 {
		t.Errorf("expected remaining 2, got %d", remaining)
	}

	rl.Allow(ctx, "10.0.0.1")
	rl.Allow(ctx, "10.0.0.1")

	allowed, remaining, retryAfter, err := rl.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("expected allowed to be false after burst exhausted")
	}
	if remaining != 0 {
		t.Errorf("expected remaining 0, got %d", remaining)
	}
	if retryAfter <= 0 || retryAfter > 21*time.Second {
		t.Errorf("expected retryAfter within one refill interval, got %v", retryAfter)
	}
}

func TestInMemory_DifferentClients(t *testing.T) {
	rl := NewInMemory(1)
	ctx := context.Background()

	rl.Allow(ctx, "10.0.0.1")

	allowed, _, _, _ := rl.Allow(ctx, "10.0.0.1")
	if allowed {
		t.Error("first client should be rate limited")
	}

	allowed, _, _, _ = rl.Allow(ctx, "10.0.0.2")
	if !allowed {
		t.Error("second client should not be rate limited")
	}
}

func TestInMemory_RetryAfterSingleToken(t *testing.T) {
	rl := NewInMemory(1)
	ctx := context.Background()

	rl.Allow(ctx, "10.0.0.1")
	allowed, _, retryAfter, _ := rl.Allow(ctx, "10.0.0.1")
	if allowed {
		t.Fatal("expected denial after single token consumed")
	}

	// One token per minute, so the next token is most of a minute away.
	if retryAfter < 55*time.Second || retryAfter > time.Minute {
		t.Errorf("retryAfter should be close to a minute, got %v", retryAfter)
	}
}

func TestInMemory_RemainingCount(t *testing.T) {
	limit := 5
	rl := NewInMemory(limit)
	ctx := context.Background()

	for i := 0; i < limit; i++ {
		allowed, remaining, _, _ := rl.Allow(ctx, "10.0.0.1")
		expectedRemaining := limit - i - 1

		if !allowed {
			t.Errorf("request %d should be allowed", i)
		}
		if remaining != expectedRemaining {
			t.Errorf("request %d: remaining = %d, want %d", i, remaining, expectedRemaining)
		}
	}

	allowed, remaining, _, _ := rl.Allow(ctx, "10.0.0.1")
	if allowed {
		t.Error("request after burst should be denied")
	}
	if remaining != 0 {
		t.Errorf("remaining after burst = %d, want 0", remaining)
	}
}

func TestInMemory_ConcurrentAccess(t *testing.T) {
	rl := NewInMemory(100)
	ctx := context.Background()

	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 20; j++ {
				rl.Allow(ctx, "10.0.0.1")
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	// 200 attempts against a burst of 100.
	allowed, _, _, _ := rl.Allow(ctx, "10.0.0.1")
	if allowed {
		t.Error("should be rate limited after concurrent access")
	}
}

func TestInMemory_ZeroLimit(t *testing.T) {
	rl := NewInMemory(0)
	ctx := context.Background()

	allowed, remaining, retryAfter, _ := rl.Allow(ctx, "10.0.0.1")
	if allowed {
		t.Error("zero limit should deny all requests")
	}
	if remaining != 0 {
		t.Errorf("remaining with zero limit = %d, want 0", remaining)
	}
	if retryAfter != time.Minute {
		t.Errorf("zero limit retryAfter = %v, want one minute", retryAfter)
	}
}

func TestInMemory_PurgeResetsIdleClients(t *testing.T) {
	rl := NewInMemory(1)
	ctx := context.Background()

	rl.Allow(ctx, "10.0.0.1")
	if allowed, _, _, _ := rl.Allow(ctx, "10.0.0.1"); allowed {
		t.Fatal("expected exhausted bucket")
	}

	rl.Purge(0)

	if allowed, _, _, _ := rl.Allow(ctx, "10.0.0.1"); !allowed {
		t.Error("expected fresh bucket after purge")
	}
}
