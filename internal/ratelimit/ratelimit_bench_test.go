package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func BenchmarkInMemory_Allow(b *testing.B) {
	rl := NewInMemory(10000)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rl.Allow(ctx, "10.0.0.1")
	}
}

func BenchmarkInMemory_Allow_Parallel(b *testing.B) {
	rl := NewInMemory(10000)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			rl.Allow(ctx, "10.0.0.1")
		}
	})
}

func BenchmarkInMemory_MultipleClients(b *testing.B) {
	rl := NewInMemory(1000)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := fmt.Sprintf("10.0.0.%d", i%100)
			rl.Allow(ctx, key)
			i++
		}
	})
}

func BenchmarkInMemory_HighContention(b *testing.B) {
	rl := NewInMemory(10000)
	ctx := context.Background()

	var wg sync.WaitGroup
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		wg.Add(10)
		for j := 0; j < 10; j++ {
			go func() {
				defer wg.Done()
				rl.Allow(ctx, "10.0.0.1")
			}()
		}
		wg.Wait()
	}
}
