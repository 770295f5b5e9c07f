package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestSetIdempotency_ClaimsOnceWithTTL(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	key := "receipt:test-claim-once"
	client.Del(ctx, key)

	claims := []bool{true, false, false}
	for i, want := range claims {
		ok, err := adapter.SetIdempotency(ctx, key)
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if ok != want {
			t.Errorf("claim %d: expected %v, got %v", i, want, ok)
		}
	}

	ttl, err := client.TTL(ctx, key).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > idempotencyKeyTTL {
		t.Errorf("expected ttl within (0, %v], got %v", idempotencyKeyTTL, ttl)
	}
}

func TestReleaseIdempotency(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "release-idem-key")

	if ok, _ := adapter.SetIdempotency(ctx, "release-idem-key"); !ok {
		t.Fatal("expected first call to succeed")
	}
	if err := adapter.ReleaseIdempotency(ctx, "release-idem-key"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if ok, _ := adapter.SetIdempotency(ctx, "release-idem-key"); !ok {
		t.Error("expected key to be reusable after release")
	}
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	key := "receipt:test-double-submit"
	client.Del(ctx, key)

	// a client retrying the same receipt submission from many connections
	var claimed atomic.Int32
	var wg sync.WaitGroup
	const submits = 100

	for i := 0; i < submits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(ctx, key)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if ok {
				claimed.Add(1)
			}
		}()
	}

	wg.Wait()

	if got := claimed.Load(); got != 1 {
		t.Errorf("expected exactly one claim, got %d", got)
	}
}

func TestAllow_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	limit := 20
	totalRequests := 50

	// Setup
	client.Del(ctx, rateLimitKeyPrefix+"10.0.0.1")

	var allowed atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.Allow(ctx, "10.0.0.1", limit, time.Minute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				allowed.Add(1)
			}
		}()
	}

	wg.Wait()

	if allowed.Load() != int32(limit) {
		t.Errorf("expected %d allowed, got %d", limit, allowed.Load())
	}

	ttl := client.PTTL(ctx, rateLimitKeyPrefix+"10.0.0.1").Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected window ttl set, got %v", ttl)
	}
}

func TestAllow_WindowResets(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, rateLimitKeyPrefix+"10.0.0.2")

	window := 200 * time.Millisecond
	if ok, _ := adapter.Allow(ctx, "10.0.0.2", 1, window); !ok {
		t.Fatal("expected first hit allowed")
	}
	if ok, _ := adapter.Allow(ctx, "10.0.0.2", 1, window); ok {
		t.Fatal("expected second hit limited")
	}

	time.Sleep(window + 100*time.Millisecond)

	if ok, _ := adapter.Allow(ctx, "10.0.0.2", 1, window); !ok {
		t.Error("expected hit allowed in new window")
	}
}
