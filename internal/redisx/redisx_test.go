package redisx

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/shop-orders/internal/clock"
	"github.com/ariefcatur/shop-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := New(addr)
	if err := Ping(context.Background(), client); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStatusCache_RoundTrip(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	cache := NewStatusCache(rdb)
	id := uuid.NewString()
	defer rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, id))

	if _, ok, err := cache.GetStatus(ctx, id); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	want := orders.StatusPayload{
		OrderID: id, OrderNumber: "ORD-1", Status: orders.StatusShipped,
		UpdatedAt: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	if err := cache.SetStatus(ctx, want); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, ok, err := cache.GetStatus(ctx, id)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Status != want.Status || !got.UpdatedAt.Equal(want.UpdatedAt) || got.OrderNumber != want.OrderNumber {
		t.Fatalf("unexpected cached status %+v", got)
	}
	ttl := rdb.TTL(ctx, fmt.Sprintf(KeyOrderStatus, id)).Val()
	if ttl <= 0 || ttl > TTLStatusCache {
		t.Fatalf("unexpected ttl %s", ttl)
	}
}

func TestStatusCache_IgnoresOlderWrite(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	cache := NewStatusCache(rdb)
	id := uuid.NewString()
	defer rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, id))

	t0 := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	newer := orders.StatusPayload{OrderID: id, OrderNumber: "ORD-1", Status: orders.StatusDelivered, UpdatedAt: t0.Add(time.Minute)}
	older := orders.StatusPayload{OrderID: id, OrderNumber: "ORD-1", Status: orders.StatusShipped, UpdatedAt: t0}

	if err := cache.SetStatus(ctx, newer); err != nil {
		t.Fatalf("set newer: %v", err)
	}
	if err := cache.SetStatus(ctx, older); err != nil {
		t.Fatalf("set older: %v", err)
	}
	got, ok, err := cache.GetStatus(ctx, id)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Status != orders.StatusDelivered {
		t.Fatalf("older write replaced newer status: %+v", got)
	}
}

func TestSequence_ConcurrentIncrements(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	// A far-future day keeps the key away from live counters.
	day := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	key := fmt.Sprintf(KeyOrderSequence, day.Format("20060102"))
	rdb.Del(ctx, key)
	defer rdb.Del(ctx, key)

	seq := NewSequence(rdb, clock.NewFixed(day))
	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[uint64]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(ctx)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n || !seen[1] || !seen[n] {
		t.Fatalf("expected values 1..%d, got %d distinct", n, len(seen))
	}
	if ttl := rdb.TTL(ctx, key).Val(); ttl <= 0 {
		t.Fatalf("expected expiry on sequence key, got %s", ttl)
	}
}

func TestDedup_ClaimOnce(t *testing.T) {
	rdb := getRedisClient(t)
	ctx := context.Background()
	d := NewDedup(rdb, "test-"+uuid.NewString())
	id := uuid.NewString()
	defer rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.service, id))

	first, err := d.Claim(ctx, id)
	if err != nil || !first {
		t.Fatalf("expected first claim, got %v %v", first, err)
	}
	second, err := d.Claim(ctx, id)
	if err != nil || second {
		t.Fatalf("expected duplicate, got %v %v", second, err)
	}
	if err := d.Release(ctx, id); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, _ := d.Claim(ctx, id)
	if !again {
		t.Fatalf("expected claim after release")
	}
}
