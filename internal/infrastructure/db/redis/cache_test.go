package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/taskboard/taskboard-api/internal/core/ports"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client), srv
}

func TestCache_GetMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Get(context.Background(), "task:missing")
	if !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "task:1", []byte(`{"id":"1"}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := cache.Get(ctx, "task:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"id":"1"}` {
		t.Fatalf("unexpected value: %s", got)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "task:stats:all", []byte("x"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	srv.FastForward(2 * time.Minute)

	_, err := cache.Get(ctx, "task:stats:all")
	if !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("expired entry must miss, got %v", err)
	}
}

func TestCache_Delete(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "task:1", []byte("x"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := cache.Delete(ctx, "task:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := cache.Get(ctx, "task:1"); !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("deleted entry must miss, got %v", err)
	}

	// Deleting a missing key is not an error.
	if err := cache.Delete(ctx, "task:gone"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestCache_DeleteByPattern(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	entries := map[string]string{
		"tasks:list:page=1": "a",
		"tasks:list:page=2": "b",
		"task:1":            "keep",
		"task:stats:all":    "also-keep",
	}
	for k, v := range entries {
		if err := cache.Set(ctx, k, []byte(v), time.Minute); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	if err := cache.DeleteByPattern(ctx, "tasks:list:*"); err != nil {
		t.Fatalf("delete by pattern: %v", err)
	}

	for _, gone := range []string{"tasks:list:page=1", "tasks:list:page=2"} {
		if _, err := cache.Get(ctx, gone); !errors.Is(err, ports.ErrCacheMiss) {
			t.Fatalf("%s should be gone, got %v", gone, err)
		}
	}
	for _, kept := range []string{"task:1", "task:stats:all"} {
		if _, err := cache.Get(ctx, kept); err != nil {
			t.Fatalf("%s should survive: %v", kept, err)
		}
	}
}

func TestCache_DeleteByPattern_NoMatches(t *testing.T) {
	cache, _ := newTestCache(t)

	if err := cache.DeleteByPattern(context.Background(), "tasks:list:*"); err != nil {
		t.Fatalf("empty pattern delete must succeed: %v", err)
	}
}

func TestCache_Clear(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_ = cache.Set(ctx, "task:1", []byte("x"), time.Minute)
	_ = cache.Set(ctx, "user:1", []byte("y"), time.Minute)

	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, k := range []string{"task:1", "user:1"} {
		if _, err := cache.Get(ctx, k); !errors.Is(err, ports.ErrCacheMiss) {
			t.Fatalf("%s should be gone after clear, got %v", k, err)
		}
	}
}

func TestCache_ServerDown(t *testing.T) {
	cache, srv := newTestCache(t)
	srv.Close()

	_, err := cache.Get(context.Background(), "task:1")
	if err == nil || errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("expected a transport error, got %v", err)
	}
}
