package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestDedupKey(t *testing.T) {
	got := dedupKey("ride-1", "driver_arrived", "pass-1")
	want := "notify:dedup:ride-1:driver_arrived:pass-1"
	if got != want {
		t.Errorf("dedupKey = %q, want %q", got, want)
	}
}

func TestNewRedisGuardWithClientDefaultsTTL(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer func() { _ = rdb.Close() }()

	g := NewRedisGuardWithClient(rdb, 0)
	if g.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", g.ttl, DefaultTTL)
	}

	g = NewRedisGuardWithClient(rdb, 30*time.Minute)
	if g.ttl != 30*time.Minute {
		t.Errorf("ttl = %v, want 30m", g.ttl)
	}
}

func TestNewRedisGuardRequiresAddress(t *testing.T) {
	if _, err := NewRedisGuard(context.Background(), "", "", 0, 0); err == nil {
		t.Fatal("expected error for empty address")
	}
}
