package test

import (
	"context"
	"testing"
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/infra/dedup"
	"github.com/devsmilefactory/moversfinder-sub010/test/util"
)

func TestRedisGuardAcquire(t *testing.T) {
	util.SkipWithoutDocker(t)
	ctx := context.Background()
	addr, stop := util.StartRedis(ctx, t)
	defer stop()

	guard, err := dedup.NewRedisGuard(ctx, addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("connect guard: %v", err)
	}
	defer func() { _ = guard.Close() }()

	ok, err := guard.Acquire(ctx, "ride-1", "bid_accepted", "drv-1")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	ok, err = guard.Acquire(ctx, "ride-1", "bid_accepted", "drv-1")
	if err != nil {
		t.Fatalf("repeat acquire: %v", err)
	}
	if ok {
		t.Fatal("repeat acquire should be suppressed")
	}

	// Any component of the key makes it a distinct notification.
	for _, c := range []struct{ ride, typ, recipient string }{
		{"ride-2", "bid_accepted", "drv-1"},
		{"ride-1", "trip_started", "drv-1"},
		{"ride-1", "bid_accepted", "drv-2"},
	} {
		ok, err := guard.Acquire(ctx, c.ride, c.typ, c.recipient)
		if err != nil {
			t.Fatalf("acquire %v: %v", c, err)
		}
		if !ok {
			t.Fatalf("acquire %v should succeed", c)
		}
	}
}

func TestRedisGuardExpiry(t *testing.T) {
	util.SkipWithoutDocker(t)
	ctx := context.Background()
	addr, stop := util.StartRedis(ctx, t)
	defer stop()

	guard, err := dedup.NewRedisGuard(ctx, addr, "", 0, time.Second)
	if err != nil {
		t.Fatalf("connect guard: %v", err)
	}
	defer func() { _ = guard.Close() }()

	if ok, err := guard.Acquire(ctx, "ride-ttl", "bid_accepted", "drv-1"); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := guard.Acquire(ctx, "ride-ttl", "bid_accepted", "drv-1"); ok {
		t.Fatal("acquire within ttl should be suppressed")
	}

	time.Sleep(1200 * time.Millisecond)

	if ok, err := guard.Acquire(ctx, "ride-ttl", "bid_accepted", "drv-1"); err != nil || !ok {
		t.Fatalf("acquire after ttl: ok=%v err=%v", ok, err)
	}
}

func TestRedisGuardUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := dedup.NewRedisGuard(ctx, "127.0.0.1:1", "", 0, time.Minute); err == nil {
		t.Fatal("expected connect error for unreachable address")
	}
}
