package dedup

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryGuardSuppressesRepeats(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	ctx := context.Background()

	ok, err := g.Acquire(ctx, "ride-1", "driver_arrived", "pass-1")
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = g.Acquire(ctx, "ride-1", "driver_arrived", "pass-1")
	if err != nil || ok {
		t.Fatalf("repeat acquire: ok=%v err=%v", ok, err)
	}
	// A different recipient is a different slot.
	ok, err = g.Acquire(ctx, "ride-1", "driver_arrived", "drv-1")
	if err != nil || !ok {
		t.Fatalf("other recipient: ok=%v err=%v", ok, err)
	}
}

func TestMemoryGuardExpiry(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	now := time.Unix(1000, 0)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := g.Acquire(ctx, "ride-2", "trip_started", "pass-2"); !ok {
		t.Fatal("first acquire suppressed")
	}
	now = now.Add(59 * time.Second)
	if ok, _ := g.Acquire(ctx, "ride-2", "trip_started", "pass-2"); ok {
		t.Fatal("claim expired too early")
	}
	now = now.Add(2 * time.Second)
	if ok, _ := g.Acquire(ctx, "ride-2", "trip_started", "pass-2"); !ok {
		t.Fatal("claim survived its ttl")
	}
}

func TestMemoryGuardPurgesExpiredClaims(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	now := time.Unix(5000, 0)
	g.now = func() time.Time { return now }
	for i := 0; i < purgeThreshold; i++ {
		g.claims[fmt.Sprintf("stale-%d", i)] = now.Add(-time.Second)
	}

	if ok, _ := g.Acquire(context.Background(), "ride-3", "ride_cancelled", "pass-3"); !ok {
		t.Fatal("acquire suppressed")
	}
	if len(g.claims) != 1 {
		t.Fatalf("expected stale claims purged, %d left", len(g.claims))
	}
}

func TestNewMemoryGuardDefaultsTTL(t *testing.T) {
	if g := NewMemoryGuard(0); g.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", g.ttl, DefaultTTL)
	}
}
