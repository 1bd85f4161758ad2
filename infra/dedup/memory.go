package dedup

import (
	"context"
	"sync"
	"time"
)

// purgeThreshold bounds how many claims accumulate before expired entries are
// swept out during Acquire.
const purgeThreshold = 4096

// MemoryGuard implements dispatch.DedupGuard with a process-local map. It
// serves single-instance deployments where a Redis round trip buys nothing.
// Suppression state is lost on restart.
type MemoryGuard struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	claims map[string]time.Time
}

// NewMemoryGuard creates a guard holding claims for ttl. A non-positive ttl
// selects DefaultTTL.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{ttl: ttl, now: time.Now, claims: make(map[string]time.Time)}
}

// Acquire claims the dedup slot for one notification, returning false while
// an earlier claim is still live.
func (g *MemoryGuard) Acquire(_ context.Context, rideID, notificationType, recipientID string) (bool, error) {
	key := dedupKey(rideID, notificationType, recipientID)
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if exp, ok := g.claims[key]; ok && now.Before(exp) {
		return false, nil
	}
	if len(g.claims) >= purgeThreshold {
		for k, exp := range g.claims {
			if !now.Before(exp) {
				delete(g.claims, k)
			}
		}
	}
	g.claims[key] = now.Add(g.ttl)
	return true, nil
}

// Close exists for symmetry with the Redis guard.
func (g *MemoryGuard) Close() error { return nil }
