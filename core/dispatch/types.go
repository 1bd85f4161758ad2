package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

// ErrRideNotFound is returned by RideDirectory implementations when no ride
// exists for the requested id.
var ErrRideNotFound = errors.New("dispatch: ride not found")

// RecordStore persists notification records and their append-only delivery
// log. Implementations live under infra/store.
type RecordStore interface {
	CreateNotification(ctx context.Context, rec *model.NotificationRecord) error
	MarkDelivered(ctx context.Context, notificationID string, at time.Time) error
	MarkFailed(ctx context.Context, notificationID string, cause string) error
	AppendDeliveryLog(ctx context.Context, entry model.DeliveryLogEntry) error
}

// RideDirectory resolves ride rows when an event does not carry enough data
// to target a broadcast.
type RideDirectory interface {
	Ride(ctx context.Context, rideID string) (model.Ride, error)
}

// CandidateFinder returns providers near a pickup point, unfiltered.
type CandidateFinder interface {
	FindNearby(ctx context.Context, origin model.Coordinates, radiusKm float64, serviceType string) ([]model.NearbyCandidate, error)
}

// DedupGuard suppresses repeat notifications for the same ride, type and
// recipient. Acquire returns false when an identical notification was already
// dispatched recently. Errors are treated as "proceed": a broken guard must
// not silence the pipeline.
type DedupGuard interface {
	Acquire(ctx context.Context, rideID, notificationType, recipientID string) (bool, error)
}

// RecipientResult is the per-recipient outcome of one dispatch.
type RecipientResult struct {
	RecipientID    string
	NotificationID string
	Type           string
	Delivered      bool
	// Skipped means the recipient has no registered device token; the
	// notification record exists but nothing was pushed.
	Skipped bool
	// Duplicate means the dedup guard suppressed the notification entirely.
	Duplicate bool
	Err       error
}

// DispatchResult aggregates one fan-out.
type DispatchResult struct {
	RideID    string
	Attempted int
	Notified  int
	Results   []RecipientResult
}

// BroadcastResult reports the discovery funnel and the fan-out of a new ride
// request broadcast.
type BroadcastResult struct {
	RideID      string
	TotalNearby int
	Eligible    int
	Dispatch    DispatchResult
}
