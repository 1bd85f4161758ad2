package model

import "strings"

// RideStatus identifies a canonical stage of the ride lifecycle.
type RideStatus int

const (
	StatusUnknown RideStatus = iota
	StatusPending
	StatusAccepted
	StatusDriverAssigned
	StatusDriverOnWay
	StatusDriverArrived
	StatusTripStarted
	StatusTripCompleted
	StatusCancelled
)

// statusAliases maps every accepted wire spelling to its canonical status.
// Upstream systems emit both driver_on_way/driver_on_the_way and the
// trip_started/in_progress, trip_completed/completed pairs.
var statusAliases = map[string]RideStatus{
	"pending":           StatusPending,
	"searching":         StatusPending,
	"accepted":          StatusAccepted,
	"driver_assigned":   StatusDriverAssigned,
	"driver_on_way":     StatusDriverOnWay,
	"driver_on_the_way": StatusDriverOnWay,
	"driver_arrived":    StatusDriverArrived,
	"trip_started":      StatusTripStarted,
	"in_progress":       StatusTripStarted,
	"trip_completed":    StatusTripCompleted,
	"completed":         StatusTripCompleted,
	"cancelled":         StatusCancelled,
	"canceled":          StatusCancelled,
}

// ParseRideStatus canonicalizes a wire status string. Unrecognized values map
// to StatusUnknown rather than an error so the routing table stays total.
func ParseRideStatus(s string) RideStatus {
	if st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	return StatusUnknown
}

// String returns the canonical wire spelling of the status.
func (s RideStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusDriverAssigned:
		return "driver_assigned"
	case StatusDriverOnWay:
		return "driver_on_way"
	case StatusDriverArrived:
		return "driver_arrived"
	case StatusTripStarted:
		return "trip_started"
	case StatusTripCompleted:
		return "trip_completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CancelActor identifies who cancelled a ride.
type CancelActor int

const (
	// CancelledBySystem covers platform-initiated cancellations and events
	// where the canceller was not recorded.
	CancelledBySystem CancelActor = iota
	CancelledByDriver
	CancelledByPassenger
)

// ParseCancelActor maps the wire cancelled_by field. Empty and unknown values
// are treated as system cancellations.
func ParseCancelActor(s string) CancelActor {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "driver":
		return CancelledByDriver
	case "passenger":
		return CancelledByPassenger
	default:
		return CancelledBySystem
	}
}

// String returns a human-readable representation of the actor.
func (a CancelActor) String() string {
	switch a {
	case CancelledByDriver:
		return "driver"
	case CancelledByPassenger:
		return "passenger"
	default:
		return "system"
	}
}

// RideEvent is one ride-lifecycle transition as delivered by the upstream
// event source. It is consumed once per dispatch and never persisted here.
type RideEvent struct {
	RideID        string  `json:"ride_id"`
	OldStatus     string  `json:"old_status,omitempty"`
	NewStatus     string  `json:"new_status"`
	PassengerID   string  `json:"passenger_id,omitempty"`
	DriverID      string  `json:"driver_id,omitempty"`
	ServiceType   string  `json:"service_type,omitempty"`
	PickupAddress string  `json:"pickup_address,omitempty"`
	PickupLat     float64 `json:"pickup_lat,omitempty"`
	PickupLng     float64 `json:"pickup_lng,omitempty"`
	CancelledBy   string  `json:"cancelled_by,omitempty"`
	EstimatedFare float64 `json:"estimated_fare,omitempty"`
}

// StatusChanged reports whether the transition actually changes the canonical
// status. Alias flips such as completed -> trip_completed do not count.
func (e RideEvent) StatusChanged() bool {
	return ParseRideStatus(e.OldStatus) != ParseRideStatus(e.NewStatus)
}

// Ride is the subset of a ride row the dispatcher reads: enough to target a
// broadcast and fill notification content. Rides are owned by the data store.
type Ride struct {
	ID            string
	PassengerID   string
	DriverID      string
	Status        string
	ServiceType   string
	PickupAddress string
	PickupLat     float64
	PickupLng     float64
	EstimatedFare float64
}
