package model

import "fmt"

// RideRecord mirrors the rides-table row shape carried inside status-change
// payloads. Field names follow the upstream column names, so this is the one
// place where user_id means the passenger.
type RideRecord struct {
	ID            string  `json:"id"`
	RideStatus    string  `json:"ride_status"`
	UserID        string  `json:"user_id,omitempty"`
	DriverID      string  `json:"driver_id,omitempty"`
	CancelledBy   string  `json:"cancelled_by,omitempty"`
	ServiceType   string  `json:"service_type,omitempty"`
	PickupAddress string  `json:"pickup_address,omitempty"`
	PickupLat     float64 `json:"pickup_lat,omitempty"`
	PickupLng     float64 `json:"pickup_lng,omitempty"`
	EstimatedFare float64 `json:"estimated_fare,omitempty"`
}

// StatusChangePayload is the record/old_record envelope emitted by the rides
// table trigger and relayed over HTTP and the broker bridges.
type StatusChangePayload struct {
	Record    RideRecord `json:"record"`
	OldRecord RideRecord `json:"old_record"`
}

// Validate checks the minimum fields a dispatch needs.
func (p StatusChangePayload) Validate() error {
	if p.Record.ID == "" {
		return fmt.Errorf("status change: missing record.id")
	}
	if p.Record.RideStatus == "" {
		return fmt.Errorf("status change: missing record.ride_status")
	}
	return nil
}

// Event flattens the envelope into the RideEvent the dispatcher consumes.
func (p StatusChangePayload) Event() RideEvent {
	return RideEvent{
		RideID:        p.Record.ID,
		OldStatus:     p.OldRecord.RideStatus,
		NewStatus:     p.Record.RideStatus,
		PassengerID:   p.Record.UserID,
		DriverID:      p.Record.DriverID,
		ServiceType:   p.Record.ServiceType,
		PickupAddress: p.Record.PickupAddress,
		PickupLat:     p.Record.PickupLat,
		PickupLng:     p.Record.PickupLng,
		CancelledBy:   p.Record.CancelledBy,
		EstimatedFare: p.Record.EstimatedFare,
	}
}

// BroadcastRequest is the new-ride payload accepted by the broadcast entry
// point. Coordinates and radius are optional: missing coordinates are loaded
// from the ride row, a zero radius selects the configured default.
type BroadcastRequest struct {
	RideID            string       `json:"rideId"`
	PickupCoordinates *Coordinates `json:"pickupCoordinates,omitempty"`
	RadiusKm          float64      `json:"radiusKm,omitempty"`
}

// Validate checks the minimum fields a broadcast needs.
func (r BroadcastRequest) Validate() error {
	if r.RideID == "" {
		return fmt.Errorf("broadcast: missing rideId")
	}
	return nil
}

// Event converts the request into the RideEvent consumed by the dispatcher.
// The status pair marks the ride as newly pending so broadcast gating treats
// it like a fresh creation.
func (r BroadcastRequest) Event() RideEvent {
	ev := RideEvent{RideID: r.RideID, NewStatus: StatusPending.String()}
	if r.PickupCoordinates != nil {
		ev.PickupLat = r.PickupCoordinates.Lat
		ev.PickupLng = r.PickupCoordinates.Lng
	}
	return ev
}
