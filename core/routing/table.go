// Package routing maps ride-lifecycle transitions to notification intents.
//
// The mapping is held as a static table keyed by canonical status plus the
// cancelling actor, so synonym handling happens once in ParseRideStatus and
// every branch of the lifecycle stays independently testable. Resolution is a
// pure function: no I/O, no clock, deterministic output for a given event.
package routing

import (
	"strconv"

	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

type recipientRole int

const (
	rolePassenger recipientRole = iota
	roleDriver
)

type routeKey struct {
	status      model.RideStatus
	cancelledBy model.CancelActor
}

type intentTemplate struct {
	role     recipientRole
	typ      string
	priority model.Priority
	title    string
	message  string
}

// routes is total over the canonical status enumeration: statuses without an
// entry (pending, unknown) deliberately resolve to no intent. Cancellations
// key on the actor; a system or unrecorded canceller notifies both parties.
var routes = map[routeKey][]intentTemplate{
	{status: model.StatusAccepted}: {
		{roleDriver, model.TypeBidAccepted, model.PriorityHigh,
			"Bid accepted", "Your bid was accepted. Head to the pickup location."},
	},
	{status: model.StatusDriverAssigned}: {
		{rolePassenger, model.TypeDriverAssigned, model.PriorityHigh,
			"Driver assigned", "A driver has been assigned to your ride."},
	},
	{status: model.StatusDriverOnWay}: {
		{rolePassenger, model.TypeDriverOnWay, model.PriorityHigh,
			"Driver on the way", "Your driver is heading to the pickup location."},
	},
	{status: model.StatusDriverArrived}: {
		{rolePassenger, model.TypeDriverArrived, model.PriorityUrgent,
			"Driver arrived", "Your driver has arrived at the pickup location."},
	},
	{status: model.StatusTripStarted}: {
		{rolePassenger, model.TypeTripStarted, model.PriorityNormal,
			"Trip started", "Your trip is underway."},
	},
	{status: model.StatusTripCompleted}: {
		{rolePassenger, model.TypeTripCompleted, model.PriorityNormal,
			"Trip completed", "Your trip is complete. Thank you for choosing MoversFinder."},
	},
	{status: model.StatusCancelled, cancelledBy: model.CancelledByDriver}: {
		{rolePassenger, model.TypeRideCancelled, model.PriorityHigh,
			"Ride cancelled", "Your driver cancelled the ride."},
	},
	{status: model.StatusCancelled, cancelledBy: model.CancelledByPassenger}: {
		{roleDriver, model.TypeRideCancelled, model.PriorityHigh,
			"Ride cancelled", "The passenger cancelled the ride."},
	},
	{status: model.StatusCancelled, cancelledBy: model.CancelledBySystem}: {
		{rolePassenger, model.TypeRideCancelled, model.PriorityHigh,
			"Ride cancelled", "Your ride was cancelled."},
		{roleDriver, model.TypeRideCancelled, model.PriorityHigh,
			"Ride cancelled", "The ride was cancelled."},
	},
}

// ResolveIntents resolves a ride event to zero, one or two notification
// intents. Events whose canonical status did not change, unknown statuses and
// recipients without an id all resolve to nothing; the caller reports these as
// successful no-ops.
func ResolveIntents(ev model.RideEvent) []model.NotificationIntent {
	status := model.ParseRideStatus(ev.NewStatus)
	if status == model.StatusUnknown || !ev.StatusChanged() {
		return nil
	}

	key := routeKey{status: status}
	if status == model.StatusCancelled {
		key.cancelledBy = model.ParseCancelActor(ev.CancelledBy)
	}

	templates := routes[key]
	intents := make([]model.NotificationIntent, 0, len(templates))
	for _, tmpl := range templates {
		recipient := ev.PassengerID
		action := "/my-rides/" + ev.RideID
		if tmpl.role == roleDriver {
			recipient = ev.DriverID
			action = "/driver/rides/" + ev.RideID
		}
		if recipient == "" {
			continue
		}
		intents = append(intents, model.NotificationIntent{
			RecipientID:     recipient,
			Type:            tmpl.typ,
			Category:        model.CategoryRide,
			Priority:        tmpl.priority,
			Title:           tmpl.title,
			Message:         tmpl.message,
			ActionReference: action,
			RideID:          ev.RideID,
			ContextData:     contextData(ev),
		})
	}
	return intents
}

// contextData builds the opaque payload forwarded to the device. Values are
// strings because the push gateway only accepts string data entries.
func contextData(ev model.RideEvent) map[string]string {
	data := map[string]string{"ride_id": ev.RideID}
	if ev.ServiceType != "" {
		data["service_type"] = ev.ServiceType
	}
	if ev.PickupAddress != "" {
		data["pickup"] = ev.PickupAddress
	}
	if ev.EstimatedFare > 0 {
		data["estimated_fare"] = strconv.FormatFloat(ev.EstimatedFare, 'f', 2, 64)
	}
	if ev.CancelledBy != "" {
		data["cancelled_by"] = ev.CancelledBy
	}
	return data
}
