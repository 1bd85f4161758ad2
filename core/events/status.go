package events

import "github.com/devsmilefactory/moversfinder-sub010/core/model"

// StatusEvent is published when a ride lifecycle transition enters the
// dispatcher, before routing decides whether anyone gets notified.
type StatusEvent struct {
	Event model.RideEvent
}
