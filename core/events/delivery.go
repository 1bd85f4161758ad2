package events

import "time"

// DeliveryEvent is published for each recipient once their notification
// attempt settles. Exactly one of Delivered, Skipped, Duplicate or Err
// describes the outcome.
type DeliveryEvent struct {
	RideID         string
	NotificationID string
	RecipientID    string
	Type           string
	Delivered      bool
	Skipped        bool
	Duplicate      bool
	Err            error
	Latency        time.Duration
}
