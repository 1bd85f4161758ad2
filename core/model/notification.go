package model

import "time"

// Priority classifies how urgently a notification should reach the device.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Immediate reports whether the priority warrants an immediate, audible
// delivery hint on the device platform.
func (p Priority) Immediate() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// Notification type identifiers produced by the routing table and broadcast.
const (
	TypeBidAccepted    = "bid_accepted"
	TypeDriverAssigned = "driver_assigned"
	TypeDriverOnWay    = "driver_on_way"
	TypeDriverArrived  = "driver_arrived"
	TypeTripStarted    = "trip_started"
	TypeTripCompleted  = "trip_completed"
	TypeRideCancelled  = "ride_cancelled"
	TypeNewRideRequest = "new_ride_request"
)

// Notification categories group types for the client inbox.
const (
	CategoryRide        = "ride"
	CategoryRideRequest = "ride_request"
)

// NotificationIntent is a fully resolved instruction to notify one recipient.
// Intents are derived, transient values: zero, one or two per status event,
// one per eligible provider for a broadcast.
type NotificationIntent struct {
	RecipientID     string
	Type            string
	Category        string
	Priority        Priority
	Title           string
	Message         string
	ActionReference string
	RideID          string
	ContextData     map[string]string
}

// NotificationRecord mirrors one row of the notifications table. Created once
// per intent, updated exactly once with the delivery outcome, never deleted by
// this service. The json tags follow the column names so exported logs read
// like the table.
type NotificationRecord struct {
	ID                    string            `json:"id"`
	UserID                string            `json:"user_id"`
	Type                  string            `json:"type"`
	Category              string            `json:"category"`
	Priority              Priority          `json:"priority"`
	Title                 string            `json:"title"`
	Message               string            `json:"message"`
	ActionReference       string            `json:"action_reference,omitempty"`
	RideID                string            `json:"ride_id,omitempty"`
	ContextData           map[string]string `json:"context_data,omitempty"`
	PushSent              bool              `json:"push_sent"`
	PushSentAt            *time.Time        `json:"push_sent_at,omitempty"`
	PushDeliveryConfirmed bool              `json:"push_delivery_confirmed"`
	PushError             *string           `json:"push_error,omitempty"`
	RetryCount            int               `json:"retry_count"`
	CreatedAt             time.Time         `json:"created_at"`
}

// NotificationQuery defines the filters for browsing notification records.
// Zero fields match everything; Limit zero falls back to the store default.
type NotificationQuery struct {
	RideID     string
	UserID     string
	Type       string
	FailedOnly bool
	Since      time.Time
	Limit      int
}

// DeliveryLogEntry is one append-only audit row per delivery attempt.
type DeliveryLogEntry struct {
	NotificationID string `json:"notification_id"`
	AttemptNumber  int    `json:"attempt_number"`
	DeliveryMethod string `json:"delivery_method"`
	Success        bool   `json:"success"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// DeliveryMethodPush is the only delivery method this service performs.
const DeliveryMethodPush = "push"
