// Package push defines the outbound push delivery port used by the dispatch
// manager. Implementations live under infra/push.
package push

import (
	"context"
	"fmt"

	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

// Delivery describes one message handed to the push gateway.
type Delivery struct {
	NotificationID  string
	RecipientID     string
	Type            string
	Category        string
	Priority        model.Priority
	Title           string
	Body            string
	ActionReference string
	RideID          string
	Data            map[string]string
}

// ReceiptState classifies the outcome of a send attempt that did not error.
type ReceiptState string

const (
	// StateDelivered means the gateway accepted the message.
	StateDelivered ReceiptState = "delivered"
	// StateSkippedNoToken means the recipient has no registered device, so
	// there was nothing to send. Not an error: the notification record still
	// exists and the recipient will see it in the app.
	StateSkippedNoToken ReceiptState = "skipped_no_token"
)

// Receipt reports a completed send attempt.
type Receipt struct {
	State ReceiptState
	// MessageID is the gateway's message name for delivered pushes.
	MessageID string
}

// Delivered reports whether the gateway accepted the message.
func (r Receipt) Delivered() bool { return r.State == StateDelivered }

// DeliveryError reports a rejection from the push gateway.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("push: gateway rejected message: status %d: %s", e.StatusCode, e.Body)
}

// Sender delivers one message to one recipient's registered device.
type Sender interface {
	Send(ctx context.Context, d Delivery) (Receipt, error)
}

// NopSender accepts every delivery without sending anything. Used when the
// service runs without push credentials.
type NopSender struct{}

func (NopSender) Send(context.Context, Delivery) (Receipt, error) {
	return Receipt{State: StateDelivered, MessageID: "nop"}, nil
}
