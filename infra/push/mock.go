package push

import (
	"context"
	"fmt"
	"sync"

	corepush "github.com/devsmilefactory/moversfinder-sub010/core/push"
)

// MockSender is a scriptable Sender used in tests and scenario replays.
// FailIDs and NoTokenIDs key on the recipient id; everything else is
// delivered and recorded in Sent.
type MockSender struct {
	Sent       map[string][]corepush.Delivery
	FailIDs    map[string]bool
	NoTokenIDs map[string]bool
	mu         sync.Mutex
}

// NewMockSender creates an empty MockSender.
func NewMockSender() *MockSender {
	return &MockSender{
		Sent:       make(map[string][]corepush.Delivery),
		FailIDs:    make(map[string]bool),
		NoTokenIDs: make(map[string]bool),
	}
}

// Send records the delivery or plays back the scripted outcome for the
// recipient.
func (m *MockSender) Send(_ context.Context, d corepush.Delivery) (corepush.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[d.RecipientID] {
		return corepush.Receipt{}, &corepush.DeliveryError{StatusCode: 503, Body: "mock gateway down"}
	}
	if m.NoTokenIDs[d.RecipientID] {
		return corepush.Receipt{State: corepush.StateSkippedNoToken}, nil
	}
	m.Sent[d.RecipientID] = append(m.Sent[d.RecipientID], d)
	return corepush.Receipt{State: corepush.StateDelivered, MessageID: fmt.Sprintf("mock-%s-%d", d.RecipientID, len(m.Sent[d.RecipientID]))}, nil
}

// Deliveries returns how many pushes were delivered across all recipients.
func (m *MockSender) Deliveries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ds := range m.Sent {
		n += len(ds)
	}
	return n
}

// DeliveredTo reports whether at least one push reached the recipient.
func (m *MockSender) DeliveredTo(recipientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent[recipientID]) > 0
}
