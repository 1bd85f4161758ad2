package scenarios

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/devsmilefactory/moversfinder-sub010/core/dispatch"
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
	"github.com/devsmilefactory/moversfinder-sub010/infra/logger"
	"github.com/devsmilefactory/moversfinder-sub010/infra/metrics"
	"github.com/devsmilefactory/moversfinder-sub010/infra/push"
	"github.com/devsmilefactory/moversfinder-sub010/internal/eventbus"
)

// RunScenario replays one scenario against a fully wired manager and checks
// the aggregate outcome. Pushes go through the mock sender, records land in an
// in-memory store, metrics in a throwaway Prometheus registry.
func RunScenario(t *testing.T, sc *Scenario) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	sender := push.NewMockSender()
	for _, id := range sc.FailRecipients {
		sender.FailIDs[id] = true
	}
	for _, id := range sc.NoToken {
		sender.NoTokenIDs[id] = true
	}

	st := newRecordStore()
	finder := staticFinder{}
	for _, c := range sc.Candidates {
		finder.candidates = append(finder.candidates, c.ToModel())
	}

	mgr, err := dispatch.NewManager(st, nil, finder, dispatch.EligibilityFilter{}, sender, time.Second, sink, logger.NopLogger{})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	bus := eventbus.New()
	defer bus.Close()
	mgr.SetEventBus(bus)

	ctx := context.Background()
	var notified, failed, skipped int
	for _, def := range sc.Events {
		ev := sc.event(def)
		res, err := mgr.StatusChange(ctx, ev)
		if err != nil {
			t.Fatalf("scenario %s: status %s: %v", sc.Name, def.New, err)
		}
		tally(res, &notified, &failed, &skipped)

		if ev.StatusChanged() && model.ParseRideStatus(ev.NewStatus) == model.StatusPending {
			bres, err := mgr.Broadcast(ctx, ev, 0)
			if err != nil {
				t.Fatalf("scenario %s: broadcast: %v", sc.Name, err)
			}
			tally(bres.Dispatch, &notified, &failed, &skipped)
		}
	}

	if notified != sc.Expected.Notified {
		t.Errorf("scenario %s expected %d notified, got %d", sc.Name, sc.Expected.Notified, notified)
	}
	if failed != sc.Expected.Failed {
		t.Errorf("scenario %s expected %d failed, got %d", sc.Name, sc.Expected.Failed, failed)
	}
	if skipped != sc.Expected.Skipped {
		t.Errorf("scenario %s expected %d skipped, got %d", sc.Name, sc.Expected.Skipped, skipped)
	}
	if got := sender.Deliveries(); got != sc.Expected.Notified {
		t.Errorf("scenario %s: sender saw %d deliveries, tally says %d", sc.Name, got, sc.Expected.Notified)
	}
	for _, id := range sc.Expected.Recipients {
		if !st.hasRecipient(id) {
			t.Errorf("scenario %s: no persisted notification for %s", sc.Name, id)
		}
	}
}

// event renders one transition with the scenario's ride context attached.
func (sc *Scenario) event(def EventDef) model.RideEvent {
	return model.RideEvent{
		RideID:        sc.RideID,
		OldStatus:     def.Old,
		NewStatus:     def.New,
		PassengerID:   sc.Passenger,
		DriverID:      sc.Driver,
		ServiceType:   sc.ServiceType,
		PickupAddress: sc.Pickup.Address,
		PickupLat:     sc.Pickup.Lat,
		PickupLng:     sc.Pickup.Lng,
		CancelledBy:   def.CancelledBy,
	}
}

func tally(res dispatch.DispatchResult, notified, failed, skipped *int) {
	for _, rr := range res.Results {
		switch {
		case rr.Delivered:
			*notified++
		case rr.Skipped:
			*skipped++
		case rr.Err != nil:
			*failed++
		}
	}
}

type staticFinder struct {
	candidates []model.NearbyCandidate
}

func (f staticFinder) FindNearby(context.Context, model.Coordinates, float64, string) ([]model.NearbyCandidate, error) {
	return f.candidates, nil
}

// recordStore collects what the dispatcher persisted so expectations can be
// checked without a database.
type recordStore struct {
	mu        sync.Mutex
	created   []model.NotificationRecord
	delivered map[string]bool
	failed    map[string]string
	logs      []model.DeliveryLogEntry
}

func newRecordStore() *recordStore {
	return &recordStore{delivered: map[string]bool{}, failed: map[string]string{}}
}

func (s *recordStore) CreateNotification(_ context.Context, rec *model.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, *rec)
	return nil
}

func (s *recordStore) MarkDelivered(_ context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered[id] = true
	return nil
}

func (s *recordStore) MarkFailed(_ context.Context, id string, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = cause
	return nil
}

func (s *recordStore) AppendDeliveryLog(_ context.Context, entry model.DeliveryLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *recordStore) hasRecipient(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.created {
		if rec.UserID == id {
			return true
		}
	}
	return false
}
