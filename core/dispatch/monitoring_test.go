package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	coremon "github.com/devsmilefactory/moversfinder-sub010/core/monitoring"
)

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestDeliveryErrorCaptured(t *testing.T) {
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	store := newFakeStore()
	sender := &fakeSender{failFor: map[string]error{"drv-1": errors.New("gateway 503")}}
	mgr := newTestManager(t, store, nil, nil, sender)

	if _, err := mgr.StatusChange(context.Background(), statusEvent("pending", "accepted")); err != nil {
		t.Fatalf("status change: %v", err)
	}
	if mon.err == nil {
		t.Fatal("error not captured")
	}
	if mon.tags["recipient_id"] != "drv-1" || mon.tags["module"] != "dispatch_manager" {
		t.Fatalf("tags missing: %v", mon.tags)
	}
	if mon.tags["ride_id"] != "ride-9" {
		t.Errorf("ride tag = %q", mon.tags["ride_id"])
	}
}

func TestPersistErrorCaptured(t *testing.T) {
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	store := newFakeStore()
	store.failCreate = map[string]error{"drv-1": errors.New("insert failed")}
	mgr := newTestManager(t, store, nil, nil, &fakeSender{})

	if _, err := mgr.StatusChange(context.Background(), statusEvent("pending", "accepted")); err != nil {
		t.Fatalf("status change: %v", err)
	}
	if mon.err == nil {
		t.Fatal("error not captured")
	}
	if mon.tags["type"] != "bid_accepted" {
		t.Errorf("type tag = %q", mon.tags["type"])
	}
}
