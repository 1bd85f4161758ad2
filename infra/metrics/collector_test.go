package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/core/events"
	coremetrics "github.com/devsmilefactory/moversfinder-sub010/core/metrics"
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
	"github.com/devsmilefactory/moversfinder-sub010/internal/eventbus"
)

type captureSink struct {
	coremetrics.NopSink
	ch chan coremetrics.BroadcastEvent
}

func (s *captureSink) RecordBroadcast(ev coremetrics.BroadcastEvent) error {
	s.ch <- ev
	return nil
}

func TestEventCollectorForwardsBroadcasts(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sink := &captureSink{ch: make(chan coremetrics.BroadcastEvent, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink)

	bus.Publish(events.BroadcastEvent{RideID: "ride-9", ServiceType: "standard", TotalNearby: 6, Eligible: 4, Notified: 3, RadiusKm: 5})

	select {
	case got := <-sink.ch:
		if got.RideID != "ride-9" || got.TotalNearby != 6 || got.Eligible != 4 || got.Notified != 3 {
			t.Fatalf("unexpected broadcast event: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast event never reached the sink")
	}
}

func TestEventCollectorIgnoresOtherEvents(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sink := &captureSink{ch: make(chan coremetrics.BroadcastEvent, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink)

	bus.Publish(events.StatusEvent{Event: model.RideEvent{RideID: "r1", NewStatus: "accepted"}})
	bus.Publish(events.DeliveryEvent{RideID: "r1", RecipientID: "drv-1", Delivered: true})

	select {
	case got := <-sink.ch:
		t.Fatalf("unexpected forward: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}
