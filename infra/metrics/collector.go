package metrics

import (
	"context"
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/core/events"
	coremetrics "github.com/devsmilefactory/moversfinder-sub010/core/metrics"
	"github.com/devsmilefactory/moversfinder-sub010/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and forwards dispatcher
// events to the sink capabilities that understand them. It stops when the
// context is canceled or the bus closes.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
}

// record maps bus events onto sink capabilities. Per-recipient delivery
// results reach the sink in batch straight from the dispatcher, so only the
// broadcast funnel summary travels this path.
func record(sink coremetrics.MetricsSink, ev eventbus.Event) {
	e, ok := ev.(events.BroadcastEvent)
	if !ok {
		return
	}
	if r, ok := sink.(coremetrics.BroadcastRecorder); ok {
		_ = r.RecordBroadcast(coremetrics.BroadcastEvent{
			RideID:      e.RideID,
			ServiceType: e.ServiceType,
			TotalNearby: e.TotalNearby,
			Eligible:    e.Eligible,
			Notified:    e.Notified,
			RadiusKm:    e.RadiusKm,
			Time:        time.Now(),
		})
	}
}
