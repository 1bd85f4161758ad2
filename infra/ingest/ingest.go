// Package ingest bridges external event streams into the dispatch manager.
// Each source consumes ride status payloads from a broker, decodes the
// record/old_record envelope and hands the event to a Handler. The HTTP API
// under api/ is the synchronous entry point and does not go through here.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/core/logger"
	"github.com/devsmilefactory/moversfinder-sub010/core/metrics"
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

// Handler consumes one decoded ride event.
type Handler func(ctx context.Context, ev model.RideEvent)

// Source is a long-running consumer of ride status events. Run blocks until
// the context is canceled or the source fails to start.
type Source interface {
	Run(ctx context.Context) error
	Close() error
}

// decodeStatusChange parses one broker payload into a ride event.
func decodeStatusChange(payload []byte) (model.RideEvent, error) {
	var p model.StatusChangePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return model.RideEvent{}, fmt.Errorf("ingest: decode status change: %w", err)
	}
	if err := p.Validate(); err != nil {
		return model.RideEvent{}, fmt.Errorf("ingest: %w", err)
	}
	return p.Event(), nil
}

// recordIngest reports one consumed payload to sinks that track ingestion.
func recordIngest(sink metrics.MetricsSink, log logger.Logger, source string, ev model.RideEvent, decodeErr error) {
	ir, ok := sink.(metrics.IngestRecorder)
	if !ok {
		return
	}
	ie := metrics.IngestEvent{Source: source, Time: time.Now()}
	if decodeErr != nil {
		ie.Error = decodeErr.Error()
	} else {
		ie.RideID = ev.RideID
		ie.Status = ev.NewStatus
	}
	if err := ir.RecordIngest(ie); err != nil {
		log.Errorf("ingest metrics error: %v", err)
	}
}
