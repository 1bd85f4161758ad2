package main

import (
	"context"
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

// StatusPublisher sends one status-change payload to the broker.
type StatusPublisher interface {
	PublishStatus(p model.StatusChangePayload) error
}

// SimulatedRide walks one ride through its lifecycle, publishing a
// record/old_record payload per transition the way the rides-table trigger
// would.
type SimulatedRide struct {
	Ride        model.RideRecord
	CancelAfter int    // happyPath index after which the ride cancels, -1 to complete
	CancelledBy string // actor recorded on the cancellation event
}

// sequence returns the ordered statuses this ride will emit.
func (s *SimulatedRide) sequence() []model.RideStatus {
	if s.CancelAfter < 0 || s.CancelAfter >= len(happyPath)-1 {
		return happyPath
	}
	seq := make([]model.RideStatus, 0, s.CancelAfter+2)
	seq = append(seq, happyPath[:s.CancelAfter+1]...)
	return append(seq, model.StatusCancelled)
}

// recordAt renders the ride row as it looks at the given stage. The driver
// column is only populated once a driver has accepted.
func (s *SimulatedRide) recordAt(st model.RideStatus) model.RideRecord {
	rec := s.Ride
	rec.RideStatus = st.String()
	switch st {
	case model.StatusPending:
		rec.DriverID = ""
	case model.StatusCancelled:
		rec.CancelledBy = s.CancelledBy
	}
	return rec
}

// Run publishes the ride's transitions until the lifecycle or ctx ends. The
// first event carries an empty old_record, mirroring the row INSERT.
func (s *SimulatedRide) Run(ctx context.Context, pub StatusPublisher, interval time.Duration) error {
	var prev model.RideRecord
	seq := s.sequence()
	for i, st := range seq {
		cur := s.recordAt(st)
		if err := pub.PublishStatus(model.StatusChangePayload{Record: cur, OldRecord: prev}); err != nil {
			return err
		}
		prev = cur
		if i == len(seq)-1 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil
}
