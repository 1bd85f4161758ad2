package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

var simRng = rand.New(rand.NewSource(time.Now().UnixNano()))

// happyPath is the ordered lifecycle a ride walks through when nobody cancels.
var happyPath = []model.RideStatus{
	model.StatusPending,
	model.StatusAccepted,
	model.StatusDriverAssigned,
	model.StatusDriverOnWay,
	model.StatusDriverArrived,
	model.StatusTripStarted,
	model.StatusTripCompleted,
}

var serviceTypes = []string{"standard", "premium", "van"}

var cancellers = []string{"passenger", "driver", "system"}

// RideConfig holds parameters for bulk ride generation.
type RideConfig struct {
	Count     int
	CancelPct float64
	CenterLat float64
	CenterLng float64
}

// GenerateRides creates Count rides with IDs ride0001..rideNNNN. A CancelPct
// fraction cancels between acceptance and pickup, the rest run to completion.
func GenerateRides(cfg RideConfig) []SimulatedRide {
	if cfg.Count <= 0 {
		return nil
	}
	rs := make([]SimulatedRide, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		r := SimulatedRide{
			Ride: model.RideRecord{
				ID:            fmt.Sprintf("ride%04d", i+1),
				UserID:        fmt.Sprintf("pass%04d", i+1),
				DriverID:      fmt.Sprintf("drv%04d", i+1),
				ServiceType:   serviceTypes[simRng.Intn(len(serviceTypes))],
				PickupAddress: fmt.Sprintf("%d Avenue de la Simulation", simRng.Intn(200)+1),
				PickupLat:     cfg.CenterLat + (simRng.Float64()-0.5)*0.1,
				PickupLng:     cfg.CenterLng + (simRng.Float64()-0.5)*0.1,
				EstimatedFare: 5 + simRng.Float64()*45,
			},
			CancelAfter: -1,
		}
		if cfg.CancelPct > 0 && simRng.Float64() < cfg.CancelPct {
			// Cancels after accepted, driver_assigned or driver_on_way, so a
			// driver is always on record by the time the cancellation fires.
			r.CancelAfter = 1 + simRng.Intn(3)
			r.CancelledBy = cancellers[simRng.Intn(len(cancellers))]
		}
		rs[i] = r
	}
	return rs
}
