// Package scenarios replays YAML-described ride lifecycles against the
// dispatch pipeline. Each scenario file in this directory names a sequence of
// status transitions plus the nearby drivers and scripted device failures, and
// states the notification outcome it expects.
package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

// CandidateDef describes one provider near the pickup point.
type CandidateDef struct {
	ID         string  `yaml:"id"`
	Online     bool    `yaml:"online"`
	Available  bool    `yaml:"available"`
	ActiveRide string  `yaml:"active_ride,omitempty"`
	DistanceKm float64 `yaml:"distance_km"`
}

func (c CandidateDef) ToModel() model.NearbyCandidate {
	nc := model.NearbyCandidate{
		ProviderID:  c.ID,
		IsOnline:    c.Online,
		IsAvailable: c.Available,
		DistanceKm:  c.DistanceKm,
	}
	if c.ActiveRide != "" {
		nc.ActiveRideID = &c.ActiveRide
	}
	return nc
}

// PickupDef locates the ride for broadcast targeting.
type PickupDef struct {
	Lat     float64 `yaml:"lat"`
	Lng     float64 `yaml:"lng"`
	Address string  `yaml:"address,omitempty"`
}

// EventDef is one lifecycle transition fed to the dispatcher, in wire
// spelling so alias handling is covered too.
type EventDef struct {
	Old         string `yaml:"old,omitempty"`
	New         string `yaml:"new"`
	CancelledBy string `yaml:"cancelled_by,omitempty"`
}

// Expected states the aggregate outcome of the whole scenario.
type Expected struct {
	Notified int `yaml:"notified"`
	Failed   int `yaml:"failed"`
	Skipped  int `yaml:"skipped"`
	// Recipients lists everyone expected to hold at least one persisted
	// notification once the scenario completes, in any order.
	Recipients []string `yaml:"recipients,omitempty"`
}

type Scenario struct {
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description,omitempty"`
	RideID         string         `yaml:"ride_id"`
	Passenger      string         `yaml:"passenger"`
	Driver         string         `yaml:"driver,omitempty"`
	ServiceType    string         `yaml:"service_type,omitempty"`
	Pickup         PickupDef      `yaml:"pickup,omitempty"`
	Candidates     []CandidateDef `yaml:"candidates,omitempty"`
	Events         []EventDef     `yaml:"events"`
	FailRecipients []string       `yaml:"fail_recipients,omitempty"`
	NoToken        []string       `yaml:"no_token,omitempty"`
	Expected       Expected       `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.RideID == "" {
		return nil, fmt.Errorf("scenario %s: ride_id is required", path)
	}
	return &sc, nil
}
