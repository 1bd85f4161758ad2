package model

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Zero reports whether the point carries no usable position.
func (c Coordinates) Zero() bool { return c.Lat == 0 && c.Lng == 0 }

// NearbyCandidate is one provider returned by the geospatial query, before
// eligibility filtering. ActiveRideID is non-nil while the provider is engaged
// on another assignment.
type NearbyCandidate struct {
	ProviderID   string
	DistanceKm   float64
	IsOnline     bool
	IsAvailable  bool
	ActiveRideID *string
}

// Eligible reports whether the candidate can receive a broadcast: online,
// available and not engaged.
func (c NearbyCandidate) Eligible() bool {
	return c.IsOnline && c.IsAvailable && c.ActiveRideID == nil
}
