package events

// BroadcastEvent is emitted after a nearby-driver broadcast completes. The
// counts describe the discovery funnel: providers found inside the radius,
// those passing the eligibility filter, and those whose device actually
// received the push.
type BroadcastEvent struct {
	RideID      string
	ServiceType string
	TotalNearby int
	Eligible    int
	Notified    int
	RadiusKm    float64
}
