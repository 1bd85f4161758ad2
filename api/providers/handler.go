// Package providers exposes the operator endpoint for inspecting nearby
// candidate discovery: which providers sit inside a broadcast radius and why
// the ineligible ones would be skipped.
package providers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/devsmilefactory/moversfinder-sub010/core/dispatch"
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

type candidateView struct {
	ProviderID   string  `json:"provider_id"`
	DistanceKm   float64 `json:"distance_km"`
	IsOnline     bool    `json:"is_online"`
	IsAvailable  bool    `json:"is_available"`
	ActiveRideID string  `json:"active_ride_id,omitempty"`
	Eligible     bool    `json:"eligible"`
	Reason       string  `json:"reason,omitempty"`
}

type nearbyResponse struct {
	RadiusKm    float64         `json:"radius_km"`
	TotalNearby int             `json:"total_nearby"`
	Eligible    int             `json:"eligible"`
	Candidates  []candidateView `json:"candidates"`
}

// NewNearbyHandler exposes candidate discovery via GET /api/providers/nearby.
// lat and lng are required; radius_km and service_type are optional, with a
// zero radius selecting defaultRadiusKm.
func NewNearbyHandler(finder dispatch.CandidateFinder, defaultRadiusKm float64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
		if errLat != nil || errLng != nil {
			http.Error(w, "lat and lng are required", http.StatusBadRequest)
			return
		}
		radius := defaultRadiusKm
		if s := r.URL.Query().Get("radius_km"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v <= 0 {
				http.Error(w, "invalid radius_km", http.StatusBadRequest)
				return
			}
			radius = v
		}

		candidates, err := finder.FindNearby(r.Context(), model.Coordinates{Lat: lat, Lng: lng}, radius, r.URL.Query().Get("service_type"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		resp := nearbyResponse{RadiusKm: radius, TotalNearby: len(candidates), Candidates: make([]candidateView, len(candidates))}
		for i, c := range candidates {
			v := candidateView{
				ProviderID:  c.ProviderID,
				DistanceKm:  c.DistanceKm,
				IsOnline:    c.IsOnline,
				IsAvailable: c.IsAvailable,
				Eligible:    c.Eligible(),
				Reason:      ineligibleReason(c),
			}
			if c.ActiveRideID != nil {
				v.ActiveRideID = *c.ActiveRideID
			}
			if v.Eligible {
				resp.Eligible++
			}
			resp.Candidates[i] = v
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// ineligibleReason names the first eligibility rule the candidate fails.
func ineligibleReason(c model.NearbyCandidate) string {
	switch {
	case !c.IsOnline:
		return "offline"
	case !c.IsAvailable:
		return "unavailable"
	case c.ActiveRideID != nil:
		return "engaged"
	}
	return ""
}
