package dispatch

import (
	"testing"

	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

func TestEligibilityFilter(t *testing.T) {
	engaged := "ride-42"
	candidates := []model.NearbyCandidate{
		{ProviderID: "ok", IsOnline: true, IsAvailable: true},
		{ProviderID: "offline", IsOnline: false, IsAvailable: true},
		{ProviderID: "unavailable", IsOnline: true, IsAvailable: false},
		{ProviderID: "engaged", IsOnline: true, IsAvailable: true, ActiveRideID: &engaged},
	}
	got := EligibilityFilter{}.Filter(candidates)
	if len(got) != 1 || got[0].ProviderID != "ok" {
		t.Fatalf("filtered = %+v, want only ok", got)
	}
}

func TestEligibilityFilter_MixedPool(t *testing.T) {
	engaged := "ride-7"
	candidates := []model.NearbyCandidate{
		{ProviderID: "drv-1", IsOnline: true, IsAvailable: true},
		{ProviderID: "drv-2", IsOnline: false, IsAvailable: true},
		{ProviderID: "drv-3", IsOnline: true, IsAvailable: true, ActiveRideID: &engaged},
		{ProviderID: "drv-4", IsOnline: false, IsAvailable: false},
		{ProviderID: "drv-5", IsOnline: true, IsAvailable: true},
	}
	got := EligibilityFilter{}.Filter(candidates)
	if len(got) != 2 {
		t.Fatalf("eligible = %d, want 2 (%+v)", len(got), got)
	}
	if got[0].ProviderID != "drv-1" || got[1].ProviderID != "drv-5" {
		t.Errorf("eligible ids = %s, %s", got[0].ProviderID, got[1].ProviderID)
	}
}

func TestEligibilityFilter_Empty(t *testing.T) {
	if got := (EligibilityFilter{}).Filter(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}
