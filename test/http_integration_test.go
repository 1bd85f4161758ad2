package test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/api/notify"
	"github.com/devsmilefactory/moversfinder-sub010/core/dispatch"
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
	"github.com/devsmilefactory/moversfinder-sub010/infra/logger"
	"github.com/devsmilefactory/moversfinder-sub010/test/util"
)

// TestHTTPAPIAgainstPostgres drives the notify API over a real store: the
// webhook persists and pushes, the broadcast trigger walks the discovery
// funnel and the health probe reflects store reachability.
func TestHTTPAPIAgainstPostgres(t *testing.T) {
	util.SkipWithoutDocker(t)
	ctx := context.Background()
	st, db, _, cleanup := openStore(ctx, t)
	defer cleanup()

	if _, err := db.ExecContext(ctx, `
		INSERT INTO rides (id, passenger_id, status, service_type, pickup_address, pickup_lat, pickup_lng, estimated_fare)
		VALUES ('ride-http', 'pass-h', 'pending', 'standard', '3 Rue Garibaldi', $1, $2, 11.00)
	`, originLat, originLng); err != nil {
		t.Fatalf("seed ride: %v", err)
	}
	seedDriver(ctx, t, db, "http-drv-1", "standard", true, true, "", 0.005)
	seedDriver(ctx, t, db, "http-drv-2", "standard", true, true, "", 0.010)

	sender := &recordingSender{}
	mgr, err := dispatch.NewManager(st, st, st, dispatch.EligibilityFilter{}, sender, time.Second, nil, logger.New("test"))
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	ts := httptest.NewServer(notify.NewMux(mgr, st, logger.New("api")))
	defer ts.Close()

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("ride status webhook", func(t *testing.T) {
		body, _ := json.Marshal(model.StatusChangePayload{
			Record: model.RideRecord{
				ID: "ride-http", RideStatus: "driver_assigned",
				UserID: "pass-h", DriverID: "http-drv-1",
			},
			OldRecord: model.RideRecord{RideStatus: "accepted"},
		})
		resp, err := http.Post(ts.URL+"/api/notify/ride-status", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var out struct {
			Success        bool   `json:"success"`
			NotificationID string `json:"notificationId"`
			Message        string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !out.Success || out.Message != "notified 1 of 1 recipients" || out.NotificationID == "" {
			t.Fatalf("unexpected response: %+v", out)
		}

		rec, err := st.Notification(ctx, out.NotificationID)
		if err != nil || rec == nil {
			t.Fatalf("load notification: %v, %+v", err, rec)
		}
		if rec.UserID != "pass-h" || rec.Type != model.TypeDriverAssigned || !rec.PushSent {
			t.Fatalf("unexpected notification: %+v", rec)
		}
	})

	t.Run("broadcast trigger", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/notify/broadcast", "application/json",
			bytes.NewReader([]byte(`{"rideId":"ride-http"}`)))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var out struct {
			Success         bool `json:"success"`
			DriversNotified int  `json:"driversNotified"`
			EligibleDrivers int  `json:"eligibleDrivers"`
			TotalNearby     int  `json:"totalNearby"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !out.Success || out.TotalNearby != 2 || out.EligibleDrivers != 2 || out.DriversNotified != 2 {
			t.Fatalf("unexpected funnel: %+v", out)
		}

		var count int
		if err := db.QueryRowContext(ctx,
			`SELECT count(*) FROM notifications WHERE ride_id = 'ride-http' AND type = $1`,
			model.TypeNewRideRequest,
		).Scan(&count); err != nil {
			t.Fatalf("count rows: %v", err)
		}
		if count != 2 {
			t.Fatalf("broadcast rows = %d, want 2", count)
		}
	})

	t.Run("broadcast for unknown ride", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/notify/broadcast?rideId=ghost")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", resp.StatusCode)
		}
	})
}
