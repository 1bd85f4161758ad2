package test

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/devsmilefactory/moversfinder-sub010/core/dispatch"
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
	"github.com/devsmilefactory/moversfinder-sub010/infra/store"
	"github.com/devsmilefactory/moversfinder-sub010/test/util"
)

// Place Bellecour, Lyon. Seeded drivers sit north of it on the same meridian
// so the haversine reduces to the latitude delta and distances stay exact.
const (
	originLat = 45.7578
	originLng = 4.8320
	// kmPerLatDegree is 6371 * pi / 180, matching the SQL haversine radius.
	kmPerLatDegree = 111.19492664
)

func openStore(ctx context.Context, t *testing.T) (*store.PostgresStore, *sql.DB, string, func()) {
	t.Helper()
	dsn, stop := util.StartPostgres(ctx, t)
	st, err := store.Open(store.Config{DSN: dsn})
	if err != nil {
		stop()
		t.Fatalf("open store: %v", err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		stop()
		t.Fatalf("ensure schema: %v", err)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		stop()
		t.Fatalf("open seed connection: %v", err)
	}
	cleanup := func() {
		_ = db.Close()
		_ = st.Close()
		stop()
	}
	return st, db, dsn, cleanup
}

func seedDriver(ctx context.Context, t *testing.T, db *sql.DB, id, serviceType string, online, available bool, activeRide string, latOffset float64) {
	t.Helper()
	_, err := db.ExecContext(ctx, `
		INSERT INTO driver_profiles (user_id, service_type, is_online, is_available, active_ride_id, current_lat, current_lng)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, id, serviceType, online, available, activeRide, originLat+latOffset, originLng)
	if err != nil {
		t.Fatalf("seed driver %s: %v", id, err)
	}
}

func TestPostgresStore(t *testing.T) {
	util.SkipWithoutDocker(t)
	ctx := context.Background()
	st, db, dsn, cleanup := openStore(ctx, t)
	defer cleanup()

	t.Run("notification lifecycle", func(t *testing.T) {
		rec := model.NotificationRecord{
			ID:              "ntf-lifecycle",
			UserID:          "pass-1",
			Type:            model.TypeDriverArrived,
			Category:        model.CategoryRide,
			Priority:        model.PriorityUrgent,
			Title:           "Driver arrived",
			Message:         "Your driver has arrived at the pickup location.",
			ActionReference: "/my-rides/ride-1",
			RideID:          "ride-1",
			ContextData:     map[string]string{"ride_id": "ride-1", "pickup": "2 Place Bellecour"},
			CreatedAt:       time.Now().UTC(),
		}
		if err := st.CreateNotification(ctx, &rec); err != nil {
			t.Fatalf("create: %v", err)
		}

		got, err := st.Notification(ctx, rec.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got == nil {
			t.Fatal("notification not found after create")
		}
		if got.UserID != rec.UserID || got.Type != rec.Type || got.Priority != model.PriorityUrgent {
			t.Fatalf("unexpected row: %+v", got)
		}
		if got.ContextData["pickup"] != "2 Place Bellecour" {
			t.Fatalf("context data lost: %v", got.ContextData)
		}
		if got.PushSent || got.PushDeliveryConfirmed || got.RetryCount != 0 {
			t.Fatalf("fresh row should carry no delivery state: %+v", got)
		}

		if err := st.MarkDelivered(ctx, rec.ID, time.Now().UTC()); err != nil {
			t.Fatalf("mark delivered: %v", err)
		}
		got, err = st.Notification(ctx, rec.ID)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if !got.PushSent || !got.PushDeliveryConfirmed || got.PushSentAt == nil {
			t.Fatalf("delivered state not recorded: %+v", got)
		}
		if got.PushError != nil {
			t.Fatalf("delivered row should carry no error, got %q", *got.PushError)
		}
	})

	t.Run("failed delivery bumps retry count", func(t *testing.T) {
		rec := model.NotificationRecord{
			ID: "ntf-failed", UserID: "drv-1", Type: model.TypeBidAccepted,
			Category: model.CategoryRide, Priority: model.PriorityHigh,
			Title: "Bid accepted", Message: "Head to the pickup location.",
			CreatedAt: time.Now().UTC(),
		}
		if err := st.CreateNotification(ctx, &rec); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := st.MarkFailed(ctx, rec.ID, "device unreachable"); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		if err := st.MarkFailed(ctx, rec.ID, "device unreachable"); err != nil {
			t.Fatalf("mark failed again: %v", err)
		}
		got, err := st.Notification(ctx, rec.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.PushSent {
			t.Fatal("failed row should not be marked sent")
		}
		if got.PushError == nil || *got.PushError != "device unreachable" {
			t.Fatalf("push error not recorded: %+v", got.PushError)
		}
		if got.RetryCount != 2 {
			t.Fatalf("retry count = %d, want 2", got.RetryCount)
		}
	})

	t.Run("missing notification", func(t *testing.T) {
		got, err := st.Notification(ctx, "no-such-id")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got != nil {
			t.Fatalf("expected nil for missing row, got %+v", got)
		}
	})

	t.Run("delivery log ordering", func(t *testing.T) {
		rec := model.NotificationRecord{
			ID: "ntf-log", UserID: "pass-2", Type: model.TypeTripStarted,
			Category: model.CategoryRide, Priority: model.PriorityNormal,
			Title: "Trip started", Message: "Your trip is underway.",
			CreatedAt: time.Now().UTC(),
		}
		if err := st.CreateNotification(ctx, &rec); err != nil {
			t.Fatalf("create: %v", err)
		}
		first := model.DeliveryLogEntry{
			NotificationID: rec.ID, AttemptNumber: 1,
			DeliveryMethod: model.DeliveryMethodPush, Success: false, ErrorMessage: "timeout",
		}
		if err := st.AppendDeliveryLog(ctx, first); err != nil {
			t.Fatalf("append first: %v", err)
		}
		// created_at defaults to now() with microsecond resolution; space the
		// attempts so the oldest-first ordering is deterministic.
		time.Sleep(20 * time.Millisecond)
		second := model.DeliveryLogEntry{
			NotificationID: rec.ID, AttemptNumber: 2,
			DeliveryMethod: model.DeliveryMethodPush, Success: true,
		}
		if err := st.AppendDeliveryLog(ctx, second); err != nil {
			t.Fatalf("append second: %v", err)
		}

		entries, err := st.DeliveryLog(ctx, rec.ID)
		if err != nil {
			t.Fatalf("load log: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("got %d entries, want 2", len(entries))
		}
		if entries[0].AttemptNumber != 1 || entries[0].Success || entries[0].ErrorMessage != "timeout" {
			t.Fatalf("unexpected first entry: %+v", entries[0])
		}
		if entries[1].AttemptNumber != 2 || !entries[1].Success || entries[1].ErrorMessage != "" {
			t.Fatalf("unexpected second entry: %+v", entries[1])
		}
	})

	t.Run("ride lookup", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO rides (id, passenger_id, status, service_type, pickup_address, pickup_lat, pickup_lng, estimated_fare)
			VALUES ('ride-lookup', 'pass-3', 'pending', 'standard', '2 Place Bellecour', $1, $2, 12.50)
		`, originLat, originLng)
		if err != nil {
			t.Fatalf("seed ride: %v", err)
		}
		ride, err := st.Ride(ctx, "ride-lookup")
		if err != nil {
			t.Fatalf("load ride: %v", err)
		}
		if ride.PassengerID != "pass-3" || ride.DriverID != "" || ride.ServiceType != "standard" {
			t.Fatalf("unexpected ride: %+v", ride)
		}
		if ride.PickupAddress != "2 Place Bellecour" || ride.EstimatedFare != 12.5 {
			t.Fatalf("pickup details lost: %+v", ride)
		}

		if _, err := st.Ride(ctx, "no-such-ride"); !errors.Is(err, dispatch.ErrRideNotFound) {
			t.Fatalf("missing ride error = %v, want ErrRideNotFound", err)
		}
	})

	t.Run("find nearby", func(t *testing.T) {
		// Offsets of 0.005, 0.010, 0.018 and 0.180 degrees put the drivers at
		// roughly 0.6, 1.1, 2.0 and 20 km; the moto driver sits closest at 0.4.
		seedDriver(ctx, t, db, "drv-close", "standard", true, true, "", 0.005)
		seedDriver(ctx, t, db, "drv-busy", "standard", true, true, "ride-busy", 0.010)
		seedDriver(ctx, t, db, "drv-offline", "standard", false, true, "", 0.018)
		seedDriver(ctx, t, db, "drv-moto", "moto", true, true, "", 0.004)
		seedDriver(ctx, t, db, "drv-far", "standard", true, true, "", 0.180)

		origin := model.Coordinates{Lat: originLat, Lng: originLng}

		got, err := st.FindNearby(ctx, origin, 5, "standard")
		if err != nil {
			t.Fatalf("find nearby: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("got %d candidates, want 3: %+v", len(got), got)
		}
		wantOrder := []string{"drv-close", "drv-busy", "drv-offline"}
		wantDist := []float64{0.005 * kmPerLatDegree, 0.010 * kmPerLatDegree, 0.018 * kmPerLatDegree}
		for i, c := range got {
			if c.ProviderID != wantOrder[i] {
				t.Fatalf("candidate %d = %s, want %s", i, c.ProviderID, wantOrder[i])
			}
			if math.Abs(c.DistanceKm-wantDist[i]) > 0.01 {
				t.Fatalf("distance for %s = %.4f, want %.4f", c.ProviderID, c.DistanceKm, wantDist[i])
			}
		}
		if got[1].ActiveRideID == nil || *got[1].ActiveRideID != "ride-busy" {
			t.Fatalf("active ride not surfaced: %+v", got[1])
		}
		if got[2].IsOnline {
			t.Fatal("offline driver should surface as offline")
		}

		eligible := (dispatch.EligibilityFilter{}).Filter(got)
		if len(eligible) != 1 || eligible[0].ProviderID != "drv-close" {
			t.Fatalf("eligibility filter kept %+v, want only drv-close", eligible)
		}

		all, err := st.FindNearby(ctx, origin, 5, "")
		if err != nil {
			t.Fatalf("find nearby without service filter: %v", err)
		}
		if len(all) != 4 || all[0].ProviderID != "drv-moto" {
			t.Fatalf("unfiltered candidates = %+v, want drv-moto closest of 4", all)
		}

		wide, err := st.FindNearby(ctx, origin, 25, "standard")
		if err != nil {
			t.Fatalf("find nearby wide: %v", err)
		}
		if len(wide) != 4 {
			t.Fatalf("wide radius returned %d candidates, want 4", len(wide))
		}
	})

	t.Run("nearby limit", func(t *testing.T) {
		capped, err := store.Open(store.Config{DSN: dsn, NearbyLimit: 1})
		if err != nil {
			t.Fatalf("open capped store: %v", err)
		}
		defer func() { _ = capped.Close() }()
		got, err := capped.FindNearby(ctx, model.Coordinates{Lat: originLat, Lng: originLng}, 5, "standard")
		if err != nil {
			t.Fatalf("find nearby: %v", err)
		}
		if len(got) != 1 || got[0].ProviderID != "drv-close" {
			t.Fatalf("limit 1 returned %+v, want only drv-close", got)
		}
	})

	t.Run("device token", func(t *testing.T) {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO profiles (id, full_name, fcm_token) VALUES
				('pass-token', 'Ada', 'tok-abc'),
				('pass-no-token', 'Ben', NULL)
		`); err != nil {
			t.Fatalf("seed profiles: %v", err)
		}
		cases := []struct {
			userID string
			want   string
		}{
			{"pass-token", "tok-abc"},
			{"pass-no-token", ""},
			{"no-such-profile", ""},
		}
		for _, c := range cases {
			got, err := st.DeviceToken(ctx, c.userID)
			if err != nil {
				t.Fatalf("device token %s: %v", c.userID, err)
			}
			if got != c.want {
				t.Fatalf("device token %s = %q, want %q", c.userID, got, c.want)
			}
		}
	})
}
