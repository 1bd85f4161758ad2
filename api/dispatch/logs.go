// Package dispatch exposes the operator endpoint for browsing notification
// delivery logs.
package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/core/model"
	"github.com/devsmilefactory/moversfinder-sub010/pkg/export"
)

// Store is the slice of the record store the logs endpoint reads.
type Store interface {
	QueryNotifications(ctx context.Context, q model.NotificationQuery) ([]model.NotificationRecord, error)
	Notification(ctx context.Context, id string) (*model.NotificationRecord, error)
	DeliveryLog(ctx context.Context, notificationID string) ([]model.DeliveryLogEntry, error)
}

// detailResponse pairs one notification with its audit trail.
type detailResponse struct {
	Notification *model.NotificationRecord `json:"notification"`
	Attempts     []model.DeliveryLogEntry  `json:"attempts"`
}

// NewLogHandler returns an HTTP handler exposing dispatch logs via
// GET /api/dispatch/logs. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
//
// With notification_id the response is the single record plus its delivery
// attempts. Otherwise ride_id, user_id, type, failed_only, since and limit
// filter the listing, and format=csv switches the encoding.
func NewLogHandler(store Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if id := r.URL.Query().Get("notification_id"); id != "" {
			rec, err := store.Notification(r.Context(), id)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if rec == nil {
				http.NotFound(w, r)
				return
			}
			attempts, err := store.DeliveryLog(r.Context(), id)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(detailResponse{Notification: rec, Attempts: attempts})
			return
		}

		q := model.NotificationQuery{
			RideID: r.URL.Query().Get("ride_id"),
			UserID: r.URL.Query().Get("user_id"),
			Type:   r.URL.Query().Get("type"),
		}
		if s := r.URL.Query().Get("failed_only"); s != "" {
			q.FailedOnly, _ = strconv.ParseBool(s)
		}
		if s := r.URL.Query().Get("since"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Since = t
			}
		}
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				q.Limit = n
			}
		}
		records, err := store.QueryNotifications(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if r.URL.Query().Get("format") == "csv" {
			w.Header().Set("Content-Type", "text/csv")
			if err := export.WriteCSV(w, records); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := export.WriteJSON(w, records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
