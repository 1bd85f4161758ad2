// Package notify exposes the HTTP entry points of the notification
// dispatcher: the ride status webhook, the new-ride broadcast trigger and a
// liveness probe.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/devsmilefactory/moversfinder-sub010/core/dispatch"
	"github.com/devsmilefactory/moversfinder-sub010/core/logger"
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

// Dispatcher is the slice of the dispatch manager the handlers need.
type Dispatcher interface {
	StatusChange(ctx context.Context, ev model.RideEvent) (dispatch.DispatchResult, error)
	Broadcast(ctx context.Context, ev model.RideEvent, radiusKm float64) (dispatch.BroadcastResult, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type statusResponse struct {
	Success        bool   `json:"success"`
	NotificationID string `json:"notificationId,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

type broadcastResponse struct {
	Success         bool   `json:"success"`
	DriversNotified int    `json:"driversNotified"`
	EligibleDrivers int    `json:"eligibleDrivers"`
	TotalNearby     int    `json:"totalNearby"`
	Message         string `json:"message,omitempty"`
	Error           string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// NewStatusHandler handles POST /api/notify/ride-status: the record/old_record
// envelope emitted when a rides row changes status. No-op transitions are a
// successful 200 so upstream triggers never retry them.
func NewStatusHandler(d Dispatcher, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, statusResponse{Success: false, Error: "method not allowed"})
			return
		}
		var p model.StatusChangePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Error: "invalid JSON body"})
			return
		}
		if err := p.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Error: err.Error()})
			return
		}

		res, err := d.StatusChange(r.Context(), p.Event())
		if err != nil {
			log.Errorf("status dispatch for ride %s failed: %v", p.Record.ID, err)
			writeJSON(w, http.StatusInternalServerError, statusResponse{Success: false, Error: err.Error()})
			return
		}

		resp := statusResponse{Success: true}
		if res.Attempted == 0 {
			resp.Message = "no notification for this transition"
		} else {
			resp.Message = fmt.Sprintf("notified %d of %d recipients", res.Notified, res.Attempted)
			for _, rr := range res.Results {
				if rr.NotificationID != "" {
					resp.NotificationID = rr.NotificationID
					break
				}
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// NewBroadcastHandler handles POST /api/notify/broadcast with a new-ride
// payload, plus a maintenance GET variant taking rideId and radiusKm query
// parameters for manually re-running a broadcast.
func NewBroadcastHandler(d Dispatcher, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.BroadcastRequest
		switch r.Method {
		case http.MethodPost:
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, broadcastResponse{Success: false, Error: "invalid JSON body"})
				return
			}
		case http.MethodGet:
			req.RideID = r.URL.Query().Get("rideId")
			if s := r.URL.Query().Get("radiusKm"); s != "" {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					writeJSON(w, http.StatusBadRequest, broadcastResponse{Success: false, Error: "invalid radiusKm"})
					return
				}
				req.RadiusKm = v
			}
		default:
			writeJSON(w, http.StatusMethodNotAllowed, broadcastResponse{Success: false, Error: "method not allowed"})
			return
		}
		if err := req.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, broadcastResponse{Success: false, Error: err.Error()})
			return
		}

		res, err := d.Broadcast(r.Context(), req.Event(), req.RadiusKm)
		if err != nil {
			if errors.Is(err, dispatch.ErrRideNotFound) {
				writeJSON(w, http.StatusNotFound, broadcastResponse{Success: false, Error: "ride not found"})
				return
			}
			log.Errorf("broadcast for ride %s failed: %v", req.RideID, err)
			writeJSON(w, http.StatusInternalServerError, broadcastResponse{Success: false, Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, broadcastResponse{
			Success:         true,
			DriversNotified: res.Dispatch.Notified,
			EligibleDrivers: res.Eligible,
			TotalNearby:     res.TotalNearby,
			Message:         fmt.Sprintf("notified %d of %d eligible drivers", res.Dispatch.Notified, res.Eligible),
		})
	})
}

// NewHealthHandler reports liveness and store reachability on GET /healthz.
func NewHealthHandler(p Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// NewMux assembles the notify API surface.
func NewMux(d Dispatcher, p Pinger, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/notify/ride-status", NewStatusHandler(d, log))
	mux.Handle("/api/notify/broadcast", NewBroadcastHandler(d, log))
	mux.Handle("/healthz", NewHealthHandler(p))
	return mux
}
