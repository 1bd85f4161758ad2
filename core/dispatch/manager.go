package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devsmilefactory/moversfinder-sub010/core/events"
	"github.com/devsmilefactory/moversfinder-sub010/core/logger"
	"github.com/devsmilefactory/moversfinder-sub010/core/metrics"
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
	"github.com/devsmilefactory/moversfinder-sub010/core/monitoring"
	"github.com/devsmilefactory/moversfinder-sub010/core/push"
	"github.com/devsmilefactory/moversfinder-sub010/core/routing"
	"github.com/devsmilefactory/moversfinder-sub010/internal/eventbus"
)

const (
	defaultSendTimeout = 10 * time.Second
	defaultRadiusKm    = 5.0
)

// Manager turns ride events into persisted, pushed notifications. Status
// transitions resolve through the routing table; broadcastable transitions
// additionally fan out to eligible nearby providers. All recipients of one
// event are processed concurrently and one recipient's failure never blocks
// the others.
type Manager struct {
	store       RecordStore
	rides       RideDirectory
	finder      CandidateFinder
	filter      CandidateFilter
	sender      push.Sender
	sendTimeout time.Duration
	logger      logger.Logger
	metrics     metrics.MetricsSink

	mu          sync.Mutex
	bus         eventbus.EventBus
	dedup       DedupGuard
	radiusKm    float64
	broadcastOn map[model.RideStatus]bool
}

// NewManager creates a new manager. sendTimeout bounds each push gateway
// call; if zero, a default of ten seconds is used.
func NewManager(store RecordStore, rides RideDirectory, finder CandidateFinder, filter CandidateFilter, sender push.Sender, sendTimeout time.Duration, sink metrics.MetricsSink, log logger.Logger) (*Manager, error) {
	if store == nil || filter == nil || sender == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Manager{
		store:       store,
		rides:       rides,
		finder:      finder,
		filter:      filter,
		sender:      sender,
		sendTimeout: sendTimeout,
		logger:      log,
		metrics:     sink,
		radiusKm:    defaultRadiusKm,
		broadcastOn: map[model.RideStatus]bool{model.StatusPending: true},
	}, nil
}

// SetDedupGuard configures the optional duplicate suppression guard.
func (m *Manager) SetDedupGuard(g DedupGuard) {
	m.mu.Lock()
	m.dedup = g
	m.mu.Unlock()
}

// SetEventBus attaches the bus the manager publishes status, delivery and
// broadcast events on. The manager never closes the bus; the caller owns it.
func (m *Manager) SetEventBus(bus eventbus.EventBus) {
	m.mu.Lock()
	m.bus = bus
	m.mu.Unlock()
}

func (m *Manager) publish(e eventbus.Event) {
	m.mu.Lock()
	bus := m.bus
	m.mu.Unlock()
	if bus != nil {
		bus.Publish(e)
	}
}

// SetBroadcastRadius overrides the default candidate search radius.
func (m *Manager) SetBroadcastRadius(km float64) {
	if km <= 0 {
		return
	}
	m.mu.Lock()
	m.radiusKm = km
	m.mu.Unlock()
}

// SetBroadcastStatuses configures which canonical statuses trigger a
// broadcast on ingestion.
func (m *Manager) SetBroadcastStatuses(cfg map[model.RideStatus]bool) {
	if cfg == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastOn = make(map[model.RideStatus]bool, len(cfg))
	for k, v := range cfg {
		m.broadcastOn[k] = v
	}
}

// StatusChange resolves a lifecycle event against the routing table and fans
// the resulting intents out. Events that resolve to no intent return an empty
// result: unchanged or unknown statuses are successful no-ops.
func (m *Manager) StatusChange(ctx context.Context, ev model.RideEvent) (DispatchResult, error) {
	m.publish(events.StatusEvent{Event: ev})
	intents := routing.ResolveIntents(ev)
	if len(intents) == 0 {
		m.logger.Debugf("no route for ride %s transition %s -> %s", ev.RideID, ev.OldStatus, ev.NewStatus)
		return DispatchResult{RideID: ev.RideID}, nil
	}
	m.logger.Infof("dispatching %s for ride %s to %d recipients", intents[0].Type, ev.RideID, len(intents))
	return m.fanOut(ctx, ev.RideID, intents), nil
}

// Broadcast notifies every eligible provider near the ride's pickup point
// about a new ride request. When the event carries no pickup coordinates the
// ride row is loaded; a missing ride surfaces as ErrRideNotFound. A positive
// radiusKm overrides the configured search radius for this call only.
func (m *Manager) Broadcast(ctx context.Context, ev model.RideEvent, radiusKm float64) (BroadcastResult, error) {
	if ev.RideID == "" {
		return BroadcastResult{}, fmt.Errorf("dispatch: broadcast without ride id")
	}
	if m.finder == nil {
		return BroadcastResult{}, fmt.Errorf("dispatch: no candidate finder configured")
	}

	origin := model.Coordinates{Lat: ev.PickupLat, Lng: ev.PickupLng}
	if origin.Zero() {
		if m.rides == nil {
			return BroadcastResult{}, fmt.Errorf("dispatch: broadcast for ride %s carries no pickup location", ev.RideID)
		}
		ride, err := m.rides.Ride(ctx, ev.RideID)
		if err != nil {
			if errors.Is(err, ErrRideNotFound) {
				return BroadcastResult{}, err
			}
			return BroadcastResult{}, fmt.Errorf("dispatch: load ride %s: %w", ev.RideID, err)
		}
		origin = model.Coordinates{Lat: ride.PickupLat, Lng: ride.PickupLng}
		if ev.ServiceType == "" {
			ev.ServiceType = ride.ServiceType
		}
		if ev.PickupAddress == "" {
			ev.PickupAddress = ride.PickupAddress
		}
		if ev.EstimatedFare == 0 {
			ev.EstimatedFare = ride.EstimatedFare
		}
	}

	m.mu.Lock()
	radius := m.radiusKm
	m.mu.Unlock()
	if radiusKm > 0 {
		radius = radiusKm
	}

	candidates, err := m.finder.FindNearby(ctx, origin, radius, ev.ServiceType)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("dispatch: find candidates for ride %s: %w", ev.RideID, err)
	}
	eligible := m.filter.Filter(candidates)
	m.logger.Infof("broadcast for ride %s: %d nearby, %d eligible", ev.RideID, len(candidates), len(eligible))
	broadcastCandidates.WithLabelValues("nearby").Set(float64(len(candidates)))
	broadcastCandidates.WithLabelValues("eligible").Set(float64(len(eligible)))

	intents := make([]model.NotificationIntent, 0, len(eligible))
	for _, c := range eligible {
		intents = append(intents, broadcastIntent(ev, c))
	}
	res := BroadcastResult{
		RideID:      ev.RideID,
		TotalNearby: len(candidates),
		Eligible:    len(eligible),
		Dispatch:    m.fanOut(ctx, ev.RideID, intents),
	}

	m.publish(events.BroadcastEvent{
		RideID:      ev.RideID,
		ServiceType: ev.ServiceType,
		TotalNearby: res.TotalNearby,
		Eligible:    res.Eligible,
		Notified:    res.Dispatch.Notified,
		RadiusKm:    radius,
	})
	return res, nil
}

// HandleEvent processes one ingested ride event: the status dispatch always
// runs, and a broadcast follows when the ride just entered a broadcastable
// state. Errors are logged, not returned; bridges fire and forget.
func (m *Manager) HandleEvent(ctx context.Context, ev model.RideEvent) {
	if _, err := m.StatusChange(ctx, ev); err != nil {
		m.logger.Errorf("status dispatch for ride %s failed: %v", ev.RideID, err)
	}
	if !m.broadcastable(ev) {
		return
	}
	if _, err := m.Broadcast(ctx, ev, 0); err != nil {
		m.logger.Errorf("broadcast for ride %s failed: %v", ev.RideID, err)
	}
}

// Run consumes ride events until the context is canceled.
func (m *Manager) Run(ctx context.Context, events <-chan model.RideEvent) {
	for {
		select {
		case ev := <-events:
			m.HandleEvent(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) broadcastable(ev model.RideEvent) bool {
	if !ev.StatusChanged() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.broadcastOn[model.ParseRideStatus(ev.NewStatus)]
}

// fanOut processes the intents concurrently and aggregates the outcome.
func (m *Manager) fanOut(ctx context.Context, rideID string, intents []model.NotificationIntent) DispatchResult {
	result := DispatchResult{
		RideID:    rideID,
		Attempted: len(intents),
		Results:   make([]RecipientResult, len(intents)),
	}
	if len(intents) == 0 {
		return result
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		records  []metrics.DeliveryResult
		notified int
	)
	update := func(i int, rr RecipientResult, dr metrics.DeliveryResult) {
		mu.Lock()
		defer mu.Unlock()
		result.Results[i] = rr
		if rr.Delivered {
			notified++
		}
		records = append(records, dr)
		notificationsTotal.WithLabelValues(rr.Type).Inc()
		deliveryLatency.WithLabelValues(rr.Type).Observe(dr.Latency.Seconds())
		m.publish(events.DeliveryEvent{
			RideID:         rideID,
			NotificationID: rr.NotificationID,
			RecipientID:    rr.RecipientID,
			Type:           rr.Type,
			Delivered:      rr.Delivered,
			Skipped:        rr.Skipped,
			Duplicate:      rr.Duplicate,
			Err:            rr.Err,
			Latency:        dr.Latency,
		})
	}
	for i, intent := range intents {
		wg.Add(1)
		go func(i int, intent model.NotificationIntent) {
			defer wg.Done()
			rr, dr := m.deliverOne(ctx, intent)
			update(i, rr, dr)
		}(i, intent)
	}
	wg.Wait()
	result.Notified = notified

	deliveryRate.WithLabelValues(intents[0].Category).Set(float64(notified) / float64(len(intents)))
	if err := m.metrics.RecordDeliveryResult(records); err != nil {
		m.logger.Errorf("delivery metrics error: %v", err)
	}
	return result
}

// deliverOne runs the full per-recipient pipeline: dedup check, record
// creation, push send, outcome bookkeeping. The record is created before the
// push so the recipient always finds the notification in the app, even when
// the device is unreachable.
func (m *Manager) deliverOne(ctx context.Context, intent model.NotificationIntent) (RecipientResult, metrics.DeliveryResult) {
	start := time.Now()
	rr := RecipientResult{RecipientID: intent.RecipientID, Type: intent.Type}

	m.mu.Lock()
	guard := m.dedup
	m.mu.Unlock()
	if guard != nil {
		ok, err := guard.Acquire(ctx, intent.RideID, intent.Type, intent.RecipientID)
		if err != nil {
			m.logger.Warnf("dedup guard error for %s/%s, proceeding: %v", intent.RideID, intent.RecipientID, err)
		} else if !ok {
			m.logger.Debugf("suppressed duplicate %s for ride %s recipient %s", intent.Type, intent.RideID, intent.RecipientID)
			rr.Duplicate = true
			return rr, m.deliveryMetric(intent, rr, start)
		}
	}

	rec := model.NotificationRecord{
		ID:              uuid.NewString(),
		UserID:          intent.RecipientID,
		Type:            intent.Type,
		Category:        intent.Category,
		Priority:        intent.Priority,
		Title:           intent.Title,
		Message:         intent.Message,
		ActionReference: intent.ActionReference,
		RideID:          intent.RideID,
		ContextData:     intent.ContextData,
		CreatedAt:       time.Now(),
	}
	if err := m.store.CreateNotification(ctx, &rec); err != nil {
		rr.Err = fmt.Errorf("persist notification: %w", err)
		m.logger.Errorf("persist %s for recipient %s failed: %v", intent.Type, intent.RecipientID, err)
		monitoring.CaptureException(err, m.monitorTags(intent))
		return rr, m.deliveryMetric(intent, rr, start)
	}
	rr.NotificationID = rec.ID

	sctx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()
	receipt, err := m.sender.Send(sctx, push.Delivery{
		NotificationID:  rec.ID,
		RecipientID:     intent.RecipientID,
		Type:            intent.Type,
		Category:        intent.Category,
		Priority:        intent.Priority,
		Title:           intent.Title,
		Body:            intent.Message,
		ActionReference: intent.ActionReference,
		RideID:          intent.RideID,
		Data:            intent.ContextData,
	})
	switch {
	case err != nil:
		pushFailure.Inc()
		rr.Err = err
		if markErr := m.store.MarkFailed(ctx, rec.ID, err.Error()); markErr != nil {
			m.logger.Errorf("mark %s failed: %v", rec.ID, markErr)
		}
		m.appendLog(ctx, rec.ID, false, err.Error())
		m.logger.Errorf("push %s to %s failed: %v", rec.ID, intent.RecipientID, err)
		monitoring.CaptureException(err, m.monitorTags(intent))
	case receipt.State == push.StateSkippedNoToken:
		rr.Skipped = true
		m.logger.Infof("recipient %s has no device token, notification %s kept in-app only", intent.RecipientID, rec.ID)
	default:
		pushSuccess.Inc()
		rr.Delivered = true
		if markErr := m.store.MarkDelivered(ctx, rec.ID, time.Now()); markErr != nil {
			m.logger.Errorf("mark %s delivered: %v", rec.ID, markErr)
		}
		m.appendLog(ctx, rec.ID, true, "")
		m.logger.Debugf("push %s delivered to %s as %s", rec.ID, intent.RecipientID, receipt.MessageID)
	}
	return rr, m.deliveryMetric(intent, rr, start)
}

func (m *Manager) monitorTags(intent model.NotificationIntent) map[string]string {
	return map[string]string{
		"module":       "dispatch_manager",
		"ride_id":      intent.RideID,
		"recipient_id": intent.RecipientID,
		"type":         intent.Type,
	}
}

func (m *Manager) appendLog(ctx context.Context, notificationID string, success bool, errMsg string) {
	entry := model.DeliveryLogEntry{
		NotificationID: notificationID,
		AttemptNumber:  1,
		DeliveryMethod: model.DeliveryMethodPush,
		Success:        success,
		ErrorMessage:   errMsg,
	}
	if err := m.store.AppendDeliveryLog(ctx, entry); err != nil {
		m.logger.Errorf("append delivery log for %s: %v", notificationID, err)
	}
}

func (m *Manager) deliveryMetric(intent model.NotificationIntent, rr RecipientResult, start time.Time) metrics.DeliveryResult {
	dr := metrics.DeliveryResult{
		RideID:           intent.RideID,
		NotificationID:   rr.NotificationID,
		NotificationType: intent.Type,
		RecipientID:      intent.RecipientID,
		Priority:         intent.Priority,
		Delivered:        rr.Delivered,
		Skipped:          rr.Skipped,
		Duplicate:        rr.Duplicate,
		Latency:          time.Since(start),
		Time:             start,
	}
	if rr.Err != nil {
		dr.Error = rr.Err.Error()
	}
	return dr
}

// broadcastIntent builds the per-candidate new ride request intent.
func broadcastIntent(ev model.RideEvent, c model.NearbyCandidate) model.NotificationIntent {
	body := "A new ride request is available nearby."
	if ev.PickupAddress != "" {
		body = "Pickup at " + ev.PickupAddress
	}
	if ev.EstimatedFare > 0 {
		body += fmt.Sprintf(" (est. fare %.2f)", ev.EstimatedFare)
	}
	data := map[string]string{
		"ride_id":     ev.RideID,
		"distance_km": strconv.FormatFloat(c.DistanceKm, 'f', 1, 64),
	}
	if ev.ServiceType != "" {
		data["service_type"] = ev.ServiceType
	}
	if ev.PickupAddress != "" {
		data["pickup"] = ev.PickupAddress
	}
	if ev.EstimatedFare > 0 {
		data["estimated_fare"] = strconv.FormatFloat(ev.EstimatedFare, 'f', 2, 64)
	}
	return model.NotificationIntent{
		RecipientID:     c.ProviderID,
		Type:            model.TypeNewRideRequest,
		Category:        model.CategoryRideRequest,
		Priority:        model.PriorityHigh,
		Title:           "New ride request",
		Message:         body,
		ActionReference: "/driver/requests/" + ev.RideID,
		RideID:          ev.RideID,
		ContextData:     data,
	}
}
