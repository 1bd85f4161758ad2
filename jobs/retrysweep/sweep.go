// Package retrysweep re-attempts notifications whose push delivery failed.
// The dispatcher itself never retries; this sweep is the reconciliation path
// an operator or cron job runs to drain the retry backlog.
package retrysweep

import (
	"context"
	"fmt"
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/core/logger"
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
	"github.com/devsmilefactory/moversfinder-sub010/core/push"
)

// DefaultMaxRetries bounds how often one notification is re-attempted before
// the sweep leaves it alone for good.
const DefaultMaxRetries = 3

// Store is the slice of the record store the sweep needs.
type Store interface {
	FailedNotifications(ctx context.Context, maxRetries, limit int) ([]model.NotificationRecord, error)
	MarkDelivered(ctx context.Context, notificationID string, at time.Time) error
	MarkFailed(ctx context.Context, notificationID string, cause string) error
	AppendDeliveryLog(ctx context.Context, entry model.DeliveryLogEntry) error
}

// Result summarizes one sweep pass.
type Result struct {
	Scanned   int
	Delivered int
	Skipped   int
	Failed    int
}

// Sweeper re-sends failed notifications through the push gateway.
type Sweeper struct {
	store  Store
	sender push.Sender
	log    logger.Logger
}

// New creates a Sweeper.
func New(store Store, sender push.Sender, log logger.Logger) (*Sweeper, error) {
	if store == nil || sender == nil || log == nil {
		return nil, fmt.Errorf("retrysweep: nil parameter provided to New")
	}
	return &Sweeper{store: store, sender: sender, log: log}, nil
}

// Sweep re-attempts up to limit undelivered notifications whose retry count
// is below maxRetries, oldest first. Every attempt appends a delivery log row
// carrying the next attempt number; a failed re-send bumps the retry counter
// so the row eventually ages out of the sweep.
func (s *Sweeper) Sweep(ctx context.Context, maxRetries, limit int) (Result, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	recs, err := s.store.FailedNotifications(ctx, maxRetries, limit)
	if err != nil {
		return Result{}, err
	}
	res := Result{Scanned: len(recs)}
	s.log.Infof("sweeping %d undelivered notifications", len(recs))
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		attempt := rec.RetryCount + 1
		receipt, err := s.sender.Send(ctx, push.Delivery{
			NotificationID:  rec.ID,
			RecipientID:     rec.UserID,
			Type:            rec.Type,
			Category:        rec.Category,
			Priority:        rec.Priority,
			Title:           rec.Title,
			Body:            rec.Message,
			ActionReference: rec.ActionReference,
			RideID:          rec.RideID,
			Data:            rec.ContextData,
		})
		switch {
		case err != nil:
			res.Failed++
			if markErr := s.store.MarkFailed(ctx, rec.ID, err.Error()); markErr != nil {
				s.log.Errorf("mark %s failed: %v", rec.ID, markErr)
			}
			s.appendLog(ctx, rec.ID, attempt, false, err.Error())
			s.log.Warnf("attempt %d for %s failed: %v", attempt, rec.ID, err)
		case receipt.State == push.StateSkippedNoToken:
			// Counted against the retry budget so tokenless rows age out of
			// the sweep instead of being rescanned forever.
			res.Skipped++
			if markErr := s.store.MarkFailed(ctx, rec.ID, "no device token registered"); markErr != nil {
				s.log.Errorf("mark %s failed: %v", rec.ID, markErr)
			}
			s.log.Infof("recipient %s has no device token, notification %s stays in-app only", rec.UserID, rec.ID)
		default:
			res.Delivered++
			if markErr := s.store.MarkDelivered(ctx, rec.ID, time.Now()); markErr != nil {
				s.log.Errorf("mark %s delivered: %v", rec.ID, markErr)
			}
			s.appendLog(ctx, rec.ID, attempt, true, "")
			s.log.Debugf("attempt %d delivered %s to %s", attempt, rec.ID, rec.UserID)
		}
	}
	return res, nil
}

func (s *Sweeper) appendLog(ctx context.Context, notificationID string, attempt int, success bool, errMsg string) {
	entry := model.DeliveryLogEntry{
		NotificationID: notificationID,
		AttemptNumber:  attempt,
		DeliveryMethod: model.DeliveryMethodPush,
		Success:        success,
		ErrorMessage:   errMsg,
	}
	if err := s.store.AppendDeliveryLog(ctx, entry); err != nil {
		s.log.Errorf("append delivery log for %s: %v", notificationID, err)
	}
}
