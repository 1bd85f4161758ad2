// Package export serializes notification records for operator tooling.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, recs []model.NotificationRecord) error {
	enc := json.NewEncoder(w)
	return enc.Encode(recs)
}

// WriteCSV writes the records to w with one row per notification.
func WriteCSV(w io.Writer, recs []model.NotificationRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "user_id", "type", "category", "priority", "ride_id", "push_sent", "push_error", "retry_count", "created_at"}); err != nil {
		return err
	}
	for _, r := range recs {
		pushErr := ""
		if r.PushError != nil {
			pushErr = *r.PushError
		}
		rec := []string{
			r.ID,
			r.UserID,
			r.Type,
			r.Category,
			string(r.Priority),
			r.RideID,
			strconv.FormatBool(r.PushSent),
			pushErr,
			strconv.Itoa(r.RetryCount),
			r.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
