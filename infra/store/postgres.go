// Package store persists notifications, delivery logs and the ride/profile
// read models on PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/devsmilefactory/moversfinder-sub010/core/dispatch"
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

// defaultNearbyLimit caps how many candidates one broadcast considers.
const defaultNearbyLimit = 100

// Config defines the database connection settings.
type Config struct {
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
	// NearbyLimit caps how many candidates one broadcast considers.
	NearbyLimit int `json:"nearby_limit"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.NearbyLimit <= 0 {
		c.NearbyLimit = defaultNearbyLimit
	}
}

// PostgresStore implements the dispatch ports (RecordStore, RideDirectory,
// CandidateFinder) and the push token lookup on a shared connection pool.
type PostgresStore struct {
	db          *sql.DB
	nearbyLimit int
}

// Open connects to the database and configures the pool.
func Open(cfg Config) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store: database dsn is required")
	}
	cfg.SetDefaults()
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	s := NewPostgresStore(db)
	s.nearbyLimit = cfg.NearbyLimit
	return s, nil
}

// NewPostgresStore wraps an existing pool. The caller keeps ownership of db
// unless Close is used.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, nearbyLimit: defaultNearbyLimit}
}

// Ping verifies connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// contextData stores the notification payload map as jsonb.
type contextData map[string]string

func (c contextData) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	return json.Marshal(c)
}

func (c *contextData) Scan(src any) error {
	if src == nil {
		*c = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("store: cannot scan %T into context data", src)
	}
	return json.Unmarshal(raw, c)
}

// CreateNotification inserts one notification row. The caller assigns the id
// and creation time.
func (s *PostgresStore) CreateNotification(ctx context.Context, rec *model.NotificationRecord) error {
	query := `
		INSERT INTO notifications
			(id, user_id, type, category, priority, title, message, action_reference, ride_id, context_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Type, rec.Category, string(rec.Priority), rec.Title, rec.Message,
		nullable(rec.ActionReference), nullable(rec.RideID), contextData(rec.ContextData), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: create notification: %w", err)
	}
	return nil
}

// MarkDelivered records a successful push against the notification row.
func (s *PostgresStore) MarkDelivered(ctx context.Context, notificationID string, at time.Time) error {
	query := `
		UPDATE notifications
		SET push_sent = TRUE, push_sent_at = $2, push_delivery_confirmed = TRUE, push_error = NULL
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, notificationID, at); err != nil {
		return fmt.Errorf("store: mark delivered: %w", err)
	}
	return nil
}

// MarkFailed records a failed push and bumps the retry counter so an external
// sweep can pick the row up later.
func (s *PostgresStore) MarkFailed(ctx context.Context, notificationID string, cause string) error {
	query := `
		UPDATE notifications
		SET push_sent = FALSE, push_error = $2, retry_count = retry_count + 1
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, notificationID, cause); err != nil {
		return fmt.Errorf("store: mark failed: %w", err)
	}
	return nil
}

// AppendDeliveryLog writes one audit row per delivery attempt.
func (s *PostgresStore) AppendDeliveryLog(ctx context.Context, entry model.DeliveryLogEntry) error {
	query := `
		INSERT INTO notification_delivery_log
			(id, notification_id, attempt_number, delivery_method, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), entry.NotificationID, entry.AttemptNumber, entry.DeliveryMethod,
		entry.Success, nullable(entry.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("store: append delivery log: %w", err)
	}
	return nil
}

// notificationColumns is the select list shared by every notification read.
const notificationColumns = `id, user_id, type, category, priority, title, message,
	       COALESCE(action_reference, ''), COALESCE(ride_id, ''), context_data,
	       push_sent, push_sent_at, push_delivery_confirmed, push_error, retry_count, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (model.NotificationRecord, error) {
	var rec model.NotificationRecord
	var priority string
	var data contextData
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Type, &rec.Category, &priority, &rec.Title, &rec.Message,
		&rec.ActionReference, &rec.RideID, &data,
		&rec.PushSent, &rec.PushSentAt, &rec.PushDeliveryConfirmed, &rec.PushError, &rec.RetryCount, &rec.CreatedAt)
	if err != nil {
		return rec, err
	}
	rec.Priority = model.Priority(priority)
	rec.ContextData = data
	return rec, nil
}

// Notification loads one notification row.
func (s *PostgresStore) Notification(ctx context.Context, id string) (*model.NotificationRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	rec, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load notification: %w", err)
	}
	return &rec, nil
}

// defaultQueryLimit caps unbounded log queries.
const defaultQueryLimit = 100

// QueryNotifications lists notification rows matching the filters, newest
// first. A non-positive limit selects defaultQueryLimit.
func (s *PostgresStore) QueryNotifications(ctx context.Context, q model.NotificationQuery) ([]model.NotificationRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE ($1 = '' OR ride_id = $1)
		  AND ($2 = '' OR user_id = $2)
		  AND ($3 = '' OR type = $3)
		  AND (NOT $4 OR (NOT push_sent AND push_error IS NOT NULL))
		  AND ($5::timestamptz IS NULL OR created_at >= $5)
		ORDER BY created_at DESC
		LIMIT $6
	`
	since := sql.NullTime{Time: q.Since, Valid: !q.Since.IsZero()}
	rows, err := s.db.QueryContext(ctx, query, q.RideID, q.UserID, q.Type, q.FailedOnly, since, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var recs []model.NotificationRecord
	for rows.Next() {
		rec, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("store: query notifications: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// FailedNotifications returns undelivered rows still inside the retry budget,
// oldest first, for the external retry sweep.
func (s *PostgresStore) FailedNotifications(ctx context.Context, maxRetries, limit int) ([]model.NotificationRecord, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE NOT push_sent AND push_error IS NOT NULL AND retry_count < $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("store: failed notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var recs []model.NotificationRecord
	for rows.Next() {
		rec, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("store: failed notifications: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeliveryLog returns the attempts recorded for a notification, oldest first.
func (s *PostgresStore) DeliveryLog(ctx context.Context, notificationID string) ([]model.DeliveryLogEntry, error) {
	query := `
		SELECT notification_id, attempt_number, delivery_method, success, COALESCE(error_message, '')
		FROM notification_delivery_log
		WHERE notification_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, notificationID)
	if err != nil {
		return nil, fmt.Errorf("store: load delivery log: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var entries []model.DeliveryLogEntry
	for rows.Next() {
		var e model.DeliveryLogEntry
		if err := rows.Scan(&e.NotificationID, &e.AttemptNumber, &e.DeliveryMethod, &e.Success, &e.ErrorMessage); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ride loads the subset of a ride row the dispatcher needs.
func (s *PostgresStore) Ride(ctx context.Context, rideID string) (model.Ride, error) {
	query := `
		SELECT id, passenger_id, COALESCE(driver_id, ''), status,
		       COALESCE(service_type, ''), COALESCE(pickup_address, ''),
		       COALESCE(pickup_lat, 0), COALESCE(pickup_lng, 0), COALESCE(estimated_fare, 0)
		FROM rides WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, rideID)
	var r model.Ride
	err := row.Scan(&r.ID, &r.PassengerID, &r.DriverID, &r.Status,
		&r.ServiceType, &r.PickupAddress, &r.PickupLat, &r.PickupLng, &r.EstimatedFare)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ride{}, dispatch.ErrRideNotFound
	}
	if err != nil {
		return model.Ride{}, fmt.Errorf("store: load ride: %w", err)
	}
	return r, nil
}

// FindNearby returns providers within radiusKm of the origin ordered by
// distance, eligible or not; eligibility is the dispatcher's concern. The
// haversine runs in SQL so only candidate rows cross the wire.
func (s *PostgresStore) FindNearby(ctx context.Context, origin model.Coordinates, radiusKm float64, serviceType string) ([]model.NearbyCandidate, error) {
	query := `
		SELECT user_id, is_online, is_available, active_ride_id, distance_km FROM (
			SELECT user_id, is_online, is_available, active_ride_id,
			       6371 * acos(least(1.0,
			           cos(radians($1)) * cos(radians(current_lat)) * cos(radians(current_lng) - radians($2))
			           + sin(radians($1)) * sin(radians(current_lat))
			       )) AS distance_km
			FROM driver_profiles
			WHERE current_lat IS NOT NULL AND current_lng IS NOT NULL
			  AND ($4 = '' OR service_type = $4)
		) c
		WHERE c.distance_km <= $3
		ORDER BY c.distance_km
		LIMIT $5
	`
	rows, err := s.db.QueryContext(ctx, query, origin.Lat, origin.Lng, radiusKm, serviceType, s.nearbyLimit)
	if err != nil {
		return nil, fmt.Errorf("store: find nearby: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.NearbyCandidate
	for rows.Next() {
		var c model.NearbyCandidate
		var active sql.NullString
		if err := rows.Scan(&c.ProviderID, &c.IsOnline, &c.IsAvailable, &active, &c.DistanceKm); err != nil {
			return nil, err
		}
		if active.Valid && active.String != "" {
			c.ActiveRideID = &active.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeviceToken returns the recipient's registered push token, or empty when
// the profile is missing or carries none. Only infrastructure failures error.
func (s *PostgresStore) DeviceToken(ctx context.Context, userID string) (string, error) {
	var token sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT fcm_token FROM profiles WHERE id = $1`, userID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: load device token: %w", err)
	}
	return token.String, nil
}

// nullable maps empty strings to NULL so optional text columns stay NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
