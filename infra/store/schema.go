package store

import (
	"context"
	"fmt"
)

// schema is applied idempotently at startup. The rides, profiles and
// driver_profiles tables are owned by the platform's core services; they are
// created here only so a fresh environment works end to end.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		category TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'normal',
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		action_reference TEXT,
		ride_id TEXT,
		context_data JSONB,
		push_sent BOOLEAN NOT NULL DEFAULT FALSE,
		push_sent_at TIMESTAMPTZ,
		push_delivery_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		push_error TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_created
		ON notifications (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_ride
		ON notifications (ride_id) WHERE ride_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS notification_delivery_log (
		id TEXT PRIMARY KEY,
		notification_id TEXT NOT NULL REFERENCES notifications (id),
		attempt_number INTEGER NOT NULL DEFAULT 1,
		delivery_method TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_log_notification
		ON notification_delivery_log (notification_id)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		full_name TEXT,
		fcm_token TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS rides (
		id TEXT PRIMARY KEY,
		passenger_id TEXT NOT NULL,
		driver_id TEXT,
		status TEXT NOT NULL,
		service_type TEXT,
		pickup_address TEXT,
		pickup_lat DOUBLE PRECISION,
		pickup_lng DOUBLE PRECISION,
		estimated_fare NUMERIC,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS driver_profiles (
		user_id TEXT PRIMARY KEY,
		service_type TEXT,
		is_online BOOLEAN NOT NULL DEFAULT FALSE,
		is_available BOOLEAN NOT NULL DEFAULT FALSE,
		active_ride_id TEXT,
		current_lat DOUBLE PRECISION,
		current_lng DOUBLE PRECISION,
		last_seen_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_driver_profiles_position
		ON driver_profiles (current_lat, current_lng)
		WHERE current_lat IS NOT NULL AND current_lng IS NOT NULL`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}
