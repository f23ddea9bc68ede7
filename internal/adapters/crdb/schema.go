package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		title STRING NOT NULL,
		starts_at TIMESTAMPTZ NOT NULL,
		ticket_price DECIMAL(12,2) NOT NULL,
		available_tickets INT8 NOT NULL CHECK (available_tickets >= 0),
		version INT8 NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		event_id UUID NOT NULL REFERENCES events (id),
		ticket_count INT8 NOT NULL CHECK (ticket_count > 0),
		total_amount DECIMAL(12,2) NOT NULL,
		status STRING NOT NULL CHECK (status IN ('PENDING', 'CONFIRMED', 'CANCELLED')),
		is_reserved BOOL NOT NULL DEFAULT false,
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		reference STRING NOT NULL UNIQUE
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_holds_idx ON bookings (event_id, expires_at) WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS bookings_expiry_idx ON bookings (expires_at) WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS bookings_user_idx ON bookings (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type STRING NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type STRING NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status STRING NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
		dedupe_key STRING NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (created_at) WHERE status = 'NEW'`,
}

// Migrate creates the tables the repository needs. It is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}
