package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/ticket-inventory/internal/domain"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// db returns the transaction carried by ctx, or the pool outside of WithTx.
func (r *Repository) db(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.pool
}

// WithTx runs fn in a SERIALIZABLE transaction. Repository calls made with
// the ctx passed to fn join it. Nested calls reuse the outer transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return mapError(err)
	}
	return mapError(tx.Commit(ctx))
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case SerializationFailureCode:
			return errors.WithSecondaryError(domain.ErrSerializationFailure, err)
		case UniqueViolationCode:
			return errors.Wrap(domain.ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}

// Ping is used by the readiness probe.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) CreateEvent(ctx context.Context, event *domain.Event) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO events (id, title, starts_at, ticket_price, available_tickets, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.Title, event.StartsAt, event.TicketPrice, event.AvailableTickets, event.Version, event.CreatedAt)
	return mapError(err)
}

const eventColumns = `id, title, starts_at, ticket_price, available_tickets, version, created_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.Title, &e.StartsAt, &e.TicketPrice, &e.AvailableTickets, &e.Version, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) FindEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	e, err := scanEvent(r.db(ctx).QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "event %s", id)
	}
	return e, err
}

// SaveEvent writes the mutable columns of event when the stored version still
// matches, and advances event.Version.
func (r *Repository) SaveEvent(ctx context.Context, event *domain.Event) error {
	result, err := r.db(ctx).Exec(ctx, `
		UPDATE events SET title = $2, starts_at = $3, ticket_price = $4, available_tickets = $5, version = version + 1
		WHERE id = $1 AND version = $6
	`, event.ID, event.Title, event.StartsAt, event.TicketPrice, event.AvailableTickets, event.Version)
	if err != nil {
		return mapError(err)
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrConflict, "event %s changed since version %d", event.ID, event.Version)
	}
	event.Version++
	return nil
}

func (r *Repository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := r.db(ctx).Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY starts_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

const bookingColumns = `id, user_id, event_id, ticket_count, total_amount, status, is_reserved, expires_at, created_at, reference`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b      domain.Booking
		status string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.EventID, &b.TicketCount, &b.TotalAmount, &status, &b.IsReserved, &b.ExpiresAt, &b.CreatedAt, &b.Reference)
	if err != nil {
		return nil, err
	}
	b.Status = domain.Status(status)
	return &b, nil
}

func (r *Repository) queryBookings(ctx context.Context, sql string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *Repository) FindActiveHolds(ctx context.Context, eventID uuid.UUID, asOf time.Time) ([]domain.Booking, error) {
	return r.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE event_id = $1 AND status = 'PENDING' AND is_reserved AND expires_at > $2
	`, eventID, asOf)
}

func (r *Repository) FindExpiredHolds(ctx context.Context, asOf time.Time) ([]domain.Booking, error) {
	return r.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'PENDING' AND is_reserved AND expires_at <= $1
		ORDER BY expires_at
	`, asOf)
}

func (r *Repository) FindBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, err := scanBooking(r.db(ctx).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "booking %s", id)
	}
	return b, err
}

func (r *Repository) FindBookingsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	return r.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
}

func (r *Repository) SaveBooking(ctx context.Context, b *domain.Booking) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			is_reserved = excluded.is_reserved,
			expires_at = excluded.expires_at
	`, b.ID, b.UserID, b.EventID, b.TicketCount, b.TotalAmount, string(b.Status), b.IsReserved, b.ExpiresAt, b.CreatedAt, b.Reference)
	return mapError(err)
}

func (r *Repository) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	_, err := r.db(ctx).Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	return err
}
