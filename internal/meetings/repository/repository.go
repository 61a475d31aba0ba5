// Package repository persists booked meetings and the clients they belong to.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lawjfmiranda/jurbot1/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Meeting statuses.
const (
	StatusScheduled  = "SCHEDULED"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
	StatusFollowedUp = "FOLLOWED_UP"
)

// Meeting is a booked appointment joined with its client contact data.
type Meeting struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	ClientPhone     string
	ClientName      string
	CalendarEventID string
	StartTime       time.Time
	EndTime         time.Time
	Status          string
}

// Repository is the pgx-backed meetings store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a meetings repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertClient creates or updates the client record for a phone number and
// returns its ID. A non-empty name overwrites the stored one.
func (r *Repository) UpsertClient(ctx context.Context, phone, fullName string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO clients (id, phone, full_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (phone) DO UPDATE
		 SET full_name = CASE WHEN EXCLUDED.full_name <> '' THEN EXCLUDED.full_name ELSE clients.full_name END
		 RETURNING id`,
		uuid.New(), phone, fullName,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindUnavailable, "upsert client", err).WithOp("repository.UpsertClient")
	}
	return id, nil
}

// CreateMeeting records a confirmed appointment.
func (r *Repository) CreateMeeting(ctx context.Context, clientID uuid.UUID, calendarEventID string, start, end time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO meetings (id, client_id, calendar_event_id, start_time, end_time, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, clientID, calendarEventID, start, end, StatusScheduled,
	)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindUnavailable, "create meeting", err).WithOp("repository.CreateMeeting")
	}
	return id, nil
}

// GetMeeting loads a meeting with its client contact data. Returns a
// not-found error for unknown IDs.
func (r *Repository) GetMeeting(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	var m Meeting
	err := r.pool.QueryRow(ctx,
		`SELECT m.id, m.client_id, c.phone, c.full_name, m.calendar_event_id, m.start_time, m.end_time, m.status
		 FROM meetings m
		 JOIN clients c ON c.id = m.client_id
		 WHERE m.id = $1`,
		id,
	).Scan(&m.ID, &m.ClientID, &m.ClientPhone, &m.ClientName, &m.CalendarEventID, &m.StartTime, &m.EndTime, &m.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("meeting not found").WithOp("repository.GetMeeting")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "load meeting", err).WithOp("repository.GetMeeting")
	}
	return &m, nil
}

// UpdateStatus moves a meeting to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE meetings SET status = $2 WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "update meeting status", err).WithOp("repository.UpdateStatus")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("meeting not found").WithOp("repository.UpdateStatus")
	}
	return nil
}

// ListUpcoming returns scheduled meetings starting within the given window,
// earliest first.
func (r *Repository) ListUpcoming(ctx context.Context, from, to time.Time) ([]Meeting, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.client_id, c.phone, c.full_name, m.calendar_event_id, m.start_time, m.end_time, m.status
		 FROM meetings m
		 JOIN clients c ON c.id = m.client_id
		 WHERE m.status = $1 AND m.start_time >= $2 AND m.start_time < $3
		 ORDER BY m.start_time`,
		StatusScheduled, from, to,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "list meetings", err).WithOp("repository.ListUpcoming")
	}
	defer rows.Close()

	var meetings []Meeting
	for rows.Next() {
		var m Meeting
		if err := rows.Scan(&m.ID, &m.ClientID, &m.ClientPhone, &m.ClientName, &m.CalendarEventID, &m.StartTime, &m.EndTime, &m.Status); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan meeting", err).WithOp("repository.ListUpcoming")
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "list meetings", err).WithOp("repository.ListUpcoming")
	}
	return meetings, nil
}
