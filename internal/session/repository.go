package session

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amal-center/platform/internal/shared/errors"
	"github.com/amal-center/platform/internal/shared/types"
)

const sessionColumns = `id, subscription_id, session_date, start_time, end_time,
	duration_minutes, therapist_id, room_location, status, created_at, updated_at`

// Repository provides database operations for scheduled sessions
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new session repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSession(row pgx.Row) (*ScheduledSession, error) {
	s := &ScheduledSession{}
	err := row.Scan(
		&s.ID, &s.SubscriptionID, &s.Date, &s.StartTime, &s.EndTime,
		&s.DurationMinutes, &s.TherapistID, &s.RoomLocation, &s.Status,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func collectSessions(rows pgx.Rows) ([]ScheduledSession, error) {
	defer rows.Close()
	var sessions []ScheduledSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan session")
		}
		sessions = append(sessions, *s)
	}
	return sessions, nil
}

// Create creates a scheduled session
func (r *Repository) Create(ctx context.Context, s *ScheduledSession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO therapy.scheduled_sessions (
			id, subscription_id, session_date, start_time, end_time,
			duration_minutes, therapist_id, room_location, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.SubscriptionID, s.Date, s.StartTime, s.EndTime,
		s.DurationMinutes, s.TherapistID, s.RoomLocation, s.Status,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create session")
	}
	return nil
}

// Get retrieves a session by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*ScheduledSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM therapy.scheduled_sessions WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("session", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}
	return s, nil
}

// ListBySubscription lists all sessions of a subscription in date order
func (r *Repository) ListBySubscription(ctx context.Context, subID types.ID) ([]ScheduledSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM therapy.scheduled_sessions
		WHERE subscription_id = $1
		ORDER BY session_date, start_time`,
		subID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	return collectSessions(rows)
}

// ListScheduledInWindow lists a subscription's upcoming sessions (scheduled
// or previously rescheduled) whose date falls within [from, to], in ascending
// date order.
func (r *Repository) ListScheduledInWindow(ctx context.Context, subID types.ID, from, to time.Time) ([]ScheduledSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM therapy.scheduled_sessions
		WHERE subscription_id = $1
		  AND status IN ('scheduled', 'rescheduled')
		  AND session_date BETWEEN $2 AND $3
		ORDER BY session_date, start_time`,
		subID, from, to,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions in window")
	}
	return collectSessions(rows)
}

// ListForConflictCheck loads every non-cancelled session that shares a
// therapist or room with the given sets within [from, to]. This is the
// conflict pool the rescheduling engine checks candidates against.
func (r *Repository) ListForConflictCheck(ctx context.Context, therapistIDs []types.ID, rooms []string, from, to time.Time) ([]ScheduledSession, error) {
	ids := make([]string, 0, len(therapistIDs))
	for _, id := range therapistIDs {
		ids = append(ids, id.String())
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM therapy.scheduled_sessions
		WHERE status <> 'cancelled'
		  AND session_date BETWEEN $3 AND $4
		  AND (therapist_id::text = ANY($1) OR room_location = ANY($2))
		ORDER BY session_date, start_time`,
		ids, rooms, from, to,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load conflict pool")
	}
	return collectSessions(rows)
}

// CountRemaining counts a subscription's not-yet-occurred sessions (scheduled
// or rescheduled) on or after the given date.
func (r *Repository) CountRemaining(ctx context.Context, subID types.ID, after time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM therapy.scheduled_sessions
		WHERE subscription_id = $1 AND status IN ('scheduled', 'rescheduled') AND session_date >= $2`,
		subID, after,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count remaining sessions")
	}
	return count, nil
}

// ApplyReassignments commits a reschedule batch as one transaction: for every
// change it snapshots the prior slot under the rollback token, then writes the
// new slot. No intermediate state is visible to concurrent readers.
func (r *Repository) ApplyReassignments(ctx context.Context, token types.ID, changes []Assignment) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Infrastructure(err, "failed to begin reschedule transaction")
	}
	defer tx.Rollback(ctx)

	for _, change := range changes {
		// Snapshot the prior slot for rollback.
		_, err = tx.Exec(ctx, `
			INSERT INTO therapy.reschedule_snapshots (
				rollback_token, session_id, session_date, start_time, end_time,
				therapist_id, room_location, status
			)
			SELECT $1, id, session_date, start_time, end_time,
				therapist_id, room_location, status
			FROM therapy.scheduled_sessions
			WHERE id = $2`,
			token, change.SessionID,
		)
		if err != nil {
			return errors.Wrap(err, "failed to snapshot session")
		}

		result, err := tx.Exec(ctx, `
			UPDATE therapy.scheduled_sessions SET
				session_date = $2, start_time = $3, end_time = $4,
				therapist_id = $5, room_location = $6, status = $7,
				updated_at = NOW()
			WHERE id = $1`,
			change.SessionID, change.Date, change.StartTime, change.EndTime,
			change.TherapistID, change.RoomLocation, change.Status,
		)
		if err != nil {
			return errors.Wrap(err, "failed to apply reassignment")
		}
		if result.RowsAffected() == 0 {
			return errors.NotFound("session", change.SessionID.String())
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Infrastructure(err, "failed to commit reschedule transaction")
	}

	return nil
}

// RestoreSnapshot reverses a committed reschedule batch by restoring the
// assignments captured under the rollback token. Returns the number of
// sessions restored.
func (r *Repository) RestoreSnapshot(ctx context.Context, token types.ID) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Infrastructure(err, "failed to begin restore transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE therapy.scheduled_sessions s SET
			session_date = snap.session_date,
			start_time = snap.start_time,
			end_time = snap.end_time,
			therapist_id = snap.therapist_id,
			room_location = snap.room_location,
			status = snap.status,
			updated_at = NOW()
		FROM therapy.reschedule_snapshots snap
		WHERE snap.rollback_token = $1 AND snap.session_id = s.id`,
		token,
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to restore snapshot")
	}

	restored := int(result.RowsAffected())
	if restored == 0 {
		return 0, errors.NotFound("rollback snapshot", token.String())
	}

	_, err = tx.Exec(ctx, `DELETE FROM therapy.reschedule_snapshots WHERE rollback_token = $1`, token)
	if err != nil {
		return 0, errors.Wrap(err, "failed to clear snapshot")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Infrastructure(err, "failed to commit restore transaction")
	}

	return restored, nil
}
