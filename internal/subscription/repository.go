package subscription

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amal-center/platform/internal/shared/errors"
	"github.com/amal-center/platform/internal/shared/types"
)

// Repository provides database operations for subscriptions, freezes and the
// modification audit trail
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new subscription repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a new subscription
func (r *Repository) Create(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO therapy.subscriptions (
			id, student_id, program_id, start_date, end_date, original_end_date,
			freeze_days_allowed, freeze_days_used, status,
			sessions_total, sessions_completed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		sub.ID, sub.StudentID, sub.ProgramID, sub.StartDate, sub.EndDate, sub.OriginalEndDate,
		sub.FreezeDaysAllowed, sub.FreezeDaysUsed, sub.Status,
		sub.SessionsTotal, sub.SessionsCompleted,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("subscription already exists", "الاشتراك موجود بالفعل")
		}
		return errors.Wrap(err, "failed to create subscription")
	}

	return nil
}

// Get retrieves a subscription by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Subscription, error) {
	query := `
		SELECT id, student_id, program_id, start_date, end_date, original_end_date,
			freeze_days_allowed, freeze_days_used, status,
			sessions_total, sessions_completed, created_at, updated_at
		FROM therapy.subscriptions
		WHERE id = $1`

	sub := &Subscription{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sub.ID, &sub.StudentID, &sub.ProgramID, &sub.StartDate, &sub.EndDate, &sub.OriginalEndDate,
		&sub.FreezeDaysAllowed, &sub.FreezeDaysUsed, &sub.Status,
		&sub.SessionsTotal, &sub.SessionsCompleted, &sub.CreatedAt, &sub.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("subscription", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get subscription")
	}

	return sub, nil
}

// ActiveFreezeOverlapping returns an active freeze overlapping [start, end],
// or nil when none exists.
func (r *Repository) ActiveFreezeOverlapping(ctx context.Context, subID types.ID, start, end time.Time) (*Freeze, error) {
	query := `
		SELECT id, subscription_id, start_date, end_date, days, adjustment_days,
			reason, requested_by, status, created_at
		FROM therapy.freezes
		WHERE subscription_id = $1
		  AND status = 'active'
		  AND start_date <= $3
		  AND end_date >= $2
		LIMIT 1`

	f := &Freeze{}
	err := r.pool.QueryRow(ctx, query, subID, start, end).Scan(
		&f.ID, &f.SubscriptionID, &f.StartDate, &f.EndDate, &f.Days, &f.AdjustmentDays,
		&f.Reason, &f.RequestedBy, &f.Status, &f.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query active freeze")
	}

	return f, nil
}

// ApplyFreeze commits a freeze in one transaction: locks the subscription
// row, rejects overlap with any active freeze, inserts the freeze record and
// advances the end date by the freeze's adjustment. Concurrent commits for
// the same subscription serialize on the row lock, so the overlap and budget
// checks always see the latest committed state. Returns the new end date.
func (r *Repository) ApplyFreeze(ctx context.Context, freeze *Freeze) (time.Time, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return time.Time{}, errors.Infrastructure(err, "failed to begin freeze transaction")
	}
	defer tx.Rollback(ctx)

	var locked types.ID
	err = tx.QueryRow(ctx,
		`SELECT id FROM therapy.subscriptions WHERE id = $1 FOR UPDATE`,
		freeze.SubscriptionID,
	).Scan(&locked)
	if err == pgx.ErrNoRows {
		return time.Time{}, errors.NotFound("subscription", freeze.SubscriptionID.String())
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "failed to lock subscription for freeze")
	}

	var overlapping bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM therapy.freezes
			WHERE subscription_id = $1
			  AND status = 'active'
			  AND start_date <= $3
			  AND end_date >= $2
		)`,
		freeze.SubscriptionID, freeze.StartDate, freeze.EndDate,
	).Scan(&overlapping)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "failed to check freeze overlap")
	}
	if overlapping {
		return time.Time{}, errors.Conflict(
			"an active freeze already overlaps the requested window",
			"يوجد تجميد نشط متداخل مع الفترة المطلوبة",
		)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO therapy.freezes (
			id, subscription_id, start_date, end_date, days, adjustment_days,
			reason, requested_by, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		freeze.ID, freeze.SubscriptionID, freeze.StartDate, freeze.EndDate,
		freeze.Days, freeze.AdjustmentDays, freeze.Reason, freeze.RequestedBy, freeze.Status,
	)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "failed to insert freeze")
	}

	var newEndDate time.Time
	err = tx.QueryRow(ctx, `
		UPDATE therapy.subscriptions SET
			freeze_days_used = freeze_days_used + $2,
			end_date = end_date + make_interval(days => $3),
			status = $4,
			updated_at = NOW()
		WHERE id = $1 AND freeze_days_used + $2 <= freeze_days_allowed
		RETURNING end_date`,
		freeze.SubscriptionID, freeze.Days, freeze.AdjustmentDays, StatusFrozen,
	).Scan(&newEndDate)
	if err == pgx.ErrNoRows {
		return time.Time{}, errors.Conflict("freeze budget exceeded", "تم تجاوز رصيد أيام التجميد")
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "failed to update subscription for freeze")
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, errors.Infrastructure(err, "failed to commit freeze transaction")
	}

	return newEndDate, nil
}

// RevertFreeze reverses one committed freeze in one transaction: cancels that
// freeze record and subtracts its own budget and end-date delta. Other active
// freezes on the subscription are untouched; the subscription only returns to
// active when none remain.
func (r *Repository) RevertFreeze(ctx context.Context, freezeID types.ID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Infrastructure(err, "failed to begin revert transaction")
	}
	defer tx.Rollback(ctx)

	var subID types.ID
	var days, adjustmentDays int
	err = tx.QueryRow(ctx, `
		UPDATE therapy.freezes SET status = 'cancelled'
		WHERE id = $1 AND status = 'active'
		RETURNING subscription_id, days, adjustment_days`,
		freezeID,
	).Scan(&subID, &days, &adjustmentDays)
	if err == pgx.ErrNoRows {
		return errors.NotFound("active freeze", freezeID.String())
	}
	if err != nil {
		return errors.Wrap(err, "failed to cancel freeze")
	}

	_, err = tx.Exec(ctx, `
		UPDATE therapy.subscriptions SET
			freeze_days_used = GREATEST(freeze_days_used - $2, 0),
			end_date = end_date - make_interval(days => $3),
			status = CASE WHEN EXISTS (
				SELECT 1 FROM therapy.freezes
				WHERE subscription_id = $1 AND status = 'active'
			) THEN status ELSE $4 END,
			updated_at = NOW()
		WHERE id = $1`,
		subID, days, adjustmentDays, StatusActive,
	)
	if err != nil {
		return errors.Wrap(err, "failed to restore subscription")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Infrastructure(err, "failed to commit revert transaction")
	}

	return nil
}

// RecordModification appends the audit record of a committed modification.
func (r *Repository) RecordModification(ctx context.Context, rec *ModificationRecord) error {
	changes, err := json.Marshal(rec.ProposedChanges)
	if err != nil {
		return errors.Wrap(err, "failed to marshal proposed changes")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO therapy.modifications (
			id, subscription_id, type, scope, effective_date, proposed_changes,
			requested_by, approval_status, rollback_token
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.SubscriptionID, rec.Type, rec.Scope, rec.EffectiveDate, changes,
		rec.RequestedBy, rec.ApprovalStatus, rec.RollbackToken,
	)
	if err != nil {
		return errors.Wrap(err, "failed to record modification")
	}

	return nil
}

// GetModification retrieves a modification audit record by ID
func (r *Repository) GetModification(ctx context.Context, id types.ID) (*ModificationRecord, error) {
	query := `
		SELECT id, subscription_id, type, scope, effective_date, proposed_changes,
			requested_by, approval_status, rollback_token, implemented_at, rolled_back_at
		FROM therapy.modifications
		WHERE id = $1`

	rec := &ModificationRecord{}
	var changes []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.SubscriptionID, &rec.Type, &rec.Scope, &rec.EffectiveDate, &changes,
		&rec.RequestedBy, &rec.ApprovalStatus, &rec.RollbackToken, &rec.ImplementedAt, &rec.RolledBackAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("modification", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get modification")
	}

	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &rec.ProposedChanges); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal proposed changes")
		}
	}

	return rec, nil
}

// MarkRolledBack stamps a modification audit record as reversed.
func (r *Repository) MarkRolledBack(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE therapy.modifications SET rolled_back_at = NOW()
		WHERE id = $1 AND rolled_back_at IS NULL`,
		id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to mark modification rolled back")
	}
	if result.RowsAffected() == 0 {
		return errors.Conflict("modification already rolled back", "تم التراجع عن هذا التعديل مسبقاً")
	}
	return nil
}

// ListModifications lists the audit trail of a subscription, newest first.
func (r *Repository) ListModifications(ctx context.Context, subID types.ID) ([]ModificationRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, subscription_id, type, scope, effective_date, proposed_changes,
			requested_by, approval_status, rollback_token, implemented_at, rolled_back_at
		FROM therapy.modifications
		WHERE subscription_id = $1
		ORDER BY implemented_at DESC`,
		subID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list modifications")
	}
	defer rows.Close()

	var records []ModificationRecord
	for rows.Next() {
		var rec ModificationRecord
		var changes []byte
		err := rows.Scan(
			&rec.ID, &rec.SubscriptionID, &rec.Type, &rec.Scope, &rec.EffectiveDate, &changes,
			&rec.RequestedBy, &rec.ApprovalStatus, &rec.RollbackToken, &rec.ImplementedAt, &rec.RolledBackAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan modification")
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &rec.ProposedChanges); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal proposed changes")
			}
		}
		records = append(records, rec)
	}

	return records, nil
}
