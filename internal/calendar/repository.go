package calendar

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amal-center/platform/internal/shared/errors"
)

// Repository provides database operations for the holiday calendar
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new calendar repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListHolidays returns all excluded dates
func (r *Repository) ListHolidays(ctx context.Context) ([]Holiday, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT holiday_date, name, name_ar
		FROM therapy.holidays
		ORDER BY holiday_date`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list holidays")
	}
	defer rows.Close()

	var holidays []Holiday
	for rows.Next() {
		var h Holiday
		if err := rows.Scan(&h.Date, &h.Name, &h.NameAr); err != nil {
			return nil, errors.Wrap(err, "failed to scan holiday")
		}
		holidays = append(holidays, h)
	}

	return holidays, nil
}

// AddHoliday inserts or replaces an excluded date
func (r *Repository) AddHoliday(ctx context.Context, h Holiday) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO therapy.holidays (holiday_date, name, name_ar)
		VALUES ($1, $2, $3)
		ON CONFLICT (holiday_date) DO UPDATE SET name = $2, name_ar = $3`,
		h.Date, h.Name, h.NameAr,
	)
	if err != nil {
		return errors.Wrap(err, "failed to add holiday")
	}
	return nil
}
