package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"token-economy/internal/pkg/db"
)

// DailyCapRepository tracks how much each user earned per UTC day.
type DailyCapRepository struct {
	db db.DBTX
}

// NewDailyCapRepository creates a new DailyCapRepository instance.
func NewDailyCapRepository(conn db.DBTX) *DailyCapRepository {
	return &DailyCapRepository{db: conn}
}

// Get returns the amount earned on day, 0 when nothing was earned.
func (r *DailyCapRepository) Get(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error) {
	const query = `
		SELECT total_earned FROM daily_earning_caps
		WHERE user_id = $1 AND earn_date = $2
	`
	var total int64
	err := r.db.QueryRow(ctx, query, userID, day).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get daily earnings: %w", err)
	}
	return total, nil
}

// Lock creates the (user, day) row if needed and holds its row lock until
// the surrounding transaction ends. It returns the amount earned so far.
func (r *DailyCapRepository) Lock(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error) {
	// The no-op update makes the upsert take the row lock and return the
	// current value whether or not the row already existed.
	const query = `
		INSERT INTO daily_earning_caps (user_id, earn_date, total_earned)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id, earn_date) DO UPDATE
		SET total_earned = daily_earning_caps.total_earned
		RETURNING total_earned
	`
	var total int64
	if err := r.db.QueryRow(ctx, query, userID, day).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to lock daily earnings: %w", err)
	}
	return total, nil
}

// Add records amount as earned on day. The update is refused with
// ErrDailyCapExceeded when it would push the total above dailyCap.
func (r *DailyCapRepository) Add(ctx context.Context, userID uuid.UUID, day time.Time, amount, dailyCap int64) (int64, error) {
	const query = `
		INSERT INTO daily_earning_caps (user_id, earn_date, total_earned)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, earn_date) DO UPDATE
		SET total_earned = daily_earning_caps.total_earned + EXCLUDED.total_earned
		WHERE daily_earning_caps.total_earned + EXCLUDED.total_earned <= $4
		RETURNING total_earned
	`
	if amount > dailyCap {
		return 0, ErrDailyCapExceeded
	}
	var total int64
	err := r.db.QueryRow(ctx, query, userID, day, amount, dailyCap).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrDailyCapExceeded
		}
		return 0, fmt.Errorf("failed to add daily earnings: %w", err)
	}
	return total, nil
}

// PruneBefore deletes rows for days before cutoff.
func (r *DailyCapRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM daily_earning_caps WHERE earn_date < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune daily earnings: %w", err)
	}
	return tag.RowsAffected(), nil
}
