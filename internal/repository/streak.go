package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"token-economy/internal/model"
	"token-economy/internal/pkg/db"
)

// StreakRepository handles login streak persistence.
type StreakRepository struct {
	db db.DBTX
}

// NewStreakRepository creates a new StreakRepository instance.
func NewStreakRepository(conn db.DBTX) *StreakRepository {
	return &StreakRepository{db: conn}
}

const streakColumns = `user_id, current_streak, longest_streak, last_claim_date, monthly_claims, monthly_reset_date`

func scanStreak(row pgx.Row) (*model.LoginStreak, error) {
	var s model.LoginStreak
	err := row.Scan(
		&s.UserID,
		&s.CurrentStreak,
		&s.LongestStreak,
		&s.LastClaimDate,
		&s.MonthlyClaims,
		&s.MonthlyResetDate,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Get returns the user's streak, or a zero streak if none is stored.
func (r *StreakRepository) Get(ctx context.Context, userID uuid.UUID) (*model.LoginStreak, error) {
	query := `SELECT ` + streakColumns + ` FROM login_streaks WHERE user_id = $1`

	s, err := scanStreak(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.LoginStreak{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get login streak: %w", err)
	}
	return s, nil
}

// GetForUpdate returns the user's streak row, creating an empty one first,
// and holds its lock until the transaction ends.
func (r *StreakRepository) GetForUpdate(ctx context.Context, userID uuid.UUID) (*model.LoginStreak, error) {
	query := `
		INSERT INTO login_streaks (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING ` + streakColumns

	s, err := scanStreak(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock login streak: %w", err)
	}
	return s, nil
}

// Save writes the streak state.
func (r *StreakRepository) Save(ctx context.Context, s *model.LoginStreak) error {
	const query = `
		INSERT INTO login_streaks (user_id, current_streak, longest_streak, last_claim_date, monthly_claims, monthly_reset_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_claim_date = EXCLUDED.last_claim_date,
			monthly_claims = EXCLUDED.monthly_claims,
			monthly_reset_date = EXCLUDED.monthly_reset_date,
			updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		s.UserID,
		s.CurrentStreak,
		s.LongestStreak,
		s.LastClaimDate,
		s.MonthlyClaims,
		s.MonthlyResetDate,
	)
	if err != nil {
		return fmt.Errorf("failed to save login streak: %w", err)
	}
	return nil
}

// TopByLongest returns the users with the longest streak ever reached.
func (r *StreakRepository) TopByLongest(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	const query = `
		SELECT s.longest_streak::BIGINT, s.user_id, p.discord_id, COALESCE(p.display_name, ''), p.avatar_url
		FROM login_streaks s
		LEFT JOIN profiles p ON p.user_id = s.user_id
		WHERE s.longest_streak > 0
		ORDER BY s.longest_streak DESC, s.user_id
		LIMIT $1
	`
	return queryLeaderboard(ctx, r.db, query, limit)
}
