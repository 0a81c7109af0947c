package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"token-economy/internal/model"
	"token-economy/internal/pkg/db"
)

// SeasonalRepository handles seasonal currencies and per-user balances.
type SeasonalRepository struct {
	db db.DBTX
}

// NewSeasonalRepository creates a new SeasonalRepository instance.
func NewSeasonalRepository(conn db.DBTX) *SeasonalRepository {
	return &SeasonalRepository{db: conn}
}

const currencyColumns = `id, name, icon, multiplier, is_active, starts_at, ends_at`

func scanCurrency(row pgx.Row) (*model.SeasonalCurrency, error) {
	var c model.SeasonalCurrency
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Icon,
		&c.Multiplier,
		&c.IsActive,
		&c.StartsAt,
		&c.EndsAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCurrency inserts a seasonal currency and returns it with its id.
func (r *SeasonalRepository) CreateCurrency(ctx context.Context, c model.SeasonalCurrency) (*model.SeasonalCurrency, error) {
	query := `
		INSERT INTO seasonal_currencies (name, icon, multiplier, is_active, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + currencyColumns

	out, err := scanCurrency(r.db.QueryRow(ctx, query, c.Name, c.Icon, c.Multiplier, c.IsActive, c.StartsAt, c.EndsAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create seasonal currency: %w", err)
	}
	return out, nil
}

// GetCurrency returns a currency by id.
func (r *SeasonalRepository) GetCurrency(ctx context.Context, id uuid.UUID) (*model.SeasonalCurrency, error) {
	query := `SELECT ` + currencyColumns + ` FROM seasonal_currencies WHERE id = $1`

	c, err := scanCurrency(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSeasonalCurrencyNotFound
		}
		return nil, fmt.Errorf("failed to get seasonal currency: %w", err)
	}
	return c, nil
}

// ListActive returns every currency currently flagged active.
func (r *SeasonalRepository) ListActive(ctx context.Context) ([]model.SeasonalCurrency, error) {
	query := `SELECT ` + currencyColumns + ` FROM seasonal_currencies WHERE is_active ORDER BY name, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active currencies: %w", err)
	}
	defer rows.Close()

	var out []model.SeasonalCurrency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seasonal currency: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating seasonal currencies: %w", err)
	}
	return out, nil
}

// AddBalance credits amount of a seasonal currency to the user.
func (r *SeasonalRepository) AddBalance(ctx context.Context, userID, currencyID uuid.UUID, amount int64) (int64, error) {
	const query = `
		INSERT INTO seasonal_balances (user_id, currency_id, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, currency_id) DO UPDATE
		SET balance = seasonal_balances.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING balance
	`
	var balance int64
	if err := r.db.QueryRow(ctx, query, userID, currencyID, amount).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to add seasonal balance: %w", err)
	}
	return balance, nil
}

// Deduct removes amount from the user's seasonal balance, only while the
// balance covers it. Otherwise ErrInsufficientSeasonalBalance is returned.
func (r *SeasonalRepository) Deduct(ctx context.Context, userID, currencyID uuid.UUID, amount int64) (int64, error) {
	const query = `
		UPDATE seasonal_balances
		SET balance = balance - $3, updated_at = NOW()
		WHERE user_id = $1 AND currency_id = $2 AND balance >= $3
		RETURNING balance
	`
	var balance int64
	err := r.db.QueryRow(ctx, query, userID, currencyID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInsufficientSeasonalBalance
		}
		return 0, fmt.Errorf("failed to deduct seasonal balance: %w", err)
	}
	return balance, nil
}

// BalancesForUser returns the user's seasonal balances joined with the
// currency metadata.
func (r *SeasonalRepository) BalancesForUser(ctx context.Context, userID uuid.UUID) ([]model.SeasonalBalance, error) {
	const query = `
		SELECT b.user_id, b.balance,
			c.id, c.name, c.icon, c.multiplier, c.is_active, c.starts_at, c.ends_at
		FROM seasonal_balances b
		JOIN seasonal_currencies c ON c.id = b.currency_id
		WHERE b.user_id = $1
		ORDER BY c.is_active DESC, c.name
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get seasonal balances: %w", err)
	}
	defer rows.Close()

	balances := make([]model.SeasonalBalance, 0)
	for rows.Next() {
		var b model.SeasonalBalance
		if err := rows.Scan(
			&b.UserID,
			&b.Balance,
			&b.Currency.ID,
			&b.Currency.Name,
			&b.Currency.Icon,
			&b.Currency.Multiplier,
			&b.Currency.IsActive,
			&b.Currency.StartsAt,
			&b.Currency.EndsAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan seasonal balance: %w", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating seasonal balances: %w", err)
	}
	return balances, nil
}

// SyncActivation flips is_active for currencies that have a schedule so it
// matches whether now falls within [starts_at, ends_at). Currencies without
// any schedule are managed by hand and left alone.
func (r *SeasonalRepository) SyncActivation(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE seasonal_currencies
		SET is_active = (COALESCE(starts_at <= $1, TRUE) AND COALESCE(ends_at > $1, TRUE))
		WHERE (starts_at IS NOT NULL OR ends_at IS NOT NULL)
			AND is_active IS DISTINCT FROM (COALESCE(starts_at <= $1, TRUE) AND COALESCE(ends_at > $1, TRUE))
	`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sync seasonal activation: %w", err)
	}
	return tag.RowsAffected(), nil
}
