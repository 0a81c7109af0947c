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

// WalletRepository handles wallet persistence. Every balance change is a
// single statement so concurrent requests can never lose an update.
type WalletRepository struct {
	db db.DBTX
}

// NewWalletRepository creates a new WalletRepository instance.
func NewWalletRepository(conn db.DBTX) *WalletRepository {
	return &WalletRepository{db: conn}
}

const walletColumns = `user_id, balance, lifetime_earned, lifetime_spent, created_at, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	err := row.Scan(
		&w.UserID,
		&w.Balance,
		&w.LifetimeEarned,
		&w.LifetimeSpent,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Get retrieves a user's wallet. A user who never earned anything gets a
// zero-valued wallet; nothing is written.
func (r *WalletRepository) Get(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

	w, err := scanWallet(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.Wallet{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// Credit adds amount to the balance and lifetime_earned, creating the
// wallet if it does not exist yet.
func (r *WalletRepository) Credit(ctx context.Context, userID uuid.UUID, amount int64) (*model.Wallet, error) {
	query := `
		INSERT INTO wallets (user_id, balance, lifetime_earned)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = wallets.balance + EXCLUDED.balance,
			lifetime_earned = wallets.lifetime_earned + EXCLUDED.lifetime_earned,
			updated_at = NOW()
		RETURNING ` + walletColumns

	w, err := scanWallet(r.db.QueryRow(ctx, query, userID, amount))
	if err != nil {
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}
	return w, nil
}

// Debit subtracts amount from the balance and adds it to lifetime_spent.
// The update only applies while balance >= amount; otherwise
// ErrInsufficientBalance is returned and nothing changes.
func (r *WalletRepository) Debit(ctx context.Context, userID uuid.UUID, amount int64) (*model.Wallet, error) {
	query := `
		UPDATE wallets
		SET balance = balance - $2,
			lifetime_spent = lifetime_spent + $2,
			updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING ` + walletColumns

	w, err := scanWallet(r.db.QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}
	return w, nil
}

// EnsureExists creates an empty wallet for the user if none exists.
func (r *WalletRepository) EnsureExists(ctx context.Context, userID uuid.UUID) error {
	const query = `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to ensure wallet: %w", err)
	}
	return nil
}

// LockPair takes row locks on both wallets in ascending id order. Two
// transfers between the same users in opposite directions therefore queue
// instead of deadlocking. Missing wallets are skipped.
func (r *WalletRepository) LockPair(ctx context.Context, a, b uuid.UUID) error {
	const query = `
		SELECT user_id FROM wallets
		WHERE user_id = ANY($1)
		ORDER BY user_id
		FOR UPDATE
	`
	rows, err := r.db.Query(ctx, query, []uuid.UUID{a, b})
	if err != nil {
		return fmt.Errorf("failed to lock wallets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock wallets: %w", err)
	}
	return nil
}

// TopByBalance returns the richest users.
func (r *WalletRepository) TopByBalance(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	const query = `
		SELECT w.balance, w.user_id, p.discord_id, COALESCE(p.display_name, ''), p.avatar_url
		FROM wallets w
		LEFT JOIN profiles p ON p.user_id = w.user_id
		WHERE w.balance > 0
		ORDER BY w.balance DESC, w.user_id
		LIMIT $1
	`
	return queryLeaderboard(ctx, r.db, query, limit)
}

// TopBySpent returns the users with the highest lifetime spending.
func (r *WalletRepository) TopBySpent(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	const query = `
		SELECT w.lifetime_spent, w.user_id, p.discord_id, COALESCE(p.display_name, ''), p.avatar_url
		FROM wallets w
		LEFT JOIN profiles p ON p.user_id = w.user_id
		WHERE w.lifetime_spent > 0
		ORDER BY w.lifetime_spent DESC, w.user_id
		LIMIT $1
	`
	return queryLeaderboard(ctx, r.db, query, limit)
}

// Totals aggregates every wallet.
func (r *WalletRepository) Totals(ctx context.Context) (*model.EconomyTotals, error) {
	const query = `
		SELECT COALESCE(SUM(balance), 0)::BIGINT,
			COALESCE(SUM(lifetime_earned), 0)::BIGINT,
			COALESCE(SUM(lifetime_spent), 0)::BIGINT,
			COUNT(*)
		FROM wallets
	`
	var t model.EconomyTotals
	if err := r.db.QueryRow(ctx, query).Scan(&t.Circulation, &t.Earned, &t.Spent, &t.Users); err != nil {
		return nil, fmt.Errorf("failed to aggregate wallets: %w", err)
	}
	return &t, nil
}

// queryLeaderboard runs a query whose rows are (value, user_id, discord_id,
// display_name, avatar_url) and assigns ranks in row order.
func queryLeaderboard(ctx context.Context, conn db.DBTX, query string, args ...any) ([]model.LeaderboardEntry, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]model.LeaderboardEntry, 0)
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(
			&e.Value,
			&e.User.UserID,
			&e.User.DiscordID,
			&e.User.DisplayName,
			&e.User.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return entries, nil
}
