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

// TransactionRepository appends to and reads the transaction log.
// Rows are never updated or deleted.
type TransactionRepository struct {
	db db.DBTX
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(conn db.DBTX) *TransactionRepository {
	return &TransactionRepository{db: conn}
}

// Append writes a new log entry. CreatedAt is taken from tx when set so
// that all timestamps of one action come from the same clock.
func (r *TransactionRepository) Append(ctx context.Context, tx model.Transaction) (*model.Transaction, error) {
	const query = `
		INSERT INTO transactions (user_id, amount, transaction_type, source, description, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		RETURNING id, created_at
	`
	var createdAt *time.Time
	if !tx.CreatedAt.IsZero() {
		createdAt = &tx.CreatedAt
	}

	err := r.db.QueryRow(ctx, query,
		tx.UserID,
		tx.Amount,
		string(tx.Type),
		string(tx.Source),
		tx.Description,
		tx.ReferenceID,
		createdAt,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	return &tx, nil
}

// Recent returns the user's newest transactions.
func (r *TransactionRepository) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]model.Transaction, error) {
	const query = `
		SELECT id, user_id, amount, transaction_type, source, description, reference_id, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]model.Transaction, 0)
	for rows.Next() {
		var tx model.Transaction
		if err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.Amount,
			&tx.Type,
			&tx.Source,
			&tx.Description,
			&tx.ReferenceID,
			&tx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// RecentAll returns the newest transactions of all users with their
// public identity attached.
func (r *TransactionRepository) RecentAll(ctx context.Context, limit int) ([]model.Transaction, error) {
	const query = `
		SELECT t.id, t.user_id, t.amount, t.transaction_type, t.source, t.description, t.reference_id, t.created_at,
			p.discord_id, COALESCE(p.display_name, ''), p.avatar_url
		FROM transactions t
		LEFT JOIN profiles p ON p.user_id = t.user_id
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]model.Transaction, 0)
	for rows.Next() {
		var tx model.Transaction
		var who model.Identity
		if err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.Amount,
			&tx.Type,
			&tx.Source,
			&tx.Description,
			&tx.ReferenceID,
			&tx.CreatedAt,
			&who.DiscordID,
			&who.DisplayName,
			&who.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		who.UserID = tx.UserID
		tx.User = &who
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// LastBySource returns when the user last received a transaction from
// source, or nil if never.
func (r *TransactionRepository) LastBySource(ctx context.Context, userID uuid.UUID, source model.TxSource) (*time.Time, error) {
	const query = `
		SELECT created_at FROM transactions
		WHERE user_id = $1 AND source = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var at time.Time
	err := r.db.QueryRow(ctx, query, userID, string(source)).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last %s transaction: %w", source, err)
	}
	return &at, nil
}

// TopEarners sums earn-type amounts since the given time per user.
func (r *TransactionRepository) TopEarners(ctx context.Context, since time.Time, limit int) ([]model.LeaderboardEntry, error) {
	const query = `
		SELECT e.total, e.user_id, p.discord_id, COALESCE(p.display_name, ''), p.avatar_url
		FROM (
			SELECT user_id, SUM(amount)::BIGINT AS total
			FROM transactions
			WHERE transaction_type = 'earn' AND created_at >= $1
			GROUP BY user_id
		) e
		LEFT JOIN profiles p ON p.user_id = e.user_id
		WHERE e.total > 0
		ORDER BY e.total DESC, e.user_id
		LIMIT $2
	`
	return queryLeaderboard(ctx, r.db, query, since, limit)
}
