// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"token-economy/internal/pkg/db"
)

// Common errors for repository operations.
var (
	ErrInsufficientBalance         = errors.New("insufficient balance")
	ErrDailyCapExceeded            = errors.New("daily earning cap exceeded")
	ErrSeasonalCurrencyNotFound    = errors.New("seasonal currency not found")
	ErrInsufficientSeasonalBalance = errors.New("insufficient seasonal balance")
	ErrItemNotFound                = errors.New("item not found")
	ErrSoldOut                     = errors.New("item sold out")
	ErrAlreadyOwned                = errors.New("item already owned")
	ErrItemNotOwned                = errors.New("item not owned")
	ErrProfileNotFound             = errors.New("profile not found")
)

// Store groups every repository over one connection. A Store obtained from
// InTx is bound to a single database transaction.
type Store struct {
	beginner db.TxBeginner

	Wallets      *WalletRepository
	DailyCaps    *DailyCapRepository
	Streaks      *StreakRepository
	Seasonal     *SeasonalRepository
	Transactions *TransactionRepository
	Catalog      *CatalogRepository
	Transfers    *TransferRepository
	Profiles     *ProfileRepository
	Audit        *AuditRepository
}

// NewStore creates a Store backed by the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return newStore(pool, pool)
}

func newStore(conn db.DBTX, beginner db.TxBeginner) *Store {
	return &Store{
		beginner:     beginner,
		Wallets:      NewWalletRepository(conn),
		DailyCaps:    NewDailyCapRepository(conn),
		Streaks:      NewStreakRepository(conn),
		Seasonal:     NewSeasonalRepository(conn),
		Transactions: NewTransactionRepository(conn),
		Catalog:      NewCatalogRepository(conn),
		Transfers:    NewTransferRepository(conn),
		Profiles:     NewProfileRepository(conn),
		Audit:        NewAuditRepository(conn),
	}
}

// InTx runs fn with a Store bound to a new read-committed transaction.
// Calling InTx on a Store that is already transactional reuses the
// running transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.beginner == nil {
		return fn(s)
	}
	return db.WithTx(ctx, s.beginner, func(tx pgx.Tx) error {
		return fn(newStore(tx, nil))
	})
}
