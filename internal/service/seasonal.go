package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"token-economy/internal/economy"
	"token-economy/internal/model"
	"token-economy/internal/pkg/lock"
	"token-economy/internal/repository"
)

// ConvertResult is the outcome of a seasonal conversion.
type ConvertResult struct {
	Converted       int64 `json:"converted"`
	NewBalance      int64 `json:"newBalance"`
	SeasonalBalance int64 `json:"seasonalBalance"`
}

// SeasonalService converts seasonal currencies back into tokens at 1:1.
type SeasonalService struct {
	store       *repository.Store
	userLock    *lock.UserLock
	lockTimeout time.Duration
	now         Clock
}

// NewSeasonalService creates a new SeasonalService instance.
func NewSeasonalService(store *repository.Store, userLock *lock.UserLock, lockTimeout time.Duration, now Clock) *SeasonalService {
	if now == nil {
		now = SystemClock
	}
	return &SeasonalService{store: store, userLock: userLock, lockTimeout: lockTimeout, now: now}
}

// Convert drains amount from the user's seasonal balance and credits the
// same amount to the wallet. Conversions bypass the daily cap and do not
// feed seasonal currencies again.
func (s *SeasonalService) Convert(ctx context.Context, userID, currencyID uuid.UUID, amount int64) (*ConvertResult, error) {
	if amount <= 0 || amount > economy.MaxAmount {
		return nil, invalidf("amount must be a positive integer no greater than %d", economy.MaxAmount)
	}

	var res *ConvertResult
	err := s.userLock.WithLock(ctx, s.lockTimeout, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			currency, err := tx.Seasonal.GetCurrency(ctx, currencyID)
			if err != nil {
				return err
			}

			// Wallet row before seasonal row, the order the award routine
			// takes them in. A failed deduct rolls the credit back.
			wallet, err := tx.Wallets.Credit(ctx, userID, amount)
			if err != nil {
				return err
			}
			left, err := tx.Seasonal.Deduct(ctx, userID, currencyID, amount)
			if err != nil {
				return err
			}

			ref := currencyID.String()
			if _, err := tx.Transactions.Append(ctx, model.Transaction{
				UserID:      userID,
				Amount:      amount,
				Type:        model.TxTypeEarn,
				Source:      model.SourceSeasonalConvert,
				Description: "Converted " + currency.Name,
				ReferenceID: &ref,
				CreatedAt:   s.now(),
			}); err != nil {
				return err
			}

			res = &ConvertResult{Converted: amount, NewBalance: wallet.Balance, SeasonalBalance: left}
			return nil
		})
	}, userID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("currency_id", currencyID.String()).
		Int64("amount", amount).
		Msg("Seasonal currency converted")

	return res, nil
}

// SyncActivation activates and deactivates scheduled seasonal currencies.
func (s *SeasonalService) SyncActivation(ctx context.Context) (int64, error) {
	return s.store.Seasonal.SyncActivation(ctx, s.now())
}
