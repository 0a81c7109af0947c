package service

import (
	"context"

	"github.com/google/uuid"

	"token-economy/internal/economy"
	"token-economy/internal/model"
	"token-economy/internal/repository"
)

// WalletView is a consolidated snapshot of one user's economy state.
type WalletView struct {
	Wallet             *model.Wallet           `json:"wallet"`
	Streak             *model.LoginStreak      `json:"streak"`
	DailyEarned        int64                   `json:"dailyEarned"`
	DailyCap           int64                   `json:"dailyCap"`
	SeasonalBalances   []model.SeasonalBalance `json:"seasonalBalances"`
	RecentTransactions []model.Transaction     `json:"recentTransactions"`
	CanClaimDaily      bool                    `json:"canClaimDaily"`
}

// WalletService serves the caller's own wallet view.
type WalletService struct {
	store    *repository.Store
	dailyCap int64
	recent   int
	now      Clock
}

// NewWalletService creates a new WalletService instance.
func NewWalletService(store *repository.Store, dailyCap int64, recent int, now Clock) *WalletService {
	if now == nil {
		now = SystemClock
	}
	return &WalletService{store: store, dailyCap: dailyCap, recent: recent, now: now}
}

// GetWallet returns the wallet view for userID. Users without any ledger
// activity get zero values rather than an error.
func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*WalletView, error) {
	now := s.now()

	wallet, err := s.store.Wallets.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	streak, err := s.store.Streaks.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned, err := s.store.DailyCaps.Get(ctx, userID, economy.Day(now))
	if err != nil {
		return nil, err
	}
	balances, err := s.store.Seasonal.BalancesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.Transactions.Recent(ctx, userID, s.recent)
	if err != nil {
		return nil, err
	}

	if balances == nil {
		balances = []model.SeasonalBalance{}
	}
	if txs == nil {
		txs = []model.Transaction{}
	}

	return &WalletView{
		Wallet:             wallet,
		Streak:             streak,
		DailyEarned:        earned,
		DailyCap:           s.dailyCap,
		SeasonalBalances:   balances,
		RecentTransactions: txs,
		CanClaimDaily:      economy.CanClaim(*streak, now),
	}, nil
}
