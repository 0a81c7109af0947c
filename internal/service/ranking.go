package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"token-economy/internal/economy"
	"token-economy/internal/model"
	"token-economy/internal/repository"
)

// LeaderboardType selects a leaderboard variant.
type LeaderboardType string

// Leaderboard variants.
const (
	LeaderboardRichest         LeaderboardType = "richest"
	LeaderboardTopEarnersMonth LeaderboardType = "top_earners_month"
	LeaderboardTopSpenders     LeaderboardType = "top_spenders"
	LeaderboardHighestStreak   LeaderboardType = "highest_streak"
)

// EconomyStats summarizes the whole economy for owners.
type EconomyStats struct {
	TotalCirculation   int64               `json:"totalCirculation"`
	TotalEarned        int64               `json:"totalEarned"`
	TotalSpent         int64               `json:"totalSpent"`
	TotalUsers         int64               `json:"totalUsers"`
	InflationRate      float64             `json:"inflationRate"`
	RecentTransactions []model.Transaction `json:"recentTransactions"`
}

// RankingService serves leaderboards and economy-wide statistics.
type RankingService struct {
	store   *repository.Store
	access  *Access
	size    int
	window  time.Duration
	statsTx int
	now     Clock
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(
	store *repository.Store,
	access *Access,
	size int,
	window time.Duration,
	statsTx int,
	now Clock,
) *RankingService {
	if now == nil {
		now = SystemClock
	}
	return &RankingService{
		store:   store,
		access:  access,
		size:    size,
		window:  window,
		statsTx: statsTx,
		now:     now,
	}
}

// Leaderboard returns the top users for the given variant.
func (s *RankingService) Leaderboard(ctx context.Context, typ string) ([]model.LeaderboardEntry, error) {
	var (
		entries []model.LeaderboardEntry
		err     error
	)
	switch LeaderboardType(typ) {
	case LeaderboardRichest:
		entries, err = s.store.Wallets.TopByBalance(ctx, s.size)
	case LeaderboardTopEarnersMonth:
		entries, err = s.store.Transactions.TopEarners(ctx, s.now().Add(-s.window), s.size)
	case LeaderboardTopSpenders:
		entries, err = s.store.Wallets.TopBySpent(ctx, s.size)
	case LeaderboardHighestStreak:
		entries, err = s.store.Streaks.TopByLongest(ctx, s.size)
	default:
		return nil, invalidf("unknown leaderboard type %q", typ)
	}
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	return entries, nil
}

// Stats returns economy-wide totals. Only owners may call it.
func (s *RankingService) Stats(ctx context.Context, callerID uuid.UUID) (*EconomyStats, error) {
	owner, err := s.access.IsOwner(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, ErrForbidden
	}

	totals, err := s.store.Wallets.Totals(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.Transactions.RecentAll(ctx, s.statsTx)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []model.Transaction{}
	}

	return &EconomyStats{
		TotalCirculation:   totals.Circulation,
		TotalEarned:        totals.Earned,
		TotalSpent:         totals.Spent,
		TotalUsers:         totals.Users,
		InflationRate:      economy.InflationRate(totals.Circulation, totals.Earned),
		RecentTransactions: txs,
	}, nil
}
