// Package service integration tests run the services against a PostgreSQL
// container started by testcontainers-go.
package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"token-economy/internal/config"
	"token-economy/internal/game"
	"token-economy/internal/model"
	"token-economy/internal/pkg/db/dbtest"
	"token-economy/internal/pkg/lock"
	"token-economy/internal/repository"
)

// testClock is a settable Clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t.UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testEconomyConfig() config.EconomyConfig {
	return config.EconomyConfig{
		DailyEarnCap:           250,
		DailyBaseReward:        25,
		WeeklyStreakBonus:      100,
		WeeklyStreakInterval:   7,
		MonthlyBonus:           500,
		MonthlyClaimsThreshold: 28,
		MiniGameReward:         50,
		MiniGameCooldown:       60 * time.Second,
		GalleryReward:          20,
		GalleryCooldown:        5 * time.Minute,
		TransferTaxBasisPoints: 500,
		LeaderboardSize:        10,
		TopEarnersWindow:       30 * 24 * time.Hour,
		WalletRecentTx:         20,
		StatsRecentTx:          50,
		LockTimeout:            5 * time.Second,
	}
}

type testEnv struct {
	pool    *pgxpool.Pool
	store   *repository.Store
	clock   *testClock
	ownerID uuid.UUID
	games   *game.Registry

	earning   *EarningService
	shop      *ShopService
	transfers *TransferService
	seasonal  *SeasonalService
	wallets   *WalletService
	ranking   *RankingService
}

func setupTestEnv(t *testing.T) *testEnv {
	pool := dbtest.Setup(t)

	games, err := game.NewRegistryFromConfig([]config.MiniGame{
		{Type: "trivia", Name: "Lore Trivia", MaxScore: 100},
		{Type: "memory", Name: "Memory Match", MaxScore: 10000},
	})
	require.NoError(t, err)

	base := &testEnv{
		pool:    pool,
		store:   repository.NewStore(pool),
		clock:   newTestClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)),
		ownerID: uuid.New(),
		games:   games,
	}
	return base.instance(t, testEconomyConfig())
}

// instance returns services sharing e's database and clock but holding
// their own in-process lock, the way a second server process would.
func (e *testEnv) instance(t *testing.T, cfg config.EconomyConfig) *testEnv {
	userLock := lock.NewUserLock()
	access := NewAccess(e.store.Profiles, []string{e.ownerID.String()})
	now := e.clock.Now

	env := &testEnv{
		pool:      e.pool,
		store:     e.store,
		clock:     e.clock,
		ownerID:   e.ownerID,
		games:     e.games,
		earning:   NewEarningService(e.store, userLock, access, e.games, cfg, now),
		shop:      NewShopService(e.store, userLock, cfg.LockTimeout, now),
		transfers: NewTransferService(e.store, userLock, cfg.TransferTaxBasisPoints, cfg.LockTimeout, now),
		seasonal:  NewSeasonalService(e.store, userLock, cfg.LockTimeout, now),
		wallets:   NewWalletService(e.store, cfg.DailyEarnCap, cfg.WalletRecentTx, now),
		ranking:   NewRankingService(e.store, access, cfg.LeaderboardSize, cfg.TopEarnersWindow, cfg.StatsRecentTx, now),
	}
	t.Cleanup(env.earning.Wait)
	return env
}

func (e *testEnv) fund(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	_, err := e.store.Wallets.Credit(context.Background(), userID, amount)
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	w, err := e.store.Wallets.Get(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func (e *testEnv) auditCount(t *testing.T, userID uuid.UUID, gameType string) int64 {
	t.Helper()
	return dbtest.Count(t, e.pool, `SELECT COUNT(*) FROM mini_game_audit WHERE user_id = $1 AND game_type = $2`, userID, gameType)
}

func (e *testEnv) profile(t *testing.T, discordID, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, e.store.Profiles.Upsert(context.Background(), model.Identity{
		UserID:      id,
		DiscordID:   &discordID,
		DisplayName: name,
	}))
	return id
}

func (e *testEnv) item(t *testing.T, it model.ShopItem) *model.ShopItem {
	t.Helper()
	out, err := e.store.Catalog.CreateItem(context.Background(), it)
	require.NoError(t, err)
	return out
}

func ptr[T any](v T) *T { return &v }
