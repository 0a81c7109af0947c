package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-economy/internal/economy"
	"token-economy/internal/model"
)

func TestClaimDaily_StreakScenario(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	day1 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	env.clock.Set(day1)
	res, err := env.earning.ClaimDaily(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.Amount)
	assert.Equal(t, int64(25), res.Reward)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, int64(25), res.NewBalance)

	env.clock.Set(day1.AddDate(0, 0, 1))
	res, err = env.earning.ClaimDaily(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Streak)
	assert.Equal(t, int64(50), res.NewBalance)

	// Day 3 skipped.
	env.clock.Set(day1.AddDate(0, 0, 3))
	res, err = env.earning.ClaimDaily(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, int64(75), res.NewBalance)
	assert.Equal(t, 3, res.MonthlyClaims)

	streak, err := env.store.Streaks.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, streak.CurrentStreak)
	assert.Equal(t, 2, streak.LongestStreak)
}

func TestClaimDaily_AlreadyClaimed(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := env.earning.ClaimDaily(ctx, user)
	require.NoError(t, err)

	env.clock.Advance(6 * time.Hour)
	_, err = env.earning.ClaimDaily(ctx, user)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.True(t, IsBusinessError(err))
	assert.Equal(t, int64(25), env.balance(t, user))

	view, err := env.wallets.GetWallet(ctx, user)
	require.NoError(t, err)
	assert.False(t, view.CanClaimDaily)
	assert.Equal(t, int64(25), view.DailyEarned)
	assert.Equal(t, int64(250), view.DailyCap)
}

func TestClaimDaily_WeeklyBonus(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	start := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	var last *ClaimResult
	for i := 0; i < 7; i++ {
		env.clock.Set(start.AddDate(0, 0, i))
		res, err := env.earning.ClaimDaily(ctx, user)
		require.NoError(t, err)
		last = res
	}

	assert.Equal(t, 7, last.Streak)
	assert.Equal(t, int64(125), last.Reward)
	assert.Equal(t, int64(6*25+125), last.NewBalance)
}

func TestClaimDaily_CapClampsCombinedReward(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	today := economy.Day(env.clock.Now())

	_, err := env.store.DailyCaps.Add(ctx, user, today, 240, 250)
	require.NoError(t, err)

	res, err := env.earning.ClaimDaily(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Amount)
	assert.Equal(t, int64(25), res.Reward)
	assert.Equal(t, int64(10), res.NewBalance)

	earned, err := env.store.DailyCaps.Get(ctx, user, today)
	require.NoError(t, err)
	assert.Equal(t, int64(250), earned)
}

func TestClaimDaily_CapExhaustedLeavesStreak(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	today := economy.Day(env.clock.Now())

	_, err := env.store.DailyCaps.Add(ctx, user, today, 250, 250)
	require.NoError(t, err)

	_, err = env.earning.ClaimDaily(ctx, user)
	require.ErrorIs(t, err, ErrDailyCapReached)
	assert.Contains(t, err.Error(), "Remaining: 0 tokens")

	streak, err := env.store.Streaks.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, streak.CurrentStreak)
	assert.Nil(t, streak.LastClaimDate)
	assert.Equal(t, int64(0), env.balance(t, user))

	txs, err := env.store.Transactions.Recent(ctx, user, 10)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestClaimDaily_ConcurrentDoubleSubmit(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		claimed   int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.earning.ClaimDaily(ctx, user)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyClaimed):
				claimed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, claimed)
	assert.Equal(t, int64(25), env.balance(t, user))
}

func TestEarnMiniGame(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	client := ClientInfo{IP: "203.0.113.7", UserAgent: "test-agent"}

	t.Run("rejects invalid submissions", func(t *testing.T) {
		_, err := env.earning.EarnMiniGame(ctx, user, "unknown", 10, client)
		assert.True(t, IsValidationError(err))

		_, err = env.earning.EarnMiniGame(ctx, user, "trivia", 0, client)
		assert.True(t, IsValidationError(err))

		_, err = env.earning.EarnMiniGame(ctx, user, "trivia", 101, client)
		assert.True(t, IsValidationError(err))
	})

	t.Run("pays and enforces cooldown", func(t *testing.T) {
		res, err := env.earning.EarnMiniGame(ctx, user, "trivia", 80, client)
		require.NoError(t, err)
		assert.Equal(t, int64(50), res.Amount)
		assert.Equal(t, int64(50), res.NewBalance)

		env.clock.Advance(10 * time.Second)
		_, err = env.earning.EarnMiniGame(ctx, user, "trivia", 80, client)
		require.ErrorIs(t, err, ErrCooldownActive)
		assert.Contains(t, err.Error(), "Try again in 50 seconds")

		env.clock.Advance(51 * time.Second)
		res, err = env.earning.EarnMiniGame(ctx, user, "memory", 5000, client)
		require.NoError(t, err)
		assert.Equal(t, int64(100), res.NewBalance)
	})

	t.Run("records every validated attempt", func(t *testing.T) {
		env.earning.Wait()

		assert.Equal(t, int64(2), env.auditCount(t, user, "trivia"))
		assert.Equal(t, int64(1), env.auditCount(t, user, "memory"))
	})
}

func TestEarnMiniGame_TruncatedByCap(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	today := economy.Day(env.clock.Now())

	_, err := env.store.DailyCaps.Add(ctx, user, today, 230, 250)
	require.NoError(t, err)

	res, err := env.earning.EarnMiniGame(ctx, user, "trivia", 10, ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.Amount)

	env.clock.Advance(2 * time.Minute)
	_, err = env.earning.EarnMiniGame(ctx, user, "trivia", 10, ClientInfo{})
	assert.ErrorIs(t, err, ErrDailyCapReached)

	// The cap resets on the next UTC day.
	env.clock.Set(today.AddDate(0, 0, 1).Add(time.Minute))
	res, err = env.earning.EarnMiniGame(ctx, user, "trivia", 10, ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Amount)
	assert.Equal(t, int64(70), res.NewBalance)
}

func TestEarnGallery(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	caller := uuid.New()
	artist := uuid.New()

	res, err := env.earning.EarnGallery(ctx, caller, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.Amount)

	_, err = env.earning.EarnGallery(ctx, caller, &artist)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, int64(0), env.balance(t, artist))

	require.NoError(t, env.store.Profiles.GrantRole(ctx, caller, model.RoleAdmin))

	res, err = env.earning.EarnGallery(ctx, caller, &artist)
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.NewBalance)

	txs, err := env.store.Transactions.Recent(ctx, artist, 1)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.SourceGalleryApproved, txs[0].Source)
	require.NotNil(t, txs[0].ReferenceID)
	assert.Equal(t, caller.String(), *txs[0].ReferenceID)

	env.clock.Advance(4 * time.Minute)
	_, err = env.earning.EarnGallery(ctx, caller, &artist)
	assert.ErrorIs(t, err, ErrCooldownActive)

	env.clock.Advance(time.Minute)
	_, err = env.earning.EarnGallery(ctx, caller, &artist)
	require.NoError(t, err)
	assert.Equal(t, int64(40), env.balance(t, artist))

	// The configured owner counts as staff without a role row.
	env.clock.Advance(10 * time.Minute)
	_, err = env.earning.EarnGallery(ctx, env.ownerID, &artist)
	require.NoError(t, err)
}

func TestSeasonalFanOutAndConvert(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	active, err := env.store.Seasonal.CreateCurrency(ctx, model.SeasonalCurrency{
		Name: "Frost Shards", Icon: "snowflake", Multiplier: 1.5, IsActive: true,
	})
	require.NoError(t, err)
	inactive, err := env.store.Seasonal.CreateCurrency(ctx, model.SeasonalCurrency{
		Name: "Ember Coins", Icon: "flame", Multiplier: 2, IsActive: false,
	})
	require.NoError(t, err)

	_, err = env.earning.ClaimDaily(ctx, user)
	require.NoError(t, err)

	view, err := env.wallets.GetWallet(ctx, user)
	require.NoError(t, err)
	require.Len(t, view.SeasonalBalances, 1)
	assert.Equal(t, active.ID, view.SeasonalBalances[0].Currency.ID)
	assert.Equal(t, int64(37), view.SeasonalBalances[0].Balance)

	t.Run("converts at one to one", func(t *testing.T) {
		res, err := env.seasonal.Convert(ctx, user, active.ID, 30)
		require.NoError(t, err)
		assert.Equal(t, int64(30), res.Converted)
		assert.Equal(t, int64(55), res.NewBalance)
		assert.Equal(t, int64(7), res.SeasonalBalance)

		// Conversions are neither capped nor fanned out.
		earned, err := env.store.DailyCaps.Get(ctx, user, economy.Day(env.clock.Now()))
		require.NoError(t, err)
		assert.Equal(t, int64(25), earned)

		balances, err := env.store.Seasonal.BalancesForUser(ctx, user)
		require.NoError(t, err)
		require.Len(t, balances, 1)
		assert.Equal(t, int64(7), balances[0].Balance)
	})

	t.Run("rejects", func(t *testing.T) {
		_, err := env.seasonal.Convert(ctx, user, active.ID, 8)
		assert.ErrorIs(t, err, ErrInsufficientSeasonalBalance)

		_, err = env.seasonal.Convert(ctx, user, inactive.ID, 1)
		assert.ErrorIs(t, err, ErrInsufficientSeasonalBalance)

		_, err = env.seasonal.Convert(ctx, user, uuid.New(), 1)
		assert.ErrorIs(t, err, ErrSeasonalCurrencyNotFound)

		_, err = env.seasonal.Convert(ctx, user, active.ID, 0)
		assert.True(t, IsValidationError(err))

		assert.Equal(t, int64(55), env.balance(t, user))
	})
}
