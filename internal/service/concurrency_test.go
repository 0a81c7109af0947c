package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-economy/internal/config"
	"token-economy/internal/economy"
	"token-economy/internal/model"
)

// instances returns n service sets over env's database, each with its own
// in-process lock, so only row locks stand between them.
func instances(t *testing.T, env *testEnv, n int, cfg config.EconomyConfig) []*testEnv {
	out := make([]*testEnv, n)
	for i := range out {
		out[i] = env.instance(t, cfg)
	}
	return out
}

// race runs fn for every instance at once and returns the errors in
// instance order.
func race(envs []*testEnv, fn func(i int, env *testEnv) error) []error {
	errs := make([]error, len(envs))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, e := range envs {
		wg.Add(1)
		go func(i int, e *testEnv) {
			defer wg.Done()
			<-start
			errs[i] = fn(i, e)
		}(i, e)
	}
	close(start)
	wg.Wait()
	return errs
}

func countErrors(t *testing.T, errs []error, expected error) (ok, rejected int) {
	t.Helper()
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, expected):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	return ok, rejected
}

func TestCrossInstance_ClaimDailyOnce(t *testing.T) {
	env := setupTestEnv(t)
	user := uuid.New()

	envs := instances(t, env, 8, testEconomyConfig())
	errs := race(envs, func(_ int, e *testEnv) error {
		_, err := e.earning.ClaimDaily(context.Background(), user)
		return err
	})

	ok, claimed := countErrors(t, errs, ErrAlreadyClaimed)
	assert.Equal(t, 1, ok)
	assert.Equal(t, len(envs)-1, claimed)
	assert.Equal(t, int64(25), env.balance(t, user))

	streak, err := env.store.Streaks.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 1, streak.CurrentStreak)
}

func TestCrossInstance_MiniGameNeverExceedsCap(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	day := economy.Day(env.clock.Now())

	_, err := env.store.DailyCaps.Add(ctx, user, day, 230, 250)
	require.NoError(t, err)

	cfg := testEconomyConfig()
	cfg.MiniGameCooldown = 0
	envs := instances(t, env, 8, cfg)
	errs := race(envs, func(_ int, e *testEnv) error {
		_, err := e.earning.EarnMiniGame(ctx, user, "trivia", 50, ClientInfo{})
		return err
	})

	ok, capped := countErrors(t, errs, ErrDailyCapReached)
	assert.Equal(t, 1, ok)
	assert.Equal(t, len(envs)-1, capped)

	earned, err := env.store.DailyCaps.Get(ctx, user, day)
	require.NoError(t, err)
	assert.Equal(t, int64(250), earned)
	assert.Equal(t, int64(20), env.balance(t, user))
}

func TestCrossInstance_PurchaseNeverOverdraws(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.fund(t, user, 100)

	envs := instances(t, env, 4, testEconomyConfig())
	items := make([]*model.ShopItem, len(envs))
	for i := range items {
		items[i] = env.item(t, model.ShopItem{
			Name: "Frame " + string(rune('A'+i)), Category: "frame", Price: 100, IsActive: true,
		})
	}

	errs := race(envs, func(i int, e *testEnv) error {
		_, err := e.shop.PurchaseItem(ctx, user, items[i].ID)
		return err
	})

	ok, poor := countErrors(t, errs, ErrInsufficientBalance)
	assert.Equal(t, 1, ok)
	assert.Equal(t, len(envs)-1, poor)
	assert.Equal(t, int64(0), env.balance(t, user))

	inv, err := env.store.Catalog.Inventory(ctx, user)
	require.NoError(t, err)
	assert.Len(t, inv, 1)
}

func TestCrossInstance_EarnAndConvertTogether(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	currency, err := env.store.Seasonal.CreateCurrency(ctx, model.SeasonalCurrency{
		Name: "Tide Pearls", Icon: "shell", Multiplier: 1, IsActive: true,
	})
	require.NoError(t, err)
	_, err = env.store.Seasonal.AddBalance(ctx, user, currency.ID, 1000)
	require.NoError(t, err)

	cfg := testEconomyConfig()
	cfg.DailyEarnCap = 1_000_000
	cfg.MiniGameCooldown = 0
	envs := instances(t, env, 2, cfg)

	const rounds = 20
	for r := 0; r < rounds; r++ {
		errs := race(envs, func(i int, e *testEnv) error {
			if i == 0 {
				_, err := e.earning.EarnMiniGame(ctx, user, "trivia", 10, ClientInfo{})
				return err
			}
			_, err := e.seasonal.Convert(ctx, user, currency.ID, 1)
			return err
		})
		for _, err := range errs {
			require.NoError(t, err, "round %d", r)
		}
	}

	assert.Equal(t, int64(rounds*50+rounds), env.balance(t, user))

	balances, err := env.store.Seasonal.BalancesForUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, int64(1000+rounds*50-rounds), balances[0].Balance)
}
