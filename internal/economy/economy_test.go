package economy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-economy/internal/model"
)

var schedule = RewardSchedule{
	Base:             25,
	WeeklyBonus:      100,
	WeeklyInterval:   7,
	MonthlyBonus:     500,
	MonthlyThreshold: 28,
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 02:00 on the 2nd in UTC+9 is still the 1st in UTC.
	in := time.Date(2026, 3, 2, 2, 0, 0, 0, loc)
	assert.Equal(t, date(2026, 3, 1), Day(in))
	assert.Equal(t, date(2026, 3, 1), MonthStart(date(2026, 3, 31)))
	assert.True(t, SameMonth(date(2026, 3, 1), date(2026, 3, 31)))
	assert.False(t, SameMonth(date(2026, 3, 1), date(2027, 3, 1)))
}

func TestCheckCap(t *testing.T) {
	tests := []struct {
		name        string
		earned      int64
		requested   int64
		wantAllowed bool
		wantRemain  int64
		wantGrant   int64
	}{
		{"fresh day", 0, 25, true, 250, 25},
		{"exact fit", 200, 50, true, 50, 50},
		{"truncated", 238, 50, false, 12, 12},
		{"exhausted", 250, 20, false, 0, 0},
		{"over cap from old config", 300, 20, false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CheckCap(tt.earned, tt.requested, 250)
			assert.Equal(t, tt.wantAllowed, c.Allowed)
			assert.Equal(t, tt.wantRemain, c.Remaining)
			assert.Equal(t, tt.wantGrant, c.Grant(tt.requested))
		})
	}
}

func TestTransferTax(t *testing.T) {
	tests := []struct {
		amount int64
		want   int64
	}{
		{100, 5},
		{1, 1},
		{20, 1},
		{21, 2},
		{1000, 50},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TransferTax(tt.amount, 500), "amount %d", tt.amount)
	}
	assert.Equal(t, int64(0), TransferTax(100, 0))
	assert.Equal(t, int64(100), TransferTax(100, BasisPoints))
}

func TestSeasonalAward(t *testing.T) {
	assert.Equal(t, int64(37), SeasonalAward(25, 1.5))
	assert.Equal(t, int64(12), SeasonalAward(25, 0.5))
	assert.Equal(t, int64(0), SeasonalAward(1, 0.5))
	assert.Equal(t, int64(0), SeasonalAward(0, 2))
	assert.Equal(t, int64(0), SeasonalAward(10, -1))
}

func TestInflationRate(t *testing.T) {
	assert.Equal(t, 0.0, InflationRate(100, 0))
	assert.Equal(t, 50.0, InflationRate(500, 1000))
	assert.Equal(t, 33.33, InflationRate(1, 3))
}

func TestCooldownRemaining(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-45 * time.Second)

	assert.Equal(t, time.Duration(0), CooldownRemaining(nil, now, time.Minute))
	assert.Equal(t, 15*time.Second, CooldownRemaining(&last, now, time.Minute))
	assert.Equal(t, time.Duration(0), CooldownRemaining(&last, now, 30*time.Second))
	assert.Equal(t, int64(15), CeilSeconds(15*time.Second))
	assert.Equal(t, int64(1), CeilSeconds(time.Millisecond))
}

func TestReward(t *testing.T) {
	assert.Equal(t, int64(25), schedule.Reward(1, 1))
	assert.Equal(t, int64(125), schedule.Reward(7, 7))
	assert.Equal(t, int64(125), schedule.Reward(14, 14))
	assert.Equal(t, int64(525), schedule.Reward(27, 28))
	assert.Equal(t, int64(625), schedule.Reward(28, 28))
	assert.Equal(t, int64(525), schedule.Reward(1, 29))
}

func TestAdvanceStreak_ConsecutiveGapAndDuplicate(t *testing.T) {
	var s model.LoginStreak

	s, err := AdvanceStreak(s, date(2026, 4, 1).Add(8*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 1, s.MonthlyClaims)
	assert.Equal(t, date(2026, 4, 1), *s.MonthlyResetDate)

	s, err = AdvanceStreak(s, date(2026, 4, 2).Add(23*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, s.CurrentStreak)

	_, err = AdvanceStreak(s, date(2026, 4, 2).Add(23*time.Hour+59*time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	// Day 3 skipped.
	s, err = AdvanceStreak(s, date(2026, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 2, s.LongestStreak)
	assert.Equal(t, 3, s.MonthlyClaims)
	assert.Equal(t, date(2026, 4, 4), *s.LastClaimDate)
}

func TestAdvanceStreak_MonthRollover(t *testing.T) {
	last := date(2026, 4, 30)
	reset := date(2026, 4, 1)
	s := model.LoginStreak{
		CurrentStreak:    30,
		LongestStreak:    30,
		LastClaimDate:    &last,
		MonthlyClaims:    30,
		MonthlyResetDate: &reset,
	}

	next, err := AdvanceStreak(s, date(2026, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, 31, next.CurrentStreak)
	assert.Equal(t, 31, next.LongestStreak)
	assert.Equal(t, 1, next.MonthlyClaims)
	assert.Equal(t, date(2026, 5, 1), *next.MonthlyResetDate)
}

func TestCanClaim(t *testing.T) {
	last := date(2026, 4, 30)
	s := model.LoginStreak{LastClaimDate: &last}
	assert.False(t, CanClaim(s, last.Add(10*time.Hour)))
	assert.True(t, CanClaim(s, last.AddDate(0, 0, 1)))
	assert.True(t, CanClaim(model.LoginStreak{}, last))
}
