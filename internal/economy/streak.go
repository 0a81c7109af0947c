package economy

import (
	"errors"
	"time"

	"token-economy/internal/model"
)

// ErrAlreadyClaimed is returned when the daily reward was already claimed
// on the given UTC day.
var ErrAlreadyClaimed = errors.New("daily reward already claimed today")

// RewardSchedule describes the daily login reward.
type RewardSchedule struct {
	Base             int64
	WeeklyBonus      int64
	WeeklyInterval   int
	MonthlyBonus     int64
	MonthlyThreshold int
}

// Reward computes the uncapped reward for a claim that left the user at
// the given streak and monthly claim count.
func (r RewardSchedule) Reward(streak, monthlyClaims int) int64 {
	reward := r.Base
	if r.WeeklyInterval > 0 && streak > 0 && streak%r.WeeklyInterval == 0 {
		reward += r.WeeklyBonus
	}
	if r.MonthlyThreshold > 0 && monthlyClaims >= r.MonthlyThreshold {
		reward += r.MonthlyBonus
	}
	return reward
}

// CanClaim reports whether a claim on today's UTC day would be accepted.
func CanClaim(s model.LoginStreak, now time.Time) bool {
	if s.LastClaimDate == nil {
		return true
	}
	return Day(now).After(Day(*s.LastClaimDate))
}

// AdvanceStreak applies a claim made at now to s and returns the new state.
// The streak grows by one only when the previous claim was exactly the day
// before; any gap restarts it at 1. The monthly counter restarts whenever
// the stored reset date is in a different month.
func AdvanceStreak(s model.LoginStreak, now time.Time) (model.LoginStreak, error) {
	today := Day(now)
	if !CanClaim(s, now) {
		return s, ErrAlreadyClaimed
	}

	next := s
	if s.LastClaimDate != nil && Day(*s.LastClaimDate).Equal(today.AddDate(0, 0, -1)) {
		next.CurrentStreak = s.CurrentStreak + 1
	} else {
		next.CurrentStreak = 1
	}
	next.LongestStreak = max(s.LongestStreak, next.CurrentStreak)

	if s.MonthlyResetDate == nil || !SameMonth(*s.MonthlyResetDate, today) {
		next.MonthlyClaims = 0
		reset := MonthStart(today)
		next.MonthlyResetDate = &reset
	}
	next.MonthlyClaims++
	next.LastClaimDate = &today

	return next, nil
}
