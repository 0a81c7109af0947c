// Package economy holds the pure rules of the token ledger: UTC day
// arithmetic, the daily earning cap, transfer tax, seasonal multipliers
// and cooldowns. Nothing here touches storage.
package economy

import (
	"math"
	"time"
)

// MaxAmount bounds any single user-supplied amount so that tax and
// multiplier arithmetic cannot overflow int64.
const MaxAmount int64 = 1_000_000_000_000

// BasisPoints is the denominator for rates expressed in basis points.
const BasisPoints int64 = 10_000

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's UTC calendar month.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// SameMonth reports whether a and b fall in the same UTC calendar month.
func SameMonth(a, b time.Time) bool {
	return MonthStart(a).Equal(MonthStart(b))
}

// CapCheck is the outcome of checking a request against the daily cap.
type CapCheck struct {
	Allowed   bool
	Remaining int64
}

// CheckCap compares a requested award with what is left of today's cap.
// Remaining never goes below zero.
func CheckCap(totalEarned, requested, dailyCap int64) CapCheck {
	remaining := dailyCap - totalEarned
	if remaining < 0 {
		remaining = 0
	}
	return CapCheck{Allowed: remaining >= requested, Remaining: remaining}
}

// Grant returns the amount actually awarded: the request clamped to the
// remaining allowance. Zero means the cap is exhausted.
func (c CapCheck) Grant(requested int64) int64 {
	if requested <= 0 || c.Remaining <= 0 {
		return 0
	}
	return min(requested, c.Remaining)
}

// TransferTax returns ceil(amount * bps / 10000). Amount must be within
// [0, MaxAmount] and bps within [0, BasisPoints].
func TransferTax(amount, bps int64) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*bps + BasisPoints - 1) / BasisPoints
}

// SeasonalAward returns floor(granted * multiplier), never negative.
func SeasonalAward(granted int64, multiplier float64) int64 {
	if granted <= 0 || multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return 0
	}
	v := math.Floor(float64(granted) * multiplier)
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// InflationRate is circulation as a percentage of everything ever earned,
// rounded to two decimals. It is zero when nothing has been earned.
func InflationRate(circulation, totalEarned int64) float64 {
	if totalEarned <= 0 {
		return 0
	}
	rate := float64(circulation) / float64(totalEarned) * 100
	return math.Round(rate*100) / 100
}

// CooldownRemaining returns how long the caller still has to wait after
// an event at last. A nil last means no previous event.
func CooldownRemaining(last *time.Time, now time.Time, cooldown time.Duration) time.Duration {
	if last == nil || cooldown <= 0 {
		return 0
	}
	left := last.Add(cooldown).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// CeilSeconds rounds a positive duration up to whole seconds.
func CeilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
