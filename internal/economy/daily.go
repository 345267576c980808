package economy

import (
	"math"
	"time"

	"sodmax/internal/domain"
)

// MaxDailyStreak caps the streak multiplier of the daily reward
const MaxDailyStreak = 7

// DailyClaim describes the daily reward available now
type DailyClaim struct {
	Day    time.Time
	Streak int
	Reward int64
}

// Key is the idempotency key of the claim for its day
func (d DailyClaim) Key() string {
	return "daily:" + d.Day.Format("2006-01-02")
}

// NextDailyClaim computes today's daily reward, or ErrNotAvailable when it was
// already taken today. The streak continues only if yesterday was claimed.
func NextDailyClaim(acc *domain.Account, base int64, now time.Time, loc *time.Location) (DailyClaim, error) {
	if base <= 0 {
		return DailyClaim{}, domain.ErrInvalidAmount
	}

	today := DayStart(now, loc)
	streak := 1
	if acc.LastDailyClaimAt != nil {
		last := DayStart(*acc.LastDailyClaimAt, loc)
		switch {
		case !last.Before(today):
			return DailyClaim{}, domain.ErrNotAvailable
		case last.Equal(DayStart(today.AddDate(0, 0, -1), loc)):
			streak = acc.DailyStreak + 1
		}
	}

	mult := streak
	if mult > MaxDailyStreak {
		mult = MaxDailyStreak
	}
	if base > math.MaxInt64/int64(mult) {
		return DailyClaim{}, domain.ErrOverflow
	}

	return DailyClaim{Day: today, Streak: streak, Reward: base * int64(mult)}, nil
}

// MarkDailyClaimed records the claim on the account
func MarkDailyClaimed(acc *domain.Account, claim DailyClaim, now time.Time) {
	at := now
	acc.LastDailyClaimAt = &at
	acc.DailyStreak = claim.Streak
}
