package economy

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"sodmax/internal/domain"
)

var (
	maxInt64        = decimal.NewFromInt(math.MaxInt64)
	ManualRate      = decimal.NewFromInt(1)
	DefaultAutoRate = decimal.New(5, -1)
)

// MineYield is floor(MiningPower * effective multiplier * rate)
func MineYield(acc *domain.Account, now time.Time, rate decimal.Decimal) (int64, error) {
	y := decimal.NewFromInt(acc.MiningPower).
		Mul(acc.EffectiveMultiplier(now)).
		Mul(rate).
		Floor()
	if y.GreaterThan(maxInt64) {
		return 0, domain.ErrOverflow
	}
	return y.IntPart(), nil
}

// RecordMined updates the mining counters for earned SOD, resetting TodayEarned
// when now falls on a different day than the last recorded one.
func RecordMined(acc *domain.Account, earned int64, now time.Time, loc *time.Location) error {
	day := DayStart(now, loc)
	if !acc.EarnedDay.Equal(day) {
		acc.EarnedDay = day
		acc.TodayEarned = 0
	}

	today, err := CheckedAdd(acc.TodayEarned, earned)
	if err != nil {
		return err
	}
	mined, err := CheckedAdd(acc.TotalMined, earned)
	if err != nil {
		return err
	}
	total, err := CheckedAdd(acc.TotalEarned, earned)
	if err != nil {
		return err
	}

	acc.TodayEarned, acc.TotalMined, acc.TotalEarned = today, mined, total
	return nil
}

// ApplyUpgrade raises power and level by one step
func ApplyUpgrade(acc *domain.Account, powerStep int64, levelStep int) error {
	power, err := CheckedAdd(acc.MiningPower, powerStep)
	if err != nil {
		return err
	}
	if acc.Level > math.MaxInt-levelStep {
		return domain.ErrOverflow
	}
	acc.MiningPower = power
	acc.Level += levelStep
	return nil
}

// StartBoost sets the multiplier and expiry for a purchased boost
func StartBoost(acc *domain.Account, offer domain.BoostOffer, now time.Time) error {
	if acc.BoostActive(now) {
		return domain.ErrBoostAlreadyActive
	}
	expires := now.Add(offer.Duration)
	acc.MiningMultiplier = offer.Multiplier
	acc.BoostExpiresAt = &expires
	return nil
}

// EndBoost returns the multiplier to baseline once the boost expired.
// It reports whether anything changed.
func EndBoost(acc *domain.Account, now time.Time) bool {
	if acc.BoostExpiresAt == nil || acc.BoostActive(now) {
		return false
	}
	acc.MiningMultiplier = decimal.NewFromInt(1)
	acc.BoostExpiresAt = nil
	return true
}
