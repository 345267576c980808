package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the per-user economy record. Balances are only ever changed by the ledger.
type Account struct {
	UserID            int64           `db:"user_id" json:"user_id"`
	SODBalance        int64           `db:"sod_balance" json:"sod_balance"`
	TomanBalance      int64           `db:"toman_balance" json:"toman_balance"`
	MiningPower       int64           `db:"mining_power" json:"mining_power"`
	MiningMultiplier  decimal.Decimal `db:"mining_multiplier" json:"mining_multiplier"`
	Level             int             `db:"level" json:"level"`
	AutoMiningEnabled bool            `db:"auto_mining_enabled" json:"auto_mining_enabled"`
	BoostExpiresAt    *time.Time      `db:"boost_expires_at" json:"boost_expires_at,omitempty"`
	TotalMined        int64           `db:"total_mined" json:"total_mined"`
	TodayEarned       int64           `db:"today_earned" json:"today_earned"`
	EarnedDay         time.Time       `db:"earned_day" json:"earned_day"`
	TotalEarned       int64           `db:"total_earned" json:"total_earned"`
	ReferralCount     int64           `db:"referral_count" json:"referral_count"`
	ReferralEarnings  int64           `db:"referral_earnings" json:"referral_earnings"`
	LastDailyClaimAt  *time.Time      `db:"last_daily_claim_at" json:"last_daily_claim_at,omitempty"`
	DailyStreak       int             `db:"daily_streak" json:"daily_streak"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// NewAccount returns a fresh account with zero balances and baseline multiplier
func NewAccount(userID int64, miningPower int64, now time.Time) *Account {
	return &Account{
		UserID:           userID,
		MiningPower:      miningPower,
		MiningMultiplier: decimal.NewFromInt(1),
		Level:            1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Balance returns the balance held in the given currency
func (a *Account) Balance(c Currency) int64 {
	if c == CurrencyToman {
		return a.TomanBalance
	}
	return a.SODBalance
}

// SetBalance overwrites one balance; callers outside the ledger must not use it
func (a *Account) SetBalance(c Currency, v int64) {
	if c == CurrencyToman {
		a.TomanBalance = v
		return
	}
	a.SODBalance = v
}

// BoostActive reports whether a purchased boost is still running at now
func (a *Account) BoostActive(now time.Time) bool {
	return a.BoostExpiresAt != nil && now.Before(*a.BoostExpiresAt)
}

// EffectiveMultiplier is the multiplier accrual should use at now.
// An expired boost counts as 1 even if its reset has not been persisted yet.
func (a *Account) EffectiveMultiplier(now time.Time) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if a.BoostExpiresAt != nil && !a.BoostActive(now) {
		return one
	}
	if a.MiningMultiplier.LessThan(one) {
		return one
	}
	return a.MiningMultiplier
}

// Clone returns a deep copy so stores never share pointers with callers
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.BoostExpiresAt != nil {
		t := *a.BoostExpiresAt
		c.BoostExpiresAt = &t
	}
	if a.LastDailyClaimAt != nil {
		t := *a.LastDailyClaimAt
		c.LastDailyClaimAt = &t
	}
	return &c
}
