package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BoostOffer is what a user buys: Multiplier for Duration, paid with Cost SOD
type BoostOffer struct {
	Cost       int64           `json:"cost"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Duration   time.Duration   `json:"duration"`
}

// Valid rejects offers that would lower accrual or never expire
func (o BoostOffer) Valid() bool {
	return o.Cost > 0 && o.Multiplier.GreaterThanOrEqual(decimal.NewFromInt(1)) && o.Duration > 0
}
