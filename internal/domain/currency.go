package domain

// Currency identifies one of the two account balances
type Currency string

const (
	CurrencySOD   Currency = "SOD"
	CurrencyToman Currency = "TOMAN"
)

func (c Currency) Valid() bool {
	return c == CurrencySOD || c == CurrencyToman
}
