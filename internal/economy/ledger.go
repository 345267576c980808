// Package economy holds the pure rules of the reward economy: how an event changes an
// account, how much mining yields and how missions progress. Nothing here does I/O.
package economy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"sodmax/internal/domain"
)

var errMutateBalance = errors.New("event mutation must not change balances")

// Event is a single balance change plus the non-balance updates that must land with it
type Event struct {
	Type           domain.TransactionType
	Currency       domain.Currency
	Amount         int64
	Status         domain.TransactionStatus
	IdempotencyKey string
	Meta           map[string]interface{}
	// Mutate applies side updates (power, level, counters) to the new account copy.
	// Returning an error rejects the whole event.
	Mutate func(acc *domain.Account) error
}

// Apply computes the account after ev and the transaction recording it.
// acc is never modified; on error no state change and no transaction exist.
func Apply(acc *domain.Account, ev Event, now time.Time, txID string) (*domain.Account, *domain.Transaction, error) {
	if ev.Amount == 0 {
		return nil, nil, domain.ErrInvalidAmount
	}
	if !ev.Currency.Valid() {
		return nil, nil, fmt.Errorf("unknown currency %q: %w", ev.Currency, domain.ErrInvalidAmount)
	}

	balance, err := CheckedAdd(acc.Balance(ev.Currency), ev.Amount)
	if err != nil {
		return nil, nil, err
	}
	if balance < 0 {
		return nil, nil, domain.ErrInsufficientBalance
	}

	next := acc.Clone()
	next.SetBalance(ev.Currency, balance)
	sod, toman := next.SODBalance, next.TomanBalance

	if ev.Mutate != nil {
		if err := ev.Mutate(next); err != nil {
			return nil, nil, err
		}
		if next.SODBalance != sod || next.TomanBalance != toman {
			return nil, nil, errMutateBalance
		}
	}
	next.UpdatedAt = now

	status := ev.Status
	if status == "" {
		status = domain.TxStatusSuccess
	}

	tx := &domain.Transaction{
		ID:             txID,
		UserID:         acc.UserID,
		Type:           ev.Type,
		Amount:         ev.Amount,
		Currency:       ev.Currency,
		Status:         status,
		IdempotencyKey: ev.IdempotencyKey,
		Meta:           ev.Meta,
		CreatedAt:      now,
	}
	return next, tx, nil
}

// MutateOnly applies a non-balance update to a copy of acc
func MutateOnly(acc *domain.Account, fn func(*domain.Account) error, now time.Time) (*domain.Account, error) {
	next := acc.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if next.SODBalance != acc.SODBalance || next.TomanBalance != acc.TomanBalance {
		return nil, errMutateBalance
	}
	next.UpdatedAt = now
	return next, nil
}

// CheckedAdd adds without wrapping
func CheckedAdd(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, domain.ErrOverflow
	}
	return a + b, nil
}

// Sums totals transaction amounts per currency, regardless of status
func Sums(txs []*domain.Transaction) (map[domain.Currency]int64, error) {
	sums := map[domain.Currency]int64{
		domain.CurrencySOD:   0,
		domain.CurrencyToman: 0,
	}
	for _, tx := range txs {
		s, err := CheckedAdd(sums[tx.Currency], tx.Amount)
		if err != nil {
			return nil, err
		}
		sums[tx.Currency] = s
	}
	return sums, nil
}

// CheckConservation verifies balance(c) == Σ amount for both currencies
func CheckConservation(acc *domain.Account, txs []*domain.Transaction) error {
	sums, err := Sums(txs)
	if err != nil {
		return fmt.Errorf("sum transactions for user %d: %w", acc.UserID, err)
	}
	for _, c := range []domain.Currency{domain.CurrencySOD, domain.CurrencyToman} {
		if sums[c] != acc.Balance(c) {
			return &domain.IntegrityError{
				UserID:   acc.UserID,
				Currency: c,
				Balance:  acc.Balance(c),
				Sum:      sums[c],
			}
		}
	}
	return nil
}
