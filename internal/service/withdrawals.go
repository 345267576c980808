package service

import (
	"context"
	"time"

	"sodmax/internal/domain"
	"sodmax/internal/economy"
)

// WithdrawalService requests Toman withdrawals and settles them
type WithdrawalService struct {
	ledger    *LedgerService
	audit     *AuditService
	minAmount int64
}

func NewWithdrawalService(ledger *LedgerService, audit *AuditService, minAmount int64) *WithdrawalService {
	return &WithdrawalService{ledger: ledger, audit: audit, minAmount: minAmount}
}

// Withdraw debits amount Toman as a pending withdrawal. A non-empty requestID
// makes retries of the same request fail with ErrDuplicateTransaction.
func (s *WithdrawalService) Withdraw(ctx context.Context, userID int64, amount int64, requestID string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if amount < s.minAmount {
		return nil, domain.ErrBelowMinimum
	}

	var key string
	meta := map[string]interface{}{}
	if requestID != "" {
		key = "withdraw:" + requestID
		meta["request_id"] = requestID
	}

	_, tx, err := s.ledger.Execute(ctx, userID, func(acc *domain.Account, now time.Time) (economy.Event, error) {
		return economy.Event{
			Type:           domain.TxTypeWithdrawal,
			Currency:       domain.CurrencyToman,
			Amount:         -amount,
			Status:         domain.TxStatusPending,
			IdempotencyKey: key,
			Meta:           meta,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogWithdrawRequest(ctx, userID, amount, tx.ID)
	return tx, nil
}

// Complete marks a pending withdrawal as paid out
func (s *WithdrawalService) Complete(ctx context.Context, userID int64, txID string) (*domain.Transaction, error) {
	tx, err := s.ledger.Settle(ctx, userID, txID, true, "")
	if err != nil {
		return nil, err
	}
	s.audit.LogWithdrawApprove(ctx, userID, txID)
	return tx, nil
}

// Fail rejects a pending withdrawal and refunds it
func (s *WithdrawalService) Fail(ctx context.Context, userID int64, txID, reason string) (*domain.Transaction, error) {
	tx, err := s.ledger.Settle(ctx, userID, txID, false, reason)
	if err != nil {
		return nil, err
	}
	s.audit.LogWithdrawReject(ctx, userID, txID, reason)
	return tx, nil
}
