package repository

import (
	"context"

	"sodmax/internal/domain"
)

// Store persists everything a session needs. Reads of missing records return
// domain.ErrNotFound; AppendTransaction returns domain.ErrDuplicateTransaction
// when the user already holds a transaction with the same idempotency key.
type Store interface {
	GetAccount(ctx context.Context, userID int64) (*domain.Account, error)
	SaveAccount(ctx context.Context, acc *domain.Account) error

	AppendTransaction(ctx context.Context, tx *domain.Transaction) error
	UpdateTransactionStatus(ctx context.Context, userID int64, txID string, status domain.TransactionStatus) error
	GetTransaction(ctx context.Context, userID int64, txID string) (*domain.Transaction, error)
	FindTransactionByKey(ctx context.Context, userID int64, key string) (*domain.Transaction, error)
	// ListTransactions returns the full log oldest first
	ListTransactions(ctx context.Context, userID int64) ([]*domain.Transaction, error)

	GetMissionState(ctx context.Context, userID int64) (*domain.MissionState, error)
	SaveMissionState(ctx context.Context, st *domain.MissionState) error

	GetReferralState(ctx context.Context, userID int64) (*domain.ReferralState, error)
	SaveReferralState(ctx context.Context, st *domain.ReferralState) error

	AppendNotification(ctx context.Context, n *domain.Notification) error
	// ListNotifications returns newest first, at most limit entries (0 means all)
	ListNotifications(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error)

	RemoveUser(ctx context.Context, userID int64) error
}

// StatusChange moves one pending withdrawal to its final status
type StatusChange struct {
	TxID   string
	Status domain.TransactionStatus
}

// LedgerEntry is everything one ledger operation writes. UserID is only read
// when Account is nil.
type LedgerEntry struct {
	UserID       int64
	Account      *domain.Account
	Transactions []*domain.Transaction
	StatusChange *StatusChange
}

func (e LedgerEntry) owner() int64 {
	if e.Account != nil {
		return e.Account.UserID
	}
	return e.UserID
}

// AtomicCommitter is implemented by stores that can write a LedgerEntry all-or-nothing
type AtomicCommitter interface {
	CommitLedgerEntry(ctx context.Context, e LedgerEntry) error
}
