package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrAlreadyClaimed       = errors.New("already claimed")
	ErrAlreadyActive        = errors.New("already active")
	ErrNotCompletable       = errors.New("not completable")
	ErrNotFound             = errors.New("not found")
	ErrBoostAlreadyActive   = errors.New("boost already active")
	ErrOverflow             = errors.New("integer overflow")
	ErrReentrantOperation   = errors.New("operation already in progress")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrBelowMinimum         = errors.New("amount below minimum")
	ErrNotAvailable         = errors.New("not available yet")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrDuplicateInvite      = errors.New("invitee already invited")
	ErrNotPending           = errors.New("transaction is not pending")
	ErrSessionClosed        = errors.New("session closed")
	ErrInvalidInput         = errors.New("invalid input")

	// ErrPersistence matches every *PersistenceError
	ErrPersistence = errors.New("persistence failure")
	// ErrIntegrity matches every *IntegrityError
	ErrIntegrity = errors.New("ledger integrity violation")
)

// PersistenceError wraps a store failure. The in-memory view was not advanced.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// IntegrityError reports that the stored balance disagrees with the transaction log
type IntegrityError struct {
	UserID   int64
	Currency Currency
	Balance  int64
	Sum      int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation for user %d: %s balance %d, transaction sum %d",
		e.UserID, e.Currency, e.Balance, e.Sum)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}
