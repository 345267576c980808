package service

import (
	"context"
	"errors"
	"time"

	"sodmax/internal/domain"
	"sodmax/internal/economy"
	"sodmax/internal/logger"
	"sodmax/internal/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// errSkip lets a plan decline to record anything (auto-mine with nothing to credit)
var errSkip = errors.New("nothing to record")

// errUnchanged lets a mutation report that the account needs no write
var errUnchanged = errors.New("account unchanged")

// Plan decides the event to record given the freshly loaded account.
// It runs under the user's ledger lock, so checks it makes hold for the commit.
type Plan func(acc *domain.Account, now time.Time) (economy.Event, error)

// Notifier receives user-facing notifications after successful commits
type Notifier interface {
	Emit(ctx context.Context, n *domain.Notification)
}

// LedgerService is the only path that changes balances
type LedgerService struct {
	store    repository.Store
	notifier Notifier
	clock    clockwork.Clock
	locks    *keyedLocks
	newID    func() string
}

func NewLedgerService(store repository.Store, notifier Notifier, clock clockwork.Clock) *LedgerService {
	return &LedgerService{
		store:    store,
		notifier: notifier,
		clock:    clock,
		locks:    newKeyedLocks(),
		newID:    uuid.NewString,
	}
}

// Open returns the stored account or creates it from template, recording
// non-zero opening balances as transactions.
func (l *LedgerService) Open(ctx context.Context, template *domain.Account) (*domain.Account, error) {
	unlock := l.locks.lock(template.UserID)
	defer unlock()

	acc, err := l.store.GetAccount(ctx, template.UserID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, storeError("load account", err)
	}

	now := l.clock.Now()
	next := domain.NewAccount(template.UserID, template.MiningPower, now)
	var txs []*domain.Transaction
	for _, c := range []domain.Currency{domain.CurrencySOD, domain.CurrencyToman} {
		amount := template.Balance(c)
		if amount == 0 {
			continue
		}
		var tx *domain.Transaction
		next, tx, err = economy.Apply(next, economy.Event{
			Type:     domain.TxTypeOpeningBalance,
			Currency: c,
			Amount:   amount,
		}, now, l.newID())
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	if err := l.commit(ctx, nil, repository.LedgerEntry{Account: next, Transactions: txs}); err != nil {
		return nil, err
	}
	logger.ForUser(next.UserID).Info("account opened", "sod", next.SODBalance, "toman", next.TomanBalance)
	return next, nil
}

// Execute loads the account, asks plan for an event, applies it and persists
// the new account together with its transaction.
func (l *LedgerService) Execute(ctx context.Context, userID int64, plan Plan) (*domain.Account, *domain.Transaction, error) {
	unlock := l.locks.lock(userID)
	defer unlock()

	acc, err := l.load(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	now := l.clock.Now()
	ev, err := plan(acc, now)
	if err != nil {
		return nil, nil, err
	}

	if ev.IdempotencyKey != "" {
		_, err := l.store.FindTransactionByKey(ctx, userID, ev.IdempotencyKey)
		if err == nil {
			l.count(ev, resultRejected)
			return nil, nil, domain.ErrDuplicateTransaction
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, nil, storeError("find transaction by key", err)
		}
	}

	next, tx, err := economy.Apply(acc, ev, now, l.newID())
	if err != nil {
		l.count(ev, resultRejected)
		return nil, nil, err
	}

	if err := l.commit(ctx, acc, repository.LedgerEntry{Account: next, Transactions: []*domain.Transaction{tx}}); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			l.count(ev, resultRejected)
		} else {
			l.count(ev, resultError)
		}
		return nil, nil, err
	}
	l.count(ev, resultOK)

	l.notify(ctx, next, tx)
	return next, tx, nil
}

// Mutate applies a non-balance update under the same lock. fn may return
// errUnchanged to skip the write.
func (l *LedgerService) Mutate(ctx context.Context, userID int64, fn func(acc *domain.Account, now time.Time) error) (*domain.Account, error) {
	unlock := l.locks.lock(userID)
	defer unlock()

	acc, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	next, err := economy.MutateOnly(acc, func(a *domain.Account) error { return fn(a, now) }, now)
	if errors.Is(err, errUnchanged) {
		return acc, nil
	}
	if err != nil {
		return nil, err
	}

	if err := l.store.SaveAccount(ctx, next); err != nil {
		logger.ForUser(userID).Error("account update failed", "op", "save account", "error", err)
		return nil, storeError("save account", err)
	}
	return next, nil
}

// Settle finishes a pending withdrawal. A failed withdrawal is compensated by a
// refund credit; the original debit stays in the log.
func (l *LedgerService) Settle(ctx context.Context, userID int64, txID string, success bool, reason string) (*domain.Transaction, error) {
	unlock := l.locks.lock(userID)
	defer unlock()

	acc, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending, err := l.store.GetTransaction(ctx, userID, txID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, storeError("get transaction", err)
	}
	if !pending.Settleable() {
		return nil, domain.ErrNotPending
	}

	now := l.clock.Now()
	entry := repository.LedgerEntry{
		Account:      acc,
		StatusChange: &repository.StatusChange{TxID: txID, Status: domain.TxStatusSuccess},
	}

	var refund *domain.Transaction
	if !success {
		entry.StatusChange.Status = domain.TxStatusFailed
		refundEv := economy.Event{
			Type:           domain.TxTypeWithdrawalRefund,
			Currency:       pending.Currency,
			Amount:         -pending.Amount,
			IdempotencyKey: refundKey(txID),
			Meta:           map[string]interface{}{"withdrawal_id": txID, "reason": reason},
		}

		// a refund without the status change means an earlier attempt stopped halfway
		_, err := l.store.FindTransactionByKey(ctx, userID, refundEv.IdempotencyKey)
		if err == nil {
			l.count(refundEv, resultRejected)
			return nil, l.repairRefunded(ctx, userID, txID)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, storeError("find transaction by key", err)
		}

		next, tx, err := economy.Apply(acc, refundEv, now, l.newID())
		if err != nil {
			l.count(refundEv, resultRejected)
			return nil, err
		}
		entry.Account = next
		entry.Transactions = []*domain.Transaction{tx}
		refund = tx
	}

	if err := l.commit(ctx, acc, entry); err != nil {
		if refund != nil && errors.Is(err, domain.ErrDuplicateTransaction) {
			return nil, l.repairRefunded(ctx, userID, txID)
		}
		return nil, err
	}

	settled := pending.Clone()
	settled.Status = entry.StatusChange.Status
	if refund != nil {
		l.count(economy.Event{Type: refund.Type, Currency: refund.Currency}, resultOK)
		l.notify(ctx, entry.Account, refund)
	} else {
		l.notify(ctx, entry.Account, settled)
	}
	return settled, nil
}

// repairRefunded marks a withdrawal whose refund is already recorded as failed
func (l *LedgerService) repairRefunded(ctx context.Context, userID int64, txID string) error {
	if err := l.store.UpdateTransactionStatus(ctx, userID, txID, domain.TxStatusFailed); err != nil {
		return storeError("update transaction status", err)
	}
	logger.ForUser(userID).Warn("repaired status of refunded withdrawal", "tx_id", txID)
	return domain.ErrNotPending
}

func refundKey(txID string) string { return "withdrawal_refund:" + txID }

// Verify checks the stored balances against the stored transaction log
func (l *LedgerService) Verify(ctx context.Context, userID int64) error {
	unlock := l.locks.lock(userID)
	defer unlock()

	acc, err := l.load(ctx, userID)
	if err != nil {
		return err
	}
	txs, err := l.store.ListTransactions(ctx, userID)
	if err != nil {
		return storeError("list transactions", err)
	}
	return economy.CheckConservation(acc, txs)
}

func (l *LedgerService) load(ctx context.Context, userID int64) (*domain.Account, error) {
	acc, err := l.store.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, storeError("load account", err)
	}
	return acc, nil
}

// commit writes e atomically when the store supports it. Otherwise the account is
// written first and restored to prev if the transaction append fails.
func (l *LedgerService) commit(ctx context.Context, prev *domain.Account, e repository.LedgerEntry) error {
	log := logger.ForUser(e.Account.UserID)

	if ac, ok := l.store.(repository.AtomicCommitter); ok {
		if err := ac.CommitLedgerEntry(ctx, e); err != nil {
			if !errors.Is(err, domain.ErrDuplicateTransaction) {
				log.Error("ledger commit failed", "op", "commit ledger entry", "error", err)
			}
			return storeError("commit ledger entry", err)
		}
		return nil
	}

	if err := l.store.SaveAccount(ctx, e.Account); err != nil {
		log.Error("ledger commit failed", "op", "save account", "error", err)
		return storeError("save account", err)
	}

	for _, tx := range e.Transactions {
		if err := l.store.AppendTransaction(ctx, tx); err != nil {
			log.Error("ledger commit failed", "op", "append transaction", "tx_id", tx.ID, "error", err)
			l.restore(ctx, prev, e.Account.UserID)
			return storeError("append transaction", err)
		}
	}

	if e.StatusChange != nil {
		if err := l.store.UpdateTransactionStatus(ctx, e.Account.UserID, e.StatusChange.TxID, e.StatusChange.Status); err != nil {
			// the refund is already recorded; the withdrawal stays pending
			log.Error("withdrawal status update failed after commit", "tx_id", e.StatusChange.TxID, "error", err)
			return storeError("update transaction status", err)
		}
	}
	return nil
}

func (l *LedgerService) restore(ctx context.Context, prev *domain.Account, userID int64) {
	if prev == nil {
		if err := l.store.RemoveUser(ctx, userID); err != nil {
			logger.ForUser(userID).Error("ledger diverged: could not drop half-created account", "error", err)
		}
		return
	}
	if err := l.store.SaveAccount(ctx, prev); err != nil {
		logger.ForUser(userID).Error("ledger diverged: could not restore account after failed append",
			"sod", prev.SODBalance, "toman", prev.TomanBalance, "error", err)
	}
}

func (l *LedgerService) count(ev economy.Event, result string) {
	LedgerOperations.WithLabelValues(string(ev.Type), string(ev.Currency), result).Inc()
}

func (l *LedgerService) notify(ctx context.Context, acc *domain.Account, tx *domain.Transaction) {
	if l.notifier == nil {
		return
	}
	n := notificationFor(acc, tx)
	if n == nil {
		return
	}
	n.ID = l.newID()
	n.CreatedAt = tx.CreatedAt
	l.notifier.Emit(ctx, n)
}

// storeError keeps domain errors intact and wraps everything else
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrDuplicateTransaction),
		errors.Is(err, domain.ErrNotPending),
		errors.Is(err, domain.ErrNotFound):
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
