package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sodmax/internal/domain"
	"sodmax/internal/economy"
	"sodmax/internal/repository"
)

func credit(amount int64, key string) Plan {
	return func(acc *domain.Account, now time.Time) (economy.Event, error) {
		return economy.Event{
			Type:           domain.TxTypeMine,
			Currency:       domain.CurrencySOD,
			Amount:         amount,
			IdempotencyKey: key,
		}, nil
	}
}

func TestLedgerService_Open(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t, repository.NewMemoryStore())
	acc := f.open(t, 1, 300, 12000)

	assert.Equal(t, int64(300), acc.SODBalance)
	assert.Equal(t, int64(12000), acc.TomanBalance)

	txs := f.transactions(t, 1)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, domain.TxTypeOpeningBalance, tx.Type)
	}
	f.requireConserved(t, 1)

	// a second open returns the stored account untouched
	again := f.open(t, 1, 999, 999)
	assert.Equal(t, int64(300), again.SODBalance)
	assert.Len(t, f.transactions(t, 1), 2)
}

func TestLedgerService_Execute(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t, repository.NewMemoryStore())
	f.open(t, 1, 0, 0)

	acc, tx, err := f.ledger.Execute(context.Background(), 1, credit(5, ""))
	require.NoError(t, err)
	assert.Equal(t, int64(5), acc.SODBalance)
	assert.Equal(t, int64(5), tx.Amount)
	assert.Equal(t, domain.TxStatusSuccess, tx.Status)
	assert.Equal(t, testStart, tx.CreatedAt)

	assert.Equal(t, int64(5), f.account(t, 1).SODBalance)
	assert.Len(t, f.transactions(t, 1), 1)
	assert.Equal(t, []domain.NotificationKind{domain.NotifyMined}, f.notifier.kinds())
	f.requireConserved(t, 1)
}

func TestLedgerService_Execute_InsufficientBalance(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t, repository.NewMemoryStore())
	f.open(t, 1, 100, 0)

	_, _, err := f.ledger.Execute(context.Background(), 1, credit(-5000, ""))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	assert.Equal(t, int64(100), f.account(t, 1).SODBalance)
	assert.Len(t, f.transactions(t, 1), 1)
	assert.Empty(t, f.notifier.kinds())
}

func TestLedgerService_Execute_PlanError(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t, repository.NewMemoryStore())
	f.open(t, 1, 0, 0)

	_, _, err := f.ledger.Execute(context.Background(), 1, func(*domain.Account, time.Time) (economy.Event, error) {
		return economy.Event{}, domain.ErrBoostAlreadyActive
	})
	require.ErrorIs(t, err, domain.ErrBoostAlreadyActive)
	assert.Empty(t, f.transactions(t, 1))
}

func TestLedgerService_Execute_UnknownUser(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t, repository.NewMemoryStore())
	_, _, err := f.ledger.Execute(context.Background(), 42, credit(1, ""))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedgerService_Execute_Idempotent(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t, repository.NewMemoryStore())
	f.open(t, 1, 0, 0)

	_, _, err := f.ledger.Execute(context.Background(), 1, credit(500, "mission:mine_10:0"))
	require.NoError(t, err)

	_, _, err = f.ledger.Execute(context.Background(), 1, credit(500, "mission:mine_10:0"))
	require.ErrorIs(t, err, domain.ErrDuplicateTransaction)

	assert.Equal(t, int64(500), f.account(t, 1).SODBalance)
	assert.Len(t, f.transactions(t, 1), 1)
	f.requireConserved(t, 1)
}

func TestLedgerService_Execute_Concurrent(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t, repository.NewMemoryStore())
	f.open(t, 1, 0, 0)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.ledger.Execute(context.Background(), 1, credit(1, ""))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n), f.account(t, 1).SODBalance)
	assert.Len(t, f.transactions(t, 1), n)
	f.requireConserved(t, 1)
}

func TestLedgerService_Execute_AppendFailureRestoresAccount(t *testing.T) {
	t.Parallel()

	store := newFaultyStore()
	f := newLedgerFixture(t, store)
	f.open(t, 1, 100, 0)

	store.set(func(s *faultyStore) { s.appendErr = errStoreDown })
	_, _, err := f.ledger.Execute(context.Background(), 1, credit(5, ""))
	require.ErrorIs(t, err, domain.ErrPersistence)

	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "append transaction", pe.Op)

	assert.Equal(t, int64(100), f.account(t, 1).SODBalance)
	assert.Empty(t, f.notifier.kinds())

	store.set(func(s *faultyStore) { s.appendErr = nil })
	f.requireConserved(t, 1)
}

func TestLedgerService_Execute_SaveFailure(t *testing.T) {
	t.Parallel()

	store := newFaultyStore()
	f := newLedgerFixture(t, store)
	f.open(t, 1, 100, 0)

	store.set(func(s *faultyStore) { s.saveAccountErr = errStoreDown })
	_, _, err := f.ledger.Execute(context.Background(), 1, credit(5, ""))
	require.ErrorIs(t, err, domain.ErrPersistence)

	store.set(func(s *faultyStore) { s.saveAccountErr = nil })
	assert.Equal(t, int64(100), f.account(t, 1).SODBalance)
	assert.Len(t, f.transactions(t, 1), 1)
}

func TestLedgerService_Execute_AtomicCommitFailure(t *testing.T) {
	t.Parallel()

	mem := repository.NewMemoryStore()
	seed := newLedgerFixture(t, mem)
	seed.open(t, 1, 100, 0)

	f := newLedgerFixture(t, &brokenCommitter{MemoryStore: mem})
	_, _, err := f.ledger.Execute(context.Background(), 1, credit(5, ""))
	require.ErrorIs(t, err, domain.ErrPersistence)

	assert.Equal(t, int64(100), seed.account(t, 1).SODBalance)
	assert.Len(t, seed.transactions(t, 1), 1)
	assert.Empty(t, f.notifier.kinds())
}

func TestLedgerService_Mutate(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t, repository.NewMemoryStore())
	f.open(t, 1, 10, 0)

	acc, err := f.ledger.Mutate(context.Background(), 1, func(a *domain.Account, _ time.Time) error {
		a.AutoMiningEnabled = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, acc.AutoMiningEnabled)
	assert.True(t, f.account(t, 1).AutoMiningEnabled)

	_, err = f.ledger.Mutate(context.Background(), 1, func(a *domain.Account, _ time.Time) error {
		a.SODBalance = 1_000_000
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, int64(10), f.account(t, 1).SODBalance)

	acc, err = f.ledger.Mutate(context.Background(), 1, func(*domain.Account, time.Time) error {
		return errUnchanged
	})
	require.NoError(t, err)
	assert.True(t, acc.AutoMiningEnabled)
}

func TestLedgerService_Settle(t *testing.T) {
	t.Parallel()

	withdraw := func(amount int64) Plan {
		return func(*domain.Account, time.Time) (economy.Event, error) {
			return economy.Event{
				Type:     domain.TxTypeWithdrawal,
				Currency: domain.CurrencyToman,
				Amount:   -amount,
				Status:   domain.TxStatusPending,
			}, nil
		}
	}

	t.Run("success keeps the debit", func(t *testing.T) {
		t.Parallel()
		f := newLedgerFixture(t, repository.NewMemoryStore())
		f.open(t, 1, 0, 20000)

		_, pending, err := f.ledger.Execute(context.Background(), 1, withdraw(15000))
		require.NoError(t, err)

		settled, err := f.ledger.Settle(context.Background(), 1, pending.ID, true, "")
		require.NoError(t, err)
		assert.Equal(t, domain.TxStatusSuccess, settled.Status)
		assert.Equal(t, int64(5000), f.account(t, 1).TomanBalance)
		f.requireConserved(t, 1)

		_, err = f.ledger.Settle(context.Background(), 1, pending.ID, false, "late")
		require.ErrorIs(t, err, domain.ErrNotPending)
	})

	t.Run("failure refunds", func(t *testing.T) {
		t.Parallel()
		f := newLedgerFixture(t, repository.NewMemoryStore())
		f.open(t, 1, 0, 20000)

		_, pending, err := f.ledger.Execute(context.Background(), 1, withdraw(15000))
		require.NoError(t, err)

		settled, err := f.ledger.Settle(context.Background(), 1, pending.ID, false, "bank rejected")
		require.NoError(t, err)
		assert.Equal(t, domain.TxStatusFailed, settled.Status)
		assert.Equal(t, int64(20000), f.account(t, 1).TomanBalance)

		txs := f.transactions(t, 1)
		require.Len(t, txs, 3)
		assert.Equal(t, domain.TxStatusFailed, txs[1].Status)
		assert.Equal(t, domain.TxTypeWithdrawalRefund, txs[2].Type)
		assert.Equal(t, int64(15000), txs[2].Amount)
		f.requireConserved(t, 1)
	})

	t.Run("only withdrawals settle", func(t *testing.T) {
		t.Parallel()
		f := newLedgerFixture(t, repository.NewMemoryStore())
		f.open(t, 1, 0, 0)

		_, tx, err := f.ledger.Execute(context.Background(), 1, credit(5, ""))
		require.NoError(t, err)

		_, err = f.ledger.Settle(context.Background(), 1, tx.ID, true, "")
		require.ErrorIs(t, err, domain.ErrNotPending)

		_, err = f.ledger.Settle(context.Background(), 1, "missing", true, "")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("fallback path", func(t *testing.T) {
		t.Parallel()
		f := newLedgerFixture(t, newFaultyStore())
		f.open(t, 1, 0, 20000)

		_, pending, err := f.ledger.Execute(context.Background(), 1, withdraw(10000))
		require.NoError(t, err)

		_, err = f.ledger.Settle(context.Background(), 1, pending.ID, false, "")
		require.NoError(t, err)
		assert.Equal(t, int64(20000), f.account(t, 1).TomanBalance)
		f.requireConserved(t, 1)
	})

	t.Run("retry after lost status refunds once", func(t *testing.T) {
		t.Parallel()
		store := newFaultyStore()
		f := newLedgerFixture(t, store)
		f.open(t, 1, 0, 20000)

		_, pending, err := f.ledger.Execute(context.Background(), 1, withdraw(10000))
		require.NoError(t, err)

		store.set(func(f *faultyStore) { f.statusFailures = 1 })
		_, err = f.ledger.Settle(context.Background(), 1, pending.ID, false, "bank rejected")
		var pe *domain.PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "update transaction status", pe.Op)

		_, err = f.ledger.Settle(context.Background(), 1, pending.ID, false, "bank rejected")
		require.ErrorIs(t, err, domain.ErrNotPending)

		assert.Equal(t, int64(20000), f.account(t, 1).TomanBalance)
		txs := f.transactions(t, 1)
		require.Len(t, txs, 3)
		assert.Equal(t, domain.TxStatusFailed, txs[1].Status)
		assert.Equal(t, "withdrawal_refund:"+pending.ID, txs[2].IdempotencyKey)
		f.requireConserved(t, 1)

		_, err = f.ledger.Settle(context.Background(), 1, pending.ID, true, "")
		require.ErrorIs(t, err, domain.ErrNotPending)
	})
}

func TestLedgerService_Verify_DetectsTampering(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryStore()
	f := newLedgerFixture(t, store)
	acc := f.open(t, 1, 50, 0)

	acc.SODBalance = 75
	require.NoError(t, store.SaveAccount(context.Background(), acc))

	err := f.ledger.Verify(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrIntegrity)

	var ie *domain.IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, domain.CurrencySOD, ie.Currency)
	assert.Equal(t, int64(75), ie.Balance)
	assert.Equal(t, int64(50), ie.Sum)
}
