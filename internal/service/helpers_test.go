package service

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"sodmax/internal/config"
	"sodmax/internal/domain"
	"sodmax/internal/logger"
	"sodmax/internal/repository"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	logger.InitWriter(io.Discard, "error", false)
	os.Exit(m.Run())
}

func testEconomy() config.Economy {
	return config.DefaultEconomy()
}

// faultyStore hides CommitLedgerEntry, so the ledger falls back to separate
// writes, and fails whichever write has an error set.
type faultyStore struct {
	repository.Store

	mu                sync.Mutex
	appendErr         error
	saveAccountErr    error
	saveMissionsErr   error
	saveReferralsErr  error
	saveAccountCalls  int
	failSaveAccountAt int // fail only the n-th SaveAccount call when > 0
	statusFailures    int // fail this many UpdateTransactionStatus calls
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: repository.NewMemoryStore()}
}

func (f *faultyStore) set(fn func(f *faultyStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *faultyStore) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	f.mu.Lock()
	err := f.appendErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.AppendTransaction(ctx, tx)
}

func (f *faultyStore) SaveAccount(ctx context.Context, acc *domain.Account) error {
	f.mu.Lock()
	f.saveAccountCalls++
	err := f.saveAccountErr
	if f.failSaveAccountAt > 0 && f.saveAccountCalls == f.failSaveAccountAt {
		err = errStoreDown
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.SaveAccount(ctx, acc)
}

func (f *faultyStore) UpdateTransactionStatus(ctx context.Context, userID int64, txID string, status domain.TransactionStatus) error {
	f.mu.Lock()
	fail := f.statusFailures > 0
	if fail {
		f.statusFailures--
	}
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.Store.UpdateTransactionStatus(ctx, userID, txID, status)
}

func (f *faultyStore) SaveMissionState(ctx context.Context, st *domain.MissionState) error {
	f.mu.Lock()
	err := f.saveMissionsErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.SaveMissionState(ctx, st)
}

func (f *faultyStore) SaveReferralState(ctx context.Context, st *domain.ReferralState) error {
	f.mu.Lock()
	err := f.saveReferralsErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.SaveReferralState(ctx, st)
}

// brokenCommitter is atomic but every commit fails
type brokenCommitter struct {
	*repository.MemoryStore
}

func (b *brokenCommitter) CommitLedgerEntry(ctx context.Context, e repository.LedgerEntry) error {
	return errStoreDown
}

var errStoreDown = &storeDownError{}

type storeDownError struct{}

func (*storeDownError) Error() string { return "store unavailable" }

type recordingNotifier struct {
	mu    sync.Mutex
	items []*domain.Notification
}

func (r *recordingNotifier) Emit(ctx context.Context, n *domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) kinds() []domain.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.NotificationKind, len(r.items))
	for i, n := range r.items {
		out[i] = n.Kind
	}
	return out
}

type ledgerFixture struct {
	store    repository.Store
	clock    *clockwork.FakeClock
	notifier *recordingNotifier
	ledger   *LedgerService
}

func newLedgerFixture(t *testing.T, store repository.Store) *ledgerFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testStart)
	notifier := &recordingNotifier{}
	return &ledgerFixture{
		store:    store,
		clock:    clock,
		notifier: notifier,
		ledger:   NewLedgerService(store, notifier, clock),
	}
}

// open creates userID with the given opening balances recorded as transactions
func (f *ledgerFixture) open(t *testing.T, userID, sod, toman int64) *domain.Account {
	t.Helper()
	tpl := domain.NewAccount(userID, 5, testStart)
	tpl.SODBalance = sod
	tpl.TomanBalance = toman
	acc, err := f.ledger.Open(context.Background(), tpl)
	require.NoError(t, err)
	return acc
}

func (f *ledgerFixture) account(t *testing.T, userID int64) *domain.Account {
	t.Helper()
	acc, err := f.store.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	return acc
}

func (f *ledgerFixture) transactions(t *testing.T, userID int64) []*domain.Transaction {
	t.Helper()
	txs, err := f.store.ListTransactions(context.Background(), userID)
	require.NoError(t, err)
	return txs
}

func (f *ledgerFixture) requireConserved(t *testing.T, userID int64) {
	t.Helper()
	require.NoError(t, f.ledger.Verify(context.Background(), userID))
}
