package repository

import (
	"context"
	"testing"
	"time"

	"sodmax/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type committingStore interface {
	Store
	AtomicCommitter
}

// testStoreContract runs the behaviour every Store implementation shares
func testStoreContract(t *testing.T, s committingStore, userID int64) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	t.Cleanup(func() { _ = s.RemoveUser(context.Background(), userID) })

	t.Run("missing records", func(t *testing.T) {
		_, err := s.GetAccount(ctx, userID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = s.GetMissionState(ctx, userID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = s.GetReferralState(ctx, userID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = s.FindTransactionByKey(ctx, userID, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	acc := domain.NewAccount(userID, 5, now)
	acc.TomanBalance = 20000
	opening := &domain.Transaction{
		ID: uuid.NewString(), UserID: userID, Type: domain.TxTypeOpeningBalance,
		Amount: 20000, Currency: domain.CurrencyToman, Status: domain.TxStatusSuccess, CreatedAt: now,
	}

	t.Run("atomic commit", func(t *testing.T) {
		require.NoError(t, s.CommitLedgerEntry(ctx, LedgerEntry{Account: acc, Transactions: []*domain.Transaction{opening}}))

		got, err := s.GetAccount(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(20000), got.TomanBalance)

		txs, err := s.ListTransactions(ctx, userID)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, opening.ID, txs[0].ID)
	})

	withdrawal := &domain.Transaction{
		ID: uuid.NewString(), UserID: userID, Type: domain.TxTypeWithdrawal, Amount: -10000,
		Currency: domain.CurrencyToman, Status: domain.TxStatusPending, IdempotencyKey: "withdraw:req-1", CreatedAt: now,
	}

	t.Run("duplicate key leaves store untouched", func(t *testing.T) {
		acc.TomanBalance = 10000
		require.NoError(t, s.CommitLedgerEntry(ctx, LedgerEntry{Account: acc, Transactions: []*domain.Transaction{withdrawal}}))

		again := withdrawal.Clone()
		again.ID = uuid.NewString()
		poisoned := acc.Clone()
		poisoned.TomanBalance = 0
		err := s.CommitLedgerEntry(ctx, LedgerEntry{Account: poisoned, Transactions: []*domain.Transaction{again}})
		assert.ErrorIs(t, err, domain.ErrDuplicateTransaction)

		got, err := s.GetAccount(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(10000), got.TomanBalance)

		byKey, err := s.FindTransactionByKey(ctx, userID, "withdraw:req-1")
		require.NoError(t, err)
		assert.Equal(t, withdrawal.ID, byKey.ID)
	})

	t.Run("settle once", func(t *testing.T) {
		require.NoError(t, s.UpdateTransactionStatus(ctx, userID, withdrawal.ID, domain.TxStatusSuccess))
		err := s.UpdateTransactionStatus(ctx, userID, withdrawal.ID, domain.TxStatusFailed)
		assert.ErrorIs(t, err, domain.ErrNotPending)
		err = s.UpdateTransactionStatus(ctx, userID, "missing", domain.TxStatusFailed)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		got, err := s.GetTransaction(ctx, userID, withdrawal.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TxStatusSuccess, got.Status)
	})

	t.Run("state documents", func(t *testing.T) {
		ms := &domain.MissionState{UserID: userID, Missions: []domain.Mission{{ID: "mine_10", Target: 10, Progress: 3}}}
		require.NoError(t, s.SaveMissionState(ctx, ms))
		gotMs, err := s.GetMissionState(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 3, gotMs.Missions[0].Progress)

		rs := &domain.ReferralState{UserID: userID, Referrals: []domain.Referral{{ID: "r1", InviteeRef: "bob", Status: domain.ReferralPending}}}
		require.NoError(t, s.SaveReferralState(ctx, rs))
		gotRs, err := s.GetReferralState(ctx, userID)
		require.NoError(t, err)
		assert.True(t, gotRs.HasInvitee("bob"))
	})

	t.Run("notifications newest first", func(t *testing.T) {
		for i, title := range []string{"first", "second", "third"} {
			require.NoError(t, s.AppendNotification(ctx, &domain.Notification{
				ID: uuid.NewString(), UserID: userID, Kind: domain.NotifyMined, Title: title,
				CreatedAt: now.Add(time.Duration(i) * time.Second),
			}))
		}
		ns, err := s.ListNotifications(ctx, userID, 2)
		require.NoError(t, err)
		require.Len(t, ns, 2)
		assert.Equal(t, "third", ns[0].Title)
		assert.Equal(t, "second", ns[1].Title)
	})

	t.Run("remove user", func(t *testing.T) {
		require.NoError(t, s.RemoveUser(ctx, userID))
		_, err := s.GetAccount(ctx, userID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		txs, err := s.ListTransactions(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})
}
