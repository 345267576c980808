package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sodmax/internal/domain"
	"sodmax/internal/repository"
)

type missionFixture struct {
	*ledgerFixture
	missions *MissionService
}

func newMissionFixture(t *testing.T, store repository.Store) *missionFixture {
	t.Helper()
	lf := newLedgerFixture(t, store)
	lf.open(t, 1, 0, 0)
	return &missionFixture{
		ledgerFixture: lf,
		missions:      NewMissionService(store, lf.ledger, lf.notifier, lf.clock, testEconomy()),
	}
}

func (f *missionFixture) advance(t *testing.T, event domain.MissionEvent, n int) []domain.Mission {
	t.Helper()
	var ready []domain.Mission
	for i := 0; i < n; i++ {
		r, err := f.missions.OnQualifyingEvent(context.Background(), 1, event)
		require.NoError(t, err)
		ready = append(ready, r...)
	}
	return ready
}

func (f *missionFixture) mission(t *testing.T, id string) domain.Mission {
	t.Helper()
	list, err := f.missions.List(context.Background(), 1)
	require.NoError(t, err)
	for _, m := range list {
		if m.ID == id {
			return m
		}
	}
	t.Fatalf("mission %q not listed", id)
	return domain.Mission{}
}

func TestMissionService_List(t *testing.T) {
	t.Parallel()

	f := newMissionFixture(t, repository.NewMemoryStore())
	list, err := f.missions.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, len(testEconomy().Missions))
	for _, m := range list {
		assert.Zero(t, m.Progress)
		assert.False(t, m.Claimed)
	}
}

func TestMissionService_OnQualifyingEvent(t *testing.T) {
	t.Parallel()

	f := newMissionFixture(t, repository.NewMemoryStore())

	ready := f.advance(t, domain.EventManualMine, 4)
	assert.Empty(t, ready)
	assert.Equal(t, 4, f.mission(t, "mine_10").Progress)
	assert.Equal(t, 4, f.mission(t, "mine_daily_5").Progress)

	ready = f.advance(t, domain.EventManualMine, 1)
	require.Len(t, ready, 1)
	assert.Equal(t, "mine_daily_5", ready[0].ID)
	assert.Equal(t, []domain.NotificationKind{domain.NotifyMissionReady}, f.notifier.kinds())

	// progress stops at the target
	f.advance(t, domain.EventManualMine, 10)
	assert.Equal(t, 5, f.mission(t, "mine_daily_5").Progress)
	assert.Equal(t, 10, f.mission(t, "mine_10").Progress)

	// nothing is paid until claimed
	assert.Equal(t, int64(0), f.account(t, 1).TomanBalance)
}

func TestMissionService_Claim(t *testing.T) {
	t.Parallel()

	f := newMissionFixture(t, repository.NewMemoryStore())

	_, err := f.missions.Claim(context.Background(), 1, "upgrade_1")
	require.ErrorIs(t, err, domain.ErrNotCompletable)

	_, err = f.missions.Claim(context.Background(), 1, "no_such_mission")
	require.ErrorIs(t, err, domain.ErrNotFound)

	f.advance(t, domain.EventUpgrade, 1)

	m, err := f.missions.Claim(context.Background(), 1, "upgrade_1")
	require.NoError(t, err)
	assert.True(t, m.Claimed)
	require.NotNil(t, m.ClaimedAt)
	assert.Equal(t, int64(300), f.account(t, 1).TomanBalance)

	_, err = f.missions.Claim(context.Background(), 1, "upgrade_1")
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	assert.Equal(t, int64(300), f.account(t, 1).TomanBalance)

	txs := f.transactions(t, 1)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxTypeMissionReward, txs[0].Type)
	assert.Equal(t, domain.CurrencyToman, txs[0].Currency)
	f.requireConserved(t, 1)
}

func TestMissionService_Claim_RepairsLostFlag(t *testing.T) {
	t.Parallel()

	store := newFaultyStore()
	f := newMissionFixture(t, store)
	f.advance(t, domain.EventBoost, 1)

	store.set(func(s *faultyStore) { s.saveMissionsErr = errStoreDown })
	_, err := f.missions.Claim(context.Background(), 1, "boost_1")
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, int64(200), f.account(t, 1).TomanBalance)

	store.set(func(s *faultyStore) { s.saveMissionsErr = nil })
	assert.False(t, f.mission(t, "boost_1").Claimed)

	_, err = f.missions.Claim(context.Background(), 1, "boost_1")
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	assert.True(t, f.mission(t, "boost_1").Claimed)
	assert.Equal(t, int64(200), f.account(t, 1).TomanBalance)
	assert.Len(t, f.transactions(t, 1), 1)
	f.requireConserved(t, 1)
}

func TestMissionService_DailyMissionRollsOver(t *testing.T) {
	t.Parallel()

	f := newMissionFixture(t, repository.NewMemoryStore())
	f.advance(t, domain.EventManualMine, 5)

	_, err := f.missions.Claim(context.Background(), 1, "mine_daily_5")
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)

	m := f.mission(t, "mine_daily_5")
	assert.False(t, m.Claimed)
	assert.Zero(t, m.Progress)
	assert.Equal(t, 5, f.mission(t, "mine_10").Progress)

	f.advance(t, domain.EventManualMine, 5)
	_, err = f.missions.Claim(context.Background(), 1, "mine_daily_5")
	require.NoError(t, err)
	assert.Equal(t, int64(400), f.account(t, 1).TomanBalance)
	f.requireConserved(t, 1)
}

func TestMissionService_ClaimDailyReward(t *testing.T) {
	t.Parallel()

	f := newMissionFixture(t, repository.NewMemoryStore())

	r, err := f.missions.ClaimDailyReward(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, DailyReward{Day: "2024-03-10", Streak: 1, Reward: 100, Balance: 100}, r)

	_, err = f.missions.ClaimDailyReward(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrNotAvailable)

	f.clock.Advance(24 * time.Hour)
	r, err = f.missions.ClaimDailyReward(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Streak)
	assert.Equal(t, int64(200), r.Reward)

	// a skipped day resets the streak
	f.clock.Advance(48 * time.Hour)
	r, err = f.missions.ClaimDailyReward(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Streak)
	assert.Equal(t, int64(400), r.Balance)
	f.requireConserved(t, 1)
}

func TestMiner_ManualMine_ReportsReadyMissions(t *testing.T) {
	t.Parallel()

	f := newMissionFixture(t, repository.NewMemoryStore())
	m := NewMiner(1, f.ledger, f.missions, f.clock, testEconomy())
	t.Cleanup(m.Close)

	var last MineResult
	for i := 0; i < 5; i++ {
		res, err := m.ManualMine(context.Background())
		require.NoError(t, err)
		last = res
	}
	require.Len(t, last.Ready, 1)
	assert.Equal(t, "mine_daily_5", last.Ready[0].ID)
	assert.Equal(t, int64(25), last.Balance)
}
