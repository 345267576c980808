package economy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sodmax/internal/domain"
)

var testCatalog = []domain.MissionTemplate{
	{ID: "mine_3", Type: domain.EventManualMine, Period: domain.PeriodOneTime, Target: 3, Reward: 500},
	{ID: "mine_daily_2", Type: domain.EventManualMine, Period: domain.PeriodDaily, Target: 2, Reward: 200},
	{ID: "upgrade_1", Type: domain.EventUpgrade, Period: domain.PeriodOneTime, Target: 1, Reward: 300},
}

func TestAdvance_CapsAtTarget(t *testing.T) {
	t.Parallel()

	state := &domain.MissionState{UserID: 1}
	require.True(t, SyncMissions(state, testCatalog, testNow, time.UTC))

	var readyIDs []string
	for i := 0; i < 5; i++ {
		for _, m := range Advance(state, domain.EventManualMine, testNow) {
			readyIDs = append(readyIDs, m.ID)
		}
	}

	assert.Equal(t, []string{"mine_daily_2", "mine_3"}, readyIDs)
	assert.Equal(t, 3, state.Missions[state.Find("mine_3")].Progress)
	assert.Equal(t, 2, state.Missions[state.Find("mine_daily_2")].Progress)
	assert.Equal(t, 0, state.Missions[state.Find("upgrade_1")].Progress)
}

func TestAdvance_IgnoresClaimed(t *testing.T) {
	t.Parallel()

	state := &domain.MissionState{UserID: 1}
	SyncMissions(state, testCatalog, testNow, time.UTC)
	i := state.Find("upgrade_1")
	state.Missions[i].Progress = 1
	state.Missions[i].Claimed = true

	assert.Empty(t, Advance(state, domain.EventUpgrade, testNow))
	assert.Equal(t, 1, state.Missions[i].Progress)
}

func TestSyncMissions_DailyRollover(t *testing.T) {
	t.Parallel()

	state := &domain.MissionState{UserID: 1}
	SyncMissions(state, testCatalog, testNow, time.UTC)
	Advance(state, domain.EventManualMine, testNow)

	assert.False(t, SyncMissions(state, testCatalog, testNow.Add(time.Hour), time.UTC))

	tomorrow := testNow.Add(24 * time.Hour)
	assert.True(t, SyncMissions(state, testCatalog, tomorrow, time.UTC))
	assert.Equal(t, 0, state.Missions[state.Find("mine_daily_2")].Progress)
	assert.Equal(t, 1, state.Missions[state.Find("mine_3")].Progress, "one-time missions keep progress")
	assert.NotEqual(t, MissionKey(&state.Missions[state.Find("mine_daily_2")]),
		"mission:mine_daily_2:2024-03-10")
}

func TestNextDailyClaim(t *testing.T) {
	t.Parallel()

	acc := domain.NewAccount(1, 5, testNow)

	first, err := NextDailyClaim(acc, 100, testNow, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Streak)
	assert.Equal(t, int64(100), first.Reward)
	assert.Equal(t, "daily:2024-03-10", first.Key())
	MarkDailyClaimed(acc, first, testNow)

	_, err = NextDailyClaim(acc, 100, testNow.Add(2*time.Hour), time.UTC)
	assert.ErrorIs(t, err, domain.ErrNotAvailable)

	second, err := NextDailyClaim(acc, 100, testNow.Add(20*time.Hour), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Streak)
	assert.Equal(t, int64(200), second.Reward)
	MarkDailyClaimed(acc, second, testNow.Add(20*time.Hour))

	broken, err := NextDailyClaim(acc, 100, testNow.Add(96*time.Hour), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, broken.Streak)
}

func TestNextDailyClaim_StreakCapped(t *testing.T) {
	t.Parallel()

	last := testNow.Add(-24 * time.Hour)
	acc := domain.NewAccount(1, 5, testNow)
	acc.LastDailyClaimAt = &last
	acc.DailyStreak = 30

	claim, err := NextDailyClaim(acc, 100, testNow, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 31, claim.Streak)
	assert.Equal(t, int64(700), claim.Reward)
}
