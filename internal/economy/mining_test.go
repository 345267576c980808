package economy

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sodmax/internal/domain"
)

func TestMineYield(t *testing.T) {
	t.Parallel()

	expires := testNow.Add(time.Minute)
	expired := testNow.Add(-time.Second)

	cases := []struct {
		name       string
		power      int64
		multiplier string
		expiresAt  *time.Time
		rate       decimal.Decimal
		want       int64
	}{
		{"base manual", 5, "1", nil, ManualRate, 5},
		{"base auto floors", 5, "1", nil, DefaultAutoRate, 2},
		{"boosted", 5, "2", &expires, ManualRate, 10},
		{"fractional boost floors", 5, "1.5", &expires, ManualRate, 7},
		{"expired boost ignored", 5, "3", &expired, ManualRate, 5},
		{"boosted auto", 7, "2", &expires, DefaultAutoRate, 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acc := domain.NewAccount(1, tc.power, testNow)
			acc.MiningMultiplier = decimal.RequireFromString(tc.multiplier)
			acc.BoostExpiresAt = tc.expiresAt

			got, err := MineYield(acc, testNow, tc.rate)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMineYield_Overflow(t *testing.T) {
	t.Parallel()

	expires := testNow.Add(time.Minute)
	acc := domain.NewAccount(1, math.MaxInt64, testNow)
	acc.MiningMultiplier = decimal.NewFromInt(2)
	acc.BoostExpiresAt = &expires

	_, err := MineYield(acc, testNow, ManualRate)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestRecordMined_ResetsTodayOnNewDay(t *testing.T) {
	t.Parallel()

	acc := domain.NewAccount(1, 5, testNow)
	require.NoError(t, RecordMined(acc, 5, testNow, time.UTC))
	require.NoError(t, RecordMined(acc, 5, testNow.Add(time.Hour), time.UTC))
	assert.Equal(t, int64(10), acc.TodayEarned)

	require.NoError(t, RecordMined(acc, 3, testNow.Add(24*time.Hour), time.UTC))
	assert.Equal(t, int64(3), acc.TodayEarned)
	assert.Equal(t, int64(13), acc.TotalMined)
	assert.Equal(t, int64(13), acc.TotalEarned)
}

func TestBoostLifecycle(t *testing.T) {
	t.Parallel()

	acc := domain.NewAccount(1, 5, testNow)
	offer := domain.BoostOffer{Cost: 5000, Multiplier: decimal.NewFromInt(2), Duration: time.Minute}

	require.NoError(t, StartBoost(acc, offer, testNow))
	assert.True(t, acc.BoostActive(testNow))
	assert.ErrorIs(t, StartBoost(acc, offer, testNow.Add(30*time.Second)), domain.ErrBoostAlreadyActive)

	assert.False(t, EndBoost(acc, testNow.Add(30*time.Second)))
	assert.True(t, EndBoost(acc, testNow.Add(time.Minute)))
	assert.True(t, acc.MiningMultiplier.Equal(decimal.NewFromInt(1)))
	assert.Nil(t, acc.BoostExpiresAt)
}
