package service

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributable(t *testing.T) {
	tests := []struct {
		name    string
		pool    int64
		feePct  int
		want    int64
	}{
		{"standard fee", 10_000, 2, 9_800},
		{"rounds down", 999, 2, 979},
		{"zero pool", 0, 2, 0},
		{"zero fee", 5_000, 0, 5_000},
		{"single sat", 1, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Distributable(tt.pool, tt.feePct))
		})
	}
}

func TestPayoutSplits(t *testing.T) {
	// Shares must cover places 1..3 and sum to the whole distributable pool.
	var sum float64
	for _, pct := range payoutSplits {
		sum += pct
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, []float64{0.50, 0.30, 0.20}, payoutSplits)
}

func TestPayoutStructure(t *testing.T) {
	s := &tournamentService{houseFeePercent: 2}

	out := s.payoutStructure(10_000)

	assert.Equal(t, 2, out.HouseFeePercent)
	require.Len(t, out.Splits, 3)
	assert.Equal(t, int64(4_900), out.Splits[0].AmountSats)
	assert.Equal(t, int64(2_940), out.Splits[1].AmountSats)
	assert.Equal(t, int64(1_960), out.Splits[2].AmountSats)

	// Floor rounding keeps the sum at or under the distributable pool.
	var total int64
	for _, split := range out.Splits {
		total += split.AmountSats
	}
	assert.LessOrEqual(t, total, Distributable(10_000, 2))
}

func TestPayoutStructure_FloorsEachPlace(t *testing.T) {
	s := &tournamentService{houseFeePercent: 2}

	out := s.payoutStructure(1_001)
	distributable := Distributable(1_001, 2)
	for i, split := range out.Splits {
		expected := int64(math.Floor(float64(distributable) * payoutSplits[i]))
		assert.Equal(t, expected, split.AmountSats, "place %d", i+1)
	}
}

func TestUTCDate(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	// 01:30 MSK on the 2nd is still the 1st in UTC.
	local := time.Date(2025, 6, 2, 1, 30, 0, 0, moscow)
	assert.Equal(t, "2025-06-01", utcDate(local))
	assert.Equal(t, "2025-06-02", utcDate(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)))
}

func TestDayBounds(t *testing.T) {
	start, end := dayBounds("2025-06-01")

	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC), end)
}
