package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseStamp(t *testing.T, stamp string) time.Time {
	t.Helper()
	require.Len(t, stamp, 10)
	require.Equal(t, "00", stamp[8:], "hour suffix must be 00")
	parsed, err := time.Parse("20060102", stamp[:8])
	require.NoError(t, err)
	return parsed
}

func TestComputeWindowsFixedDate(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	w := ComputeWindows(now, 30)

	assert.Equal(t, "2024021400", w.Current.Start)
	assert.Equal(t, "2024031400", w.Current.End)
	assert.Equal(t, "2024011500", w.Previous.Start)
	assert.Equal(t, "2024021300", w.Previous.End)
	assert.Equal(t, GranularityDaily, w.Granularity)
}

func TestComputeWindowsInvariants(t *testing.T) {
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		periodDays int
		want       Granularity
	}{
		{30, GranularityDaily},
		{90, GranularityWeekly},
		{365, GranularityMonthly},
	}

	for _, tt := range tests {
		w := ComputeWindows(now, tt.periodDays)

		assert.Equal(t, tt.want, w.Granularity, "period %d", tt.periodDays)

		currStart := parseStamp(t, w.Current.Start)
		currEnd := parseStamp(t, w.Current.End)
		prevStart := parseStamp(t, w.Previous.Start)
		prevEnd := parseStamp(t, w.Previous.End)

		// current ends yesterday
		assert.Equal(t, now.AddDate(0, 0, -1).Format("20060102"), w.Current.End[:8])

		// equal length windows, inclusive on both ends
		currDays := int(currEnd.Sub(currStart).Hours()/24) + 1
		prevDays := int(prevEnd.Sub(prevStart).Hours()/24) + 1
		assert.Equal(t, tt.periodDays, currDays, "period %d current length", tt.periodDays)
		assert.Equal(t, tt.periodDays, prevDays, "period %d previous length", tt.periodDays)

		// previous ends exactly one day before current starts: no overlap, no gap
		assert.Equal(t, currStart.AddDate(0, 0, -1), prevEnd, "period %d boundary", tt.periodDays)
		assert.True(t, prevEnd.Before(currStart), "windows must not overlap")
	}
}

func TestComputeWindowsUsesUTCCalendarDay(t *testing.T) {
	// Late evening in a westward zone is already the next day in UTC.
	loc := time.FixedZone("UTC-8", -8*3600)
	local := time.Date(2024, 3, 14, 23, 0, 0, 0, loc) // 2024-03-15 07:00 UTC

	w := ComputeWindows(local, 30)
	assert.Equal(t, "2024031400", w.Current.End)
}
