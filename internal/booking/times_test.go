package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimesOverlap(t *testing.T) {
	cases := []struct {
		name         string
		aStart, aEnd string
		bStart, bEnd string
		want         bool
	}{
		{"identical", "09:00", "09:30", "09:00", "09:30", true},
		{"partial front", "09:00", "09:30", "09:15", "09:45", true},
		{"partial back", "09:15", "09:45", "09:00", "09:30", true},
		{"contained", "09:00", "10:00", "09:15", "09:30", true},
		{"containing", "09:15", "09:30", "09:00", "10:00", true},
		{"back to back", "09:00", "09:30", "09:30", "10:00", false},
		{"back to back reversed", "09:30", "10:00", "09:00", "09:30", false},
		{"disjoint", "09:00", "09:30", "10:00", "10:30", false},
		{"one minute overlap", "09:00", "09:31", "09:30", "10:00", true},
		{"malformed", "9am", "09:30", "09:00", "09:30", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, timesOverlap(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
		})
	}
}

func TestClockConversions(t *testing.T) {
	m, err := clockToMinutes("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	m, err = clockToMinutes("00:00")
	require.NoError(t, err)
	assert.Zero(t, m)

	_, err = clockToMinutes("25:00")
	assert.Error(t, err)
	_, err = clockToMinutes("9:3")
	assert.Error(t, err)

	assert.Equal(t, "09:30", minutesToClock(570))
	assert.Equal(t, "00:00", minutesToClock(0))
	assert.Equal(t, "23:30", minutesToClock(1410))
}

func TestValidDate(t *testing.T) {
	assert.True(t, validDate("2026-09-07"))
	assert.False(t, validDate("2026-9-7"))
	assert.False(t, validDate("07/09/2026"))
	assert.False(t, validDate(""))
}

func TestWeekdayName(t *testing.T) {
	day, err := weekdayName("2026-09-07")
	require.NoError(t, err)
	assert.Equal(t, "monday", day)

	day, err = weekdayName("2026-09-13")
	require.NoError(t, err)
	assert.Equal(t, "sunday", day)

	_, err = weekdayName("not-a-date")
	assert.Error(t, err)
}

func TestStartsBefore(t *testing.T) {
	loc, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)

	// 15:00 in Mexico City is 21:00 UTC (CST, UTC-6).
	now := time.Date(2026, 1, 10, 21, 0, 0, 0, time.UTC)

	assert.True(t, startsBefore("2026-01-10", "14:00", now, loc))
	assert.False(t, startsBefore("2026-01-10", "16:00", now, loc))
	assert.False(t, startsBefore("2026-01-11", "09:00", now, loc))
	assert.True(t, startsBefore("2026-01-09", "23:00", now, loc))
}
