package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTimeRange(t *testing.T) {
	now := time.Date(2018, 8, 15, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		offset   int
		expStart time.Time
		expEnd   time.Time
	}{
		{
			name:     "last 30 days",
			offset:   0,
			expStart: time.Date(2018, 7, 16, 12, 30, 0, 0, time.UTC),
			expEnd:   now,
		},
		{
			name:     "180 days back",
			offset:   180,
			expStart: time.Date(2018, 1, 17, 12, 30, 0, 0, time.UTC),
			expEnd:   time.Date(2018, 2, 16, 12, 30, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := GetTimeRange(now, tc.offset)
			assert.Equal(t, tc.expStart, w.Start)
			assert.Equal(t, tc.expEnd, w.End)
			assert.NoError(t, ValidateWindow(w))
		})
	}
}

func TestValidateWindow(t *testing.T) {
	now := time.Date(2018, 8, 15, 0, 0, 0, 0, time.UTC)
	w := GetTimeRange(now, 0)
	w.End = w.Start.AddDate(0, 0, -30)

	err := ValidateWindow(w)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	w.End = w.Start
	assert.ErrorIs(t, ValidateWindow(w), ErrInvalidWindow)
}

func TestRoundHours(t *testing.T) {
	tests := []struct {
		name  string
		hours float64
		spare float64
		exp   int
	}{
		{name: "no spare minutes", hours: 240, spare: 0, exp: 240},
		{name: "below threshold", hours: 240, spare: 29, exp: 240},
		{name: "at threshold floors", hours: 240, spare: 30, exp: 240},
		{name: "above threshold", hours: 240, spare: 31, exp: 241},
		{name: "minutes carry into hours", hours: 10, spare: 85, exp: 11},
		{name: "carried minutes above threshold", hours: 10, spare: 100, exp: 12},
		{name: "fractional hours", hours: 120.5, spare: 0, exp: 120},
		{name: "fractional hours above threshold", hours: 120.75, spare: 0, exp: 121},
		{name: "zero", hours: 0, spare: 0, exp: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := RoundHours(tc.hours, tc.spare)
			assert.Equal(t, tc.exp, got)
			assert.Equal(t, got, RoundHours(float64(got), 0), "RoundHours must be idempotent")
		})
	}
}

func TestSplitHours(t *testing.T) {
	hours, spare := SplitHours(10*86400 + 45*60 + 30)
	assert.Equal(t, 240.0, hours)
	assert.InDelta(t, 45.5, spare, 1e-9)
	assert.Equal(t, 241, RoundHours(hours, spare))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, DaysInMonth(2018, time.January))
	assert.Equal(t, 28, DaysInMonth(2018, time.February))
	assert.Equal(t, 29, DaysInMonth(2020, time.February))
	assert.Equal(t, 28, DaysInMonth(1900, time.February))
	assert.Equal(t, 29, DaysInMonth(2000, time.February))
	assert.Equal(t, 30, DaysInMonth(2018, time.November))
	assert.Equal(t, 31, DaysInMonth(2018, time.December))
}

func TestMonthWindow(t *testing.T) {
	w := MonthWindow(2018, time.December)
	assert.Equal(t, UTCDate(2018, time.December, 1, 0, 0, 0), w.Start)
	assert.Equal(t, UTCDate(2019, time.January, 1, 0, 0, 0), w.End)
	assert.Equal(t, time.Duration(DaysInMonth(2018, time.December))*24*time.Hour, w.Duration())
}

func TestPreviousMonths(t *testing.T) {
	now := UTCDate(2018, time.March, 31, 10, 0, 0)
	months := PreviousMonths(now, 12)

	require.Len(t, months, 12)
	assert.Equal(t, "2018 February", MonthLabel(months[0]))
	assert.Equal(t, "2018 January", MonthLabel(months[1]))
	assert.Equal(t, "2017 December", MonthLabel(months[2]))
	assert.Equal(t, "2017 March", MonthLabel(months[11]))
}
