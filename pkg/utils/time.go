package utils

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cloudigrade/integrade/pkg/api"
)

const (
	// ReportDays is the length of the default "Last 30 Days" window.
	ReportDays = 30
	// RoundUpThresholdMinutes is how many leftover minutes must be exceeded
	// before an hour total rounds up.
	RoundUpThresholdMinutes = 30.0

	// ExpectedWindowError is the message the service returns for a window
	// whose end is not after its start.
	ExpectedWindowError = "End date must be after start date."

	monthLabelLayout = "2006 January"
)

var ErrInvalidWindow = errors.New("window end must be after start")

// GetTimeRange returns the reporting window that ends offsetDays before now
// and starts ReportDays earlier.
func GetTimeRange(now time.Time, offsetDays int) api.Window {
	end := now.UTC().AddDate(0, 0, -offsetDays)
	return api.Window{Start: end.AddDate(0, 0, -ReportDays), End: end}
}

// TimeRange is GetTimeRange evaluated at the current time.
func TimeRange(offsetDays int) api.Window {
	return GetTimeRange(time.Now(), offsetDays)
}

// ValidateWindow rejects windows that do not end after they start. Bounds are
// never swapped.
func ValidateWindow(w api.Window) error {
	if !w.IsValid() {
		return fmt.Errorf("%w: start %s, end %s", ErrInvalidWindow, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// RoundHours folds spareMinutes into hours and rounds the total to whole
// hours, going up only when the leftover minutes exceed
// RoundUpThresholdMinutes. The service and UI display hours the same way.
func RoundHours(hours, spareMinutes float64) int {
	total := hours*60 + spareMinutes
	whole := math.Floor(total / 60)
	if total-whole*60 > RoundUpThresholdMinutes {
		whole++
	}
	return int(whole)
}

// SplitHours breaks a runtime into whole hours and leftover minutes.
func SplitHours(seconds float64) (hours, spareMinutes float64) {
	hours = math.Floor(seconds / 3600)
	spareMinutes = (seconds - hours*3600) / 60
	return hours, spareMinutes
}

// DaysInMonth returns the Gregorian length of month in year.
func DaysInMonth(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthWindow is [first of month, first of the following month).
func MonthWindow(year int, month time.Month) api.Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return api.Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// PreviousMonths returns the first day of each of the n calendar months before
// now's month, newest first.
func PreviousMonths(now time.Time, n int) []time.Time {
	first := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	months := make([]time.Time, 0, n)
	for i := 1; i <= n; i++ {
		months = append(months, first.AddDate(0, -i, 0))
	}
	return months
}

// MonthLabel formats a month the way the date filter lists it, e.g.
// "2018 July".
func MonthLabel(t time.Time) string {
	return t.Format(monthLabelLayout)
}

// UTCDate builds a UTC timestamp.
func UTCDate(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}

// DaysAgo returns now minus n days.
func DaysAgo(now time.Time, n float64) time.Time {
	return now.UTC().Add(-time.Duration(n * 24 * float64(time.Hour)))
}
