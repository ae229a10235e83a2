// Package events builds synthetic instance power on/off timelines and pairs
// them back into running intervals.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/cloudigrade/integrade/pkg/api"
)

// EventType is the direction of a power event.
type EventType string

const (
	PowerOn  EventType = "power_on"
	PowerOff EventType = "power_off"
)

var (
	ErrEmptyTimeline  = errors.New("timeline has no events")
	ErrNotIncreasing  = errors.New("event times must be strictly increasing")
	ErrNotAlternating = errors.New("events must alternate power_on and power_off")
)

// Event is one observed power transition of an instance.
type Event struct {
	Time time.Time `json:"occurred_at"`
	Type EventType `json:"event_type"`
}

// IsStart reports a power_on event.
func (e Event) IsStart() bool {
	return e.Type == PowerOn
}

// Age locates an event either as a number of days before the reference time
// or as an explicit timestamp.
type Age struct {
	days     float64
	at       time.Time
	explicit bool
}

// DaysAgo is an age n days before the reference time.
func DaysAgo(n float64) Age {
	return Age{days: n}
}

// At is an age pinned to t.
func At(t time.Time) Age {
	return Age{at: t.UTC(), explicit: true}
}

// Days converts a list of day counts to ages.
func Days(days ...float64) []Age {
	ages := make([]Age, len(days))
	for i, d := range days {
		ages[i] = DaysAgo(d)
	}
	return ages
}

// Times converts a list of timestamps to ages.
func Times(times ...time.Time) []Age {
	ages := make([]Age, len(times))
	for i, t := range times {
		ages[i] = At(t)
	}
	return ages
}

// Resolve returns the timestamp of a relative to now.
func (a Age) Resolve(now time.Time) time.Time {
	if a.explicit {
		return a.at
	}
	return now.UTC().Add(-time.Duration(a.days * float64(24*time.Hour)))
}

func (a Age) String() string {
	if a.explicit {
		return a.at.Format(time.RFC3339)
	}
	return fmt.Sprintf("%g days ago", a.days)
}

// Synthesize turns ages, read pairwise as (start, stop), into power events.
// An odd number of ages leaves the final start without a stop, i.e. the
// instance is still running. Identical inputs give identical events.
func Synthesize(now time.Time, ages []Age) ([]Event, error) {
	if len(ages) == 0 {
		return nil, ErrEmptyTimeline
	}

	evts := make([]Event, 0, len(ages))
	for i, age := range ages {
		t := age.Resolve(now)
		if i > 0 && !t.After(evts[i-1].Time) {
			return nil, fmt.Errorf("%w: event %d (%s) is not after event %d (%s)",
				ErrNotIncreasing, i, age, i-1, evts[i-1].Time.Format(time.RFC3339))
		}
		typ := PowerOn
		if i%2 == 1 {
			typ = PowerOff
		}
		evts = append(evts, Event{Time: t, Type: typ})
	}
	return evts, nil
}

// Intervals pairs events into running intervals. A trailing power_on is
// closed at openEnd; if openEnd is not after it the interval is dropped.
func Intervals(evts []Event, openEnd time.Time) ([]api.Window, error) {
	intervals := make([]api.Window, 0, (len(evts)+1)/2)
	for i := 0; i < len(evts); i += 2 {
		on := evts[i]
		if !on.IsStart() {
			return nil, fmt.Errorf("%w: event %d is %s", ErrNotAlternating, i, on.Type)
		}
		if i+1 == len(evts) {
			if openEnd.After(on.Time) {
				intervals = append(intervals, api.Window{Start: on.Time, End: openEnd})
			}
			break
		}
		off := evts[i+1]
		if off.IsStart() {
			return nil, fmt.Errorf("%w: event %d is %s", ErrNotAlternating, i+1, off.Type)
		}
		if off.Time.Before(on.Time) {
			return nil, fmt.Errorf("%w: event %d precedes event %d", ErrNotIncreasing, i+1, i)
		}
		intervals = append(intervals, api.Window{Start: on.Time, End: off.Time})
	}
	return intervals, nil
}

// SumUsage adds up consecutive (on, off) pairs of times. A trailing unpaired
// time is ignored.
func SumUsage(times []time.Time) time.Duration {
	var total time.Duration
	for i := 0; i+1 < len(times); i += 2 {
		total += times[i+1].Sub(times[i])
	}
	return total
}
