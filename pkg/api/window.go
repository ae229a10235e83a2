package api

import "time"

// Window is a half-open reporting range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow returns the window [start, end) in UTC.
func NewWindow(start, end time.Time) Window {
	return Window{Start: start.UTC(), End: end.UTC()}
}

// IsValid reports whether End is strictly after Start.
func (window Window) IsValid() bool {
	return window.End.After(window.Start)
}

// Duration is End - Start; negative for inverted windows.
func (window Window) Duration() time.Duration {
	return window.End.Sub(window.Start)
}

// Contains reports whether t falls inside [Start, End).
func (window Window) Contains(t time.Time) bool {
	return !t.Before(window.Start) && t.Before(window.End)
}

// Clip returns the part of other that lies inside window, and false when they
// do not overlap.
func (window Window) Clip(other Window) (Window, bool) {
	start := other.Start
	if window.Start.After(start) {
		start = window.Start
	}
	end := other.End
	if window.End.Before(end) {
		end = window.End
	}
	if !end.After(start) {
		return Window{}, false
	}
	return Window{Start: start, End: end}, true
}

// Overlap is the length of the intersection of window and other.
func (window Window) Overlap(other Window) time.Duration {
	clipped, ok := window.Clip(other)
	if !ok {
		return 0
	}
	return clipped.Duration()
}

// ExpandTimeRange grows current so that it also covers other.
func ExpandTimeRange(current *Window, other *Window) *Window {
	if current == nil || other == nil {
		return current
	}

	if other.Start.Before(current.Start) {
		current.Start = other.Start
	}

	if other.End.After(current.End) {
		current.End = other.End
	}

	return current
}
