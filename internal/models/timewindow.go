package models

import "time"

// Category is the bucket a time window falls into relative to a reference
// instant.
type Category string

const (
	CategoryActive   Category = "active"
	CategoryUpcoming Category = "upcoming"
	CategoryPast     Category = "past"
)

// TimeWindow is a closed interval [Start, End] of wall-clock instants.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow builds a window of the given whole-hour duration starting at
// start.
func NewTimeWindow(start time.Time, hours int) TimeWindow {
	return TimeWindow{Start: start, End: start.Add(time.Duration(hours) * time.Hour)}
}

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// IsValid reports whether the window is well-formed (End strictly after Start).
func (w TimeWindow) IsValid() bool {
	return w.End.After(w.Start)
}

// Contains reports whether t lies inside the window, boundaries included.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Category classifies the window relative to now: active while now is inside
// it, upcoming before it starts, past once it has ended.
func (w TimeWindow) Category(now time.Time) Category {
	switch {
	case w.Contains(now):
		return CategoryActive
	case now.Before(w.Start):
		return CategoryUpcoming
	default:
		return CategoryPast
	}
}
