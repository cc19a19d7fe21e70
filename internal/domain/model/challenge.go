package model

import "time"

// DateLayout is the storage and wire layout for calendar dates.
const DateLayout = "2006-01-02"

// Challenge is one multi-week competition.
type Challenge struct {
	ID       int64
	Name     string
	Start    time.Time
	End      time.Time
	RuleSet  int // selects the tier scoring variant
	ByeWeeks int
}

// ChallengeWeek is one scoring period of a challenge.
type ChallengeWeek struct {
	ID          int64
	ChallengeID int64
	Start       time.Time // Monday
	End         time.Time // Sunday, inclusive
	WeekOfYear  int
	Green       *bool // nil until decided, written once
	ByeWeek     bool
}

// IsGreen reports whether the week was decided green.
func (w ChallengeWeek) IsGreen() bool {
	return w.Green != nil && *w.Green
}

// Decided reports whether the green flag has been assigned.
func (w ChallengeWeek) Decided() bool {
	return w.Green != nil
}

// DateOf returns the calendar date of day d within the week, at midnight in loc.
func (w ChallengeWeek) DateOf(d Weekday, loc *time.Location) time.Time {
	return w.ClockOf(d, 0, loc)
}

// ClockOf returns the wall-clock hour on day d within the week in loc. The
// hour is local even across a daylight saving change.
func (w ChallengeWeek) ClockOf(d Weekday, hour int, loc *time.Location) time.Time {
	y, m, day := w.Start.Date()
	return time.Date(y, m, day+int(d), hour, 0, 0, 0, loc)
}

// Contains reports whether the calendar date of t (in t's location) falls
// inside the week.
func (w ChallengeWeek) Contains(t time.Time) bool {
	date := t.Format(DateLayout)
	return date >= w.Start.Format(DateLayout) && date <= w.End.Format(DateLayout)
}
