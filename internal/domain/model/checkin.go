// Package model contains domain models passed between layers.
package model

import "time"

// Checkin is one declared effort on one day. Rows are produced by the
// ingestion path and never mutated by scoring.
type Checkin struct {
	ID           int64
	ChallengerID int64
	Name         string    // participant display name, unique per deployment
	Time         time.Time // in the participant's own location
	Day          Weekday
	Tier         string // "T0", "T1", ...
	WeekID       int64
	Note         string
	ByeWeek      bool // inherited from the owning week
}

// Date returns the calendar date of the check-in in its own location.
func (c Checkin) Date() (year int, month time.Month, day int) {
	return c.Time.Date()
}

// SameDay reports whether both check-ins belong to the same participant on
// the same calendar day.
func (c Checkin) SameDay(o Checkin) bool {
	if c.Name != o.Name {
		return false
	}
	y1, m1, d1 := c.Date()
	y2, m2, d2 := o.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Challenger is a participant.
type Challenger struct {
	ID   int64
	Name string
	TZ   string // IANA zone name, e.g. "America/New_York"
}

// Location resolves the challenger's time zone, falling back to UTC when the
// zone is empty or unknown.
func (c Challenger) Location() *time.Location {
	if c.TZ == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Enrollment is a challenger's membership in one challenge. Knock-out and
// ante bookkeeping is maintained elsewhere and only read here.
type Enrollment struct {
	ChallengeID int64
	Challenger  Challenger
	KnockedOut  bool
	Ante        float64
	Tier        string
	MulliganID  *int64 // check-in granted as mulligan, nil while unused
}
