// Package repository defines the challenge store interface and its SQLite
// implementation.
package repository

import (
	"context"
	"time"

	"github.com/okian/tierboard/internal/domain/model"
)

// Store provides read/write access to challenges, weeks, challengers and
// their check-ins. Missing records are reported as ErrNotFound; empty
// collections are not errors.
type Store interface {
	CreateChallenge(ctx context.Context, c model.Challenge) (model.Challenge, error)
	CreateWeek(ctx context.Context, w model.ChallengeWeek) (model.ChallengeWeek, error)
	CreateChallenger(ctx context.Context, c model.Challenger) (model.Challenger, error)
	Enroll(ctx context.Context, e model.Enrollment) error

	Challenge(ctx context.Context, id int64) (model.Challenge, error)
	Week(ctx context.Context, id int64) (model.ChallengeWeek, error)
	// Weeks returns the challenge's weeks ordered by start date.
	Weeks(ctx context.Context, challengeID int64) ([]model.ChallengeWeek, error)
	// WeeksOn returns every week, across challenges, whose span holds date.
	WeeksOn(ctx context.Context, date time.Time) ([]model.ChallengeWeek, error)
	// WeekForChallenger returns the week holding date in a challenge the
	// challenger is enrolled in.
	WeekForChallenger(ctx context.Context, challengerID int64, date time.Time) (model.ChallengeWeek, error)

	ChallengerByName(ctx context.Context, name string) (model.Challenger, error)
	// Enrollments returns the challenge roster ordered by name.
	Enrollments(ctx context.Context, challengeID int64) ([]model.Enrollment, error)

	// CheckinsForWeek orders by weekday, then best tier first, then latest
	// first, so the leading check-in of each day is the one to display.
	CheckinsForWeek(ctx context.Context, weekID int64) ([]model.Checkin, error)
	// CheckinsForChallenge orders by week, then time.
	CheckinsForChallenge(ctx context.Context, challengeID int64) ([]model.Checkin, error)
	// LatestCheckinTime is the most recent check-in instant in the store, or
	// the zero time when there is none.
	LatestCheckinTime(ctx context.Context) (time.Time, error)
	// InsertCheckin returns ErrDuplicate when the challenger already has a
	// check-in at the same instant.
	InsertCheckin(ctx context.Context, c model.Checkin) (model.Checkin, error)

	// SetGreenIfUnset writes the week's green flag only if it is still
	// undecided and reports whether it did.
	SetGreenIfUnset(ctx context.Context, weekID int64, green bool) (bool, error)
	// CountWeeksSinceGreen counts the challenge's weeks that ended at least a
	// week before asOf, back to and including the last such green week.
	CountWeeksSinceGreen(ctx context.Context, challengeID int64, asOf time.Time) (int, error)

	// ApplyMulligan inserts c and records it as the challenger's mulligan for
	// the challenge in one transaction. Returns ErrMulliganUsed when one was
	// already recorded.
	ApplyMulligan(ctx context.Context, challengeID int64, c model.Checkin) (model.Checkin, error)
}
