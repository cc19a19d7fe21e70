package service

import (
	"context"
	"errors"

	"github.com/okian/tierboard/internal/adapters/repository"
	"github.com/okian/tierboard/internal/domain/model"
	"github.com/okian/tierboard/internal/domain/mulligan"
	"github.com/okian/tierboard/pkg/logger"
	"github.com/okian/tierboard/pkg/metrics"
)

// GreenDecision reports the roll for one week.
type GreenDecision struct {
	WeekID        int64 `json:"week_id"`
	NonGreenWeeks int   `json:"non_green_weeks"`
	Green         bool  `json:"green"`
	// Applied is false when another decider got there first.
	Applied bool `json:"applied"`
}

// DecideGreen rolls the green flag for every undecided week that holds
// today. A week's flag is written at most once.
func (s *Service) DecideGreen(ctx context.Context) ([]GreenDecision, error) {
	store, err := s.deps()
	if err != nil {
		return nil, err
	}
	today := s.today()

	weeks, err := store.WeeksOn(ctx, today)
	if err != nil {
		return nil, err
	}

	var out []GreenDecision
	for _, w := range weeks {
		if w.Decided() {
			continue
		}
		n, err := store.CountWeeksSinceGreen(ctx, w.ChallengeID, today)
		if err != nil {
			return out, err
		}
		d := GreenDecision{WeekID: w.ID, NonGreenWeeks: n, Green: s.decider.Decide(n)}
		if d.Applied, err = store.SetGreenIfUnset(ctx, w.ID, d.Green); err != nil {
			return out, err
		}
		if d.Applied {
			metrics.RecordGreenDecision(d.Green)
		}
		s.logger.Info(ctx, "green decision",
			logger.Int64("week", w.ID),
			logger.Int("nonGreenWeeks", n),
			logger.Float64("probability", s.decider.Probability(n)),
			logger.Bool("green", d.Green),
			logger.Bool("applied", d.Applied),
		)
		out = append(out, d)
	}
	return out, nil
}

// GrantMulligans inserts a make-up check-in for every eligible participant
// of the week. Knocked-out participants are skipped.
func (s *Service) GrantMulligans(ctx context.Context, weekID int64) ([]model.Checkin, error) {
	store, err := s.deps()
	if err != nil {
		return nil, err
	}

	week, err := store.Week(ctx, weekID)
	if err != nil {
		return nil, err
	}
	if week.ByeWeek {
		s.logger.Info(ctx, "bye week, no mulligans", logger.Int64("week", weekID))
		return nil, nil
	}

	checkins, err := store.CheckinsForWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	enrollments, err := store.Enrollments(ctx, week.ChallengeID)
	if err != nil {
		return nil, err
	}

	tally := mulligan.Tally(checkins)
	byName := make(map[string][]model.Checkin)
	for _, c := range checkins {
		byName[c.Name] = append(byName[c.Name], c)
	}

	var granted []model.Checkin
	for _, e := range enrollments {
		name := e.Challenger.Name
		if e.KnockedOut || !mulligan.Eligible(week, tally[name], e.MulliganID != nil) {
			continue
		}
		plan, err := mulligan.Plan(week, e.Challenger, byName[name])
		if err != nil {
			s.logger.Warn(ctx, "cannot plan mulligan", logger.String("name", name), logger.Error(err))
			continue
		}
		c, err := store.ApplyMulligan(ctx, week.ChallengeID, plan)
		if errors.Is(err, repository.ErrMulliganUsed) || errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return granted, err
		}
		metrics.RecordMulliganGranted()
		s.logger.Info(ctx, "mulligan granted",
			logger.String("name", name),
			logger.Int64("week", weekID),
			logger.String("day", c.Day.String()),
			logger.Int("checkins", tally[name]),
		)
		granted = append(granted, c)
	}
	return granted, nil
}

// GrantPreviousWeekMulligans grants mulligans for every week that ended on
// the Sunday before the current week.
func (s *Service) GrantPreviousWeekMulligans(ctx context.Context) ([]model.Checkin, error) {
	store, err := s.deps()
	if err != nil {
		return nil, err
	}
	today := s.today()
	lastSunday := today.AddDate(0, 0, -(int(model.WeekdayOf(today)) + 1))

	weeks, err := store.WeeksOn(ctx, lastSunday)
	if err != nil {
		return nil, err
	}
	var granted []model.Checkin
	for _, w := range weeks {
		g, err := s.GrantMulligans(ctx, w.ID)
		granted = append(granted, g...)
		if err != nil {
			return granted, err
		}
	}
	return granted, nil
}
