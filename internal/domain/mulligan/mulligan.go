// Package mulligan plans make-up check-ins for participants who fell short
// of the weekly target.
package mulligan

import (
	"slices"

	"github.com/okian/tierboard/internal/domain/aggregate"
	"github.com/okian/tierboard/internal/domain/model"
)

// Make-up check-in shape.
const (
	Tier     = "T1"
	Note     = "MULLIGAN T1 checkin"
	noonHour = 12
)

// Tally counts the distinct weekdays each participant checked in on with a
// tier other than T0.
func Tally(checkins []model.Checkin) map[string]int {
	days := make(map[string]map[model.Weekday]bool)
	for _, c := range checkins {
		if c.Tier == "T0" {
			continue
		}
		if days[c.Name] == nil {
			days[c.Name] = make(map[model.Weekday]bool)
		}
		days[c.Name][c.Day] = true
	}
	out := make(map[string]int, len(days))
	for name, set := range days {
		out[name] = len(set)
	}
	return out
}

// Eligible reports whether a participant with the given tally may receive a
// mulligan for week: the week counts, they showed up at least once, they
// fell short of the target, and they have not spent their mulligan yet.
func Eligible(week model.ChallengeWeek, qualifying int, used bool) bool {
	return !week.ByeWeek && !used && qualifying > 0 && qualifying < aggregate.WeeklyCap
}

// Plan builds the make-up check-in for challenger in week: a T1 at noon local
// time on the first weekday without a check-in. checkins are the
// challenger's own check-ins for that week.
func Plan(week model.ChallengeWeek, challenger model.Challenger, checkins []model.Checkin) (model.Checkin, error) {
	if len(checkins) == 0 {
		return model.Checkin{}, ErrNoCheckins
	}
	taken := make([]model.Weekday, 0, len(checkins))
	for _, c := range checkins {
		taken = append(taken, c.Day)
	}

	for _, day := range model.Weekdays {
		if slices.Contains(taken, day) {
			continue
		}
		return model.Checkin{
			ChallengerID: challenger.ID,
			Name:         challenger.Name,
			Time:         week.ClockOf(day, noonHour, challenger.Location()),
			Day:          day,
			Tier:         Tier,
			WeekID:       week.ID,
			Note:         Note,
			ByeWeek:      week.ByeWeek,
		}, nil
	}
	return model.Checkin{}, ErrWeekFull
}
