package aggregate

import (
	"slices"
	"sort"

	"github.com/okian/tierboard/internal/domain/model"
	"github.com/okian/tierboard/internal/domain/scoring"
)

// WeekTotals maps week id -> participant -> capped, rounded points for that week.
type WeekTotals map[int64]map[string]float64

// WeeklyTotals collapses each participant's days to their best tier, then
// caps every week at the WeeklyCap best days and rounds the week to four
// decimals.
//
// Records are grouped by week id after a stable sort, so callers need not
// pre-order the input; input that is already ordered by week gives the same
// result as a run-length grouping would.
func WeeklyTotals(rs scoring.RuleSet, checkins []model.Checkin) (WeekTotals, error) {
	days, err := CollapseDaily(checkins)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].WeekID < days[j].WeekID })

	out := make(WeekTotals)
	for start := 0; start < len(days); {
		end := start
		for end < len(days) && days[end].WeekID == days[start].WeekID {
			end++
		}
		out[days[start].WeekID] = capWeek(rs, days[start:end])
		start = end
	}
	return out, nil
}

func capWeek(rs scoring.RuleSet, week []DailyBest) map[string]float64 {
	byName := make(map[string][]float64)
	for _, d := range week {
		byName[d.Name] = append(byName[d.Name], rs.Points(d.Tier))
	}
	totals := make(map[string]float64, len(byName))
	for name, scores := range byName {
		totals[name] = round4(sumTop(scores, WeeklyCap))
	}
	return totals
}

// CheckinCounts is each participant's check-in progress: the distinct days
// they checked in on in every week, capped at WeeklyCap, summed across
// weeks. Every tier counts, T0 included.
func CheckinCounts(checkins []model.Checkin) (map[string]int, error) {
	days, err := CollapseDaily(checkins)
	if err != nil {
		return nil, err
	}
	type nameWeek struct {
		name   string
		weekID int64
	}
	perWeek := make(map[nameWeek]int)
	for _, d := range days {
		perWeek[nameWeek{name: d.Name, weekID: d.WeekID}]++
	}
	out := make(map[string]int)
	for k, n := range perWeek {
		out[k.name] += min(n, WeeklyCap)
	}
	return out, nil
}

// TotalScore is the cumulative score per participant across every week of the
// input. Participants without check-ins are absent from the map; callers
// treat a missing key as zero. Empty input yields an empty map.
func TotalScore(rs scoring.RuleSet, checkins []model.Checkin) (map[string]float64, error) {
	weeks, err := WeeklyTotals(rs, checkins)
	if err != nil {
		return nil, err
	}
	// Sum in week order so the float result does not depend on map order.
	ids := make([]int64, 0, len(weeks))
	for id := range weeks {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	total := make(map[string]float64)
	for _, id := range ids {
		for name, points := range weeks[id] {
			total[name] += points
		}
	}
	return total, nil
}
