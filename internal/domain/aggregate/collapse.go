// Package aggregate folds check-ins into weekly and cumulative scores and
// builds the single-week heat map with its achievements.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/tierboard/internal/domain/model"
	"github.com/okian/tierboard/internal/domain/scoring"
)

// WeeklyCap is the number of best days that count toward a week.
const WeeklyCap = 5

const roundScale = 1e4 // four decimal places

// DailyBest is the highest tier a participant reached on one calendar day.
type DailyBest struct {
	Name   string
	WeekID int64
	Date   string // YYYY-MM-DD in the participant's location
	Tier   scoring.Tier
	Time   time.Time
}

type dayKey struct {
	name   string
	weekID int64
	date   string
}

// CollapseDaily keeps one record per participant, week and calendar day:
// the one with the highest tier numeral. Ties keep the earlier record in
// input order. Output preserves the order in which each day first appears.
// A malformed tier anywhere in the input fails the whole call.
func CollapseDaily(checkins []model.Checkin) ([]DailyBest, error) {
	out := make([]DailyBest, 0, len(checkins))
	index := make(map[dayKey]int, len(checkins))

	for _, c := range checkins {
		tier, err := scoring.ParseTier(c.Tier)
		if err != nil {
			return nil, fmt.Errorf("check-in %d for %s: %w", c.ID, c.Name, err)
		}
		key := dayKey{name: c.Name, weekID: c.WeekID, date: c.Time.Format(model.DateLayout)}
		if i, ok := index[key]; ok {
			if out[i].Tier.Less(tier) {
				out[i].Tier = tier
				out[i].Time = c.Time
			}
			continue
		}
		index[key] = len(out)
		out = append(out, DailyBest{
			Name:   c.Name,
			WeekID: c.WeekID,
			Date:   key.date,
			Tier:   tier,
			Time:   c.Time,
		})
	}
	return out, nil
}

// sumTop adds the n largest values. It sorts scores in place.
func sumTop(scores []float64, n int) float64 {
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	if len(scores) > n {
		scores = scores[:n]
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum
}

func round4(x float64) float64 {
	return math.Round(x*roundScale) / roundScale
}
