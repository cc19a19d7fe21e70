package aggregate

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/okian/tierboard/internal/domain/model"
	"github.com/okian/tierboard/internal/domain/scoring"
)

// ClockLayout formats time of day for earliest/latest tracking. It is
// zero-padded, so string order equals chronological order.
const ClockLayout = "15:04"

// Sentinels reported when a week has no activity yet.
const (
	NoEarliest = "23:59"
	NoLatest   = "00:00"
)

// highTierFloor is the score a check-in must beat to earn the high-tier badge.
const highTierFloor = 1.0

// Cell is one weekday of a participant's row.
type Cell struct {
	Day       model.Weekday `json:"day"`
	CheckedIn bool          `json:"checked_in"`
	Tier      string        `json:"tier,omitempty"`
	Time      time.Time     `json:"time,omitzero"`
}

// Clock returns the cell's time of day, or "" for an empty cell.
func (c Cell) Clock() string {
	if !c.CheckedIn {
		return ""
	}
	return c.Time.Format(ClockLayout)
}

// Row is one participant's week.
type Row struct {
	Name          string                  `json:"name"`
	Cells         [model.DaysPerWeek]Cell `json:"cells"`
	TotalCheckins int                     `json:"total_checkins"`
	Points        float64                 `json:"points"`
	KnockedOut    bool                    `json:"knocked_out"`
}

// Complete reports whether the participant hit the weekly target.
func (r Row) Complete() bool { return r.TotalCheckins >= WeeklyCap }

// Gold reports a check-in on every day of the week.
func (r Row) Gold() bool { return r.TotalCheckins >= model.DaysPerWeek }

// Mark pins an achievement to a participant and instant.
type Mark struct {
	Name   string    `json:"name"`
	Time   time.Time `json:"time"`
	Points float64   `json:"points,omitempty"`
}

// Clock returns the mark's time of day.
func (m Mark) Clock() string { return m.Time.Format(ClockLayout) }

// Achievements are the week-wide markers.
type Achievements struct {
	Earliest    string `json:"earliest"`
	Latest      string `json:"latest"`
	FirstToFive *Mark  `json:"first_to_five"`
	HighTier    *Mark  `json:"high_tier"`
}

// IsEarliest reports whether the cell holds the earliest time of day.
func (a Achievements) IsEarliest(c Cell) bool {
	return c.CheckedIn && c.Clock() == a.Earliest
}

// IsLatest reports whether the cell holds the latest time of day.
func (a Achievements) IsLatest(c Cell) bool {
	return c.CheckedIn && c.Clock() == a.Latest
}

// IsFirstToFive reports whether the cell is the one that won first-to-five.
func (a Achievements) IsFirstToFive(r Row, c Cell) bool {
	return a.FirstToFive != nil && r.Complete() && r.Name == a.FirstToFive.Name &&
		c.CheckedIn && c.Time.Equal(a.FirstToFive.Time)
}

// IsHighTier reports whether the cell earned the high-tier badge.
func (a Achievements) IsHighTier(r Row, c Cell) bool {
	return a.HighTier != nil && r.Name == a.HighTier.Name &&
		c.CheckedIn && c.Time.Equal(a.HighTier.Time)
}

// HeatMap is the single-week view.
type HeatMap struct {
	Rows          []Row        `json:"rows"`
	Achievements  Achievements `json:"achievements"`
	LatestCheckin time.Time    `json:"latest_checkin,omitzero"`
}

// Option tunes WeekHeatMap.
type Option func(*heatMapConfig)

type heatMapConfig struct {
	knockedOut map[string]bool
}

// WithKnockedOut flags rows of participants who are out of the challenge.
func WithKnockedOut(names []string) Option {
	return func(c *heatMapConfig) {
		for _, n := range names {
			c.knockedOut[n] = true
		}
	}
}

// WeekHeatMap lays out one week of check-ins as weekday cells per participant
// and derives the week's achievements.
//
// Every roster name gets a row, even without check-ins. Names that appear in
// checkins but not in roster are appended in name order. Within a row the
// first check-in for a weekday wins, in input order; callers that want the
// best tier of a day should order the input accordingly. Rows come back in
// roster order; see SortRows.
//
// A check-in qualifies for first-to-five and high tier when its week is not a
// bye week and its tier scores above zero.
func WeekHeatMap(rs scoring.RuleSet, roster []string, checkins []model.Checkin, opts ...Option) (HeatMap, error) {
	cfg := heatMapConfig{knockedOut: make(map[string]bool)}
	for _, opt := range opts {
		opt(&cfg)
	}

	tiers := make([]scoring.Tier, len(checkins))
	byName := make(map[string][]int)
	for i, c := range checkins {
		t, err := scoring.ParseTier(c.Tier)
		if err != nil {
			return HeatMap{}, fmt.Errorf("check-in %d for %s: %w", c.ID, c.Name, err)
		}
		tiers[i] = t
		byName[c.Name] = append(byName[c.Name], i)
	}

	names := rowOrder(roster, byName)

	ach := Achievements{Earliest: NoEarliest, Latest: NoLatest}
	var candidate Mark
	if len(checkins) > 0 {
		candidate = lastCheckin(checkins)
	}
	crossed := false
	high := Mark{Points: highTierFloor}
	highFound := false

	rows := make([]Row, 0, len(names))
	for _, name := range names {
		idx := byName[name]
		sort.SliceStable(idx, func(a, b int) bool { return checkins[idx[a]].Day < checkins[idx[b]].Day })

		row := Row{Name: name, KnockedOut: cfg.knockedOut[name]}
		qualifying := 0
		var dayPoints []float64

		for _, day := range model.Weekdays {
			row.Cells[day] = Cell{Day: day}
			i := slices.IndexFunc(idx, func(i int) bool { return checkins[i].Day == day })
			if i < 0 {
				continue
			}
			c := checkins[idx[i]]
			row.Cells[day] = Cell{Day: day, CheckedIn: true, Tier: c.Tier, Time: c.Time}
			row.TotalCheckins++

			clock := c.Time.Format(ClockLayout)
			if clock > ach.Latest {
				ach.Latest = clock
			}
			if clock < ach.Earliest {
				ach.Earliest = clock
			}

			if c.ByeWeek {
				continue
			}
			points := rs.Points(tiers[idx[i]])
			dayPoints = append(dayPoints, points)
			if points <= 0 {
				continue
			}
			qualifying++
			if qualifying >= WeeklyCap && !c.Time.After(candidate.Time) {
				candidate = Mark{Name: name, Time: c.Time}
				crossed = true
			}
			if points > high.Points {
				high = Mark{Name: name, Time: c.Time, Points: points}
				highFound = true
			}
		}
		row.Points = round4(sumTop(dayPoints, WeeklyCap))
		rows = append(rows, row)
	}

	if crossed {
		ach.FirstToFive = &candidate
	}
	if highFound {
		ach.HighTier = &high
	}
	return HeatMap{Rows: rows, Achievements: ach}, nil
}

// rowOrder is the roster (deduplicated) followed by unrostered names with
// check-ins, sorted.
func rowOrder(roster []string, byName map[string][]int) []string {
	seen := make(map[string]bool, len(roster))
	names := make([]string, 0, len(roster)+len(byName))
	for _, n := range roster {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	var extra []string
	for n := range byName {
		if !seen[n] {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// lastCheckin is the chronologically latest check-in; ties keep the first in
// input order.
func lastCheckin(checkins []model.Checkin) Mark {
	last := checkins[0]
	for _, c := range checkins[1:] {
		if c.Time.After(last.Time) {
			last = c
		}
	}
	return Mark{Name: last.Name, Time: last.Time}
}

// SortRows orders rows by cumulative total descending, then by name. Names
// missing from totals count as zero.
func SortRows(rows []Row, totals map[string]float64) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti, tj := totals[rows[i].Name], totals[rows[j].Name]
		if ti != tj {
			return ti > tj
		}
		return rows[i].Name < rows[j].Name
	})
}
