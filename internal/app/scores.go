package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/tierboard/internal/adapters/repository"
	"github.com/okian/tierboard/internal/domain/aggregate"
	"github.com/okian/tierboard/internal/domain/model"
	"github.com/okian/tierboard/internal/domain/scoring"
	"github.com/okian/tierboard/internal/domain/types"
	"github.com/okian/tierboard/pkg/logger"
	"github.com/okian/tierboard/pkg/metrics"
)

func (s *Service) ruleSet(ctx context.Context, store repository.Store, challengeID int64) (model.Challenge, scoring.RuleSet, error) {
	c, err := store.Challenge(ctx, challengeID)
	if err != nil {
		return model.Challenge{}, nil, err
	}
	rs, err := scoring.RuleSetFor(c.RuleSet)
	if err != nil {
		return model.Challenge{}, nil, fmt.Errorf("challenge %d: %w", challengeID, err)
	}
	return c, rs, nil
}

// TotalScore returns every participant's cumulative score in the challenge.
// Participants without check-ins are absent.
func (s *Service) TotalScore(ctx context.Context, challengeID int64) (map[string]float64, error) {
	store, err := s.deps()
	if err != nil {
		return nil, err
	}
	start := time.Now()

	_, rs, err := s.ruleSet(ctx, store, challengeID)
	if err != nil {
		return nil, err
	}
	checkins, err := store.CheckinsForChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	totals, err := aggregate.TotalScore(rs, checkins)
	if err != nil {
		metrics.RecordErrorByComponent("service", "total_score")
		return nil, err
	}

	metrics.RecordScoreLatency(float64(time.Since(start).Microseconds()) / 1000)
	s.logger.Debug(ctx, "computed total score",
		logger.Int64("challenge", challengeID),
		logger.Int("checkins", len(checkins)),
		logger.Int("participants", len(totals)),
	)
	return totals, nil
}

// Leaderboard ranks the challenge's participants by cumulative score. Equal
// scores share a rank; names break ties in listing order.
func (s *Service) Leaderboard(ctx context.Context, challengeID int64) ([]types.Entry, error) {
	totals, err := s.TotalScore(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	return rank(totals), nil
}

func rank(totals map[string]float64) []types.Entry {
	entries := make([]types.Entry, 0, len(totals))
	for name, score := range totals {
		entries = append(entries, types.Entry{Name: name, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	for i := range entries {
		entries[i].Rank = i + 1
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
		}
	}
	return entries
}

// WeekHeatMap lays out one week, rows ordered by cumulative challenge score.
func (s *Service) WeekHeatMap(ctx context.Context, weekID int64) (aggregate.HeatMap, error) {
	store, err := s.deps()
	if err != nil {
		return aggregate.HeatMap{}, err
	}
	start := time.Now()

	week, err := store.Week(ctx, weekID)
	if err != nil {
		return aggregate.HeatMap{}, err
	}
	_, rs, err := s.ruleSet(ctx, store, week.ChallengeID)
	if err != nil {
		return aggregate.HeatMap{}, err
	}
	enrollments, err := store.Enrollments(ctx, week.ChallengeID)
	if err != nil {
		return aggregate.HeatMap{}, err
	}
	roster, knocked := splitRoster(enrollments)

	checkins, err := store.CheckinsForWeek(ctx, weekID)
	if err != nil {
		return aggregate.HeatMap{}, err
	}
	hm, err := aggregate.WeekHeatMap(rs, roster, checkins, aggregate.WithKnockedOut(knocked))
	if err != nil {
		metrics.RecordErrorByComponent("service", "heatmap")
		return aggregate.HeatMap{}, err
	}

	totals, err := s.TotalScore(ctx, week.ChallengeID)
	if err != nil {
		return aggregate.HeatMap{}, err
	}
	aggregate.SortRows(hm.Rows, totals)

	latest, err := store.LatestCheckinTime(ctx)
	if err != nil {
		return aggregate.HeatMap{}, err
	}
	if !latest.IsZero() {
		hm.LatestCheckin = latest.In(s.loc)
	}

	metrics.RecordHeatMapLatency(float64(time.Since(start).Microseconds()) / 1000)
	return hm, nil
}

func splitRoster(enrollments []model.Enrollment) (roster, knocked []string) {
	roster = make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		roster = append(roster, e.Challenger.Name)
		if e.KnockedOut {
			knocked = append(knocked, e.Challenger.Name)
		}
	}
	return roster, knocked
}

// Summary returns standings and progress for the challenge as of now.
func (s *Service) Summary(ctx context.Context, challengeID int64) (types.Summary, error) {
	store, err := s.deps()
	if err != nil {
		return types.Summary{}, err
	}

	c, err := store.Challenge(ctx, challengeID)
	if err != nil {
		return types.Summary{}, err
	}
	totals, err := s.TotalScore(ctx, challengeID)
	if err != nil {
		return types.Summary{}, err
	}
	weeks, err := store.Weeks(ctx, challengeID)
	if err != nil {
		return types.Summary{}, err
	}
	enrollments, err := store.Enrollments(ctx, challengeID)
	if err != nil {
		return types.Summary{}, err
	}
	checkins, err := store.CheckinsForChallenge(ctx, challengeID)
	if err != nil {
		return types.Summary{}, err
	}
	counts, err := aggregate.CheckinCounts(checkins)
	if err != nil {
		return types.Summary{}, err
	}

	sum := types.Summary{
		ChallengeID:   c.ID,
		Name:          c.Name,
		RuleSet:       c.RuleSet,
		Totals:        totals,
		Checkins:      counts,
		Leaderboard:   rank(totals),
		KnockedOut:    []string{},
		TotalPossible: len(weeks) * aggregate.WeeklyCap,
		PossibleSoFar: possibleSoFar(weeks, s.today()),
	}
	for _, e := range enrollments {
		sum.Pot += e.Ante
		if e.KnockedOut {
			sum.KnockedOut = append(sum.KnockedOut, e.Challenger.Name)
		}
	}
	return sum, nil
}

// possibleSoFar counts the check-ins that could have scored by today: the
// cap for every finished week plus one per elapsed day of the current week,
// up to the cap.
func possibleSoFar(weeks []model.ChallengeWeek, today time.Time) int {
	total := 0
	for _, w := range weeks {
		switch {
		case w.Contains(today):
			total += min(int(model.WeekdayOf(today))+1, aggregate.WeeklyCap)
		case w.End.Format(model.DateLayout) < today.Format(model.DateLayout):
			total += aggregate.WeeklyCap
		}
	}
	return total
}
