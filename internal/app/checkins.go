package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/tierboard/internal/adapters/repository"
	"github.com/okian/tierboard/internal/domain/dedupe"
	"github.com/okian/tierboard/internal/domain/model"
	"github.com/okian/tierboard/internal/domain/scoring"
	"github.com/okian/tierboard/internal/domain/types"
	"github.com/okian/tierboard/pkg/logger"
	"github.com/okian/tierboard/pkg/metrics"
)

// tierOf resolves the declared tier, falling back to a tier typed in the note.
func tierOf(in types.CheckinInput) (scoring.Tier, error) {
	if in.Tier != "" {
		return scoring.ParseTier(strings.ToUpper(strings.TrimSpace(in.Tier)))
	}
	t, ok := scoring.ExtractTier(in.Note)
	if !ok {
		return scoring.Tier{}, fmt.Errorf("%w: %w", ErrNoTier, scoring.ErrInvalidTier)
	}
	return t, nil
}

// RecordCheckin stores a check-in for the named challenger in the week of
// the challenge they are enrolled in that holds the check-in's local date.
// Replays of the same challenger and instant return repository.ErrDuplicate.
func (s *Service) RecordCheckin(ctx context.Context, in types.CheckinInput) (model.Checkin, error) {
	store, err := s.deps()
	if err != nil {
		return model.Checkin{}, err
	}

	tier, err := tierOf(in)
	if err != nil {
		metrics.RecordCheckinRejected("invalid_tier")
		return model.Checkin{}, err
	}

	challenger, err := store.ChallengerByName(ctx, in.Name)
	if err != nil {
		metrics.RecordCheckinRejected("unknown_challenger")
		return model.Checkin{}, err
	}

	at := in.Time
	if at.IsZero() {
		at = s.now()
	}
	local := at.In(challenger.Location())

	key := dedupe.Key(challenger.Name, local)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordCheckinDuplicate()
		s.logger.Debug(ctx, "duplicate check-in detected, skipping", logger.String("key", key))
		return model.Checkin{}, fmt.Errorf("check-in %s: %w", key, repository.ErrDuplicate)
	}

	week, err := store.WeekForChallenger(ctx, challenger.ID, local)
	if err != nil {
		s.deduper.Unrecord(ctx, key)
		metrics.RecordCheckinRejected("no_week")
		return model.Checkin{}, err
	}

	c, err := store.InsertCheckin(ctx, model.Checkin{
		ChallengerID: challenger.ID,
		Name:         challenger.Name,
		Time:         local,
		Day:          model.WeekdayOf(local),
		Tier:         tier.String(),
		WeekID:       week.ID,
		Note:         in.Note,
		ByeWeek:      week.ByeWeek,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			metrics.RecordCheckinDuplicate()
			return model.Checkin{}, err
		}
		s.deduper.Unrecord(ctx, key)
		metrics.RecordErrorByComponent("service", "insert_checkin")
		return model.Checkin{}, err
	}

	metrics.RecordCheckin()
	metrics.UpdateDedupeSize(s.deduper.Size())
	s.logger.Info(ctx, "check-in recorded",
		logger.String("name", c.Name),
		logger.String("tier", c.Tier),
		logger.String("day", c.Day.String()),
		logger.Int64("week", c.WeekID),
	)
	return c, nil
}
