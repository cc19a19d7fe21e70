package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/tierboard/internal/domain/model"
)

func date(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	store     *SQLStore
	challenge model.Challenge
	weeks     []model.ChallengeWeek
	alice     model.Challenger
	bob       model.Challenger
}

func setupTestStore(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, MemoryPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	f := &fixture{store: s}
	f.challenge, err = s.CreateChallenge(ctx, model.Challenge{
		Name: "Spring", Start: date("2024-03-04"), End: date("2024-03-24"), RuleSet: 2,
	})
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	for i, start := range []string{"2024-03-04", "2024-03-11", "2024-03-18"} {
		w, err := s.CreateWeek(ctx, model.ChallengeWeek{
			ChallengeID: f.challenge.ID,
			Start:       date(start),
			End:         date(start).AddDate(0, 0, 6),
			WeekOfYear:  10 + i,
		})
		if err != nil {
			t.Fatalf("create week: %v", err)
		}
		f.weeks = append(f.weeks, w)
	}

	f.alice, err = s.CreateChallenger(ctx, model.Challenger{Name: "Alice", TZ: "America/New_York"})
	if err != nil {
		t.Fatalf("create challenger: %v", err)
	}
	f.bob, err = s.CreateChallenger(ctx, model.Challenger{Name: "Bob"})
	if err != nil {
		t.Fatalf("create challenger: %v", err)
	}
	for _, c := range []model.Challenger{f.alice, f.bob} {
		if err := s.Enroll(ctx, model.Enrollment{ChallengeID: f.challenge.ID, Challenger: c, Ante: 20, Tier: "T2"}); err != nil {
			t.Fatalf("enroll: %v", err)
		}
	}
	return f
}

func (f *fixture) checkin(t *testing.T, who model.Challenger, week model.ChallengeWeek, day model.Weekday, tier string, hour int) model.Checkin {
	t.Helper()
	loc := who.Location()
	at := week.ClockOf(day, hour, loc)
	c, err := f.store.InsertCheckin(context.Background(), model.Checkin{
		ChallengerID: who.ID, WeekID: week.ID, Time: at, Day: day, Tier: tier,
	})
	if err != nil {
		t.Fatalf("insert checkin: %v", err)
	}
	return c
}

func TestChallengeAndWeeks(t *testing.T) {
	f := setupTestStore(t)
	ctx := context.Background()

	got, err := f.store.Challenge(ctx, f.challenge.ID)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if got.Name != "Spring" || got.RuleSet != 2 {
		t.Errorf("challenge = %+v", got)
	}
	if !got.Start.Equal(date("2024-03-04")) {
		t.Errorf("start = %v", got.Start)
	}

	if _, err := f.store.Challenge(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing challenge err = %v, want ErrNotFound", err)
	}
	if _, err := f.store.Week(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing week err = %v, want ErrNotFound", err)
	}

	weeks, err := f.store.Weeks(ctx, f.challenge.ID)
	if err != nil {
		t.Fatalf("list weeks: %v", err)
	}
	if len(weeks) != 3 {
		t.Fatalf("weeks = %d, want 3", len(weeks))
	}
	if weeks[0].Decided() {
		t.Error("expected week undecided")
	}

	on, err := f.store.WeeksOn(ctx, date("2024-03-13"))
	if err != nil {
		t.Fatalf("weeks on: %v", err)
	}
	if len(on) != 1 || on[0].ID != f.weeks[1].ID {
		t.Errorf("weeks on = %+v, want week %d", on, f.weeks[1].ID)
	}

	w, err := f.store.WeekForChallenger(ctx, f.alice.ID, date("2024-03-24"))
	if err != nil {
		t.Fatalf("week for challenger: %v", err)
	}
	if w.ID != f.weeks[2].ID {
		t.Errorf("week = %d, want %d", w.ID, f.weeks[2].ID)
	}
	if _, err := f.store.WeekForChallenger(ctx, f.alice.ID, date("2024-04-01")); !errors.Is(err, ErrNotFound) {
		t.Errorf("out of range err = %v, want ErrNotFound", err)
	}
}

func TestChallengers(t *testing.T) {
	f := setupTestStore(t)
	ctx := context.Background()

	got, err := f.store.ChallengerByName(ctx, "Alice")
	if err != nil {
		t.Fatalf("get challenger: %v", err)
	}
	if got.ID != f.alice.ID || got.TZ != "America/New_York" {
		t.Errorf("challenger = %+v", got)
	}
	if f.bob.TZ != "UTC" {
		t.Errorf("default tz = %q, want UTC", f.bob.TZ)
	}
	if _, err := f.store.ChallengerByName(ctx, "Nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing challenger err = %v, want ErrNotFound", err)
	}
	if _, err := f.store.CreateChallenger(ctx, model.Challenger{Name: "Alice"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate challenger err = %v, want ErrDuplicate", err)
	}

	// Re-enrolling updates in place.
	if err := f.store.Enroll(ctx, model.Enrollment{ChallengeID: f.challenge.ID, Challenger: f.bob, KnockedOut: true}); err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
	roster, err := f.store.Enrollments(ctx, f.challenge.ID)
	if err != nil {
		t.Fatalf("enrollments: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("roster = %d, want 2", len(roster))
	}
	if roster[0].Challenger.Name != "Alice" || roster[0].KnockedOut || roster[0].Ante != 20 {
		t.Errorf("roster[0] = %+v", roster[0])
	}
	if roster[1].Challenger.Name != "Bob" || !roster[1].KnockedOut {
		t.Errorf("roster[1] = %+v", roster[1])
	}
}

func TestCheckins(t *testing.T) {
	f := setupTestStore(t)
	ctx := context.Background()
	w := f.weeks[0]

	latest, err := f.store.LatestCheckinTime(ctx)
	if err != nil {
		t.Fatalf("latest on empty: %v", err)
	}
	if !latest.IsZero() {
		t.Errorf("latest = %v, want zero", latest)
	}

	f.checkin(t, f.alice, w, model.Monday, "T2", 7)
	f.checkin(t, f.alice, w, model.Monday, "T4", 6)
	f.checkin(t, f.alice, w, model.Monday, "T10", 5)
	last := f.checkin(t, f.bob, w, model.Tuesday, "T1", 21)
	f.checkin(t, f.bob, f.weeks[1], model.Monday, "T3", 9)

	got, err := f.store.CheckinsForWeek(ctx, w.ID)
	if err != nil {
		t.Fatalf("checkins for week: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("checkins = %d, want 4", len(got))
	}
	// Numeric tier order: T10 beats T4.
	if got[0].Tier != "T10" || got[1].Tier != "T4" || got[2].Tier != "T2" {
		t.Errorf("monday order = %s, %s, %s", got[0].Tier, got[1].Tier, got[2].Tier)
	}
	if got[0].Name != "Alice" || got[0].Time.Location().String() != "America/New_York" {
		t.Errorf("checkin = %+v", got[0])
	}
	if got[0].Time.Hour() != 5 {
		t.Errorf("local hour = %d, want 5", got[0].Time.Hour())
	}

	all, err := f.store.CheckinsForChallenge(ctx, f.challenge.ID)
	if err != nil {
		t.Fatalf("checkins for challenge: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("challenge checkins = %d, want 5", len(all))
	}
	if all[4].WeekID != f.weeks[1].ID {
		t.Errorf("last checkin week = %d, want %d", all[4].WeekID, f.weeks[1].ID)
	}

	latest, err = f.store.LatestCheckinTime(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Before(last.Time) {
		t.Errorf("latest = %v, want at or after %v", latest, last.Time)
	}

	_, err = f.store.InsertCheckin(ctx, model.Checkin{
		ChallengerID: last.ChallengerID, WeekID: w.ID, Time: last.Time, Day: last.Day, Tier: "T2",
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate checkin err = %v, want ErrDuplicate", err)
	}

	_, err = f.store.InsertCheckin(ctx, model.Checkin{
		ChallengerID: f.bob.ID, WeekID: w.ID, Time: last.Time.Add(time.Hour), Tier: "gold",
	})
	if err == nil {
		t.Error("expected invalid tier to be rejected")
	}
}

func TestGreen(t *testing.T) {
	f := setupTestStore(t)
	ctx := context.Background()
	asOf := date("2024-04-01")

	n, err := f.store.CountWeeksSinceGreen(ctx, f.challenge.ID, asOf)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	// Weeks ending 03-10, 03-17 and 03-24 all ended at least a week before 04-01.
	if n != 3 {
		t.Errorf("count with no green = %d, want 3", n)
	}

	changed, err := f.store.SetGreenIfUnset(ctx, f.weeks[1].ID, true)
	if err != nil {
		t.Fatalf("set green: %v", err)
	}
	if !changed {
		t.Error("expected first write to change the week")
	}
	changed, err = f.store.SetGreenIfUnset(ctx, f.weeks[1].ID, false)
	if err != nil {
		t.Fatalf("set green again: %v", err)
	}
	if changed {
		t.Error("expected second write to be ignored")
	}
	w, err := f.store.Week(ctx, f.weeks[1].ID)
	if err != nil {
		t.Fatalf("get week: %v", err)
	}
	if !w.IsGreen() {
		t.Error("expected week to stay green")
	}

	n, err = f.store.CountWeeksSinceGreen(ctx, f.challenge.ID, asOf)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("count since green = %d, want 2", n)
	}

	// Only the first week has ended a week before 03-24.
	n, err = f.store.CountWeeksSinceGreen(ctx, f.challenge.ID, date("2024-03-20"))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("early count = %d, want 1", n)
	}
}

func TestApplyMulligan(t *testing.T) {
	f := setupTestStore(t)
	ctx := context.Background()
	w := f.weeks[0]

	mull := model.Checkin{
		ChallengerID: f.alice.ID, WeekID: w.ID, Day: model.Tuesday, Tier: "T1", Note: "MULLIGAN T1 checkin",
		Time: w.ClockOf(model.Tuesday, 12, f.alice.Location()),
	}
	got, err := f.store.ApplyMulligan(ctx, f.challenge.ID, mull)
	if err != nil {
		t.Fatalf("apply mulligan: %v", err)
	}
	if got.ID == 0 {
		t.Error("expected checkin id")
	}

	roster, err := f.store.Enrollments(ctx, f.challenge.ID)
	if err != nil {
		t.Fatalf("enrollments: %v", err)
	}
	if roster[0].MulliganID == nil || *roster[0].MulliganID != got.ID {
		t.Errorf("mulligan id = %v, want %d", roster[0].MulliganID, got.ID)
	}

	mull.Time = mull.Time.AddDate(0, 0, 1)
	mull.Day = model.Wednesday
	if _, err := f.store.ApplyMulligan(ctx, f.challenge.ID, mull); !errors.Is(err, ErrMulliganUsed) {
		t.Errorf("second mulligan err = %v, want ErrMulliganUsed", err)
	}

	checkins, err := f.store.CheckinsForWeek(ctx, w.ID)
	if err != nil {
		t.Fatalf("checkins: %v", err)
	}
	if len(checkins) != 1 {
		t.Errorf("checkins = %d, want 1 (rolled back)", len(checkins))
	}

	outsider, err := f.store.CreateChallenger(ctx, model.Challenger{Name: "Carol"})
	if err != nil {
		t.Fatalf("create challenger: %v", err)
	}
	mull.ChallengerID = outsider.ID
	if _, err := f.store.ApplyMulligan(ctx, f.challenge.ID, mull); !errors.Is(err, ErrNotFound) {
		t.Errorf("unenrolled err = %v, want ErrNotFound", err)
	}
}
