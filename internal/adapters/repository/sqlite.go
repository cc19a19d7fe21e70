package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/okian/tierboard/internal/domain/model"
	"github.com/okian/tierboard/internal/domain/scoring"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// timeLayout stores instants in UTC with fixed-width nanoseconds so that
// string order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLStore implements Store on SQLite.
type SQLStore struct {
	db           *sql.DB
	maxOpenConns int
}

var _ Store = (*SQLStore)(nil)

// Open opens the SQLite database at path, runs migrations and returns a
// store backed by it.
func Open(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	switch {
	case path == MemoryPath:
		db.SetMaxOpenConns(1)
	case s.maxOpenConns > 0:
		db.SetMaxOpenConns(s.maxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s.db = db
	return s, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type scanner interface{ Scan(...any) error }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatDate(t time.Time) string { return t.Format(model.DateLayout) }

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

// ----- challenges -----

const challengeCols = `id, name, start_date, end_date, rule_set, bye_weeks`

func scanChallenge(row scanner) (model.Challenge, error) {
	var (
		c          model.Challenge
		start, end string
	)
	if err := row.Scan(&c.ID, &c.Name, &start, &end, &c.RuleSet, &c.ByeWeeks); err != nil {
		return model.Challenge{}, err
	}
	var err error
	if c.Start, err = parseDate(start); err != nil {
		return model.Challenge{}, err
	}
	if c.End, err = parseDate(end); err != nil {
		return model.Challenge{}, err
	}
	return c, nil
}

func (s *SQLStore) CreateChallenge(ctx context.Context, c model.Challenge) (model.Challenge, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO challenges (name, start_date, end_date, rule_set, bye_weeks) VALUES (?, ?, ?, ?, ?)`,
		c.Name, formatDate(c.Start), formatDate(c.End), c.RuleSet, c.ByeWeeks,
	)
	if err != nil {
		return model.Challenge{}, fmt.Errorf("insert challenge: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return model.Challenge{}, fmt.Errorf("last insert id: %w", err)
	}
	return s.Challenge(ctx, c.ID)
}

func (s *SQLStore) Challenge(ctx context.Context, id int64) (model.Challenge, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+challengeCols+` FROM challenges WHERE id = ?`, id)
	c, err := scanChallenge(row)
	if err != nil {
		return model.Challenge{}, notFound(err, fmt.Sprintf("challenge %d", id))
	}
	return c, nil
}

// ----- weeks -----

const weekCols = `id, challenge_id, start_date, end_date, week_of_year, green, bye_week`

func scanWeek(row scanner) (model.ChallengeWeek, error) {
	var (
		w          model.ChallengeWeek
		start, end string
		green      sql.NullBool
		bye        int
	)
	if err := row.Scan(&w.ID, &w.ChallengeID, &start, &end, &w.WeekOfYear, &green, &bye); err != nil {
		return model.ChallengeWeek{}, err
	}
	var err error
	if w.Start, err = parseDate(start); err != nil {
		return model.ChallengeWeek{}, err
	}
	if w.End, err = parseDate(end); err != nil {
		return model.ChallengeWeek{}, err
	}
	if green.Valid {
		w.Green = &green.Bool
	}
	w.ByeWeek = bye != 0
	return w, nil
}

func (s *SQLStore) queryWeeks(ctx context.Context, query string, args ...any) ([]model.ChallengeWeek, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	defer rows.Close()

	var weeks []model.ChallengeWeek
	for rows.Next() {
		w, err := scanWeek(rows)
		if err != nil {
			return nil, fmt.Errorf("scan week: %w", err)
		}
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}

func (s *SQLStore) CreateWeek(ctx context.Context, w model.ChallengeWeek) (model.ChallengeWeek, error) {
	var green sql.NullBool
	if w.Green != nil {
		green = sql.NullBool{Bool: *w.Green, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO challenge_weeks (challenge_id, start_date, end_date, week_of_year, green, bye_week) VALUES (?, ?, ?, ?, ?, ?)`,
		w.ChallengeID, formatDate(w.Start), formatDate(w.End), w.WeekOfYear, green, boolInt(w.ByeWeek),
	)
	if err != nil {
		return model.ChallengeWeek{}, fmt.Errorf("insert week: %w", err)
	}
	if w.ID, err = res.LastInsertId(); err != nil {
		return model.ChallengeWeek{}, fmt.Errorf("last insert id: %w", err)
	}
	return s.Week(ctx, w.ID)
}

func (s *SQLStore) Week(ctx context.Context, id int64) (model.ChallengeWeek, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+weekCols+` FROM challenge_weeks WHERE id = ?`, id)
	w, err := scanWeek(row)
	if err != nil {
		return model.ChallengeWeek{}, notFound(err, fmt.Sprintf("week %d", id))
	}
	return w, nil
}

func (s *SQLStore) Weeks(ctx context.Context, challengeID int64) ([]model.ChallengeWeek, error) {
	return s.queryWeeks(ctx,
		`SELECT `+weekCols+` FROM challenge_weeks WHERE challenge_id = ? ORDER BY start_date, id`,
		challengeID,
	)
}

func (s *SQLStore) WeeksOn(ctx context.Context, date time.Time) ([]model.ChallengeWeek, error) {
	d := formatDate(date)
	return s.queryWeeks(ctx,
		`SELECT `+weekCols+` FROM challenge_weeks WHERE start_date <= ? AND end_date >= ? ORDER BY challenge_id, id`,
		d, d,
	)
}

func (s *SQLStore) WeekForChallenger(ctx context.Context, challengerID int64, date time.Time) (model.ChallengeWeek, error) {
	d := formatDate(date)
	row := s.db.QueryRowContext(ctx,
		`SELECT w.id, w.challenge_id, w.start_date, w.end_date, w.week_of_year, w.green, w.bye_week
		 FROM challenge_weeks w
		 JOIN enrollments e ON e.challenge_id = w.challenge_id
		 WHERE e.challenger_id = ? AND w.start_date <= ? AND w.end_date >= ?
		 ORDER BY w.start_date DESC, w.id DESC
		 LIMIT 1`,
		challengerID, d, d,
	)
	w, err := scanWeek(row)
	if err != nil {
		return model.ChallengeWeek{}, notFound(err, fmt.Sprintf("week on %s for challenger %d", d, challengerID))
	}
	return w, nil
}

func (s *SQLStore) SetGreenIfUnset(ctx context.Context, weekID int64, green bool) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE challenge_weeks SET green = ? WHERE id = ? AND green IS NULL`,
		boolInt(green), weekID,
	)
	if err != nil {
		return false, fmt.Errorf("set green: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) CountWeeksSinceGreen(ctx context.Context, challengeID int64, asOf time.Time) (int, error) {
	cutoff := formatDate(asOf.AddDate(0, 0, -model.DaysPerWeek))
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM challenge_weeks
		 WHERE challenge_id = ? AND end_date <= ?
		   AND end_date >= COALESCE((
		       SELECT MAX(end_date) FROM challenge_weeks
		       WHERE challenge_id = ? AND end_date <= ? AND green = 1
		   ), '')`,
		challengeID, cutoff, challengeID, cutoff,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count weeks since green: %w", err)
	}
	return n, nil
}

// ----- challengers and enrollments -----

func (s *SQLStore) CreateChallenger(ctx context.Context, c model.Challenger) (model.Challenger, error) {
	if c.TZ == "" {
		c.TZ = "UTC"
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO challengers (name, tz) VALUES (?, ?)`, c.Name, c.TZ)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Challenger{}, fmt.Errorf("challenger %q: %w", c.Name, ErrDuplicate)
		}
		return model.Challenger{}, fmt.Errorf("insert challenger: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return model.Challenger{}, fmt.Errorf("last insert id: %w", err)
	}
	return c, nil
}

func (s *SQLStore) ChallengerByName(ctx context.Context, name string) (model.Challenger, error) {
	var c model.Challenger
	err := s.db.QueryRowContext(ctx, `SELECT id, name, tz FROM challengers WHERE name = ?`, name).
		Scan(&c.ID, &c.Name, &c.TZ)
	if err != nil {
		return model.Challenger{}, notFound(err, fmt.Sprintf("challenger %q", name))
	}
	return c, nil
}

func (s *SQLStore) Enroll(ctx context.Context, e model.Enrollment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (challenge_id, challenger_id, knocked_out, ante, tier) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (challenge_id, challenger_id) DO UPDATE SET
		   knocked_out = excluded.knocked_out, ante = excluded.ante, tier = excluded.tier`,
		e.ChallengeID, e.Challenger.ID, boolInt(e.KnockedOut), e.Ante, e.Tier,
	)
	if err != nil {
		return fmt.Errorf("enroll challenger %d: %w", e.Challenger.ID, err)
	}
	return nil
}

func (s *SQLStore) Enrollments(ctx context.Context, challengeID int64) ([]model.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.challenge_id, p.id, p.name, p.tz, e.knocked_out, e.ante, e.tier, e.mulligan_checkin_id
		 FROM enrollments e
		 JOIN challengers p ON p.id = e.challenger_id
		 WHERE e.challenge_id = ?
		 ORDER BY p.name`,
		challengeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []model.Enrollment
	for rows.Next() {
		var (
			e        model.Enrollment
			knocked  int
			mulligan sql.NullInt64
		)
		if err := rows.Scan(&e.ChallengeID, &e.Challenger.ID, &e.Challenger.Name, &e.Challenger.TZ,
			&knocked, &e.Ante, &e.Tier, &mulligan); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		e.KnockedOut = knocked != 0
		if mulligan.Valid {
			e.MulliganID = &mulligan.Int64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ----- check-ins -----

const checkinSelect = `SELECT c.id, c.challenger_id, p.name, p.tz, c.at, c.day, c.tier, c.week_id, c.note, w.bye_week
	FROM checkins c
	JOIN challengers p ON p.id = c.challenger_id
	JOIN challenge_weeks w ON w.id = c.week_id`

func scanCheckin(row scanner) (model.Checkin, error) {
	var (
		c      model.Checkin
		tz, at string
		bye    int
	)
	if err := row.Scan(&c.ID, &c.ChallengerID, &c.Name, &tz, &at, &c.Day, &c.Tier, &c.WeekID, &c.Note, &bye); err != nil {
		return model.Checkin{}, err
	}
	t, err := time.Parse(timeLayout, at)
	if err != nil {
		return model.Checkin{}, fmt.Errorf("parse time %q: %w", at, err)
	}
	c.Time = t.In(model.Challenger{TZ: tz}.Location())
	c.ByeWeek = bye != 0
	return c, nil
}

func (s *SQLStore) queryCheckins(ctx context.Context, query string, args ...any) ([]model.Checkin, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkins: %w", err)
	}
	defer rows.Close()

	var out []model.Checkin
	for rows.Next() {
		c, err := scanCheckin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) CheckinsForWeek(ctx context.Context, weekID int64) ([]model.Checkin, error) {
	return s.queryCheckins(ctx,
		checkinSelect+` WHERE c.week_id = ? ORDER BY c.day, c.tier_num DESC, c.at DESC, c.id`,
		weekID,
	)
}

func (s *SQLStore) CheckinsForChallenge(ctx context.Context, challengeID int64) ([]model.Checkin, error) {
	return s.queryCheckins(ctx,
		checkinSelect+` WHERE w.challenge_id = ? ORDER BY c.week_id, c.at, c.id`,
		challengeID,
	)
}

func (s *SQLStore) LatestCheckinTime(ctx context.Context) (time.Time, error) {
	var at sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(at) FROM checkins`).Scan(&at); err != nil {
		return time.Time{}, fmt.Errorf("latest checkin: %w", err)
	}
	if !at.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, at.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", at.String, err)
	}
	return t, nil
}

func insertCheckin(ctx context.Context, db execer, c model.Checkin) (model.Checkin, error) {
	tier, err := scoring.ParseTier(c.Tier)
	if err != nil {
		return model.Checkin{}, err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO checkins (challenger_id, week_id, at, day, tier, tier_num, note) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ChallengerID, c.WeekID, formatTime(c.Time), int(c.Day), tier.String(), tier.Numeral(), c.Note,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Checkin{}, fmt.Errorf("checkin for challenger %d at %s: %w", c.ChallengerID, formatTime(c.Time), ErrDuplicate)
		}
		return model.Checkin{}, fmt.Errorf("insert checkin: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return model.Checkin{}, fmt.Errorf("last insert id: %w", err)
	}
	return c, nil
}

func (s *SQLStore) InsertCheckin(ctx context.Context, c model.Checkin) (model.Checkin, error) {
	return insertCheckin(ctx, s.db, c)
}

func (s *SQLStore) ApplyMulligan(ctx context.Context, challengeID int64, c model.Checkin) (model.Checkin, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Checkin{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var used sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT mulligan_checkin_id FROM enrollments WHERE challenge_id = ? AND challenger_id = ?`,
		challengeID, c.ChallengerID,
	).Scan(&used)
	if err != nil {
		return model.Checkin{}, notFound(err, fmt.Sprintf("enrollment of challenger %d in challenge %d", c.ChallengerID, challengeID))
	}
	if used.Valid {
		return model.Checkin{}, fmt.Errorf("challenger %d in challenge %d: %w", c.ChallengerID, challengeID, ErrMulliganUsed)
	}

	c, err = insertCheckin(ctx, tx, c)
	if err != nil {
		return model.Checkin{}, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE enrollments SET mulligan_checkin_id = ?
		 WHERE challenge_id = ? AND challenger_id = ? AND mulligan_checkin_id IS NULL`,
		c.ID, challengeID, c.ChallengerID,
	)
	if err != nil {
		return model.Checkin{}, fmt.Errorf("record mulligan: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.Checkin{}, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return model.Checkin{}, fmt.Errorf("challenger %d in challenge %d: %w", c.ChallengerID, challengeID, ErrMulliganUsed)
	}

	if err := tx.Commit(); err != nil {
		return model.Checkin{}, fmt.Errorf("commit mulligan: %w", err)
	}
	return c, nil
}
