// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/tierboard/internal/domain/green"
	"github.com/okian/tierboard/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, also writes logs to a size-rotated file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file; ":memory:" for a throwaway store.
	DBPath string `koanf:"db_path"`

	// Timezone decides what "today" is for the scheduled jobs.
	Timezone string `koanf:"timezone"`

	// DedupeSize sets the size of the check-in idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// GreenStep is the percentage-point chance added per non-green week.
	GreenStep int `koanf:"green_step"`

	// GreenHour is the local hour the daily green decision runs.
	GreenHour int `koanf:"green_hour"`

	// MulliganWeekday is the day mulligans for the previous week are granted.
	MulliganWeekday string `koanf:"mulligan_weekday"`

	// SchedulerIntervalSec is how often the scheduler checks for due jobs.
	SchedulerIntervalSec int `koanf:"scheduler_interval_sec"`

	// CheckinRatePerMinute limits POST /checkins and /messages per client;
	// 0 disables.
	CheckinRatePerMinute int `koanf:"checkin_rate_per_minute"`

	// WorkerCount sets how many workers record queued messages; 0 means
	// one per CPU.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the inbound message queue.
	QueueSize int `koanf:"queue_size"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		DBPath:               "tierboard.db",
		Timezone:             "America/New_York",
		DedupeSize:           50_000,
		GreenStep:            green.DefaultStep,
		GreenHour:            6,
		MulliganWeekday:      "Monday",
		SchedulerIntervalSec: 60,
		CheckinRatePerMinute: 30,
		WorkerCount:          0,
		QueueSize:            10_000,
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	case c.DBPath == "":
		return fmt.Errorf("db_path must not be empty: %w", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("dedupe_size must be positive: %w", ErrInvalidConfig)
	case c.GreenStep < 1 || c.GreenStep > 100:
		return fmt.Errorf("green_step %d out of range 1..100: %w", c.GreenStep, ErrInvalidConfig)
	case c.GreenHour < 0 || c.GreenHour > 23:
		return fmt.Errorf("green_hour %d out of range 0..23: %w", c.GreenHour, ErrInvalidConfig)
	case c.SchedulerIntervalSec <= 0:
		return fmt.Errorf("scheduler_interval_sec must be positive: %w", ErrInvalidConfig)
	case c.CheckinRatePerMinute < 0:
		return fmt.Errorf("checkin_rate_per_minute must not be negative: %w", ErrInvalidConfig)
	case c.WorkerCount < 0:
		return fmt.Errorf("worker_count must not be negative: %w", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("queue_size must be positive: %w", ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, ErrInvalidConfig)
	}
	if _, err := model.ParseWeekday(c.MulliganWeekday); err != nil {
		return fmt.Errorf("mulligan_weekday: %w: %w", err, ErrInvalidConfig)
	}
	return nil
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MulliganDay resolves MulliganWeekday, falling back to Monday.
func (c *Config) MulliganDay() model.Weekday {
	d, err := model.ParseWeekday(c.MulliganWeekday)
	if err != nil {
		return model.Monday
	}
	return d
}

// SchedulerInterval is SchedulerIntervalSec as a duration.
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.SchedulerIntervalSec) * time.Second
}
