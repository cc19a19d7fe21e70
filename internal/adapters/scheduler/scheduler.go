// Package scheduler runs the periodic challenge jobs: the daily green-week
// roll and the weekly mulligan grant.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/okian/tierboard/internal/domain/model"
	"github.com/okian/tierboard/pkg/logger"
	"github.com/okian/tierboard/pkg/metrics"
)

const defaultInterval = 60 * time.Second

// Job is a unit of periodic work. A job runs at most once per local calendar
// day, on the first tick at which Due reports true.
type Job struct {
	Name string
	Due  func(now time.Time) bool
	Run  func(ctx context.Context) error
}

// Daily is due every day from hour on.
func Daily(name string, hour int, run func(ctx context.Context) error) Job {
	return Job{
		Name: name,
		Due:  func(now time.Time) bool { return now.Hour() >= hour },
		Run:  run,
	}
}

// Weekly is due on day from hour on.
func Weekly(name string, day model.Weekday, hour int, run func(ctx context.Context) error) Job {
	return Job{
		Name: name,
		Due:  func(now time.Time) bool { return model.WeekdayOf(now) == day && now.Hour() >= hour },
		Run:  run,
	}
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithInterval sets how often due jobs are checked.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLocation sets the zone used to decide calendar days and hours.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithJob registers a job.
func WithJob(j Job) Option {
	return func(s *Scheduler) {
		if j.Run != nil && j.Due != nil {
			s.jobs = append(s.jobs, j)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler periodically runs due jobs.
type Scheduler struct {
	mu       sync.Mutex
	jobs     []Job
	lastRun  map[string]string // job name -> local date of last run
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
	logger   logger.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		lastRun:  make(map[string]string),
		interval: defaultInterval,
		loc:      time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	return s
}

// Start begins the scheduler loop. Due jobs are also checked immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunDue(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunDue(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunDue runs every job that is due and has not run today. It returns the
// names of the jobs it ran.
func (s *Scheduler) RunDue(ctx context.Context) []string {
	now := s.now().In(s.loc)
	today := now.Format(model.DateLayout)

	var ran []string
	for _, j := range s.jobs {
		if ctx.Err() != nil {
			return ran
		}
		s.mu.Lock()
		already := s.lastRun[j.Name] == today
		s.mu.Unlock()
		if already || !j.Due(now) {
			continue
		}

		metrics.RecordJobRun(j.Name)
		if err := j.Run(ctx); err != nil {
			// Not marked as run, so the next tick retries.
			metrics.RecordJobError(j.Name)
			s.logger.Error(ctx, "scheduled job failed", logger.String("job", j.Name), logger.Error(err))
			continue
		}

		s.mu.Lock()
		s.lastRun[j.Name] = today
		s.mu.Unlock()
		s.logger.Info(ctx, "scheduled job done", logger.String("job", j.Name), logger.String("date", today))
		ran = append(ran, j.Name)
	}
	return ran
}
