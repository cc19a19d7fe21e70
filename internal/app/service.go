// Package service provides the application service that ties the challenge
// store to the scoring domain and implements the dependencies required by
// the HTTP API and the scheduler.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tierboard/internal/adapters/mq/queue"
	"github.com/okian/tierboard/internal/adapters/mq/worker"
	"github.com/okian/tierboard/internal/adapters/repository"
	"github.com/okian/tierboard/internal/domain/dedupe"
	"github.com/okian/tierboard/internal/domain/green"
	"github.com/okian/tierboard/internal/domain/model"
	"github.com/okian/tierboard/pkg/logger"
)

// DefaultQueueSize bounds the inbound message queue.
const DefaultQueueSize = 10000

// Service implements the API dependencies for the challenge board.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	decider *green.Decider
	queue   *queue.InMemoryQueue
	pool    *worker.Pool

	// Configuration
	dbPath     string
	dedupeSize int
	greenStep  int
	workers    int
	queueSize  int
	loc        *time.Location
	now        func() time.Time

	// State
	started       bool
	ownsStore     bool
	cancelWorkers context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects an already opened store. The service does not close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDBPath sets the SQLite path opened on Start when no store is injected.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithDedupeSize sets the size of the check-in idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithGreenStep sets the percentage points added per non-green week.
func WithGreenStep(step int) Option {
	return func(s *Service) {
		if step > 0 {
			s.greenStep = step
		}
	}
}

// WithDecider injects a green decider, mostly for tests.
func WithDecider(d *green.Decider) Option {
	return func(s *Service) {
		if d != nil {
			s.decider = d
		}
	}
}

// WithLocation sets the zone that decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWorkerCount sets how many workers record inbound messages.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		s.workers = n
	}
}

// WithQueueSize bounds the inbound message queue.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:     repository.MemoryPath,
		dedupeSize: dedupe.DefaultMaxSize,
		greenStep:  green.DefaultStep,
		queueSize:  DefaultQueueSize,
		loc:        time.UTC,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store unless one was injected and builds the in-memory
// components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting challenge service...")

	if s.store == nil {
		store, err := repository.Open(ctx, s.dbPath)
		if err != nil {
			return fmt.Errorf("open store %s: %w", s.dbPath, err)
		}
		s.store = store
		s.ownsStore = true
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.dbPath))
	}

	if s.deduper == nil {
		d, err := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
		if err != nil {
			return fmt.Errorf("create deduper: %w", err)
		}
		s.deduper = d
	}
	if s.decider == nil {
		s.decider = green.NewDecider(green.WithStep(s.greenStep))
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workers, s.queue, s)
	workerCtx, cancel := context.WithCancel(context.Background())
	s.cancelWorkers = cancel
	s.pool.Start(workerCtx)

	s.started = true
	s.logger.Info(ctx, "challenge service started",
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("greenStep", s.greenStep),
		logger.String("timezone", s.loc.String()),
	)
	return nil
}

// Stop drains the inbound queue, then releases the store if the service
// opened it.
func (s *Service) Stop() {
	s.mu.RLock()
	started, pool, cancel := s.started, s.pool, s.cancelWorkers
	s.mu.RUnlock()
	if !started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping challenge service...")

	// Workers record through the service, so drain before taking the lock.
	if pool != nil {
		if err := pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	}
	if cancel != nil {
		cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if s.ownsStore {
		if closer, ok := s.store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
		s.store = nil
		s.ownsStore = false
	}
	s.queue, s.pool, s.cancelWorkers = nil, nil, nil

	s.started = false
	s.logger.Info(ctx, "challenge service stopped")
}

// Ready reports whether the service can serve requests.
func (s *Service) Ready(ctx context.Context) error {
	store, err := s.deps()
	if err != nil {
		return err
	}
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue hands an inbound message to the workers. It returns false when
// the service is stopped or the queue is full.
func (s *Service) Enqueue(ctx context.Context, m model.Message) bool {
	s.mu.RLock()
	q := s.queue
	s.mu.RUnlock()
	if q == nil {
		return false
	}
	return q.Enqueue(ctx, m)
}

// SeenAndRecord reports whether key was seen before and records it.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	s.mu.RLock()
	d := s.deduper
	s.mu.RUnlock()
	if d == nil {
		return false
	}
	return d.SeenAndRecord(ctx, key)
}

// Unrecord forgets key.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.mu.RLock()
	d := s.deduper
	s.mu.RUnlock()
	if d != nil {
		d.Unrecord(ctx, key)
	}
}

// GetStats returns runtime counters for the stats endpoint.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	started := s.started
	queueLength, workerCount := 0, 0
	if s.queue != nil {
		queueLength = s.queue.Len(context.Background())
		workerCount = s.pool.Size()
	}
	s.mu.RUnlock()
	return map[string]any{
		"started":      started,
		"queue_length": queueLength,
		"worker_count": workerCount,
		"dedupe_size":  s.Size(),
		"green_step":   s.greenStep,
		"timezone":     s.loc.String(),
		"now":          s.today().Format(time.RFC3339),
	}
}

// deps returns the store once the service is started.
func (s *Service) deps() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// today is the current instant in the service's zone.
func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}
