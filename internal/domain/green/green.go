// Package green decides whether a challenge week becomes a bonus ("green")
// week. The chance grows with every week that passed without one.
package green

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultStep is the percentage points added per non-green week.
const DefaultStep = 20

// rollSpan covers 0..100 inclusive.
const rollSpan = 101

// Roller draws a uniform integer in [0, n).
type Roller interface {
	Intn(n int) int
}

// Option applies a configuration option to the Decider.
type Option func(*Decider)

// WithStep sets the percentage points added per non-green week.
func WithStep(step int) Option {
	return func(d *Decider) {
		if step > 0 {
			d.step = step
		}
	}
}

// WithRoller replaces the random source, mostly for tests.
func WithRoller(r Roller) Option {
	return func(d *Decider) {
		if r != nil {
			d.rng = r
		}
	}
}

// Decider rolls the green decision. Safe for concurrent use.
type Decider struct {
	mu   sync.Mutex
	rng  Roller
	step int
}

// NewDecider creates a decider seeded from the clock.
func NewDecider(opts ...Option) *Decider {
	d := &Decider{
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // not security sensitive
		step: DefaultStep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Threshold is the roll a week must stay under to turn green.
func (d *Decider) Threshold(nonGreenWeeks int) int {
	if nonGreenWeeks < 0 {
		return 0
	}
	return d.step * nonGreenWeeks
}

// Probability is the chance of a green week after nonGreenWeeks plain weeks.
func (d *Decider) Probability(nonGreenWeeks int) float64 {
	t := min(d.Threshold(nonGreenWeeks), rollSpan)
	return float64(t) / rollSpan
}

// Decide rolls 0..100 and reports green when the roll is under the threshold.
func (d *Decider) Decide(nonGreenWeeks int) bool {
	d.mu.Lock()
	roll := d.rng.Intn(rollSpan)
	d.mu.Unlock()
	return roll < d.Threshold(nonGreenWeeks)
}
