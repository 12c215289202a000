// Package refresh recomputes the live code and countdown of every
// credential once per second.
//
// Countdowns are derived from wall-clock time on every tick, never from a
// decrementing counter, so records sharing a period stay in step and no
// drift accumulates.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/zarlcorp/zotp/internal/credential"
	"github.com/zarlcorp/zotp/internal/secret"
)

// Interval is the scheduler cadence.
const Interval = time.Second

// Countdown returns the seconds left in the current window of period at
// now, in [1, period].
func Countdown(period int, now time.Time) int {
	if period <= 0 {
		period = credential.DefaultPeriod
	}
	return period - int(now.Unix()%int64(period))
}

// Refresh recomputes Token and UpdatingIn for every record in s. A failing
// record gets a sentinel token and does not affect the others.
func Refresh(s *credential.Store, gen Generator, now time.Time, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}

	for i, c := range s.Records() {
		period := c.EffectivePeriod()

		sec := secret.Normalize(c.Secret)
		if sec == "" {
			s.SetDerived(i, credential.TokenInvalidSecret, period)
			continue
		}

		digits := c.EffectiveDigits()
		code, err := gen.Generate(sec, c.EffectiveAlgorithm(), digits, period, now)
		if err != nil {
			log.Warn("refresh: generate code", "name", c.Name, "secret", c.Secret, "err", err)
			s.SetDerived(i, credential.TokenGenerationErr, period)
			continue
		}

		s.SetDerived(i, Fit(code, digits), Countdown(period, now))
	}
}

// Clock returns the current time.
type Clock func() time.Time

// Scheduler calls a tick function immediately and then once per Interval.
type Scheduler struct {
	interval time.Duration
	clock    Clock
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source passed to each tick.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithInterval overrides the tick cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// NewScheduler creates a scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{interval: Interval, clock: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run calls fn once right away and then on every tick until ctx is done.
// All calls happen on the calling goroutine. The ticker is stopped before
// Run returns.
func (s *Scheduler) Run(ctx context.Context, fn func(now time.Time)) error {
	fn(s.clock())

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			fn(s.clock())
		}
	}
}
