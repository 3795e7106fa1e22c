// Package scheduler runs a cycle function at a fixed cadence. The interval is
// both the polling period and the retry backoff: a failed cycle is not
// retried early.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Clock abstracts time so tests can drive cycles without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time                         { return time.Now() }
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// CycleFunc is one pass of a loop. Returned errors are logged, never fatal.
type CycleFunc func(ctx context.Context) error

// Loop describes a periodic task.
type Loop struct {
	Name     string
	Interval time.Duration
	Clock    Clock
	Cycle    CycleFunc
	// OnCycle, when set, observes every finished cycle.
	OnCycle func(name string, took time.Duration, err error)
}

// Run executes the cycle immediately and then after every interval until ctx
// is cancelled. Panics inside a cycle are recovered and reported as errors.
func (l *Loop) Run(ctx context.Context) {
	clock := l.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	log.Info().Str("loop", l.Name).Dur("interval", l.Interval).Msg("Loop started")

	for {
		if ctx.Err() != nil {
			log.Info().Str("loop", l.Name).Msg("Loop stopped")
			return
		}

		l.runOnce(ctx, clock)

		select {
		case <-ctx.Done():
			log.Info().Str("loop", l.Name).Msg("Loop stopped")
			return
		case <-clock.After(l.Interval):
		}
	}
}

func (l *Loop) runOnce(ctx context.Context, clock Clock) {
	cycleID := uuid.NewString()
	start := clock.Now()

	err := l.safeCycle(ctx)
	took := clock.Now().Sub(start)

	if err != nil {
		log.Error().Err(err).Str("loop", l.Name).Str("cycle", cycleID).Msg("Loop cycle failed")
	} else {
		log.Debug().Str("loop", l.Name).Str("cycle", cycleID).Dur("took", took).Msg("Loop cycle finished")
	}

	if l.OnCycle != nil {
		l.OnCycle(l.Name, took, err)
	}
}

func (l *Loop) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s cycle: %v\n%s", l.Name, r, debug.Stack())
		}
	}()
	return l.Cycle(ctx)
}
