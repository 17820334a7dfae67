package command

import (
	"context"
	"time"
)

// DefaultTickRate is the room simulation's fixed tick rate, per spec.md §4.6.
const DefaultTickRate = 20

// DefaultMaxCatchUpSteps bounds how many ticks SimLoop will run back-to-back
// to absorb a scheduling stall, after which it drops the remaining backlog
// rather than spiraling: a room that fell behind should resume at the
// normal rate, not replay lost wall-clock time at turbo speed.
const DefaultMaxCatchUpSteps = 5

// TickFunc runs one simulation tick. dt is always 1/tickRate seconds,
// regardless of actual wall-clock drift — the fixed-timestep contract
// spec.md §4.6 requires for deterministic replay.
type TickFunc func(tick int, dt float64) error

// SimLoop runs TickFunc at a fixed rate with bounded catch-up, generalizing
// the teacher's Server.Run frame-timing loop (internal/loop/server/server.go)
// from a single global accumulator to an explicit, injectable clock so
// tests can drive it without sleeping.
type SimLoop struct {
	dt           time.Duration
	maxCatchUp   int
	onTick       TickFunc
	now          func() time.Time
	sleep        func(time.Duration)
	tick         int
	accumulator  time.Duration
}

// NewSimLoop constructs a loop ticking at tickRate Hz.
func NewSimLoop(tickRate int, onTick TickFunc) *SimLoop {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	return &SimLoop{
		dt:         time.Second / time.Duration(tickRate),
		maxCatchUp: DefaultMaxCatchUpSteps,
		onTick:     onTick,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Tick returns the number of ticks run so far.
func (l *SimLoop) Tick() int { return l.tick }

// Run blocks, advancing the sim at a fixed timestep with bounded catch-up,
// until ctx is cancelled or onTick returns an error.
func (l *SimLoop) Run(ctx context.Context) error {
	last := l.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		current := l.now()
		l.accumulator += current.Sub(last)
		last = current

		steps := 0
		for l.accumulator >= l.dt && steps < l.maxCatchUp {
			l.tick++
			if err := l.onTick(l.tick, l.dt.Seconds()); err != nil {
				return err
			}
			l.accumulator -= l.dt
			steps++
		}
		if steps == l.maxCatchUp {
			l.accumulator = 0
		}

		elapsed := l.now().Sub(last)
		if sleepFor := l.dt - elapsed; sleepFor > 0 {
			l.sleep(sleepFor)
		}
	}
}
