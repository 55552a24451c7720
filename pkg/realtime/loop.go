package realtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// DefaultTickRate is the number of loop steps per second (50ms resolution).
const DefaultTickRate = 20

var (
	// ErrLoopStopped is returned when work is handed to a loop that has exited.
	ErrLoopStopped = eris.New("loop stopped")
	// ErrInboxFull is returned when the loop cannot accept more work right now.
	ErrInboxFull = eris.New("loop inbox full")
)

// StepFunc advances the owned state by one tick at now.
type StepFunc func(now time.Time)

// Loop owns a single goroutine on which all state mutation happens. Ticks and
// externally submitted work are processed one at a time, in arrival order, so
// the state behind StepFunc needs no locking.
type Loop struct {
	step     StepFunc
	inbox    chan func()
	tick     <-chan time.Time
	tickDone chan<- uint64
	interval time.Duration
	log      zerolog.Logger

	ticks   atomic.Uint64
	running atomic.Bool
	done    chan struct{}
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithTickChannel sets the channel that drives steps. If unset, a ticker at the
// configured rate is used. Tests pass a channel they control for fine-grained
// control over when steps run.
func WithTickChannel(ch <-chan time.Time) LoopOption {
	return func(l *Loop) {
		l.tick = ch
	}
}

// WithTickDoneChannel sets a channel notified with the tick number after every
// completed step.
func WithTickDoneChannel(ch chan<- uint64) LoopOption {
	return func(l *Loop) {
		l.tickDone = ch
	}
}

// WithTickRate sets the ticker frequency in steps per second.
func WithTickRate(hz int) LoopOption {
	return func(l *Loop) {
		if hz > 0 {
			l.interval = time.Second / time.Duration(hz)
		}
	}
}

// WithInboxSize sets how many submitted calls may be queued between steps.
func WithInboxSize(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.inbox = make(chan func(), n)
		}
	}
}

// WithLogger sets the loop's logger.
func WithLogger(logger zerolog.Logger) LoopOption {
	return func(l *Loop) {
		l.log = logger
	}
}

// NewLoop creates a loop that calls step on every tick.
func NewLoop(step StepFunc, opts ...LoopOption) *Loop {
	l := &Loop{
		step:     step,
		inbox:    make(chan func(), 256),
		interval: time.Second / DefaultTickRate,
		log:      zerolog.Nop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run processes ticks and submitted work until ctx is cancelled. It blocks.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return eris.New("loop already running")
	}
	defer close(l.done)

	tick := l.tick
	if tick == nil {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	l.log.Info().Dur("interval", l.interval).Msg("tick loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Uint64("ticks", l.ticks.Load()).Msg("tick loop stopped")
			return nil
		case fn := <-l.inbox:
			l.invoke(fn)
		case now, ok := <-tick:
			if !ok {
				return eris.New("tick channel closed")
			}
			l.stepOnce(now)
		}
	}
}

// Ticks returns the number of completed steps.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Submit queues fn to run on the loop goroutine without waiting for it.
func (l *Loop) Submit(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}
	select {
	case l.inbox <- fn:
		return nil
	default:
		return ErrInboxFull
	}
}

// Do runs fn on the loop goroutine and waits until it has returned.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	err := l.Submit(func() {
		defer close(finished)
		fn()
	})
	if err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
		}
		return ErrLoopStopped
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "waiting for tick loop")
	}
}

func (l *Loop) stepOnce(now time.Time) {
	n := l.ticks.Add(1)
	l.runStep(n, now)
	if l.tickDone != nil {
		l.tickDone <- n
	}
}

// runStep contains a panicking step so the next tick still runs.
func (l *Loop) runStep(n uint64, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Uint64("tick", n).Interface("panic", r).Msg("step panicked")
		}
	}()
	l.step(now)
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("submitted call panicked")
		}
	}()
	fn()
}
