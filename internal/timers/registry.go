// Package timers is a registry of named, cancelable timers measured in ticks.
//
// The registry is not safe for concurrent use. It is owned by a single tick
// goroutine which calls Advance once per step; callbacks run on that goroutine
// and may schedule or cancel other timers, including themselves.
package timers

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Key names a timer. Timers that exist once per participant share a Name and
// differ by Subject.
type Key struct {
	Name    string
	Subject string
}

// Named returns the key of a singleton timer.
func Named(name string) Key {
	return Key{Name: name}
}

// For returns the key of the per-subject timer name.
func For(name, subject string) Key {
	return Key{Name: name, Subject: subject}
}

func (k Key) String() string {
	if k.Subject == "" {
		return k.Name
	}
	return k.Name + "[" + k.Subject + "]"
}

// Func is a timer callback. now is the instant of the tick that fired it.
type Func func(now time.Time)

type timer struct {
	key    Key
	due    uint64
	period uint64
	seq    uint64
	fn     Func
}

// Registry owns every scheduled timer.
type Registry struct {
	tick   uint64
	seq    uint64
	timers map[Key]*timer
	log    zerolog.Logger
}

// New creates an empty registry at tick 0.
func New(logger zerolog.Logger) *Registry {
	return &Registry{
		timers: make(map[Key]*timer),
		log:    logger.With().Str("component", "timers").Logger(),
	}
}

// Tick returns the number of ticks advanced so far.
func (r *Registry) Tick() uint64 {
	return r.tick
}

// After schedules fn to run once, delay ticks from now. A live timer with the
// same key is replaced.
func (r *Registry) After(key Key, delay uint64, fn Func) {
	r.schedule(key, delay, 0, fn)
}

// Every schedules fn to run after initial ticks and then every period ticks
// until cancelled. A live timer with the same key is replaced.
func (r *Registry) Every(key Key, initial, period uint64, fn Func) {
	if period == 0 {
		period = 1
	}
	r.schedule(key, initial, period, fn)
}

func (r *Registry) schedule(key Key, delay, period uint64, fn Func) {
	r.seq++
	r.timers[key] = &timer{
		key:    key,
		due:    r.tick + delay,
		period: period,
		seq:    r.seq,
		fn:     fn,
	}
	r.log.Debug().Stringer("timer", key).Uint64("due", r.tick+delay).Uint64("period", period).Msg("scheduled")
}

// Cancel removes the timer. It reports whether a live timer was removed;
// cancelling an absent timer is a no-op.
func (r *Registry) Cancel(key Key) bool {
	if _, ok := r.timers[key]; !ok {
		return false
	}
	delete(r.timers, key)
	r.log.Debug().Stringer("timer", key).Msg("cancelled")
	return true
}

// CancelName removes every timer with the given name and returns how many
// were live.
func (r *Registry) CancelName(name string) int {
	n := 0
	for key := range r.timers {
		if key.Name == name {
			delete(r.timers, key)
			n++
		}
	}
	return n
}

// CancelAll removes every timer and returns how many were live.
func (r *Registry) CancelAll() int {
	n := len(r.timers)
	r.timers = make(map[Key]*timer)
	return n
}

// Live reports whether the timer is scheduled.
func (r *Registry) Live(key Key) bool {
	_, ok := r.timers[key]
	return ok
}

// LiveNamed counts the scheduled timers with the given name.
func (r *Registry) LiveNamed(name string) int {
	n := 0
	for key := range r.timers {
		if key.Name == name {
			n++
		}
	}
	return n
}

// Len returns the number of scheduled timers.
func (r *Registry) Len() int {
	return len(r.timers)
}

// Remaining returns the ticks left before the timer next fires.
func (r *Registry) Remaining(key Key) (uint64, bool) {
	t, ok := r.timers[key]
	if !ok {
		return 0, false
	}
	if t.due <= r.tick {
		return 0, true
	}
	return t.due - r.tick, true
}

// Advance moves the registry one tick forward and runs every timer that is
// due, ordered by due tick and then by scheduling order. A timer cancelled or
// replaced by an earlier callback in the same tick does not run. It returns
// the number of callbacks run.
func (r *Registry) Advance(now time.Time) int {
	r.tick++
	due := make([]*timer, 0, 4)
	for _, t := range r.timers {
		if t.due <= r.tick {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return 0
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due == due[j].due {
			return due[i].seq < due[j].seq
		}
		return due[i].due < due[j].due
	})

	fired := 0
	for _, t := range due {
		if current, ok := r.timers[t.key]; !ok || current != t {
			continue
		}
		if t.period == 0 {
			delete(r.timers, t.key)
		} else {
			r.seq++
			t.due = r.tick + t.period
			t.seq = r.seq
		}
		r.fire(t, now)
		fired++
	}
	return fired
}

// fire runs one callback. A panic is logged and does not stop the timers
// after it in the same tick.
func (r *Registry) fire(t *timer, now time.Time) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Stringer("timer", t.key).Interface("panic", p).Msg("timer callback panicked")
		}
	}()
	t.fn(now)
}
