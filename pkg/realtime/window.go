package realtime

import "time"

// Window is the instant range of a timed match: it starts at Start and the
// deadline is End = Start + Duration. It holds no game-specific state; the
// game composes it and derives remaining time and progress from it each tick.
type Window struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// NewWindow opens a window of duration d at start.
func NewWindow(start time.Time, d time.Duration) Window {
	return Window{
		Start:    start,
		End:      start.Add(d),
		Duration: d,
	}
}

// IsZero reports whether the window was never opened.
func (w Window) IsZero() bool {
	return w.Start.IsZero()
}

// RemainingSeconds returns the whole seconds left until End, rounded up and
// never negative.
func (w Window) RemainingSeconds(now time.Time) int64 {
	if w.IsZero() {
		return 0
	}
	return CeilSeconds(w.End.Sub(now))
}

// Progress returns remaining/total in [0,1]. A zero-length window reports 0.
func (w Window) Progress(now time.Time) float64 {
	total := int64(w.Duration / time.Second)
	if total <= 0 {
		return 0
	}
	p := float64(w.RemainingSeconds(now)) / float64(total)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// CeilSeconds rounds d up to whole seconds, clamped at zero.
func CeilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
