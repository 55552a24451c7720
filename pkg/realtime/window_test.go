package realtime

import (
	"testing"
	"time"
)

func TestWindow_Zero(t *testing.T) {
	var w Window
	if !w.IsZero() {
		t.Error("zero Window should report IsZero")
	}
	if got := w.RemainingSeconds(time.Now().UTC()); got != 0 {
		t.Errorf("RemainingSeconds %d, want 0", got)
	}
	if got := w.Progress(time.Now().UTC()); got != 0 {
		t.Errorf("Progress %v, want 0", got)
	}
}

func TestNewWindow(t *testing.T) {
	now := time.Now().UTC()
	w := NewWindow(now, time.Minute)
	if w.End != now.Add(time.Minute) {
		t.Errorf("End %v, want %v", w.End, now.Add(time.Minute))
	}
	if w.RemainingSeconds(now) != 60 {
		t.Errorf("RemainingSeconds %d, want 60", w.RemainingSeconds(now))
	}
	if w.Progress(now) != 1 {
		t.Errorf("Progress %v, want 1", w.Progress(now))
	}
}

func TestWindow_RemainingSecondsRoundsUp(t *testing.T) {
	now := time.Now().UTC()
	w := NewWindow(now, 10*time.Second)
	cases := []struct {
		elapsed time.Duration
		want    int64
	}{
		{0, 10},
		{50 * time.Millisecond, 10},
		{999 * time.Millisecond, 10},
		{time.Second, 9},
		{9950 * time.Millisecond, 1},
		{10 * time.Second, 0},
		{time.Minute, 0},
	}
	for _, tc := range cases {
		if got := w.RemainingSeconds(now.Add(tc.elapsed)); got != tc.want {
			t.Errorf("elapsed %v: RemainingSeconds %d, want %d", tc.elapsed, got, tc.want)
		}
	}
}

func TestWindow_ProgressClamped(t *testing.T) {
	now := time.Now().UTC()
	w := NewWindow(now, 100*time.Second)
	if got := w.Progress(now.Add(50 * time.Second)); got != 0.5 {
		t.Errorf("Progress %v, want 0.5", got)
	}
	if got := w.Progress(now.Add(-time.Hour)); got != 1 {
		t.Errorf("Progress before start %v, want 1", got)
	}
	if got := w.Progress(now.Add(time.Hour)); got != 0 {
		t.Errorf("Progress after end %v, want 0", got)
	}
	empty := NewWindow(now, 0)
	if got := empty.Progress(now); got != 0 {
		t.Errorf("zero duration Progress %v, want 0", got)
	}
}

func TestCeilSeconds(t *testing.T) {
	if got := CeilSeconds(-time.Second); got != 0 {
		t.Errorf("CeilSeconds(-1s) %d, want 0", got)
	}
	if got := CeilSeconds(1001 * time.Millisecond); got != 2 {
		t.Errorf("CeilSeconds(1.001s) %d, want 2", got)
	}
}
