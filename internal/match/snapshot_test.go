package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tinyhunt/pkg/realtime"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00", FormatDuration(0))
	assert.Equal(t, "00:00", FormatDuration(-5))
	assert.Equal(t, "01:05", FormatDuration(65))
	assert.Equal(t, "10:00", FormatDuration(600))
	assert.Equal(t, "120:00", FormatDuration(7200))
}

func TestNewSnapshot(t *testing.T) {
	r := NewRoster()
	r.Activate([]ParticipantID{"a", "b", "c", "d"})
	r.SetRole("a", Hunter)
	r.SetRole("b", Converting)

	w := realtime.NewWindow(epoch, 10*time.Minute)
	esc := Escalation{Triggered: true, NextPulse: epoch.Add(5*time.Minute + 2500*time.Millisecond)}
	now := epoch.Add(5*time.Minute + 100*time.Millisecond)

	snap := NewSnapshot(w, r, esc, now)
	assert.Equal(t, "05:00", snap.Remaining)
	assert.Equal(t, int64(300), snap.RemainingSeconds)
	assert.InDelta(t, 0.5, snap.Progress, 1e-9)
	assert.Equal(t, 2, snap.Runners)
	assert.Equal(t, 1, snap.Hunters)
	assert.Equal(t, 1, snap.Converting)
	assert.Equal(t, int64(3), snap.NextRevealSeconds)
	assert.True(t, snap.Escalated)

	late := NewSnapshot(w, r, Escalation{}, epoch.Add(time.Hour))
	assert.Equal(t, "00:00", late.Remaining)
	assert.Zero(t, late.Progress)
	assert.Equal(t, int64(-1), late.NextRevealSeconds)
}
