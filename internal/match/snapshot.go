package match

import (
	"fmt"
	"time"

	"tinyhunt/pkg/realtime"
)

// Snapshot is the per-tick status of a running match handed to the
// presentation layer.
type Snapshot struct {
	At                time.Time `json:"at"`
	Remaining         string    `json:"remaining"`
	RemainingSeconds  int64     `json:"remainingSeconds"`
	Progress          float64   `json:"progress"`
	Runners           int       `json:"runners"`
	Hunters           int       `json:"hunters"`
	Converting        int       `json:"converting"`
	NextRevealSeconds int64     `json:"nextRevealSeconds"`
	Escalated         bool      `json:"escalated"`
}

// NewSnapshot derives the status of the match at now.
func NewSnapshot(w realtime.Window, roster *Roster, esc Escalation, now time.Time) Snapshot {
	remaining := w.RemainingSeconds(now)
	return Snapshot{
		At:                now,
		Remaining:         FormatDuration(remaining),
		RemainingSeconds:  remaining,
		Progress:          w.Progress(now),
		Runners:           roster.Count(Runner),
		Hunters:           roster.Count(Hunter),
		Converting:        roster.Count(Converting),
		NextRevealSeconds: esc.NextRevealSeconds(now),
		Escalated:         esc.Triggered,
	}
}

// FormatDuration renders seconds as MM:SS. Negative values render as 00:00.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
