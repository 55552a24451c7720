package viewmodel

import "time"

// HUD holds data for the scoreboard and boss bar fragment.
type HUD struct {
	Active          bool
	State           string
	ScoreboardTitle string
	BossBarTitle    string
	Remaining       string
	ProgressPercent int
	Runners         int
	Hunters         int
	Converting      int
	NextReveal      int64
	ExtraLine       string
	Countdown       int
	Queue           int
	MinPlayers      int
}

// Line is one rendered announcement.
type Line struct {
	At   string
	Text string
}

// HomePage holds data for the spectator page.
type HomePage struct {
	Title     string
	HUD       HUD
	Lines     []Line
	StreamURL string
}

// Participant is the JSON view of a connected participant.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Queued bool   `json:"queued"`
	Role   string `json:"role,omitempty"`
	Mode   string `json:"mode"`
}

// Outcome is the JSON view of the previous match result.
type Outcome struct {
	Reason       string  `json:"reason"`
	At           string  `json:"at"`
	Seconds      float64 `json:"seconds"`
	Participants int     `json:"participants"`
}

// Status is the JSON body of GET /status.
type Status struct {
	State         string            `json:"state"`
	Queue         []string          `json:"queue"`
	Roles         map[string]string `json:"roles"`
	Countdown     int               `json:"countdown,omitempty"`
	MinPlayers    int               `json:"minPlayers"`
	MaxPlayers    int               `json:"maxPlayers"`
	Remaining     string            `json:"remaining,omitempty"`
	Progress      float64           `json:"progress,omitempty"`
	NextReveal    int64             `json:"nextReveal,omitempty"`
	Escalated     bool              `json:"escalated"`
	LastOutcome   *Outcome          `json:"lastOutcome,omitempty"`
	ReloadPending bool              `json:"reloadPending"`
}

// Arena is the JSON view of one arena definition.
type Arena struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Ready  bool   `json:"ready"`
	Pos1   string `json:"pos1,omitempty"`
	Pos2   string `json:"pos2,omitempty"`
	Spawns int    `json:"spawns"`
	Center string `json:"center,omitempty"`
}

// Arenas is the JSON body of GET /admin/arenas.
type Arenas struct {
	Lobby  string  `json:"lobby,omitempty"`
	Active string  `json:"active,omitempty"`
	Arenas []Arena `json:"arenas"`
}

// Message is the JSON body of command responses.
type Message struct {
	Key     string `json:"key"`
	Message string `json:"message"`
	Error   bool   `json:"error,omitempty"`
}

// FormatClock renders an announcement timestamp.
func FormatClock(t time.Time) string {
	return t.Format("15:04:05")
}
