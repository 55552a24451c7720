package handlers

import (
	"math"
	"time"

	"tinyhunt/internal/arena"
	"tinyhunt/internal/hud"
	"tinyhunt/internal/match"
	"tinyhunt/internal/presence"
	"tinyhunt/internal/viewmodel"
)

func toParticipantView(a presence.Avatar, queued bool, role match.Role, active bool) viewmodel.Participant {
	out := viewmodel.Participant{
		ID:     string(a.ID),
		Name:   a.Name,
		Queued: queued,
		Mode:   a.Mode,
	}
	if active {
		out.Role = role.String()
	}
	return out
}

func toStatusView(st match.Status) viewmodel.Status {
	out := viewmodel.Status{
		State:         st.State.String(),
		Queue:         make([]string, 0, len(st.Queue)),
		Roles:         make(map[string]string, len(st.Roles)),
		Countdown:     st.Countdown,
		MinPlayers:    st.MinPlayers,
		MaxPlayers:    st.MaxPlayers,
		ReloadPending: st.ReloadPending,
	}
	for _, id := range st.Queue {
		out.Queue = append(out.Queue, string(id))
	}
	for id, role := range st.Roles {
		out.Roles[string(id)] = role.String()
	}
	if snap := st.Snapshot; snap != nil {
		out.Remaining = snap.Remaining
		out.Progress = snap.Progress
		out.NextReveal = snap.NextRevealSeconds
		out.Escalated = snap.Escalated
	}
	if last := st.LastOutcome; last != nil {
		out.LastOutcome = &viewmodel.Outcome{
			Reason:       last.Reason.String(),
			At:           last.At.UTC().Format(time.RFC3339),
			Seconds:      last.Elapsed.Seconds(),
			Participants: last.Participants,
		}
	}
	return out
}

// buildHUD renders the waiting view from st, or the running view when a
// snapshot is present.
func buildHUD(st match.Status) viewmodel.HUD {
	out := viewmodel.HUD{
		State:           st.State.String(),
		ScoreboardTitle: hud.ScoreboardTitle,
		Countdown:       st.Countdown,
		Queue:           len(st.Queue),
		MinPlayers:      st.MinPlayers,
		NextReveal:      -1,
	}
	if st.Snapshot != nil {
		out = withSnapshot(out, *st.Snapshot)
	}
	return out
}

func withSnapshot(out viewmodel.HUD, snap match.Snapshot) viewmodel.HUD {
	out.Active = true
	out.State = match.Running.String()
	out.Remaining = snap.Remaining
	out.BossBarTitle = hud.BossBarTitle(snap.Remaining)
	out.ProgressPercent = int(math.Round(snap.Progress * 100))
	out.Runners = snap.Runners
	out.Hunters = snap.Hunters
	out.Converting = snap.Converting
	out.NextReveal = snap.NextRevealSeconds
	out.ExtraLine = hud.ExtraLine(snap)
	return out
}

// toLines keeps the lines addressed to id, which may be empty for a
// spectator.
func toLines(lines []hud.Line, id match.ParticipantID) []viewmodel.Line {
	out := make([]viewmodel.Line, 0, len(lines))
	for _, line := range lines {
		if !line.For(id) {
			continue
		}
		out = append(out, viewmodel.Line{At: viewmodel.FormatClock(line.At), Text: line.Text})
	}
	return out
}

func toArenasView(layout arena.Layout) viewmodel.Arenas {
	out := viewmodel.Arenas{Arenas: make([]viewmodel.Arena, 0, len(layout.Arenas))}
	if layout.Lobby.Complete() {
		out.Lobby = layout.Lobby.Center().String()
	}
	if def, ok := layout.ActiveArena(); ok {
		out.Active = def.Name
	}
	for _, name := range layout.Names() {
		def := layout.Arenas[name]
		view := viewmodel.Arena{
			Name:   def.Name,
			Active: def.Name == out.Active,
			Ready:  def.Ready(),
			Spawns: len(def.Spawns),
		}
		if def.Area.Pos1 != nil {
			view.Pos1 = def.Area.Pos1.String()
		}
		if def.Area.Pos2 != nil {
			view.Pos2 = def.Area.Pos2.String()
		}
		if def.Area.Complete() {
			view.Center = def.Area.Center().String()
		}
		out.Arenas = append(out.Arenas, view)
	}
	return out
}
