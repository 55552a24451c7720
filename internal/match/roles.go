package match

import (
	"strconv"
	"time"

	"tinyhunt/internal/timers"
)

func (m *Manager) selectRandomHunter(time.Time) {
	if m.state != Running {
		return
	}
	runners := m.remainingRunners()
	if len(runners) == 0 {
		m.log.Warn().Msg("no runner left to become hunter")
		m.Conclude(ConfigurationError)
		return
	}
	chosen := runners[m.rng.Intn(len(runners))]
	m.promoteToHunter(chosen, true)
	m.toActive("hunter-selected", args("player", chosen.Name()))
	m.log.Info().Str("participant", string(chosen.ID())).Msg("hunter selected")
}

func (m *Manager) promoteToHunter(p Participant, selected bool) {
	m.roster.SetRole(p.ID(), Hunter)
	m.restoreMode(p)
	p.SetScale(m.settings.HunterScale)
	m.teleportToArena(p)
	m.applyHunterBuff(p)
	if selected {
		m.toParticipant(p.ID(), "you-are-hunter", nil)
	} else {
		m.toParticipant(p.ID(), "now-hunter", nil)
	}
}

// HandleHit starts converting target when a hunter tags a runner. It
// reports whether a conversion began.
func (m *Manager) HandleHit(attacker, target ParticipantID) bool {
	if m.state != Running {
		return false
	}
	if role, ok := m.roster.Role(attacker); !ok || role != Hunter {
		return false
	}
	if role, ok := m.roster.Role(target); !ok || role != Runner {
		return false
	}
	p, ok := m.dir.Resolve(target)
	if !ok {
		return false
	}
	m.beginConversion(p)
	return true
}

func (m *Manager) beginConversion(p Participant) {
	id := p.ID()
	delay := m.settings.RespawnSeconds
	m.roster.SetRole(id, Converting)
	m.modes[id] = p.Mode()
	p.SetMode(Observing)
	m.toParticipant(id, "runner-respawn-start", args("seconds", strconv.Itoa(delay)))
	m.toActive("runner-respawn-broadcast", args("player", p.Name(), "seconds", strconv.Itoa(delay)))
	m.timers.After(timers.For(timerConversion, string(id)), m.ticks(delay), func(time.Time) {
		m.finishConversion(id)
	})
	m.log.Debug().Str("participant", string(id)).Int("seconds", delay).Msg("conversion started")
}

func (m *Manager) finishConversion(id ParticipantID) {
	if m.state != Running {
		return
	}
	if role, ok := m.roster.Role(id); !ok || role != Converting {
		return
	}
	p, ok := m.dir.Resolve(id)
	if !ok {
		return
	}
	m.roster.SetRole(id, Hunter)
	m.restoreMode(p)
	p.SetScale(m.settings.HunterScale)
	m.teleportToArena(p)
	if m.settings.InvulnerabilitySeconds > 0 {
		p.GrantImmunity(time.Duration(m.settings.InvulnerabilitySeconds) * time.Second)
	}
	m.applyHunterBuff(p)
	m.toParticipant(id, "runner-respawn-complete", nil)
	m.toActive("runner-converted", args("player", p.Name()))
	m.rec.RunnerConverted()
	m.log.Debug().Str("participant", string(id)).Msg("conversion finished")
	m.checkRunnersGone()
}

func (m *Manager) cancelConversion(id ParticipantID) {
	m.timers.Cancel(timers.For(timerConversion, string(id)))
	delete(m.modes, id)
}

// EliminatePlayer removes an active participant from the match and returns
// them to safety. It reports false if id was not active.
func (m *Manager) EliminatePlayer(id ParticipantID, silent bool) bool {
	if !m.roster.IsActive(id) {
		return false
	}
	m.cancelConversion(id)
	m.roster.Remove(id)
	name := string(id)
	if p, ok := m.dir.Resolve(id); ok {
		name = p.Name()
		m.resetState(p)
		m.teleportToSafety(p)
	}
	if !silent {
		m.toActive("player-left", args("player", name))
	}
	m.log.Debug().Str("participant", string(id)).Bool("silent", silent).Msg("eliminated")
	m.checkRunnersGone()
	return true
}

// HandleDisconnect forgets a participant that is going away, whether queued
// or playing.
func (m *Manager) HandleDisconnect(id ParticipantID) {
	if m.roster.Dequeue(id) {
		m.afterQueueShrink()
	}
	if m.roster.Remove(id) {
		m.cancelConversion(id)
		m.log.Debug().Str("participant", string(id)).Msg("active participant disconnected")
		m.checkRunnersGone()
	}
}

// remainingRunners are the connected active runners in identity order.
func (m *Manager) remainingRunners() []Participant {
	ids := m.roster.WithRole(Runner)
	out := make([]Participant, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.dir.Resolve(id); ok {
			out = append(out, p)
		}
	}
	return out
}

func (m *Manager) checkRunnersGone() {
	if m.state == Running && len(m.remainingRunners()) == 0 {
		m.Conclude(HuntersEliminatedAll)
	}
}

func (m *Manager) hudTick(now time.Time) {
	if m.state != Running {
		return
	}
	cfg := m.escalationConfig()
	d := Evaluate(cfg, m.esc, m.window.RemainingSeconds(now), now)
	m.esc = d.Apply(m.esc)
	if d.Trigger {
		m.toActive("sudden-death-start", nil)
		for _, id := range m.roster.WithRole(Hunter) {
			if p, ok := m.dir.Resolve(id); ok {
				m.applyHunterBuff(p)
			}
		}
		m.log.Info().Int64("remaining", m.window.RemainingSeconds(now)).Msg("sudden death")
	}
	if d.Pulse {
		m.reveal(cfg)
	}
	snap := NewSnapshot(m.window, m.roster, m.esc, now)
	m.sink.Publish(snap, m.roster.Active())
	m.rec.SnapshotPublished(snap)
}

func (m *Manager) reveal(cfg EscalationConfig) {
	runners := m.remainingRunners()
	effect := RevealEffect(cfg)
	for _, p := range runners {
		p.ApplyEffect(effect)
	}
	if len(runners) > 0 {
		m.toActive("sudden-death-reveal", args("seconds", strconv.Itoa(m.settings.RevealDurationSeconds)))
	}
}

func (m *Manager) applyHunterBuff(p Participant) {
	if effect, ok := HunterBuff(m.escalationConfig(), m.esc); ok {
		p.ApplyEffect(effect)
	}
}

func (m *Manager) applyRunnerState(p Participant) {
	m.restoreMode(p)
	p.SetScale(m.settings.RunnerScale)
}

func (m *Manager) resetState(p Participant) {
	p.SetScale(1)
	m.restoreMode(p)
	p.GrantImmunity(0)
	p.ClearEffects()
}

// restoreMode puts back the mode saved at conversion, or takes an observer
// back to playing.
func (m *Manager) restoreMode(p Participant) {
	if mode, ok := m.modes[p.ID()]; ok {
		delete(m.modes, p.ID())
		p.SetMode(mode)
		return
	}
	if p.Mode() == Observing {
		p.SetMode(Playing)
	}
}

func (m *Manager) teleportToArena(p Participant) {
	pt, ok := m.arena.PickSpawn(m.rng)
	if !ok {
		m.log.Warn().Str("participant", string(p.ID())).Msg("no arena spawn available")
		return
	}
	p.Teleport(pt)
}

func (m *Manager) teleportToSafety(p Participant) {
	p.Teleport(m.arena.SafeReturnPoint())
}
