package match

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"tinyhunt/internal/config"
	"tinyhunt/internal/timers"
	"tinyhunt/pkg/realtime"
)

// Enqueue adds id to the queue and returns its 1-based position. Reaching
// the minimum player count while Waiting starts the countdown.
func (m *Manager) Enqueue(id ParticipantID) (int, error) {
	if !m.state.CanJoin() {
		return 0, eris.Wrapf(ErrCannotJoin, "state %s", m.state)
	}
	if m.roster.IsQueued(id) {
		return 0, ErrAlreadyQueued
	}
	if m.roster.QueueLen() >= m.settings.MaxPlayers {
		return 0, eris.Wrapf(ErrQueueFull, "%d of %d", m.roster.QueueLen(), m.settings.MaxPlayers)
	}
	if !m.dir.IsConnected(id) {
		return 0, ErrNotConnected
	}
	pos := m.roster.Enqueue(id)
	m.log.Debug().Str("participant", string(id)).Int("position", pos).Msg("queued")
	m.toParticipant(id, "joined-queue", args("position", strconv.Itoa(pos)))
	m.checkAutoStart()
	return pos, nil
}

// LeaveQueue removes id from the queue. An active participant leaving is
// eliminated instead.
func (m *Manager) LeaveQueue(id ParticipantID) error {
	if m.roster.Dequeue(id) {
		m.toParticipant(id, "left-queue", nil)
		m.afterQueueShrink()
		return nil
	}
	if m.roster.IsActive(id) {
		m.EliminatePlayer(id, false)
		return nil
	}
	return ErrNotQueued
}

func (m *Manager) afterQueueShrink() {
	if m.state == Countdown && m.roster.QueueLen() < m.settings.MinPlayers {
		m.cancelCountdown()
		m.toQueue("countdown-cancelled", nil)
	}
}

func (m *Manager) checkAutoStart() {
	if m.state != Waiting || m.roster.QueueLen() < m.settings.MinPlayers {
		return
	}
	m.startCountdown()
}

func (m *Manager) startCountdown() {
	m.state = Countdown
	m.countdownLeft = m.settings.AutoStartSeconds
	m.toQueue("countdown-start", args("seconds", strconv.Itoa(m.countdownLeft)))
	perSecond := m.ticks(1)
	m.timers.Every(timers.Named(timerCountdown), perSecond, perSecond, m.countdownTick)
	m.log.Info().Stringer("state", m.state).Int("seconds", m.countdownLeft).Int("queued", m.roster.QueueLen()).Msg("countdown started")
}

func (m *Manager) countdownTick(time.Time) {
	if m.countdownLeft <= 0 {
		m.timers.Cancel(timers.Named(timerCountdown))
		if err := m.beginMatch(); err != nil {
			m.log.Warn().Err(err).Msg("automatic start failed")
		}
		return
	}
	if m.roster.QueueLen() < m.settings.MinPlayers {
		m.toQueue("countdown-cancelled", nil)
		m.cancelCountdown()
		return
	}
	if m.countdownLeft <= 10 || m.countdownLeft%30 == 0 {
		m.toQueue("countdown-tick", args("seconds", strconv.Itoa(m.countdownLeft)))
	}
	m.countdownLeft--
}

func (m *Manager) cancelCountdown() {
	m.timers.Cancel(timers.Named(timerCountdown))
	if m.state == Countdown {
		m.enterWaiting()
		m.log.Info().Stringer("state", m.state).Msg("countdown cancelled")
	}
}

func (m *Manager) enterWaiting() {
	m.state = Waiting
	m.countdownLeft = 0
	m.applyPending()
}

// ForceStart begins the match now, skipping the countdown. The caller
// decides how to report a failure; nothing is announced for the
// not-enough-players case.
func (m *Manager) ForceStart() error {
	if m.state == Running || m.state == Ending {
		return ErrAlreadyRunning
	}
	if m.roster.QueueLen() < m.settings.MinPlayers {
		return eris.Wrapf(ErrNotEnoughPlayers, "%d of %d queued", m.roster.QueueLen(), m.settings.MinPlayers)
	}
	return m.beginMatch()
}

func (m *Manager) beginMatch() error {
	m.timers.Cancel(timers.Named(timerCountdown))
	if !m.arena.IsLobbyConfigured() || !m.arena.IsArenaConfigured() {
		m.toQueue("configuration-missing", nil)
		m.enterWaiting()
		m.log.Warn().Msg("match not started: lobby or arena incomplete")
		return ErrConfigurationMissing
	}

	queued := m.roster.Queue()
	connected := make([]ParticipantID, 0, len(queued))
	for _, id := range queued {
		if m.dir.IsConnected(id) {
			connected = append(connected, id)
		}
	}
	if len(connected) < m.settings.MinPlayers {
		m.roster.SetQueue(connected)
		m.toQueue("not-enough-players", nil)
		m.enterWaiting()
		return eris.Wrapf(ErrNotEnoughPlayers, "%d of %d connected", len(connected), m.settings.MinPlayers)
	}

	m.roster.ClearQueue()
	m.roster.Activate(connected)
	m.state = Running
	m.countdownLeft = 0
	m.modes = make(map[ParticipantID]Mode)
	m.esc = Escalation{}
	m.window = realtime.NewWindow(m.now, config.Seconds(m.settings.GameDurationSeconds))

	for _, id := range connected {
		p, ok := m.dir.Resolve(id)
		if !ok {
			continue
		}
		m.applyRunnerState(p)
		m.teleportToArena(p)
		m.toParticipant(id, "game-start-runner", nil)
	}
	m.toActive("game-start", nil)

	m.timers.After(timers.Named(timerHunterSelection), m.ticks(m.settings.HunterSelectionSeconds), m.selectRandomHunter)
	m.timers.After(timers.Named(timerMatchDeadline), m.ticks(m.settings.GameDurationSeconds), m.deadline)
	m.timers.Every(timers.Named(timerHudTick), 0, m.ticks(1), m.hudTick)

	m.rec.MatchStarted(len(connected))
	m.log.Info().Stringer("state", m.state).Int("participants", len(connected)).
		Time("ends", m.window.End).Msg("match started")
	return nil
}

func (m *Manager) deadline(time.Time) {
	m.Conclude(RunnersSurvived)
}

// Conclude ends the match for reason. Outside Running and Countdown it does
// nothing and reports false.
func (m *Manager) Conclude(reason EndReason) bool {
	if m.state != Running && m.state != Countdown {
		return false
	}
	wasRunning := m.state == Running
	var elapsed time.Duration
	if wasRunning {
		elapsed = m.now.Sub(m.window.Start)
	}
	participants := m.roster.ActiveLen()

	m.timers.CancelAll()
	m.sink.Reset()
	m.esc = Escalation{}
	m.state = Ending
	m.toActive(reasonKey(reason), nil)

	for _, id := range m.roster.Active() {
		if p, ok := m.dir.Resolve(id); ok {
			m.resetState(p)
			m.teleportToSafety(p)
		}
	}
	m.modes = make(map[ParticipantID]Mode)
	m.roster.ClearActive()
	m.window = realtime.Window{}

	if wasRunning {
		m.last = &Outcome{Reason: reason, At: m.now, Elapsed: elapsed, Participants: participants}
		m.rec.MatchConcluded(reason, elapsed)
	}
	m.log.Info().Stringer("reason", reason).Dur("elapsed", elapsed).Int("participants", participants).Msg("match concluded")
	m.enterWaiting()
	return true
}

// StopManually cancels a countdown or concludes a running match. It reports
// false when there is nothing to stop.
func (m *Manager) StopManually() bool {
	switch m.state {
	case Countdown:
		m.cancelCountdown()
		m.toQueue("countdown-cancelled", nil)
		return true
	case Running:
		return m.Conclude(Manual)
	}
	return false
}

func reasonKey(reason EndReason) string {
	switch reason {
	case HuntersEliminatedAll:
		return "hunters-win"
	case RunnersSurvived:
		return "runners-win"
	case Manual:
		return "manual-stop"
	}
	return "configuration-missing"
}
