package match

import (
	"math/rand"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"tinyhunt/internal/config"
	"tinyhunt/internal/timers"
	"tinyhunt/pkg/realtime"
)

const (
	timerCountdown       = "countdown"
	timerHunterSelection = "hunterSelection"
	timerMatchDeadline   = "matchDeadline"
	timerHudTick         = "hudTick"
	timerConversion      = "conversion"
)

// Outcome describes the last concluded match.
type Outcome struct {
	Reason       EndReason     `json:"reason"`
	At           time.Time     `json:"at"`
	Elapsed      time.Duration `json:"elapsed"`
	Participants int           `json:"participants"`
}

type pendingReload struct {
	settings config.Settings
	apply    func() error
}

type Option func(*Manager)

// WithRand sets the random source used for hunter selection and spawns.
func WithRand(rng *rand.Rand) Option {
	return func(m *Manager) { m.rng = rng }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.log = logger.With().Str("component", "match").Logger() }
}

func WithRecorder(rec Recorder) Option {
	return func(m *Manager) { m.rec = rec }
}

// WithStartTime sets the instant used by operations that run before the
// first Step.
func WithStartTime(t time.Time) Option {
	return func(m *Manager) { m.now = t }
}

// Manager is the match state machine. It owns the roster, the timers and the
// sudden death state; collaborators are injected.
type Manager struct {
	settings config.Settings
	pending  *pendingReload

	arena Arena
	dir   Directory
	sink  Sink
	rec   Recorder
	rng   *rand.Rand
	log   zerolog.Logger

	timers *timers.Registry
	roster *Roster
	state  State

	// modes holds the interaction mode of converting participants.
	modes         map[ParticipantID]Mode
	countdownLeft int
	window        realtime.Window
	esc           Escalation
	last          *Outcome
	now           time.Time
}

// NewManager creates a manager in the Waiting state.
func NewManager(settings config.Settings, provider Arena, dir Directory, sink Sink, opts ...Option) *Manager {
	m := &Manager{
		settings: settings.Normalize(),
		arena:    provider,
		dir:      dir,
		sink:     sink,
		rec:      nopRecorder{},
		log:      zerolog.Nop(),
		roster:   NewRoster(),
		modes:    make(map[ParticipantID]Mode),
		now:      time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(m.now.UnixNano()))
	}
	m.timers = timers.New(m.log)
	return m
}

// Step advances the manager by one tick and runs every timer due at now.
func (m *Manager) Step(now time.Time) {
	m.now = now
	m.timers.Advance(now)
}

// Reload replaces the settings and runs apply, which is expected to reload
// the lobby and arena definitions. While a match is counting down or running
// both are staged and applied once the manager is back in Waiting. The tick
// rate cannot change at runtime. It reports whether the reload was staged.
func (m *Manager) Reload(settings config.Settings, apply func() error) (bool, error) {
	settings = settings.Normalize()
	if settings.TickRate != m.settings.TickRate {
		m.log.Warn().Int("tick_rate", settings.TickRate).Msg("tick rate changes need a restart")
		settings.TickRate = m.settings.TickRate
	}
	if m.state != Waiting {
		m.pending = &pendingReload{settings: settings, apply: apply}
		m.log.Info().Stringer("state", m.state).Msg("reload staged until the match ends")
		return true, nil
	}
	m.pending = nil
	m.settings = settings
	var err error
	if apply != nil {
		err = eris.Wrap(apply(), "reload arenas")
	}
	m.log.Info().Msg("settings reloaded")
	m.checkAutoStart()
	return false, err
}

// ReloadArena runs apply, which swaps the lobby and arena definitions. While
// a match is running it is staged behind any pending reload. The layout is
// only read when a match begins, so a countdown does not stage it; apply
// still runs again after a reload staged earlier, which would otherwise
// replay an older layout.
func (m *Manager) ReloadArena(apply func() error) (bool, error) {
	if m.state == Running || m.state == Ending {
		m.stageArena(apply)
		return true, nil
	}
	if err := apply(); err != nil {
		return false, eris.Wrap(err, "reload arenas")
	}
	if m.pending != nil {
		m.stageArena(apply)
	}
	m.checkAutoStart()
	return false, nil
}

func (m *Manager) stageArena(apply func() error) {
	if m.pending == nil {
		m.pending = &pendingReload{settings: m.settings, apply: apply}
		return
	}
	prev := m.pending.apply
	m.pending.apply = func() error {
		if prev != nil {
			if err := prev(); err != nil {
				return err
			}
		}
		return apply()
	}
}

func (m *Manager) applyPending() {
	p := m.pending
	if p == nil {
		return
	}
	m.pending = nil
	m.settings = p.settings
	if p.apply != nil {
		if err := p.apply(); err != nil {
			m.log.Error().Err(err).Msg("staged reload failed")
			return
		}
	}
	m.log.Info().Msg("staged reload applied")
}

// Shutdown concludes any match in flight and cancels every timer.
func (m *Manager) Shutdown() {
	m.Conclude(Manual)
	m.timers.CancelAll()
	m.roster.ClearQueue()
	m.state = Waiting
	m.log.Info().Msg("match manager shut down")
}

func (m *Manager) State() State {
	return m.state
}

func (m *Manager) Settings() config.Settings {
	return m.settings
}

func (m *Manager) IsQueued(id ParticipantID) bool {
	return m.roster.IsQueued(id)
}

func (m *Manager) IsActive(id ParticipantID) bool {
	return m.roster.IsActive(id)
}

// Role returns the role of an active participant.
func (m *Manager) Role(id ParticipantID) (Role, bool) {
	return m.roster.Role(id)
}

func (m *Manager) Queue() []ParticipantID {
	return m.roster.Queue()
}

func (m *Manager) Active() []ParticipantID {
	return m.roster.Active()
}

// CountdownRemaining is the whole seconds left before an automatic start, or
// 0 outside Countdown.
func (m *Manager) CountdownRemaining() int {
	if m.state != Countdown {
		return 0
	}
	return m.countdownLeft
}

func (m *Manager) Escalation() Escalation {
	return m.esc
}

// Snapshot returns the status of the running match at the last step.
func (m *Manager) Snapshot() (Snapshot, bool) {
	if m.state != Running {
		return Snapshot{}, false
	}
	return NewSnapshot(m.window, m.roster, m.esc, m.now), true
}

// LastOutcome returns how the previous match ended.
func (m *Manager) LastOutcome() (Outcome, bool) {
	if m.last == nil {
		return Outcome{}, false
	}
	return *m.last, true
}

// Status is a point-in-time copy of everything the status API shows.
type Status struct {
	State         State
	Queue         []ParticipantID
	Roles         map[ParticipantID]Role
	Countdown     int
	MinPlayers    int
	MaxPlayers    int
	Snapshot      *Snapshot
	LastOutcome   *Outcome
	ReloadPending bool
}

func (m *Manager) Status() Status {
	st := Status{
		State:         m.state,
		Queue:         m.roster.Queue(),
		Roles:         m.roster.Roles(),
		Countdown:     m.CountdownRemaining(),
		MinPlayers:    m.settings.MinPlayers,
		MaxPlayers:    m.settings.MaxPlayers,
		ReloadPending: m.pending != nil,
	}
	if snap, ok := m.Snapshot(); ok {
		st.Snapshot = &snap
	}
	if out, ok := m.LastOutcome(); ok {
		st.LastOutcome = &out
	}
	return st
}

func (m *Manager) escalationConfig() EscalationConfig {
	return escalationConfig(m.settings)
}

func (m *Manager) ticks(seconds int) uint64 {
	return m.settings.Ticks(seconds)
}

func args(kv ...string) map[string]string {
	if len(kv) == 0 {
		return nil
	}
	out := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func (m *Manager) toQueue(key string, a map[string]string) {
	m.sink.Announce(Announcement{Audience: AudienceQueue, Recipients: m.roster.Queue(), Key: key, Args: a})
}

func (m *Manager) toActive(key string, a map[string]string) {
	m.sink.Announce(Announcement{Audience: AudienceActive, Recipients: m.roster.Active(), Key: key, Args: a})
}

func (m *Manager) toParticipant(id ParticipantID, key string, a map[string]string) {
	m.sink.Announce(Announcement{Audience: AudienceParticipant, Recipients: []ParticipantID{id}, Key: key, Args: a})
}
