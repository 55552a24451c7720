package match

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tinyhunt/internal/arena"
	"tinyhunt/internal/config"
	"tinyhunt/internal/timers"
)

var epoch = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

type fakeParticipant struct {
	id        ParticipantID
	name      string
	pos       arena.Point
	teleports int
	mode      Mode
	scale     float64
	immunity  time.Duration
	effects   []Effect
}

func (p *fakeParticipant) ID() ParticipantID             { return p.id }
func (p *fakeParticipant) Name() string                  { return p.name }
func (p *fakeParticipant) Teleport(pt arena.Point)       { p.pos = pt; p.teleports++ }
func (p *fakeParticipant) Mode() Mode                    { return p.mode }
func (p *fakeParticipant) SetMode(mode Mode)             { p.mode = mode }
func (p *fakeParticipant) SetScale(s float64)            { p.scale = s }
func (p *fakeParticipant) GrantImmunity(d time.Duration) { p.immunity = d }
func (p *fakeParticipant) ApplyEffect(e Effect)          { p.effects = append(p.effects, e) }
func (p *fakeParticipant) ClearEffects()                 { p.effects = nil }

func (p *fakeParticipant) count(kind EffectKind) int {
	n := 0
	for _, e := range p.effects {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type fakeDirectory struct {
	players map[ParticipantID]*fakeParticipant
}

func (d *fakeDirectory) IsConnected(id ParticipantID) bool {
	_, ok := d.players[id]
	return ok
}

func (d *fakeDirectory) Resolve(id ParticipantID) (Participant, bool) {
	p, ok := d.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

var (
	spawnPoint = arena.Point{World: "world", X: 100, Y: 64, Z: 100}
	safePoint  = arena.Point{World: "world", X: 0, Y: 64, Z: 0}
)

type fakeArena struct {
	lobby bool
	arena bool
}

func (a *fakeArena) IsLobbyConfigured() bool { return a.lobby }
func (a *fakeArena) IsArenaConfigured() bool { return a.arena }
func (a *fakeArena) PickSpawn(*rand.Rand) (arena.Point, bool) {
	if !a.arena {
		return arena.Point{}, false
	}
	return spawnPoint, true
}
func (a *fakeArena) SafeReturnPoint() arena.Point { return safePoint }

type recordingSink struct {
	announcements []Announcement
	snapshots     []Snapshot
	resets        int
}

func (s *recordingSink) Announce(a Announcement) { s.announcements = append(s.announcements, a) }
func (s *recordingSink) Publish(snap Snapshot, _ []ParticipantID) {
	s.snapshots = append(s.snapshots, snap)
}
func (s *recordingSink) Reset() { s.resets++ }

func (s *recordingSink) count(key string) int {
	n := 0
	for _, a := range s.announcements {
		if a.Key == key {
			n++
		}
	}
	return n
}

func (s *recordingSink) last(key string) (Announcement, bool) {
	for i := len(s.announcements) - 1; i >= 0; i-- {
		if s.announcements[i].Key == key {
			return s.announcements[i], true
		}
	}
	return Announcement{}, false
}

type harness struct {
	t     *testing.T
	m     *Manager
	dir   *fakeDirectory
	arena *fakeArena
	sink  *recordingSink
	now   time.Time
}

// testSettings is a small, fast match: two players, short timers and sudden
// death off unless a test turns it on.
func testSettings() config.Settings {
	s := config.Defaults()
	s.MinPlayers = 2
	s.MaxPlayers = 6
	s.AutoStartSeconds = 5
	s.HunterSelectionSeconds = 2
	s.GameDurationSeconds = 60
	s.RespawnSeconds = 3
	s.InvulnerabilitySeconds = 2
	s.SuddenDeathEnabled = false
	return s
}

func newHarness(t *testing.T, mutate func(*config.Settings)) *harness {
	t.Helper()
	s := testSettings()
	if mutate != nil {
		mutate(&s)
	}
	h := &harness{
		t:     t,
		dir:   &fakeDirectory{players: map[ParticipantID]*fakeParticipant{}},
		arena: &fakeArena{lobby: true, arena: true},
		sink:  &recordingSink{},
		now:   epoch,
	}
	h.m = NewManager(s, h.arena, h.dir, h.sink,
		WithRand(rand.New(rand.NewSource(42))),
		WithLogger(zerolog.Nop()),
		WithStartTime(epoch),
	)
	return h
}

func (h *harness) connect(n int) []ParticipantID {
	ids := make([]ParticipantID, 0, n)
	for i := 0; i < n; i++ {
		id := ParticipantID(fmt.Sprintf("p%d", len(h.dir.players)+1))
		h.dir.players[id] = &fakeParticipant{id: id, name: "player-" + string(id), scale: 1}
		ids = append(ids, id)
	}
	return ids
}

func (h *harness) player(id ParticipantID) *fakeParticipant {
	return h.dir.players[id]
}

func (h *harness) step(n int) {
	for i := 0; i < n; i++ {
		h.now = h.now.Add(50 * time.Millisecond)
		h.m.Step(h.now)
		h.checkInvariants()
	}
}

func (h *harness) seconds(n int) {
	h.step(n * 20)
}

func (h *harness) enqueue(ids ...ParticipantID) {
	h.t.Helper()
	for _, id := range ids {
		_, err := h.m.Enqueue(id)
		require.NoError(h.t, err)
	}
	h.checkInvariants()
}

// startMatch connects n participants and force-starts a match with them.
func (h *harness) startMatch(n int) []ParticipantID {
	h.t.Helper()
	ids := h.connect(n)
	h.enqueue(ids...)
	require.NoError(h.t, h.m.ForceStart())
	require.Equal(h.t, Running, h.m.State())
	return ids
}

// selectHunter waits for hunter selection and returns the hunter and the
// runners.
func (h *harness) selectHunter() (ParticipantID, []ParticipantID) {
	h.t.Helper()
	h.seconds(h.m.Settings().HunterSelectionSeconds)
	hunters := h.m.roster.WithRole(Hunter)
	require.Len(h.t, hunters, 1)
	return hunters[0], h.m.roster.WithRole(Runner)
}

func (h *harness) checkInvariants() {
	h.t.Helper()
	m := h.m
	for _, id := range m.roster.Queue() {
		require.False(h.t, m.roster.IsActive(id), "%s is both queued and active", id)
	}
	if m.state != Running {
		require.Zero(h.t, m.roster.ActiveLen(), "active participants outside Running")
		require.Zero(h.t, m.timers.LiveNamed(timerConversion), "conversion timer outside Running")
		require.False(h.t, m.timers.Live(timers.Named(timerMatchDeadline)), "deadline outside Running")
		require.False(h.t, m.timers.Live(timers.Named(timerHudTick)), "hud tick outside Running")
		require.False(h.t, m.timers.Live(timers.Named(timerHunterSelection)), "hunter selection outside Running")
		require.False(h.t, m.esc.Triggered, "sudden death outside Running")
	} else {
		require.Zero(h.t, m.roster.QueueLen(), "queue not empty while Running")
	}
	if m.state != Countdown {
		require.False(h.t, m.timers.Live(timers.Named(timerCountdown)), "countdown outside Countdown")
	}
}
