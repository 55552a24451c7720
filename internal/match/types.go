// Package match runs one hide-and-seek match at a time: the queue, the
// auto-start countdown, hunter selection, runner conversion, sudden death and
// the win conditions.
//
// A Manager is not safe for concurrent use. Every method, including Step,
// must be called from the single goroutine that owns it (see realtime.Loop).
package match

import (
	"math/rand"
	"time"

	"tinyhunt/internal/arena"
)

// ParticipantID is an opaque identity, stable across reconnects.
type ParticipantID string

type Role int

const (
	Runner Role = iota
	Converting
	Hunter
)

func (r Role) String() string {
	switch r {
	case Runner:
		return "runner"
	case Converting:
		return "converting"
	case Hunter:
		return "hunter"
	}
	return "unknown"
}

type State int

const (
	Waiting State = iota
	Countdown
	Running
	Ending
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Countdown:
		return "countdown"
	case Running:
		return "running"
	case Ending:
		return "ending"
	}
	return "unknown"
}

// CanJoin reports whether the queue accepts participants in this state.
func (s State) CanJoin() bool {
	return s == Waiting || s == Countdown
}

type EndReason int

const (
	HuntersEliminatedAll EndReason = iota + 1
	RunnersSurvived
	Manual
	ConfigurationError
)

func (r EndReason) String() string {
	switch r {
	case HuntersEliminatedAll:
		return "hunters_eliminated_all"
	case RunnersSurvived:
		return "runners_survived"
	case Manual:
		return "manual"
	case ConfigurationError:
		return "configuration_error"
	}
	return "none"
}

// Mode is how a participant interacts with the world.
type Mode int

const (
	Playing Mode = iota
	Observing
)

func (m Mode) String() string {
	if m == Observing {
		return "observing"
	}
	return "playing"
}

type EffectKind int

const (
	// Reveal makes the participant visible through walls.
	Reveal EffectKind = iota + 1
	// Speed makes the participant faster.
	Speed
)

func (k EffectKind) String() string {
	switch k {
	case Reveal:
		return "reveal"
	case Speed:
		return "speed"
	}
	return "unknown"
}

// Effect is a timed status effect. Amplifier 0 is the base strength.
type Effect struct {
	Kind      EffectKind
	Duration  time.Duration
	Amplifier int
}

// Participant is a connected participant the manager can act on.
type Participant interface {
	ID() ParticipantID
	Name() string
	Teleport(arena.Point)
	Mode() Mode
	SetMode(Mode)
	SetScale(float64)
	GrantImmunity(time.Duration)
	ApplyEffect(Effect)
	ClearEffects()
}

// Directory resolves identities to connected participants. Resolve returns
// false for identities that are no longer connected.
type Directory interface {
	IsConnected(ParticipantID) bool
	Resolve(ParticipantID) (Participant, bool)
}

// Arena answers where participants go.
type Arena interface {
	IsLobbyConfigured() bool
	IsArenaConfigured() bool
	PickSpawn(rng *rand.Rand) (arena.Point, bool)
	SafeReturnPoint() arena.Point
}

type Audience int

const (
	AudienceQueue Audience = iota + 1
	AudienceActive
	AudienceParticipant
)

func (a Audience) String() string {
	switch a {
	case AudienceQueue:
		return "queue"
	case AudienceActive:
		return "active"
	case AudienceParticipant:
		return "participant"
	}
	return "unknown"
}

// Announcement is a one-shot message. Recipients is the audience resolved at
// the moment it was made.
type Announcement struct {
	Audience   Audience
	Recipients []ParticipantID
	Key        string
	Args       map[string]string
}

// Sink is the presentation layer.
type Sink interface {
	Announce(Announcement)
	Publish(snap Snapshot, participants []ParticipantID)
	Reset()
}

// Recorder receives match metrics.
type Recorder interface {
	MatchStarted(participants int)
	MatchConcluded(reason EndReason, elapsed time.Duration)
	RunnerConverted()
	SnapshotPublished(Snapshot)
}

type nopRecorder struct{}

func (nopRecorder) MatchStarted(int)                        {}
func (nopRecorder) MatchConcluded(EndReason, time.Duration) {}
func (nopRecorder) RunnerConverted()                        {}
func (nopRecorder) SnapshotPublished(Snapshot)              {}
