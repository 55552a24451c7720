package hud

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tinyhunt/internal/match"
	"tinyhunt/pkg/realtime"
)

const recentLines = 20

type EventKind string

const (
	EventLine     EventKind = "line"
	EventSnapshot EventKind = "snapshot"
	EventReset    EventKind = "reset"
)

// Line is a rendered announcement.
type Line struct {
	At         time.Time             `json:"at"`
	Audience   string                `json:"audience"`
	Recipients []match.ParticipantID `json:"recipients,omitempty"`
	Key        string                `json:"key"`
	Text       string                `json:"text"`
}

// For reports whether the line is addressed to id. An empty id is a
// spectator and sees queue and match-wide lines only.
func (l Line) For(id match.ParticipantID) bool {
	if id == "" {
		return l.Audience != match.AudienceParticipant.String()
	}
	for _, r := range l.Recipients {
		if r == id {
			return true
		}
	}
	return false
}

// Event is what subscribers receive.
type Event struct {
	Kind         EventKind             `json:"kind"`
	Line         *Line                 `json:"line,omitempty"`
	Snapshot     *match.Snapshot       `json:"snapshot,omitempty"`
	Participants []match.ParticipantID `json:"participants,omitempty"`
}

// Sink implements match.Sink. It is safe for concurrent use: the match
// manager writes from the tick goroutine while HTTP streams read.
type Sink struct {
	mu           sync.RWMutex
	catalog      Catalog
	latest       *match.Snapshot
	participants []match.ParticipantID
	recent       []Line
	hub          *realtime.Broadcaster[Event]
	log          zerolog.Logger
}

func NewSink(catalog Catalog, logger zerolog.Logger) *Sink {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Sink{
		catalog: catalog,
		hub:     realtime.NewBroadcaster[Event](32),
		log:     logger.With().Str("component", "hud").Logger(),
	}
}

func (s *Sink) Catalog() Catalog {
	return s.catalog
}

func (s *Sink) Announce(a match.Announcement) {
	line := Line{
		At:         time.Now().UTC(),
		Audience:   a.Audience.String(),
		Recipients: a.Recipients,
		Key:        a.Key,
		Text:       s.catalog.Render(a.Key, a.Args),
	}
	s.mu.Lock()
	s.recent = append(s.recent, line)
	if len(s.recent) > recentLines {
		s.recent = s.recent[len(s.recent)-recentLines:]
	}
	s.mu.Unlock()
	s.log.Debug().Str("key", a.Key).Str("audience", line.Audience).Int("recipients", len(a.Recipients)).Msg(line.Text)
	s.hub.Publish(Event{Kind: EventLine, Line: &line})
}

func (s *Sink) Publish(snap match.Snapshot, participants []match.ParticipantID) {
	ids := append([]match.ParticipantID(nil), participants...)
	s.mu.Lock()
	s.latest = &snap
	s.participants = ids
	s.mu.Unlock()
	s.hub.Publish(Event{Kind: EventSnapshot, Snapshot: &snap, Participants: ids})
}

// Reset clears the HUD when a match ends.
func (s *Sink) Reset() {
	s.mu.Lock()
	s.latest = nil
	s.participants = nil
	s.mu.Unlock()
	s.hub.Publish(Event{Kind: EventReset})
}

// Latest returns the most recent snapshot of the running match.
func (s *Sink) Latest() (match.Snapshot, []match.ParticipantID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return match.Snapshot{}, nil, false
	}
	return *s.latest, append([]match.ParticipantID(nil), s.participants...), true
}

// Recent returns the last announcements, oldest first.
func (s *Sink) Recent() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Line(nil), s.recent...)
}

func (s *Sink) Subscribe() chan Event {
	return s.hub.Subscribe()
}

func (s *Sink) Unsubscribe(ch chan Event) {
	s.hub.Unsubscribe(ch)
}

// ExtraLine is the scoreboard footer for snap.
func ExtraLine(snap match.Snapshot) string {
	if snap.Escalated {
		return SuddenDeathLine
	}
	return ""
}
