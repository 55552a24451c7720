// Package presence tracks connected participants and the avatar state the
// match manager drives through match.Participant handles.
package presence

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"tinyhunt/internal/arena"
	"tinyhunt/internal/match"
)

const maxNameLength = 32

var (
	ErrInvalidName = eris.New("name must be 1-32 characters")
	ErrNotFound    = eris.New("participant not found")
)

// ActiveEffect is an effect with its expiry.
type ActiveEffect struct {
	Kind      string    `json:"kind"`
	Amplifier int       `json:"amplifier"`
	Until     time.Time `json:"until"`
}

// Avatar is the observable state of one participant.
type Avatar struct {
	ID          match.ParticipantID `json:"id"`
	Name        string              `json:"name"`
	Position    arena.Point         `json:"position"`
	Mode        string              `json:"mode"`
	Scale       float64             `json:"scale"`
	ImmuneUntil time.Time           `json:"immuneUntil,omitempty"`
	Effects     []ActiveEffect      `json:"effects,omitempty"`
	ConnectedAt time.Time           `json:"connectedAt"`
}

type avatar struct {
	id          match.ParticipantID
	name        string
	pos         arena.Point
	mode        match.Mode
	scale       float64
	immuneUntil time.Time
	effects     []ActiveEffect
	connectedAt time.Time
}

// Directory is the set of connected participants.
type Directory struct {
	mu      sync.RWMutex
	avatars map[match.ParticipantID]*avatar
	now     func() time.Time
	log     zerolog.Logger
}

// New creates an empty directory. now is the clock used for effect and
// immunity expiry; nil means time.Now.
func New(now func() time.Time, logger zerolog.Logger) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{
		avatars: make(map[match.ParticipantID]*avatar),
		now:     now,
		log:     logger.With().Str("component", "presence").Logger(),
	}
}

// Connect registers a participant and mints its identity.
func (d *Directory) Connect(name string) (match.ParticipantID, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxNameLength {
		return "", ErrInvalidName
	}
	id := match.ParticipantID(uuid.NewString())
	d.mu.Lock()
	d.avatars[id] = &avatar{
		id:          id,
		name:        name,
		scale:       1,
		connectedAt: d.now(),
	}
	d.mu.Unlock()
	d.log.Info().Str("participant", string(id)).Str("name", name).Msg("connected")
	return id, nil
}

// Disconnect forgets id. It reports whether id was connected.
func (d *Directory) Disconnect(id match.ParticipantID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.avatars[id]; !ok {
		return false
	}
	delete(d.avatars, id)
	d.log.Info().Str("participant", string(id)).Msg("disconnected")
	return true
}

func (d *Directory) IsConnected(id match.ParticipantID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.avatars[id]
	return ok
}

// Resolve returns a handle on a connected participant.
func (d *Directory) Resolve(id match.ParticipantID) (match.Participant, bool) {
	if !d.IsConnected(id) {
		return nil, false
	}
	return &handle{d: d, id: id}, true
}

// Get returns the avatar of id with expired effects dropped.
func (d *Directory) Get(id match.ParticipantID) (Avatar, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.avatars[id]
	if !ok {
		return Avatar{}, false
	}
	return a.view(d.now()), true
}

// List returns every avatar ordered by name.
func (d *Directory) List() []Avatar {
	d.mu.RLock()
	now := d.now()
	out := make([]Avatar, 0, len(d.avatars))
	for _, a := range d.avatars {
		out = append(out, a.view(now))
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Name returns the display name of id, or the id itself when unknown.
func (d *Directory) Name(id match.ParticipantID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if a, ok := d.avatars[id]; ok {
		return a.name
	}
	return string(id)
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.avatars)
}

func (a *avatar) view(now time.Time) Avatar {
	v := Avatar{
		ID:          a.id,
		Name:        a.name,
		Position:    a.pos,
		Mode:        a.mode.String(),
		Scale:       a.scale,
		ConnectedAt: a.connectedAt,
	}
	if a.immuneUntil.After(now) {
		v.ImmuneUntil = a.immuneUntil
	}
	for _, e := range a.effects {
		if e.Until.After(now) {
			v.Effects = append(v.Effects, e)
		}
	}
	return v
}

// update runs fn on the avatar of id if it is still connected.
func (d *Directory) update(id match.ParticipantID, fn func(a *avatar, now time.Time)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.avatars[id]
	if !ok {
		d.log.Warn().Str("participant", string(id)).Msg("update for a participant that left")
		return
	}
	fn(a, d.now())
}
