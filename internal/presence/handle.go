package presence

import (
	"time"

	"tinyhunt/internal/arena"
	"tinyhunt/internal/match"
)

// handle is the match.Participant view of one avatar. Calls on a handle whose
// participant has disconnected are dropped.
type handle struct {
	d  *Directory
	id match.ParticipantID
}

func (h *handle) ID() match.ParticipantID {
	return h.id
}

func (h *handle) Name() string {
	return h.d.Name(h.id)
}

func (h *handle) Teleport(p arena.Point) {
	h.d.update(h.id, func(a *avatar, _ time.Time) { a.pos = p })
}

func (h *handle) Mode() match.Mode {
	h.d.mu.RLock()
	defer h.d.mu.RUnlock()
	if a, ok := h.d.avatars[h.id]; ok {
		return a.mode
	}
	return match.Playing
}

func (h *handle) SetMode(mode match.Mode) {
	h.d.update(h.id, func(a *avatar, _ time.Time) { a.mode = mode })
}

func (h *handle) SetScale(scale float64) {
	h.d.update(h.id, func(a *avatar, _ time.Time) { a.scale = scale })
}

// GrantImmunity makes the participant immune for d. Zero clears immunity.
func (h *handle) GrantImmunity(d time.Duration) {
	h.d.update(h.id, func(a *avatar, now time.Time) {
		if d <= 0 {
			a.immuneUntil = time.Time{}
			return
		}
		a.immuneUntil = now.Add(d)
	})
}

// ApplyEffect adds e, replacing an active effect of the same kind.
func (h *handle) ApplyEffect(e match.Effect) {
	h.d.update(h.id, func(a *avatar, now time.Time) {
		kind := e.Kind.String()
		kept := a.effects[:0]
		for _, have := range a.effects {
			if have.Kind != kind && have.Until.After(now) {
				kept = append(kept, have)
			}
		}
		a.effects = append(kept, ActiveEffect{Kind: kind, Amplifier: e.Amplifier, Until: now.Add(e.Duration)})
	})
}

func (h *handle) ClearEffects() {
	h.d.update(h.id, func(a *avatar, _ time.Time) { a.effects = nil })
}
