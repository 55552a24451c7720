package arena

import (
	"math/rand"
	"sync"
)

// Provider answers lobby and arena questions from the last loaded Layout.
type Provider struct {
	mu         sync.RWMutex
	layout     Layout
	worldSpawn Point
}

// NewProvider returns a provider that falls back to worldSpawn when no lobby
// is configured.
func NewProvider(layout Layout, worldSpawn Point) *Provider {
	return &Provider{layout: layout, worldSpawn: worldSpawn}
}

// Set replaces the layout, typically after a reload.
func (p *Provider) Set(layout Layout) {
	p.mu.Lock()
	p.layout = layout
	p.mu.Unlock()
}

// Layout returns the current layout.
func (p *Provider) Layout() Layout {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.layout
}

func (p *Provider) IsLobbyConfigured() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.layout.Lobby.Complete()
}

// IsArenaConfigured reports whether the active arena has complete bounds and
// at least one spawn point.
func (p *Provider) IsArenaConfigured() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	def, ok := p.layout.ActiveArena()
	return ok && def.Ready()
}

// PickSpawn chooses a random configured spawn of the active arena, or a
// random point inside its bounds when it has none.
func (p *Provider) PickSpawn(rng *rand.Rand) (Point, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	def, ok := p.layout.ActiveArena()
	if !ok {
		return Point{}, false
	}
	if len(def.Spawns) > 0 {
		return def.Spawns[rng.Intn(len(def.Spawns))], true
	}
	return def.Area.RandomPoint(rng)
}

// SafeReturnPoint is the lobby centre, or the world spawn without a lobby.
func (p *Provider) SafeReturnPoint() Point {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.layout.Lobby.Complete() {
		return p.layout.Lobby.Center()
	}
	return p.worldSpawn
}
