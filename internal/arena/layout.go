package arena

import "sort"

// Layout is a snapshot of the lobby and every arena definition.
type Layout struct {
	Lobby  Area
	Arenas map[string]Definition
	Active string
}

// Names returns the arena names in sorted order.
func (l Layout) Names() []string {
	names := make([]string, 0, len(l.Arenas))
	for name := range l.Arenas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveArena resolves the chosen arena, falling back to the first by name
// when none is chosen or the choice no longer exists.
func (l Layout) ActiveArena() (Definition, bool) {
	if def, ok := l.Arenas[l.Active]; ok {
		return def, true
	}
	names := l.Names()
	if len(names) == 0 {
		return Definition{}, false
	}
	return l.Arenas[names[0]], true
}
