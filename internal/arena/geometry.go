// Package arena models the lobby and the playable arenas, persists their
// definitions in redis and answers the spawn and return-point questions the
// match manager asks.
package arena

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Point is a position in a named world.
type Point struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw,omitempty"`
	Pitch float32 `json:"pitch,omitempty"`
}

func (p Point) String() string {
	return fmt.Sprintf("%s:%.1f,%.1f,%.1f", p.World, p.X, p.Y, p.Z)
}

// ParsePoint reads "world:x,y,z" with optional ",yaw,pitch".
func ParsePoint(s string) (Point, error) {
	world, coords, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || world == "" {
		return Point{}, eris.Errorf("point %q: missing world", s)
	}
	parts := strings.Split(coords, ",")
	if len(parts) != 3 && len(parts) != 5 {
		return Point{}, eris.Errorf("point %q: want x,y,z[,yaw,pitch]", s)
	}
	vals := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Point{}, eris.Wrapf(err, "point %q", s)
		}
		vals[i] = v
	}
	p := Point{World: world, X: vals[0], Y: vals[1], Z: vals[2]}
	if len(vals) == 5 {
		p.Yaw, p.Pitch = float32(vals[3]), float32(vals[4])
	}
	return p, nil
}

// Area is an axis-aligned box given by two opposite corners.
type Area struct {
	Pos1 *Point `json:"pos1,omitempty"`
	Pos2 *Point `json:"pos2,omitempty"`
}

// Complete reports whether both corners are set in the same world.
func (a Area) Complete() bool {
	return a.Pos1 != nil && a.Pos2 != nil && a.Pos1.World == a.Pos2.World
}

// SetCorner sets corner 1 or 2.
func (a *Area) SetCorner(corner int, p Point) error {
	switch corner {
	case 1:
		a.Pos1 = &p
	case 2:
		a.Pos2 = &p
	default:
		return eris.Wrapf(ErrBadCorner, "corner %d", corner)
	}
	return nil
}

func (a Area) Min() Point {
	if !a.Complete() {
		return Point{}
	}
	return Point{
		World: a.Pos1.World,
		X:     math.Min(a.Pos1.X, a.Pos2.X),
		Y:     math.Min(a.Pos1.Y, a.Pos2.Y),
		Z:     math.Min(a.Pos1.Z, a.Pos2.Z),
	}
}

func (a Area) Max() Point {
	if !a.Complete() {
		return Point{}
	}
	return Point{
		World: a.Pos1.World,
		X:     math.Max(a.Pos1.X, a.Pos2.X),
		Y:     math.Max(a.Pos1.Y, a.Pos2.Y),
		Z:     math.Max(a.Pos1.Z, a.Pos2.Z),
	}
}

// Center is the midpoint of the box. The zero Point is returned for an
// incomplete area.
func (a Area) Center() Point {
	lo, hi := a.Min(), a.Max()
	return Point{
		World: lo.World,
		X:     (lo.X + hi.X) / 2,
		Y:     (lo.Y + hi.Y) / 2,
		Z:     (lo.Z + hi.Z) / 2,
	}
}

// Contains reports whether p lies inside the box, edges included.
func (a Area) Contains(p Point) bool {
	if !a.Complete() || p.World != a.Pos1.World {
		return false
	}
	lo, hi := a.Min(), a.Max()
	return p.X >= lo.X && p.X <= hi.X &&
		p.Y >= lo.Y && p.Y <= hi.Y &&
		p.Z >= lo.Z && p.Z <= hi.Z
}

// RandomPoint returns a uniformly random point inside the box, standing on
// its floor.
func (a Area) RandomPoint(rng *rand.Rand) (Point, bool) {
	if !a.Complete() {
		return Point{}, false
	}
	lo, hi := a.Min(), a.Max()
	return Point{
		World: lo.World,
		X:     lo.X + rng.Float64()*(hi.X-lo.X),
		Y:     lo.Y,
		Z:     lo.Z + rng.Float64()*(hi.Z-lo.Z),
	}, true
}

// Definition is a named arena with optional discrete spawn points.
type Definition struct {
	Name   string  `json:"name"`
	Area   Area    `json:"area"`
	Spawns []Point `json:"spawns,omitempty"`
}

// Ready reports whether a match can be played in the arena.
func (d Definition) Ready() bool {
	return d.Area.Complete() && len(d.Spawns) > 0
}
