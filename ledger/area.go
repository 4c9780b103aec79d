package ledger

import (
	"math"

	"github.com/pthm-cable/crowd/geom"
)

// Area is an axis-aligned rectangle on the ground plane.
type Area struct {
	Center     geom.Vec2
	HalfExtent geom.Vec2
}

// Contains reports whether p lies strictly inside the area.
func (a Area) Contains(p geom.Vec2) bool {
	return math.Abs(p.X-a.Center.X) < a.HalfExtent.X && math.Abs(p.Z-a.Center.Z) < a.HalfExtent.Z
}
