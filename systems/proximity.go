package systems

import (
	"math"

	"github.com/pthm-cable/crowd/geom"
)

// MinNearestDist excludes the querying agent and coincident agents from
// the nearest-agent search.
const MinNearestDist = 0.1

// Neighborhood summarizes the agents around a query position.
type Neighborhood struct {
	Nearest     geom.Vec2 // closest other agent, or the query position
	NearestDist float64
	Centroid    geom.Vec2 // mean of agents within the radius
	Count       int       // agents within the radius, including the querier
}

// CloserAgent scans every active position once. With fewer than two active
// agents the result is empty and points back at pos.
func CloserAgent(pos geom.Vec2, active []geom.Vec2, radius float64) Neighborhood {
	n := Neighborhood{Nearest: pos, Centroid: pos}
	if len(active) < 2 {
		return n
	}

	minDist := math.Inf(1)
	var sum geom.Vec2
	for _, p := range active {
		d := p.Dist(pos)
		if d <= radius {
			n.Count++
			sum = sum.Add(p)
		}
		if d < minDist && d > MinNearestDist {
			minDist = d
			n.Nearest = p
		}
	}
	n.NearestDist = pos.Dist(n.Nearest)
	if n.Count > 1 {
		n.Centroid = sum.Scale(1 / float64(n.Count))
	}
	return n
}

// BoxKind distinguishes scene geometry.
type BoxKind uint8

const (
	BoxObstacle BoxKind = iota
	BoxInteraction
)

func (k BoxKind) String() string {
	if k == BoxInteraction {
		return "interaction"
	}
	return "obstacle"
}

// Box is an axis-aligned scene object.
type Box struct {
	Center     geom.Vec2
	HalfExtent geom.Vec2
	Kind       BoxKind
}

// ClosestPoint returns the point of the box nearest p; p itself when inside.
func (b Box) ClosestPoint(p geom.Vec2) geom.Vec2 {
	return geom.V(
		geom.Clamp(p.X, b.Center.X-b.HalfExtent.X, b.Center.X+b.HalfExtent.X),
		geom.Clamp(p.Z, b.Center.Z-b.HalfExtent.Z, b.Center.Z+b.HalfExtent.Z),
	)
}

// Contains reports whether p is inside or on the box.
func (b Box) Contains(p geom.Vec2) bool {
	return math.Abs(p.X-b.Center.X) <= b.HalfExtent.X && math.Abs(p.Z-b.Center.Z) <= b.HalfExtent.Z
}

// Polygon returns the box corners in counter-clockwise order.
func (b Box) Polygon() []geom.Vec2 {
	c, h := b.Center, b.HalfExtent
	return []geom.Vec2{
		geom.V(c.X-h.X, c.Z-h.Z),
		geom.V(c.X+h.X, c.Z-h.Z),
		geom.V(c.X+h.X, c.Z+h.Z),
		geom.V(c.X-h.X, c.Z+h.Z),
	}
}

// CloserInteraction returns the nearest surface point over the interaction
// boxes. ok is false when there are none.
func CloserInteraction(pos geom.Vec2, boxes []Box) (point geom.Vec2, ok bool) {
	point = pos
	minDist := math.Inf(1)
	for _, b := range boxes {
		if b.Kind != BoxInteraction {
			continue
		}
		cp := b.ClosestPoint(pos)
		if d := cp.DistSq(pos); d < minDist {
			minDist = d
			point = cp
			ok = true
		}
	}
	return point, ok
}

// Contact classifies what an agent is touching.
type Contact uint8

const (
	ContactNone Contact = iota
	ContactObstacle
	ContactInteraction
)

// ClassifyContact tests a circle of the given radius against the boxes.
// Obstacles take precedence over interactions.
func ClassifyContact(pos geom.Vec2, radius float64, boxes []Box) Contact {
	c := ContactNone
	r2 := radius * radius
	for _, b := range boxes {
		if b.ClosestPoint(pos).DistSq(pos) > r2 {
			continue
		}
		if b.Kind == BoxObstacle {
			return ContactObstacle
		}
		c = ContactInteraction
	}
	return c
}
