// Package geom provides ground-plane vector math shared by the simulation packages.
//
// The ground plane is (x, z): +z points north and +x points east.
package geom

import "math"

// Vec2 is a point or direction on the ground plane.
type Vec2 struct {
	X, Z float64
}

// V constructs a Vec2.
func V(x, z float64) Vec2 { return Vec2{X: x, Z: z} }

func (a Vec2) Add(b Vec2) Vec2 { return Vec2{a.X + b.X, a.Z + b.Z} }
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.X - b.X, a.Z - b.Z} }
func (a Vec2) Scale(s float64) Vec2 { return Vec2{a.X * s, a.Z * s} }
func (a Vec2) Dot(b Vec2) float64 { return a.X*b.X + a.Z*b.Z }
func (a Vec2) LenSq() float64 { return a.X*a.X + a.Z*a.Z }
func (a Vec2) Len() float64 { return math.Sqrt(a.LenSq()) }
func (a Vec2) Dist(b Vec2) float64 { return a.Sub(b).Len() }
func (a Vec2) DistSq(b Vec2) float64 { return a.Sub(b).LenSq() }
func (a Vec2) Lerp(b Vec2, t float64) Vec2 {
	return Vec2{a.X + (b.X-a.X)*t, a.Z + (b.Z-a.Z)*t}
}

// Normalize returns the unit vector in the direction of a, or the zero vector
// when a is shorter than 1e-9.
func (a Vec2) Normalize() Vec2 {
	l := a.Len()
	if l < 1e-9 {
		return Vec2{}
	}
	return Vec2{a.X / l, a.Z / l}
}

// ClampLen rescales a to length max when it is longer.
func (a Vec2) ClampLen(max float64) Vec2 {
	l := a.Len()
	if l > max && l > 0 {
		return a.Scale(max / l)
	}
	return a
}

// Rotate turns a by deg degrees. Positive angles turn clockwise when viewed
// from above (from +z toward +x), matching a yaw rotation.
func (a Vec2) Rotate(deg float64) Vec2 {
	r := deg * math.Pi / 180
	s, c := math.Sincos(r)
	return Vec2{a.X*c + a.Z*s, -a.X*s + a.Z*c}
}

// SignedAngle returns the angle in degrees from a to b in [-180, 180],
// positive when b is clockwise of a, using the same convention as Rotate.
func SignedAngle(a, b Vec2) float64 {
	if a.LenSq() == 0 || b.LenSq() == 0 {
		return 0
	}
	cross := a.Z*b.X - a.X*b.Z
	return math.Atan2(cross, a.Dot(b)) * 180 / math.Pi
}

// Yaw returns the heading of d in degrees, 0 along +z and 90 along +x.
func Yaw(d Vec2) float64 {
	return math.Atan2(d.X, d.Z) * 180 / math.Pi
}

// Clamp clamps v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// MapRange linearly maps v from [a0, a1] to [b0, b1] without clamping.
func MapRange(v, a0, a1, b0, b1 float64) float64 {
	if a1 == a0 {
		return b0
	}
	return b0 + (v-a0)*(b1-b0)/(a1-a0)
}
