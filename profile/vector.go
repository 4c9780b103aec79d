// Package profile holds the behavior weights that steer agents and the grid
// of rooms that blends them over space and time.
package profile

import "math"

// Vector is the set of relative drives an agent or room carries toward its
// four objectives. Operations are component-wise and never clamp.
type Vector struct {
	Goal         float64 `json:"goal"`
	Group        float64 `json:"group"`
	Interaction  float64 `json:"interaction"`
	Connectivity float64 `json:"connection"`
}

// DefaultVector is the pure goal-seeking profile given to rooms without data.
var DefaultVector = Vector{Goal: 1, Group: 0, Interaction: 0, Connectivity: 0.25}

// Scale multiplies every weight by w.
func (v Vector) Scale(w float64) Vector {
	return Vector{v.Goal * w, v.Group * w, v.Interaction * w, v.Connectivity * w}
}

// Add sums two vectors.
func (v Vector) Add(o Vector) Vector {
	return Vector{v.Goal + o.Goal, v.Group + o.Group, v.Interaction + o.Interaction, v.Connectivity + o.Connectivity}
}

// Lerp returns v + (o-v)*t. t is not clamped.
func (v Vector) Lerp(o Vector, t float64) Vector {
	return Vector{
		Goal:         v.Goal + (o.Goal-v.Goal)*t,
		Group:        v.Group + (o.Group-v.Group)*t,
		Interaction:  v.Interaction + (o.Interaction-v.Interaction)*t,
		Connectivity: v.Connectivity + (o.Connectivity-v.Connectivity)*t,
	}
}

// IsSimilar reports whether every component differs from o by at most eps.
func (v Vector) IsSimilar(o Vector, eps float64) bool {
	return math.Abs(v.Goal-o.Goal) <= eps &&
		math.Abs(v.Group-o.Group) <= eps &&
		math.Abs(v.Interaction-o.Interaction) <= eps &&
		math.Abs(v.Connectivity-o.Connectivity) <= eps
}

// Array returns the weights in [goal, group, interaction, connectivity] order.
func (v Vector) Array() [4]float64 {
	return [4]float64{v.Goal, v.Group, v.Interaction, v.Connectivity}
}

// FromArray is the inverse of Array.
func FromArray(a [4]float64) Vector {
	return Vector{a[0], a[1], a[2], a[3]}
}

// FromSlice builds a Vector from at least four values.
func FromSlice(s []float64) (Vector, bool) {
	if len(s) < 4 {
		return Vector{}, false
	}
	return Vector{s[0], s[1], s[2], s[3]}, true
}
