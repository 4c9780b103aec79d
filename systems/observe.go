package systems

import (
	"github.com/pthm-cable/crowd/components"
	"github.com/pthm-cable/crowd/geom"
)

// NumObservations is the length of an agent's observation vector.
const NumObservations = 12

// Observe fills dst with the agent's view of the world, in order:
//
//	[0:2]  local velocity direction (right, forward)
//	[2]    speed / max speed
//	[3]    goal distance relative to the spawn distance, clamped to [0, 1]
//	[4]    signed goal angle / 180
//	[5]    group spacing mapped from [1, 2.5] to [0, 1], clamped
//	[6]    signed angle to the group centroid / 180
//	[7]    group speed variance, clamped to [0, 1]
//	[8:12] goal, group, interaction and connectivity weights
//
// The values come from the agent's last scoring pass.
func Observe(dst []float32, a *components.Agent, heading, vel geom.Vec2) []float32 {
	dst = dst[:0]

	right := heading.Rotate(90)
	local := geom.V(vel.Dot(right), vel.Dot(heading)).Normalize()
	dst = append(dst, float32(local.X), float32(local.Z))

	var speedNorm float64
	if a.MaxSpeed > 0 {
		speedNorm = vel.Len() / a.MaxSpeed
	}
	dst = append(dst, float32(speedNorm))

	goalNorm := 1.0
	if a.InitialGoalDist > 0 {
		goalNorm = geom.Clamp01(a.GoalDist / a.InitialGoalDist)
	}
	dst = append(dst, float32(goalNorm), float32(a.GoalAngle/180))

	spacing := geom.Clamp01(geom.MapRange(a.InterconnDist, ConnectMinDist, ConnectMaxDist, 0, 1))
	dst = append(dst,
		float32(spacing),
		float32(a.InterconnAngle/180),
		float32(geom.Clamp01(a.SpeedVariance)),
	)

	w := a.Weights
	return append(dst, float32(w.Goal), float32(w.Group), float32(w.Interaction), float32(w.Connectivity))
}
