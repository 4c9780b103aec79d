package systems

import (
	"math"

	"github.com/pthm-cable/crowd/components"
	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/ledger"
	"github.com/pthm-cable/crowd/profile"
)

// Signal magnitudes.
const (
	SmoothK = 0.015

	ArrivalScale       = 5.0
	ArrivalLinearScale = 0.01 * 0.3

	ProgressReward      = 0.0025
	HeadingReward       = 0.0025
	HeadingToleranceDeg = 30.0
	SpeedReward         = 0.0025

	GroupReward       = 0.0025
	GroupSettleReward = 0.005
	GroupStillReward  = 0.0025

	InteractReward       = 0.01
	InteractSettleReward = 0.005
	InteractNearReward   = 0.0025
	InteractStillReward  = 0.0025

	ConnectMinDist   = 1.0
	ConnectMaxDist   = 2.5
	ConnectTolerance = 0.5
	ConnectMaxVar    = 0.05
	ConnectReward    = 0.01
	ConnectPenalty   = -0.005

	StepPenalty     = -0.005
	StepGoalPenalty = 0.0025
)

// Signals are the per-objective scores one agent received this tick.
type Signals struct {
	Smooth      float64
	Goal        float64
	Group       float64
	Interaction float64
	Connect     float64
	Step        float64
	Terminal    float64

	Outcome components.Outcome
	Froze   bool // the agent froze at an out-of-bounds goal this tick
	Stale   bool // the group snapshot was rejected; Connect is zero
}

// Total sums the signals.
func (s Signals) Total() float64 {
	return s.Smooth + s.Goal + s.Group + s.Interaction + s.Connect + s.Step + s.Terminal
}

// Accumulate adds s into an agent's running score.
func (s Signals) Accumulate(sc *components.Score) {
	sc.Smooth += s.Smooth
	sc.Goal += s.Goal
	sc.Group += s.Group
	sc.Interaction += s.Interaction
	sc.Connect += s.Connect
	sc.Step += s.Step
	sc.Terminal += s.Terminal
	sc.Total += s.Total()
	if s.Stale {
		sc.Stale++
	}
}

// ScoreContext is the world state an agent is scored against.
type ScoreContext struct {
	Caps *Capabilities

	Neighborhood   Neighborhood
	Interaction    geom.Vec2
	HasInteraction bool

	Group   ledger.Record
	GroupOK bool // false when the snapshot was rejected for this agent

	GoalInBounds bool
	OnField      bool
	Contact      Contact

	Tick    int
	MaxStep int // 0 disables expiry
}

// Score evaluates one agent after the avoidance step. It updates the
// agent's goal tracking, slow zone and interconnection observations.
func Score(a *components.Agent, pos, heading, vel geom.Vec2, ctx *ScoreContext) Signals {
	var s Signals
	caps := ctx.Caps

	speed := vel.Len()
	a.Speed = speed

	toGoal := a.Goal.Sub(pos)
	dist := toGoal.Len()
	a.GoalDist = dist
	a.GoalAngle = geom.SignedAngle(heading, toGoal)

	if caps.SlowRadius > 0 && dist <= caps.SlowRadius {
		a.MaxSpeed = caps.SlowSpeed
	}
	maxSpeed := a.MaxSpeed
	if maxSpeed <= 0 {
		maxSpeed = math.SmallestNonzeroFloat64
	}

	if a.Driven {
		s.Smooth = -SmoothK * vel.Sub(a.Preferred).Len() / maxSpeed
	}

	// Arrival
	if dist <= caps.GoalDistance && !a.Frozen {
		s.Goal += arrivalReward(a, ctx.MaxStep, caps)
		if ctx.GoalInBounds || !caps.FreezeOffField {
			s.Outcome = components.OutcomeArrived
		} else {
			a.Frozen = true
			a.CanMove = false
			s.Froze = true
		}
	}

	// Progress
	if dist <= a.BestGoalDist {
		s.Goal += ProgressReward * a.Weights.Goal
		a.BestGoalDist = dist
		if math.Abs(a.GoalAngle) <= HeadingToleranceDeg {
			s.Goal += HeadingReward * a.Weights.Goal
		}
		s.Goal += SpeedReward * a.Weights.Goal * (1 - (maxSpeed-speed)/maxSpeed)
	}

	n := ctx.Neighborhood
	settle := (maxSpeed - speed) / maxSpeed

	if w := a.Weights.Group; w > 0 {
		dot := heading.Dot(n.Centroid.Sub(pos).Normalize())
		if n.NearestDist <= caps.GroupDistance && dot >= caps.GroupDotMin &&
			n.Count <= caps.MaxNeighbours && n.Count > 0 {
			s.Group += GroupReward*w + GroupSettleReward*w*settle
			if speed <= caps.StationarySpeed {
				s.Group += GroupStillReward * w
			}
		}
	}

	if w := a.Weights.Interaction; w > 0 && ctx.HasInteraction {
		d := ctx.Interaction.Dist(pos)
		dot := heading.Dot(ctx.Interaction.Sub(pos).Normalize())
		if d <= caps.InteractionDistance && dot >= caps.InteractionDotMin && n.Count <= caps.MaxNeighbours {
			s.Interaction += InteractReward*w + InteractSettleReward*w*settle
			if caps.ProximityBonus && caps.InteractionDistance > 0 {
				s.Interaction += InteractNearReward * w * (caps.InteractionDistance - d) / caps.InteractionDistance
			}
			if speed <= caps.StationarySpeed {
				s.Interaction += InteractStillReward * w
			}
		}
	}

	s.Connect, s.Stale = connectivity(a, pos, heading, ctx)

	s.Step = StepPenalty
	if caps.StepGoalCoupled {
		s.Step -= a.Weights.Goal * StepGoalPenalty
	}

	if s.Outcome == components.OutcomeNone {
		s.Terminal, s.Outcome = terminal(a, ctx)
	}
	return s
}

func arrivalReward(a *components.Agent, maxStep int, caps *Capabilities) float64 {
	if caps.ArrivalLinear {
		return ArrivalLinearScale * a.Weights.Goal * float64(maxStep-a.Step)
	}
	frac := 1.0
	if maxStep > 0 {
		frac = geom.Clamp01(float64(maxStep-a.Step) / float64(maxStep))
	}
	return ArrivalScale * a.Weights.Goal * frac
}

// DesiredSpacing maps a connectivity weight to the mean distance a group
// should keep from its centroid: 1 at full connectivity, 2.5 at none.
func DesiredSpacing(connect float64) float64 {
	return geom.MapRange(1-connect, 0, 1, ConnectMinDist, ConnectMaxDist)
}

func connectivity(a *components.Agent, pos, heading geom.Vec2, ctx *ScoreContext) (float64, bool) {
	if !ctx.GroupOK {
		a.InterconnDist, a.InterconnAngle, a.SpeedVariance = 0, 0, 0
		return 0, true
	}
	g := ctx.Group
	if g.Size() <= 1 {
		a.InterconnDist, a.InterconnAngle, a.SpeedVariance = 0, 0, 0
		return 0, false
	}
	a.InterconnDist = g.MeanDistance
	a.InterconnAngle = geom.SignedAngle(heading, g.Centroid.Sub(pos))
	a.SpeedVariance = g.SpeedVariance

	desired := DesiredSpacing(a.Weights.Connectivity)
	if math.Abs(g.MeanDistance-desired) <= ConnectTolerance && g.SpeedVariance <= ConnectMaxVar {
		return ConnectReward, false
	}
	return ConnectPenalty, false
}

func terminal(a *components.Agent, ctx *ScoreContext) (float64, components.Outcome) {
	caps := ctx.Caps
	switch ctx.Contact {
	case ContactObstacle:
		if a.Step >= caps.CollisionGrace {
			return caps.ObstaclePenalty, components.OutcomeCollidedObstacle
		}
		if caps.EndOnContact {
			return 0, components.OutcomeCollidedObstacle
		}
	case ContactInteraction:
		if a.Step >= caps.CollisionGrace {
			return caps.InteractionPenalty, components.OutcomeCollidedInteraction
		}
		if caps.EndOnContact {
			return 0, components.OutcomeCollidedInteraction
		}
	}

	if !ctx.OnField && !a.Frozen && a.LocalFrame >= caps.BoundaryGrace {
		return 0, components.OutcomeBoundaryExit
	}
	if ctx.MaxStep > 0 && a.Step >= ctx.MaxStep {
		return 0, components.OutcomeExpired
	}
	if a.EndTick > 0 && ctx.Tick >= a.EndTick && a.GoalDist < 1 {
		return 0, components.OutcomeExpired
	}
	return 0, components.OutcomeNone
}

// ResolveWeights picks the behavior vector an agent steers by this tick.
// Agents that have not inherited drive with the capability default, keeping
// the field's connectivity.
func ResolveWeights(field profile.Vector, inherit bool, caps *Capabilities) profile.Vector {
	if !caps.RequireInheritance || inherit {
		return field
	}
	v := caps.GroupDefault
	v.Connectivity = field.Connectivity
	return v
}
