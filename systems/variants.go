package systems

import (
	"fmt"

	"github.com/pthm-cable/crowd/profile"
)

// Framework returns the capabilities of dataset-driven agents: the profile
// field always supplies weights and contact is penalized but the agent keeps
// walking until its episode otherwise ends.
func Framework() Capabilities {
	return Capabilities{
		Name:                "framework",
		ActionMin:           -0.3,
		GoalDistance:        1.5,
		SlowRadius:          1,
		SlowSpeed:           0.25,
		FreezeOffField:      true,
		GroupDistance:       3,
		GroupDotMin:         0.5,
		MaxNeighbours:       4,
		InteractionDistance: 4,
		InteractionDotMin:   0.5,
		StationarySpeed:     0.1,
		StepGoalCoupled:     true,
		CollisionGrace:      30,
		ObstaclePenalty:     -5,
		InteractionPenalty:  -3,
		BoundaryGrace:       50,
		WarmupSteps:         10,
	}
}

// Training returns the capabilities of generated training agents: groups
// walk straight at their initial speed until they all reach the inheritance
// zone, and any contact ends the episode.
func Training() Capabilities {
	return Capabilities{
		Name:                "training",
		ActionMin:           -0.35,
		GoalDistance:        1.5,
		ArrivalLinear:       true,
		FreezeOffField:      true,
		GroupDistance:       1.5,
		GroupDotMin:         0.6,
		MaxNeighbours:       10,
		InteractionDistance: 4,
		InteractionDotMin:   0.5,
		ProximityBonus:      true,
		StationarySpeed:     0.1,
		CollisionGrace:      50,
		ObstaclePenalty:     -4,
		InteractionPenalty:  -2,
		EndOnContact:        true,
		BoundaryGrace:       50,
		WarmupSteps:         10,
		RequireInheritance:  true,
		GroupDefault:        profile.Vector{Goal: 0.8, Group: 0.1, Interaction: 0.1},
	}
}

// Variant returns the capability set registered under name.
func Variant(name string) (Capabilities, error) {
	switch name {
	case "framework":
		return Framework(), nil
	case "training":
		return Training(), nil
	default:
		return Capabilities{}, fmt.Errorf("unknown variant %q", name)
	}
}
