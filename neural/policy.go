// Package neural provides the decision sources that turn an agent's
// observations into a forward/turn action.
package neural

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
)

// Observation indices used by the hand-written policies.
const (
	obsGoalDist    = 3
	obsGoalAngle   = 4
	obsGoalWeight  = 8
	obsGroupWeight = 9
	obsInterWeight = 10
)

// Action is one decision: Forward scales the stride, Turn scales a 45 degree
// heading change. Both are in [-1, 1].
type Action struct {
	Forward float32
	Turn    float32
}

// Policy maps an observation vector to an action. Implementations must be
// safe to call from one goroutine at a time per agent; all provided ones are
// stateless.
type Policy interface {
	Decide(obs []float32) Action
}

// Straight always walks forward at full stride.
type Straight struct{}

// Decide implements Policy.
func (Straight) Decide([]float32) Action { return Action{Forward: 1} }

// Seek steers toward the goal and eases off when social weights dominate.
type Seek struct {
	TurnGain float64 `yaml:"turn_gain"` // turn action per 45 degrees of goal angle
	Cruise   float64 `yaml:"cruise"`    // forward action when goal-seeking
	Settle   float64 `yaml:"settle"`    // forward reduction per unit of social weight over goal weight
	Arrive   float64 `yaml:"arrive"`    // goal distance fraction under which the stride shortens
}

// DefaultSeek returns hand-tuned gains.
func DefaultSeek() Seek {
	return Seek{TurnGain: 1, Cruise: 0.6, Settle: 1.2, Arrive: 0.15}
}

// Decide implements Policy.
func (s Seek) Decide(obs []float32) Action {
	if len(obs) <= obsInterWeight {
		return Action{}
	}
	angle := float64(obs[obsGoalAngle]) * 180
	turn := clamp(angle/45*s.TurnGain, -1, 1)

	forward := s.Cruise
	social := float64(obs[obsGroupWeight] + obs[obsInterWeight])
	if goal := float64(obs[obsGoalWeight]); social > goal {
		forward -= s.Settle * (social - goal)
	}
	if d := float64(obs[obsGoalDist]); s.Arrive > 0 && d < s.Arrive {
		forward = min(forward, -1+2*d/s.Arrive)
	}
	return Action{Forward: float32(clamp(forward, -1, 1)), Turn: float32(turn)}
}

// Params returns the tunable gains as a vector.
func (s Seek) Params() []float64 {
	return []float64{s.TurnGain, s.Cruise, s.Settle, s.Arrive}
}

// SeekFromParams is the inverse of Params.
func SeekFromParams(p []float64) Seek {
	s := DefaultSeek()
	if len(p) >= 4 {
		s = Seek{TurnGain: p[0], Cruise: p[1], Settle: p[2], Arrive: p[3]}
	}
	return s
}

// New builds a policy by kind name: "seek", "straight" or "ffnn".
func New(kind string, seek Seek, rng *rand.Rand) (Policy, error) {
	switch kind {
	case "", "seek":
		return seek, nil
	case "straight":
		return Straight{}, nil
	case "ffnn":
		return NewFFNN(rng), nil
	default:
		return nil, fmt.Errorf("unknown policy kind %q", kind)
	}
}

// LoadFFNN reads JSON-encoded BrainWeights.
func LoadFFNN(r io.Reader) (*FFNN, error) {
	var bw BrainWeights
	if err := json.NewDecoder(r).Decode(&bw); err != nil {
		return nil, fmt.Errorf("decoding weights: %w", err)
	}
	if len(bw.W1) != NumHidden*NumInputs || len(bw.W2) != NumOutputs*NumHidden {
		return nil, fmt.Errorf("weights shape mismatch: w1=%d w2=%d", len(bw.W1), len(bw.W2))
	}
	nn := &FFNN{}
	nn.UnmarshalWeights(bw)
	return nn, nil
}

// SaveFFNN writes nn as JSON-encoded BrainWeights.
func SaveFFNN(w io.Writer, nn *FFNN) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(nn.MarshalWeights()); err != nil {
		return fmt.Errorf("encoding weights: %w", err)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
