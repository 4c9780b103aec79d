package neural

import (
	"math/rand"
	"testing"
)

func seekObs(goalDist, goalAngleDeg float32, w [4]float32) []float32 {
	obs := make([]float32, NumInputs)
	obs[obsGoalDist] = goalDist
	obs[obsGoalAngle] = goalAngleDeg / 180
	copy(obs[obsGoalWeight:], w[:])
	return obs
}

func TestSeekDecide(t *testing.T) {
	s := DefaultSeek()
	tests := []struct {
		name        string
		obs         []float32
		wantForward float32
		wantTurn    float32
	}{
		{"cruise ahead", seekObs(1, 0, [4]float32{1, 0, 0, 0}), 0.6, 0},
		{"full right", seekObs(1, 90, [4]float32{1, 0, 0, 0}), 0.6, 1},
		{"half left", seekObs(1, -22.5, [4]float32{1, 0, 0, 0}), 0.6, -0.5},
		{"at goal", seekObs(0, 0, [4]float32{1, 0, 0, 0}), -1, 0},
		{"social settles", seekObs(1, 0, [4]float32{0, 1, 0, 0}), -0.6, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := s.Decide(tt.obs)
			if abs32(a.Forward-tt.wantForward) > 1e-6 || abs32(a.Turn-tt.wantTurn) > 1e-6 {
				t.Errorf("action = %+v, want forward %v turn %v", a, tt.wantForward, tt.wantTurn)
			}
		})
	}
}

func TestSeekShortObservation(t *testing.T) {
	if a := DefaultSeek().Decide(make([]float32, 3)); a != (Action{}) {
		t.Errorf("short observation action = %+v, want zero", a)
	}
}

func TestSeekParams(t *testing.T) {
	s := Seek{TurnGain: 2, Cruise: 0.1, Settle: 0.3, Arrive: 0.4}
	if got := SeekFromParams(s.Params()); got != s {
		t.Errorf("SeekFromParams = %+v, want %+v", got, s)
	}
	if got := SeekFromParams(nil); got != DefaultSeek() {
		t.Errorf("SeekFromParams(nil) = %+v, want defaults", got)
	}
}

func TestNewPolicy(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, kind := range []string{"", "seek", "straight", "ffnn"} {
		if _, err := New(kind, DefaultSeek(), rng); err != nil {
			t.Errorf("New(%q): %v", kind, err)
		}
	}
	if _, err := New("teleport", DefaultSeek(), rng); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
