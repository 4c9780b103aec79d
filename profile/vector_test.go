package profile

import (
	"math/rand"
	"testing"
)

func randomVector(rng *rand.Rand) Vector {
	return Vector{rng.Float64() * 2, rng.Float64() * 2, rng.Float64() * 2, rng.Float64() * 2}
}

func TestLerpEndpoints(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		a, b := randomVector(rng), randomVector(rng)
		if got := a.Lerp(b, 0); !got.IsSimilar(a, 1e-12) {
			t.Fatalf("Lerp(b, 0) = %+v, want %+v", got, a)
		}
		if got := a.Lerp(b, 1); !got.IsSimilar(b, 1e-12) {
			t.Fatalf("Lerp(b, 1) = %+v, want %+v", got, b)
		}
	}
}

func TestMidpointMatchesAddScale(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		a, b := randomVector(rng), randomVector(rng)
		mid := a.Add(b).Scale(0.5)
		if got := a.Lerp(b, 0.5); !got.IsSimilar(mid, 1e-12) {
			t.Fatalf("Lerp(b, 0.5) = %+v, want %+v", got, mid)
		}
	}
}

func TestLerpUnclamped(t *testing.T) {
	a := Vector{Goal: 1}
	b := Vector{Goal: 2}
	if got := a.Lerp(b, 2).Goal; got != 3 {
		t.Errorf("Lerp(b, 2).Goal = %v, want 3", got)
	}
	if got := a.Lerp(b, -1).Goal; got != 0 {
		t.Errorf("Lerp(b, -1).Goal = %v, want 0", got)
	}
}

func TestIsSimilar(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector
		eps  float64
		want bool
	}{
		{"equal", DefaultVector, DefaultVector, 0, true},
		{"within", Vector{0.5, 0.5, 0, 0}, Vector{0.55, 0.45, 0, 0}, 0.06, true},
		{"one component off", Vector{0.5, 0.5, 0, 0}, Vector{0.5, 0.5, 0, 0.2}, 0.1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.IsSimilar(tt.b, tt.eps); got != tt.want {
				t.Errorf("IsSimilar = %v, want %v", got, tt.want)
			}
		})
	}
}
