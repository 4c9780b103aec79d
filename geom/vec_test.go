package geom

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) <= 1e-6 }

func TestRotate(t *testing.T) {
	tests := []struct {
		name string
		deg  float64
		want Vec2
	}{
		{"zero", 0, V(0, 1)},
		{"quarter clockwise", 90, V(1, 0)},
		{"quarter counter", -90, V(-1, 0)},
		{"half", 180, V(0, -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := V(0, 1).Rotate(tt.deg)
			if !near(got.X, tt.want.X) || !near(got.Z, tt.want.Z) {
				t.Errorf("Rotate(%v) = %v, want %v", tt.deg, got, tt.want)
			}
		})
	}
}

func TestSignedAngleMatchesRotate(t *testing.T) {
	base := V(0.6, 0.8)
	for _, deg := range []float64{-170, -45, -1, 0, 1, 30, 45, 120} {
		got := SignedAngle(base, base.Rotate(deg))
		if !near(got, deg) {
			t.Errorf("SignedAngle after Rotate(%v) = %v", deg, got)
		}
	}
}

func TestClampLen(t *testing.T) {
	v := V(3, 4).ClampLen(2.25)
	if !near(v.Len(), 2.25) {
		t.Errorf("len = %v, want 2.25", v.Len())
	}
	short := V(0.3, 0.4).ClampLen(2.25)
	if short != V(0.3, 0.4) {
		t.Errorf("short vector changed: %v", short)
	}
}

func TestNormalizeZero(t *testing.T) {
	if got := (Vec2{}).Normalize(); got.LenSq() > eps {
		t.Errorf("Normalize(0) = %v, want zero", got)
	}
}

func TestMapRange(t *testing.T) {
	if got := MapRange(0, -1, 1, -0.3, 1); !near(got, 0.35) {
		t.Errorf("MapRange = %v, want 0.35", got)
	}
	if got := MapRange(1, 0, 1, 1, 2.5); !near(got, 2.5) {
		t.Errorf("MapRange = %v, want 2.5", got)
	}
}
