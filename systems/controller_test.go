package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/crowd/geom"
)

func TestMapActionClampsToMaxSpeed(t *testing.T) {
	caps := Framework()
	heading := geom.V(0, 1)
	for _, turn := range []float64{-1, -0.3, 0, 0.5, 1} {
		v := MapAction(1, turn, heading, 2.25, &caps)
		if math.Abs(v.Len()-2.25) > 1e-9 {
			t.Errorf("turn %v: |v| = %v, want 2.25", turn, v.Len())
		}
	}
}

func TestDriveVelocityClamp(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		max      float64
		want     float64
	}{
		{"over", 10, 2.25, 2.25},
		{"exact", 2.25, 2.25, 2.25},
		{"under", 1, 2.25, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := DriveVelocity(geom.V(1, 0), 20, tt.distance, tt.max)
			if math.Abs(v.Len()-tt.want) > 1e-9 {
				t.Errorf("|v| = %v, want %v", v.Len(), tt.want)
			}
		})
	}
}

func TestMapActionReverseFloor(t *testing.T) {
	caps := Framework()
	// forward = -1 maps to -0.3 * max, which floors to the minimum drive.
	v := MapAction(-1, 0, geom.V(0, 1), 2.25, &caps)
	if math.Abs(v.Len()-MinDriveDistance) > 1e-12 {
		t.Errorf("|v| = %v, want %v", v.Len(), MinDriveDistance)
	}
	if v.Z <= 0 {
		t.Errorf("v = %v, want forward", v)
	}
}

func TestMapActionTurn(t *testing.T) {
	caps := Framework()
	v := MapAction(0.5, 1, geom.V(0, 1), 2.25, &caps)
	if got := geom.SignedAngle(geom.V(0, 1), v); math.Abs(got-MaxTurnDegrees) > 1e-9 {
		t.Errorf("turn = %v, want %v", got, MaxTurnDegrees)
	}
}

func TestWarmupVelocity(t *testing.T) {
	v := WarmupVelocity(geom.V(0, 0), geom.V(3, 4))
	if math.Abs(v.Len()-WarmupSpeed) > 1e-12 || v.X <= 0 || v.Z <= 0 {
		t.Errorf("warmup = %v", v)
	}
	caps := Framework()
	if !InWarmup(true, caps.WarmupSteps-1, &caps) || InWarmup(true, caps.WarmupSteps, &caps) {
		t.Error("InWarmup disagrees with WarmupSteps")
	}
	if !InWarmup(false, 1000, &caps) {
		t.Error("held agent not in warmup")
	}
}

func TestVariantLookup(t *testing.T) {
	for _, name := range []string{"framework", "training"} {
		caps, err := Variant(name)
		if err != nil || caps.Name != name {
			t.Errorf("Variant(%q) = %q, %v", name, caps.Name, err)
		}
	}
	if _, err := Variant("replay"); err == nil {
		t.Error("unknown variant accepted")
	}
}
