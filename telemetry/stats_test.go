package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/crowd/components"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeReturnStatsLeavesInputUnsorted(t *testing.T) {
	values := []float64{3, -1, 2, 0}
	mean, p10, p50, p90 := ComputeReturnStats(values)
	if math.Abs(mean-1) > 1e-12 {
		t.Errorf("mean = %v, want 1", mean)
	}
	if p10 >= p50 || p50 >= p90 {
		t.Errorf("percentiles not ordered: %v %v %v", p10, p50, p90)
	}
	if values[0] != 3 || values[1] != -1 {
		t.Errorf("input reordered: %v", values)
	}
	if m, _, _, _ := ComputeReturnStats(nil); m != 0 {
		t.Errorf("empty mean = %v", m)
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(1, 0.1)
	if c.WindowDurationTicks() != 10 {
		t.Fatalf("ticks per window = %d, want 10", c.WindowDurationTicks())
	}

	c.Record(NewSpawnEvent(1, 1, 0))
	c.Record(NewSpawnEvent(1, 2, 0))
	c.Record(NewStaleEvent(3, 2, 0))
	c.Record(NewOutcomeEvent(5, 1, 0, components.OutcomeArrived, 4))
	c.Record(NewOutcomeEvent(6, 2, 0, components.OutcomeCollidedObstacle, -2))

	if c.ShouldFlush(9) {
		t.Error("flush before the window elapsed")
	}
	if !c.ShouldFlush(10) {
		t.Fatal("no flush at window end")
	}

	s := c.Flush(10, 3, 1, []float64{1, 2})
	if s.Spawned != 2 || s.Arrived != 1 || s.Collided != 1 || s.Stale != 1 {
		t.Errorf("counts = %+v", s)
	}
	if s.ArrivalRate != 0.5 || s.ReturnMean != 1 || s.SpeedMean != 1.5 {
		t.Errorf("rates: arrival=%v return=%v speed=%v", s.ArrivalRate, s.ReturnMean, s.SpeedMean)
	}
	if math.Abs(s.SimTimeSec-1) > 1e-12 {
		t.Errorf("sim time = %v, want 1", s.SimTimeSec)
	}

	next := c.Flush(20, 0, 0, nil)
	if next.WindowStartTick != 10 || next.Spawned != 0 || next.ReturnMean != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
}

func TestOutcomeEventType(t *testing.T) {
	tests := []struct {
		outcome components.Outcome
		want    EventType
	}{
		{components.OutcomeArrived, EventArrive},
		{components.OutcomeCollidedInteraction, EventCollide},
		{components.OutcomeBoundaryExit, EventExit},
		{components.OutcomeExpired, EventExpire},
		{components.OutcomeRemoved, EventRemove},
	}
	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			if got := OutcomeEventType(tt.outcome); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLifetimeFinish(t *testing.T) {
	lt := NewLifetimeTracker()
	lt.Register(4, 100, 2)
	lt.RecordStep(4, 1.5, 0.1)
	lt.RecordStep(4, 2, 0.1)
	lt.RecordStale(4)

	rec := lt.Finish(4, 130, components.OutcomeBoundaryExit, -0.5)
	if rec.GroupID != 2 || rec.Steps != 30 || rec.Kind != "boundary_exit" || rec.Stale != 1 {
		t.Errorf("record = %+v", rec)
	}
	if math.Abs(rec.Distance-0.35) > 1e-12 || rec.Peak != 2 {
		t.Errorf("distance=%v peak=%v", rec.Distance, rec.Peak)
	}
	if lt.Len() != 0 || lt.Get(4) != nil {
		t.Error("agent still tracked after Finish")
	}
}
