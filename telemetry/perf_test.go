package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollectorTracksPhases(t *testing.T) {
	pc := NewPerfCollector(10)
	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseController)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseAvoidance)
		time.Sleep(400 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.AvgTick <= 0 {
		t.Error("expected positive average tick duration")
	}
	if stats.P95Tick < stats.AvgTick/2 || stats.MaxTick < stats.P95Tick {
		t.Errorf("avg %v p95 %v max %v out of order", stats.AvgTick, stats.P95Tick, stats.MaxTick)
	}
	for _, ph := range []Phase{PhaseController, PhaseAvoidance} {
		if stats.PhaseAvg[ph] <= 0 {
			t.Errorf("phase %s not tracked", ph)
		}
	}
	if stats.PhaseAvg[PhaseSpawn] != 0 {
		t.Errorf("untimed phase has %v", stats.PhaseAvg[PhaseSpawn])
	}
	if stats.PhasePct[PhaseAvoidance] <= stats.PhasePct[PhaseController] {
		t.Errorf("avoidance %v%% should exceed controller %v%%",
			stats.PhasePct[PhaseAvoidance], stats.PhasePct[PhaseController])
	}
}

func TestPerfCollectorRollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)
	for i := 0; i < 12; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseScoring)
		pc.EndTick()
	}
	if pc.filled != 5 || pc.next != 2 {
		t.Errorf("filled %d next %d, want 5 and 2", pc.filled, pc.next)
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	if stats := NewPerfCollector(10).Stats(); stats != (PerfStats{}) {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseAvoidance.String() != "avoidance" || NumPhases.String() != "unknown" {
		t.Errorf("names: %s %s", PhaseAvoidance, NumPhases)
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	var s PerfStats
	s.AvgTick = 1500 * time.Microsecond
	s.PhasePct[PhaseAvoidance] = 60
	s.PhasePct[PhaseScoring] = 25
	row := s.ToCSV(120)
	if row.WindowEnd != 120 || row.AvgTickUS != 1500 || row.AvoidancePct != 60 || row.ScoringPct != 25 {
		t.Errorf("row = %+v", row)
	}
}
