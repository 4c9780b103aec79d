package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Phase identifies one timed section of a tick.
type Phase uint8

// Tick phases in execution order.
const (
	PhaseSpawn Phase = iota
	PhaseLedger
	PhaseField
	PhaseController
	PhaseAvoidance
	PhaseScoring
	PhaseCleanup
	PhaseTelemetry

	NumPhases
)

var phaseNames = [NumPhases]string{
	"spawn", "ledger", "field", "controller",
	"avoidance", "scoring", "cleanup", "telemetry",
}

func (p Phase) String() string {
	if p < NumPhases {
		return phaseNames[p]
	}
	return "unknown"
}

type perfSample struct {
	tick   time.Duration
	phases [NumPhases]time.Duration
}

// PerfCollector keeps a ring of the last window ticks' timings. Phases are
// fixed-size arrays, so recording a tick does not allocate.
type PerfCollector struct {
	ring   []perfSample
	next   int
	filled int

	cur        perfSample
	tickStart  time.Time
	phaseStart time.Time
	phase      Phase
	timing     bool // a phase is open
}

// NewPerfCollector creates a collector averaging over window ticks.
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{ring: make([]perfSample, window)}
}

// StartTick begins timing a new tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.cur = perfSample{}
	p.timing = false
}

// StartPhase closes the open phase, if any, and opens ph.
func (p *PerfCollector) StartPhase(ph Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phase = ph
	p.phaseStart = now
	p.timing = true
}

// EndTick closes the last phase and records the tick.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.timing = false
	p.cur.tick = now.Sub(p.tickStart)

	p.ring[p.next] = p.cur
	p.next = (p.next + 1) % len(p.ring)
	p.filled = min(p.filled+1, len(p.ring))
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.timing && p.phase < NumPhases {
		p.cur.phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// PerfStats summarizes the collector's window.
type PerfStats struct {
	AvgTick        time.Duration
	P95Tick        time.Duration
	MaxTick        time.Duration
	TicksPerSecond float64

	PhaseAvg [NumPhases]time.Duration
	PhasePct [NumPhases]float64 // share of the average tick, 0-100
}

// Stats computes the window summary. An empty window yields zero stats.
func (p *PerfCollector) Stats() PerfStats {
	var s PerfStats
	if p.filled == 0 {
		return s
	}

	ticks := make([]float64, p.filled)
	var phaseSum [NumPhases]time.Duration
	for i := 0; i < p.filled; i++ {
		ticks[i] = float64(p.ring[i].tick)
		for ph, d := range p.ring[i].phases {
			phaseSum[ph] += d
		}
	}

	s.AvgTick = time.Duration(stat.Mean(ticks, nil))
	s.MaxTick = time.Duration(floats.Max(ticks))
	sort.Float64s(ticks)
	s.P95Tick = time.Duration(stat.Quantile(0.95, stat.Empirical, ticks, nil))
	if s.AvgTick > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTick)
	}

	n := time.Duration(p.filled)
	for ph := range phaseSum {
		s.PhaseAvg[ph] = phaseSum[ph] / n
		if s.AvgTick > 0 {
			s.PhasePct[ph] = float64(s.PhaseAvg[ph]) / float64(s.AvgTick) * 100
		}
	}
	return s
}

// LogStats logs the summary, skipping phases under 0.1% of the tick.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTick.Microseconds(),
		"p95_tick_us", s.P95Tick.Microseconds(),
		"max_tick_us", s.MaxTick.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}
	for ph := Phase(0); ph < NumPhases; ph++ {
		if pct := s.PhasePct[ph]; pct > 0.1 {
			attrs = append(attrs, ph.String()+"_pct", float64(int(pct*10))/10)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTick.Microseconds()),
		slog.Int64("p95_tick_us", s.P95Tick.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTick.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	for ph := Phase(0); ph < NumPhases; ph++ {
		attrs = append(attrs, slog.Float64(ph.String()+"_pct", s.PhasePct[ph]))
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd     int     `csv:"window_end"`
	AvgTickUS     int64   `csv:"avg_tick_us"`
	P95TickUS     int64   `csv:"p95_tick_us"`
	MaxTickUS     int64   `csv:"max_tick_us"`
	TicksPerSec   float64 `csv:"ticks_per_sec"`
	SpawnPct      float64 `csv:"spawn_pct"`
	LedgerPct     float64 `csv:"ledger_pct"`
	FieldPct      float64 `csv:"field_pct"`
	ControllerPct float64 `csv:"controller_pct"`
	AvoidancePct  float64 `csv:"avoidance_pct"`
	ScoringPct    float64 `csv:"scoring_pct"`
	CleanupPct    float64 `csv:"cleanup_pct"`
	TelemetryPct  float64 `csv:"telemetry_pct"`
}

// ToCSV flattens s for the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:     windowEnd,
		AvgTickUS:     s.AvgTick.Microseconds(),
		P95TickUS:     s.P95Tick.Microseconds(),
		MaxTickUS:     s.MaxTick.Microseconds(),
		TicksPerSec:   s.TicksPerSecond,
		SpawnPct:      s.PhasePct[PhaseSpawn],
		LedgerPct:     s.PhasePct[PhaseLedger],
		FieldPct:      s.PhasePct[PhaseField],
		ControllerPct: s.PhasePct[PhaseController],
		AvoidancePct:  s.PhasePct[PhaseAvoidance],
		ScoringPct:    s.PhasePct[PhaseScoring],
		CleanupPct:    s.PhasePct[PhaseCleanup],
		TelemetryPct:  s.PhasePct[PhaseTelemetry],
	}
}
