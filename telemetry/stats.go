package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int     `csv:"-"`
	WindowEndTick   int     `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	Active int `csv:"active"`
	Groups int `csv:"groups"`

	// Events during window
	Spawned     int     `csv:"spawned"`
	Arrived     int     `csv:"arrived"`
	Collided    int     `csv:"collided"`
	Exited      int     `csv:"exited"`
	Expired     int     `csv:"expired"`
	Removed     int     `csv:"removed"`
	Frozen      int     `csv:"frozen"`
	Stale       int     `csv:"stale"`
	ArrivalRate float64 `csv:"arrival_rate"`

	// Episode returns of agents that finished this window
	ReturnMean float64 `csv:"return_mean"`
	ReturnP10  float64 `csv:"return_p10"`
	ReturnP50  float64 `csv:"return_p50"`
	ReturnP90  float64 `csv:"return_p90"`

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeReturnStats calculates mean and percentiles of values without
// modifying them.
func ComputeReturnStats(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	mean = stat.Mean(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return mean, Percentile(sorted, 0.10), Percentile(sorted, 0.50), Percentile(sorted, 0.90)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStartTick),
		slog.Int("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("active", s.Active),
		slog.Int("groups", s.Groups),
		slog.Int("spawned", s.Spawned),
		slog.Int("arrived", s.Arrived),
		slog.Int("collided", s.Collided),
		slog.Int("exited", s.Exited),
		slog.Int("expired", s.Expired),
		slog.Int("removed", s.Removed),
		slog.Int("frozen", s.Frozen),
		slog.Int("stale", s.Stale),
		slog.Float64("arrival_rate", s.ArrivalRate),
		slog.Float64("return_mean", s.ReturnMean),
		slog.Float64("return_p50", s.ReturnP50),
		slog.Float64("speed_mean", s.SpeedMean),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
