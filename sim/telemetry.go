package sim

import "log/slog"

// flushTelemetry writes the stats window once it has elapsed.
func (w *World) flushTelemetry() {
	if !w.collector.ShouldFlush(w.tick) {
		return
	}

	stats := w.collector.Flush(w.tick, w.active, w.ledger.Len(), w.speeds)
	perfStats := w.perf.Stats()

	if w.statsCallback != nil {
		w.statsCallback(stats)
	}

	if w.cfg.Telemetry.LogStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if w.output != nil {
		if err := w.output.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := w.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	w.index.SetTicks(w.tick)
}
