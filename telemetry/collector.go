package telemetry

import "math"

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int
	dt                  float64

	windowStartTick int

	spawned  int
	arrived  int
	collided int
	exited   int
	expired  int
	removed  int
	frozen   int
	stale    int

	returns []float64 // accumulated score of every agent finished this window
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := 1
	if dt > 0 {
		ticksPerWindow = int(math.Round(windowDurationSec / dt))
	}
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// Record counts a single event.
func (c *Collector) Record(e Event) {
	switch e.Type {
	case EventSpawn:
		c.spawned++
	case EventFreeze:
		c.frozen++
	case EventStale:
		c.stale++
	default:
		c.recordOutcome(e)
	}
}

func (c *Collector) recordOutcome(e Event) {
	switch e.Type {
	case EventArrive:
		c.arrived++
	case EventCollide:
		c.collided++
	case EventExit:
		c.exited++
	case EventExpire:
		c.expired++
	default:
		c.removed++
	}
	c.returns = append(c.returns, e.Return)
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
// active and groups are the population at window end; speeds are the
// current speeds of active agents.
func (c *Collector) Flush(currentTick, active, groups int, speeds []float64) WindowStats {
	finished := c.arrived + c.collided + c.exited + c.expired + c.removed
	var arrivalRate float64
	if finished > 0 {
		arrivalRate = float64(c.arrived) / float64(finished)
	}

	retMean, retP10, retP50, retP90 := ComputeReturnStats(c.returns)
	speedMean, _, speedP50, speedP90 := ComputeReturnStats(speeds)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Active: active,
		Groups: groups,

		Spawned:     c.spawned,
		Arrived:     c.arrived,
		Collided:    c.collided,
		Exited:      c.exited,
		Expired:     c.expired,
		Removed:     c.removed,
		Frozen:      c.frozen,
		Stale:       c.stale,
		ArrivalRate: arrivalRate,

		ReturnMean: retMean,
		ReturnP10:  retP10,
		ReturnP50:  retP50,
		ReturnP90:  retP90,

		SpeedMean: speedMean,
		SpeedP50:  speedP50,
		SpeedP90:  speedP90,
	}

	c.windowStartTick = currentTick
	c.spawned = 0
	c.arrived = 0
	c.collided = 0
	c.exited = 0
	c.expired = 0
	c.removed = 0
	c.frozen = 0
	c.stale = 0
	c.returns = c.returns[:0]

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int {
	return c.windowDurationTicks
}
