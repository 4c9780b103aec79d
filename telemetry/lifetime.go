package telemetry

import "github.com/pthm-cable/crowd/components"

// LifetimeStats tracks per-agent statistics over one episode.
type LifetimeStats struct {
	SpawnTick int
	GroupID   int

	Distance  float64 // path length walked
	PeakSpeed float64
	Stale     int // ticks the group snapshot was rejected
	Frozen    bool
}

// OutcomeRecord is one finished episode, as written to outcomes.csv and the
// run index.
type OutcomeRecord struct {
	Agent    uint32  `csv:"agent"`
	GroupID  int     `csv:"group"`
	Kind     string  `csv:"outcome"`
	Tick     int     `csv:"tick"`
	Steps    int     `csv:"steps"`
	Return   float64 `csv:"return"`
	Distance float64 `csv:"distance"`
	Peak     float64 `csv:"peak_speed"`
	Stale    int     `csv:"stale"`
}

// LifetimeTracker manages per-agent lifetime statistics.
type LifetimeTracker struct {
	stats map[uint32]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[uint32]*LifetimeStats),
	}
}

// Register starts tracking an agent. A pooled agent re-registering starts
// from zero.
func (lt *LifetimeTracker) Register(agentID uint32, spawnTick, groupID int) {
	lt.stats[agentID] = &LifetimeStats{SpawnTick: spawnTick, GroupID: groupID}
}

// Get returns the lifetime stats for an agent, or nil if not found.
func (lt *LifetimeTracker) Get(agentID uint32) *LifetimeStats {
	return lt.stats[agentID]
}

// RecordStep adds one tick of motion.
func (lt *LifetimeTracker) RecordStep(agentID uint32, speed, dt float64) {
	if s := lt.stats[agentID]; s != nil {
		s.Distance += speed * dt
		s.PeakSpeed = max(s.PeakSpeed, speed)
	}
}

// RecordStale counts a rejected group snapshot.
func (lt *LifetimeTracker) RecordStale(agentID uint32) {
	if s := lt.stats[agentID]; s != nil {
		s.Stale++
	}
}

// RecordFreeze marks the agent as frozen at an out-of-bounds goal.
func (lt *LifetimeTracker) RecordFreeze(agentID uint32) {
	if s := lt.stats[agentID]; s != nil {
		s.Frozen = true
	}
}

// Finish stops tracking an agent and returns its outcome record.
func (lt *LifetimeTracker) Finish(agentID uint32, tick int, outcome components.Outcome, ret float64) OutcomeRecord {
	rec := OutcomeRecord{Agent: agentID, Kind: outcome.String(), Tick: tick, Return: ret}
	if s := lt.stats[agentID]; s != nil {
		rec.GroupID = s.GroupID
		rec.Steps = tick - s.SpawnTick
		rec.Distance = s.Distance
		rec.Peak = s.PeakSpeed
		rec.Stale = s.Stale
		delete(lt.stats, agentID)
	}
	return rec
}

// Len returns the number of tracked agents.
func (lt *LifetimeTracker) Len() int { return len(lt.stats) }
