package sim

import (
	"github.com/pthm-cable/crowd/avoidance"
	"github.com/pthm-cable/crowd/dataset"
	"github.com/pthm-cable/crowd/neural"
	"github.com/pthm-cable/crowd/profile"
	"github.com/pthm-cable/crowd/spawn"
	"github.com/pthm-cable/crowd/systems"
	"github.com/pthm-cable/crowd/telemetry"
)

// optionKind controls the pass in which an option is applied.
type optionKind int

const (
	optInfra  optionKind = iota // seed, services, scene, output; applied first
	optAgents                   // scripted agents; applied once the scheduler exists
)

// Option configures a World during New.
type Option struct {
	kind optionKind
	fn   func(*World)
}

// WithSeed overrides sim.seed.
func WithSeed(seed int64) Option {
	return Option{optInfra, func(w *World) {
		w.seed = seed
	}}
}

// WithPolicy replaces the configured decision source.
func WithPolicy(p neural.Policy) Option {
	return Option{optInfra, func(w *World) {
		w.policy = p
	}}
}

// WithAvoidance replaces the in-process solver. The caller keeps ownership
// and closes it.
func WithAvoidance(s avoidance.Service) Option {
	return Option{optInfra, func(w *World) {
		w.avoid = s
	}}
}

// WithBoxes adds scene boxes. Obstacles are also committed to the
// avoidance service as polygons.
func WithBoxes(boxes ...systems.Box) Option {
	return Option{optInfra, func(w *World) {
		w.boxes = append(w.boxes, boxes...)
	}}
}

// WithSimulation drives the field and the spawn schedule from a dataset.
func WithSimulation(s *dataset.Simulation) Option {
	return Option{optInfra, func(w *World) {
		w.simulation = s
	}}
}

// WithProfile gives every root room the single profile v and disables the
// timeline.
func WithProfile(v profile.Vector) Option {
	return Option{optInfra, func(w *World) {
		w.fixedProfile = &v
	}}
}

// WithOutput enables CSV output under dir.
func WithOutput(dir string) Option {
	return Option{optInfra, func(w *World) {
		w.outputDir = dir
	}}
}

// WithIndex records the run in the sqlite index at path.
func WithIndex(path string) Option {
	return Option{optInfra, func(w *World) {
		w.indexPath = path
	}}
}

// WithTrajectories writes per-agent trajectories under dir.
func WithTrajectories(dir string) Option {
	return Option{optInfra, func(w *World) {
		w.trajDir = dir
	}}
}

// WithRunID sets the run id used by the index. It must be a UUID.
func WithRunID(id string) Option {
	return Option{optInfra, func(w *World) {
		w.runID = id
	}}
}

// WithStatsCallback is called with every flushed stats window.
func WithStatsCallback(fn func(telemetry.WindowStats)) Option {
	return Option{optInfra, func(w *World) {
		w.statsCallback = fn
	}}
}

// WithAgents queues reqs at tick 0 in place of the generated scene.
// Requests with GroupID spawn.NewGroup share one freshly allocated group.
func WithAgents(reqs ...spawn.Request) Option {
	return Option{optAgents, func(w *World) {
		w.scheduler.Push(spawn.Event{Tick: 0, Spawns: reqs})
	}}
}

// WithEvents queues spawn events in place of the generated scene.
func WithEvents(events ...spawn.Event) Option {
	return Option{optAgents, func(w *World) {
		w.scheduler.PushAll(events)
	}}
}
