// Package sim runs the crowd simulation: it owns the ECS agent pool and the
// services each tick drives in a fixed phase order.
package sim

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/crowd/avoidance"
	"github.com/pthm-cable/crowd/components"
	"github.com/pthm-cable/crowd/config"
	"github.com/pthm-cable/crowd/dataset"
	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/ledger"
	"github.com/pthm-cable/crowd/neural"
	"github.com/pthm-cable/crowd/profile"
	"github.com/pthm-cable/crowd/spawn"
	"github.com/pthm-cable/crowd/systems"
	"github.com/pthm-cable/crowd/telemetry"
)

// headingMinSpeed is the realized speed above which the heading follows the
// velocity.
const headingMinSpeed = 0.01

// Outcome reports one finished episode.
type Outcome struct {
	Agent   uint32
	GroupID int
	Kind    components.Outcome
	Tick    int
	Steps   int
	Return  float64
}

// AgentView is a copy of one active agent's state.
type AgentView struct {
	ID       uint32
	GroupID  int
	Pos      geom.Vec2
	Vel      geom.Vec2
	Heading  geom.Vec2
	Goal     geom.Vec2
	Weights  profile.Vector
	Speed    float64
	Step     int
	Frozen   bool
	Inherit  bool
	Score    components.Score
	GoalDist float64
}

// removal is an agent queued for despawn once the scoring query closes.
type removal struct {
	entity  ecs.Entity
	outcome components.Outcome
}

// World holds the complete simulation state.
type World struct {
	cfg  *config.Config
	caps systems.Capabilities
	seed int64
	rng  *rand.Rand

	world *ecs.World

	// Entity mappers
	agentMapper *ecs.Map5[
		components.Position,
		components.Velocity,
		components.Heading,
		components.Agent,
		components.Score,
	]
	agentFilter *ecs.Filter5[
		components.Position,
		components.Velocity,
		components.Heading,
		components.Agent,
		components.Score,
	]

	// Component maps for lookups by entity
	posMap   *ecs.Map1[components.Position]
	velMap   *ecs.Map1[components.Velocity]
	headMap  *ecs.Map1[components.Heading]
	agentMap *ecs.Map1[components.Agent]
	scoreMap *ecs.Map1[components.Score]

	// Agent pool. Entities are never removed; ids stay with their entity.
	entities []ecs.Entity // indexed by agent id
	pool     []ecs.Entity // inactive, reused last-in first-out
	active   int

	field      *profile.Field
	timeline   *profile.Timeline // nil when the field holds a single profile
	ledger     *ledger.Ledger
	avoid      avoidance.Service
	avoidOwned io.Closer
	scheduler  *spawn.Scheduler
	policy     neural.Policy
	boxes      []systems.Box
	radius     float64

	simulation   *dataset.Simulation
	fixedProfile *profile.Vector

	tick     int
	outcomes []Outcome
	pending  []removal

	// Per-tick scratch
	positions []geom.Vec2
	grid      *systems.SpatialGrid
	speeds    []float64
	obs       []float32

	// Telemetry
	collector     *telemetry.Collector
	perf          *telemetry.PerfCollector
	lifetime      *telemetry.LifetimeTracker
	output        *telemetry.OutputManager
	traj          *telemetry.TrajectoryWriter
	index         *telemetry.RunIndex
	statsCallback func(telemetry.WindowStats)

	outputDir string
	trajDir   string
	indexPath string
	runID     string
}

// New builds a world from cfg. Options are applied in two passes:
//  1. Infrastructure (seed, services, scene, output)
//  2. Scripted agents, which replace the generated spawn schedule
func New(cfg *config.Config, opts ...Option) (*World, error) {
	w := &World{
		cfg:  cfg,
		seed: cfg.Sim.Seed,
		obs:  make([]float32, 0, systems.NumObservations),
	}
	scripted := false
	for _, o := range opts {
		switch o.kind {
		case optInfra:
			o.fn(w)
		case optAgents:
			scripted = true
		}
	}
	w.rng = rand.New(rand.NewSource(w.seed))

	caps, err := resolveCapabilities(cfg)
	if err != nil {
		return nil, err
	}
	w.caps = caps

	if err := w.buildField(); err != nil {
		return nil, err
	}

	w.ledger = ledger.New()
	if a := cfg.Spawn.Inheritance; a != nil {
		w.ledger.SetInheritanceArea(&ledger.Area{
			Center:     geom.V(a.Center[0], a.Center[1]),
			HalfExtent: geom.V(a.HalfExtent[0], a.HalfExtent[1]),
		})
	}

	w.radius = cfg.Avoidance.Radius
	lo, hi := w.field.Bounds()
	w.grid = systems.NewSpatialGrid(lo, hi, max(cfg.Agent.NeighbourDistance, w.field.CellSize()))
	if w.avoid == nil {
		pad := geom.V(w.field.CellSize(), w.field.CellSize())
		local := avoidance.NewLocal(avoidance.Params{
			NeighborDist:    cfg.Avoidance.NeighborDist,
			MaxNeighbors:    cfg.Avoidance.MaxNeighbors,
			TimeHorizon:     cfg.Avoidance.TimeHorizon,
			TimeHorizonObst: cfg.Avoidance.TimeHorizonObst,
			Radius:          cfg.Avoidance.Radius,
			MaxSpeed:        cfg.Avoidance.MaxSpeed,
			Workers:         cfg.Avoidance.Workers,
		}, lo.Sub(pad), hi.Add(pad))
		w.avoid = local
		w.avoidOwned = local
	}
	obstacles := 0
	for _, b := range w.boxes {
		if b.Kind == systems.BoxObstacle {
			w.avoid.AddObstaclePolygon(b.Polygon())
			obstacles++
		}
	}
	if obstacles > 0 {
		w.avoid.CommitObstacles()
	}

	if w.policy == nil {
		p, err := buildPolicy(cfg)
		if err != nil {
			w.closeServices()
			return nil, err
		}
		w.policy = p
	}

	w.initECS()

	if err := w.initTelemetry(); err != nil {
		w.closeServices()
		return nil, err
	}

	w.scheduler = spawn.NewScheduler()
	if scripted {
		for _, o := range opts {
			if o.kind == optAgents {
				o.fn(w)
			}
		}
	} else if err := w.planScene(); err != nil {
		w.closeServices()
		return nil, err
	}

	slog.Info("sim_created",
		"run", w.runID,
		"seed", w.seed,
		"mode", cfg.Sim.Mode,
		"variant", w.caps.Name,
		"rooms", w.field.Len(),
		"pending", w.scheduler.Pending(),
	)
	return w, nil
}

// resolveCapabilities looks up the configured variant and overlays the
// agent values that are set. Zero keeps the variant's value.
func resolveCapabilities(cfg *config.Config) (systems.Capabilities, error) {
	caps, err := systems.Variant(cfg.Derived.Variant)
	if err != nil {
		return caps, err
	}
	a := cfg.Agent
	overlay(&caps.GoalDistance, a.GoalDistance)
	overlay(&caps.SlowRadius, a.SlowRadius)
	overlay(&caps.SlowSpeed, a.SlowSpeed)
	overlay(&caps.GroupDistance, a.GroupingDistance)
	overlay(&caps.InteractionDistance, a.InteractionDistance)
	overlay(&caps.StationarySpeed, a.StationaryThreshold)
	if a.MaxNeighbours != 0 {
		caps.MaxNeighbours = a.MaxNeighbours
	}
	if a.WarmupSteps != 0 {
		caps.WarmupSteps = a.WarmupSteps
	}
	return caps, nil
}

func overlay(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// buildField creates the profile field and its timeline. A dataset sets the
// grid dimensions; otherwise profiles are synthesized from the seed.
func (w *World) buildField() error {
	fc := w.cfg.Field
	rows, cols := fc.Rows, fc.Cols
	if w.simulation != nil {
		rows, cols = w.simulation.Environment.Height, w.simulation.Environment.Width
	}
	w.field = profile.NewField(rows, cols, fc.CellHalfSize, 0)
	w.field.SetUpdating(fc.UpdateProfiles)

	if w.fixedProfile == nil && w.simulation == nil && fc.Buckets <= 0 {
		v := profile.FromArray(fc.DefaultProfile)
		w.fixedProfile = &v
	}
	if w.fixedProfile != nil {
		for _, r := range w.field.Rooms() {
			if r.IsRoot() {
				w.field.AppendProfile(r.Coord(), *w.fixedProfile)
			}
		}
		w.field.SetBuckets(1)
		w.field.RecomputeEdgeBlends()
		return nil
	}

	src := w.simulation
	if src == nil {
		src = dataset.Synthesize(rows, cols, fc.Buckets, w.cfg.Derived.TicksPerBucket, w.seed)
	}
	tl, err := src.Populate(w.field)
	if err != nil {
		return fmt.Errorf("populating field: %w", err)
	}
	w.timeline = tl
	return nil
}

func buildPolicy(cfg *config.Config) (neural.Policy, error) {
	pc := cfg.Policy
	if pc.Kind == "ffnn" && pc.Weights != "" {
		f, err := os.Open(pc.Weights)
		if err != nil {
			return nil, fmt.Errorf("opening policy weights: %w", err)
		}
		defer f.Close()
		return neural.LoadFFNN(f)
	}
	seek := neural.Seek{
		TurnGain: pc.Seek.TurnGain,
		Cruise:   pc.Seek.Cruise,
		Settle:   pc.Seek.Settle,
		Arrive:   pc.Seek.Arrive,
	}
	return neural.New(pc.Kind, seek, rand.New(rand.NewSource(pc.FFNNSeed)))
}

// initECS creates the world and preallocates the agent pool.
func (w *World) initECS() {
	w.world = ecs.NewWorld()
	w.agentMapper = ecs.NewMap5[
		components.Position,
		components.Velocity,
		components.Heading,
		components.Agent,
		components.Score,
	](w.world)
	w.agentFilter = ecs.NewFilter5[
		components.Position,
		components.Velocity,
		components.Heading,
		components.Agent,
		components.Score,
	](w.world)
	w.posMap = ecs.NewMap1[components.Position](w.world)
	w.velMap = ecs.NewMap1[components.Velocity](w.world)
	w.headMap = ecs.NewMap1[components.Heading](w.world)
	w.agentMap = ecs.NewMap1[components.Agent](w.world)
	w.scoreMap = ecs.NewMap1[components.Score](w.world)

	for i := 0; i < w.cfg.Agent.PoolSize; i++ {
		w.pool = append(w.pool, w.newPooledEntity())
	}
	// Hand out low ids first.
	for i, j := 0, len(w.pool)-1; i < j; i, j = i+1, j-1 {
		w.pool[i], w.pool[j] = w.pool[j], w.pool[i]
	}
}

func (w *World) newPooledEntity() ecs.Entity {
	pos := components.Position{}
	vel := components.Velocity{}
	head := components.Heading{Vec2: geom.V(0, 1)}
	agent := components.Agent{ID: uint32(len(w.entities)), Handle: -1}
	score := components.Score{}
	e := w.agentMapper.NewEntity(&pos, &vel, &head, &agent, &score)
	w.entities = append(w.entities, e)
	return e
}

func (w *World) initTelemetry() error {
	tc := w.cfg.Telemetry
	dt := w.cfg.Sim.DT

	w.collector = telemetry.NewCollector(tc.StatsWindow, dt)
	w.perf = telemetry.NewPerfCollector(tc.PerfWindow)
	w.lifetime = telemetry.NewLifetimeTracker()

	var err error
	if w.output, err = telemetry.NewOutputManager(w.outputDir); err != nil {
		return err
	}
	if err := w.output.WriteConfig(w.cfg); err != nil {
		return err
	}

	if w.trajDir == "" && tc.Trajectories && w.outputDir != "" {
		w.trajDir = filepath.Join(w.outputDir, "trajectories")
	}
	if w.traj, err = telemetry.NewTrajectoryWriter(w.trajDir, dt); err != nil {
		return err
	}

	if w.runID == "" {
		w.runID = telemetry.NewRunID()
	}
	if w.indexPath == "" {
		w.indexPath = tc.IndexPath
	}
	if w.index, err = telemetry.OpenRunIndex(w.indexPath, w.runID); err != nil {
		return err
	}
	w.index.StartRun(w.seed, w.cfg.Sim.Mode)
	return nil
}

// planScene queues the spawn schedule: the dataset's agent frames when it
// has any, otherwise the generated training scene.
func (w *World) planScene() error {
	if w.simulation != nil && len(w.simulation.Agents) > 0 {
		frames, err := w.simulation.AgentFrames()
		if err != nil {
			return err
		}
		w.scheduler.PushAll(spawn.FrameEvents(frames, spawn.FrameParams{
			HalfSize:      w.field.HalfSize(),
			Cols:          w.field.Cols(),
			Rows:          w.field.Rows(),
			GridCenter:    w.field.GridCenter(),
			FrameInterval: w.simulation.Environment.FrameInterval,
			EndMultiplier: w.cfg.Spawn.EndMultiplier,
		}))
		return nil
	}

	sc := w.cfg.Spawn
	areas := make([]ledger.Area, 0, len(sc.Areas))
	for _, a := range sc.Areas {
		areas = append(areas, ledger.Area{
			Center:     geom.V(a.Center[0], a.Center[1]),
			HalfExtent: geom.V(a.HalfExtent[0], a.HalfExtent[1]),
		})
	}
	gen := spawn.DefaultTraining(areas)
	gen.GroupMin, gen.GroupMax = sc.GroupMin, sc.GroupMax
	gen.SpeedMin, gen.SpeedMax = sc.SpeedMin, sc.SpeedMax
	gen.DelayMin, gen.DelayMax = sc.DelayMin, sc.DelayMax
	gen.GoalNoise = sc.GoalNoise
	w.scheduler.PushAll(gen.Plan(w.rng, sc.Agents, 0, w.cfg.Sim.DT))
	return nil
}

// MemberState implements ledger.MemberSource.
func (w *World) MemberState(agent uint32) (geom.Vec2, float64, bool) {
	if int(agent) >= len(w.entities) {
		return geom.Vec2{}, 0, false
	}
	e := w.entities[agent]
	a := w.agentMap.Get(e)
	if !a.Active {
		return geom.Vec2{}, 0, false
	}
	return w.posMap.Get(e).Vec2, a.Speed, true
}

// TickN runs n ticks and returns every outcome they produced.
func (w *World) TickN(n int) []Outcome {
	var out []Outcome
	for i := 0; i < n; i++ {
		out = append(out, w.Tick()...)
	}
	return out
}

// CurrentTick returns the number of ticks run.
func (w *World) CurrentTick() int { return w.tick }

// ActiveCount returns the number of agents being simulated.
func (w *World) ActiveCount() int { return w.active }

// Outcomes returns every outcome since the world was created.
func (w *World) Outcomes() []Outcome {
	out := make([]Outcome, len(w.outcomes))
	copy(out, w.outcomes)
	return out
}

// Done reports whether nothing is left to spawn or simulate.
func (w *World) Done() bool {
	return w.scheduler.Len() == 0 && w.active == 0
}

// Capabilities returns the resolved capability set.
func (w *World) Capabilities() systems.Capabilities { return w.caps }

// Field returns the profile field.
func (w *World) Field() *profile.Field { return w.field }

// Timeline returns the profile timeline, or nil for a single-profile field.
func (w *World) Timeline() *profile.Timeline { return w.timeline }

// SeekBucket applies time bucket i to every room and holds it there until
// ResumeTimeline. It fails without a timeline or for an out of range index.
func (w *World) SeekBucket(i int) bool {
	if w.timeline == nil || !w.timeline.Seek(i) {
		return false
	}
	w.field.SetActiveBucketAll(i)
	w.field.RecomputeEdgeBlends()
	slog.Info("bucket_seek", "bucket", i, "tick", w.tick)
	return true
}

// ResumeTimeline lets the time bucket follow the tick again from the next
// Tick on.
func (w *World) ResumeTimeline() {
	if w.timeline != nil {
		w.timeline.Resume()
	}
}

// Ledger returns the interconnection ledger.
func (w *World) Ledger() *ledger.Ledger { return w.ledger }

// Scheduler returns the spawn scheduler.
func (w *World) Scheduler() *spawn.Scheduler { return w.scheduler }

// RunID returns the run id recorded in the index.
func (w *World) RunID() string { return w.runID }

// Agent returns a copy of active agent id.
func (w *World) Agent(id uint32) (AgentView, bool) {
	if int(id) >= len(w.entities) {
		return AgentView{}, false
	}
	e := w.entities[id]
	a := w.agentMap.Get(e)
	if !a.Active {
		return AgentView{}, false
	}
	return w.view(e, a), true
}

// Agents returns copies of every active agent in id order.
func (w *World) Agents() []AgentView {
	out := make([]AgentView, 0, w.active)
	for _, e := range w.entities {
		if a := w.agentMap.Get(e); a.Active {
			out = append(out, w.view(e, a))
		}
	}
	return out
}

func (w *World) view(e ecs.Entity, a *components.Agent) AgentView {
	return AgentView{
		ID:       a.ID,
		GroupID:  a.GroupID,
		Pos:      w.posMap.Get(e).Vec2,
		Vel:      w.velMap.Get(e).Vec2,
		Heading:  w.headMap.Get(e).Vec2,
		Goal:     a.Goal,
		Weights:  a.Weights,
		Speed:    a.Speed,
		Step:     a.Step,
		Frozen:   a.Frozen,
		Inherit:  a.Inherit,
		Score:    *w.scoreMap.Get(e),
		GoalDist: a.GoalDist,
	}
}

// Release lets a held agent start moving.
func (w *World) Release(id uint32) bool {
	if int(id) >= len(w.entities) {
		return false
	}
	a := w.agentMap.Get(w.entities[id])
	if !a.Active || a.Frozen {
		return false
	}
	a.CanMove = true
	return true
}

// AddRoom adds a non-root room at c and refreshes the edge blends.
func (w *World) AddRoom(c profile.Coord) bool {
	if !w.field.AddRoom(c) {
		return false
	}
	w.field.RecomputeEdgeBlends()
	return true
}

// RemoveRoom deletes the non-root room at c. Agents strictly inside it are
// despawned with OutcomeRemoved.
func (w *World) RemoveRoom(c profile.Coord) (bool, []Outcome) {
	if !w.field.RemoveRoom(c) {
		return false, nil
	}
	w.field.RecomputeEdgeBlends()

	query := w.agentFilter.Query()
	for query.Next() {
		pos, _, _, a, _ := query.Get()
		if a.Active && w.field.CellContains(c, pos.Vec2) {
			w.pending = append(w.pending, removal{entity: query.Entity(), outcome: components.OutcomeRemoved})
		}
	}
	return true, w.applyRemovals()
}

// Close flushes output and releases the services the world created.
func (w *World) Close() error {
	w.index.SetTicks(w.tick)
	errs := []error{w.output.Close(), w.index.Close()}
	if n := w.traj.Pending(); n > 0 {
		slog.Info("trajectories_unfinished", "agents", n)
	}
	if w.avoidOwned != nil {
		errs = append(errs, w.avoidOwned.Close())
	}
	return errors.Join(errs...)
}

// closeServices releases what New opened before failing.
func (w *World) closeServices() {
	if w.avoidOwned != nil {
		w.avoidOwned.Close()
	}
	w.output.Close()
	w.index.Close()
}
