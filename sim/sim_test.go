package sim

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pthm-cable/crowd/components"
	"github.com/pthm-cable/crowd/config"
	"github.com/pthm-cable/crowd/dataset"
	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/neural"
	"github.com/pthm-cable/crowd/profile"
	"github.com/pthm-cable/crowd/spawn"
	"github.com/pthm-cable/crowd/systems"
	"github.com/pthm-cable/crowd/telemetry"
)

// testConfig returns the defaults with the given capability set and a
// small single-worker setup.
func testConfig(t *testing.T, variant string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Derived.Variant = variant
	cfg.Agent.PoolSize = 4
	cfg.Avoidance.Workers = 1
	return cfg
}

func newTestWorld(t *testing.T, cfg *config.Config, opts ...Option) *World {
	t.Helper()
	w, err := New(cfg, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

var goalOnly = profile.Vector{Goal: 1, Connectivity: 0.25}

func TestObservationSizeMatchesNetwork(t *testing.T) {
	if neural.NumInputs != systems.NumObservations {
		t.Errorf("network takes %d inputs, observations have %d", neural.NumInputs, systems.NumObservations)
	}
}

func TestArrivalDespawnsOnce(t *testing.T) {
	cfg := testConfig(t, "framework")
	w := newTestWorld(t, cfg,
		WithProfile(goalOnly),
		WithAgents(spawn.Request{Pos: geom.V(0, 0), Goal: geom.V(0.5, 0), GroupID: spawn.NewGroup, CanMove: true}),
	)

	out := w.Tick()
	if len(out) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(out))
	}
	if out[0].Kind != components.OutcomeArrived || out[0].Return <= 0 {
		t.Errorf("outcome = %+v", out[0])
	}
	if w.ActiveCount() != 0 || w.Ledger().Len() != 0 {
		t.Errorf("active=%d groups=%d after arrival", w.ActiveCount(), w.Ledger().Len())
	}

	if more := w.TickN(20); len(more) != 0 {
		t.Errorf("despawned agent produced %d more outcomes", len(more))
	}
	if _, ok := w.Agent(out[0].Agent); ok {
		t.Error("despawned agent still visible")
	}
	if len(w.Outcomes()) != 1 || !w.Done() {
		t.Errorf("outcomes=%d done=%v", len(w.Outcomes()), w.Done())
	}
}

func TestOffFieldGoalFreezes(t *testing.T) {
	for _, variant := range []string{"framework", "training"} {
		t.Run(variant, func(t *testing.T) {
			cfg := testConfig(t, variant)
			w := newTestWorld(t, cfg,
				WithProfile(goalOnly),
				WithAgents(spawn.Request{Pos: geom.V(-4.5, 0), Goal: geom.V(-5.5, 0), GroupID: spawn.NewGroup, CanMove: true}),
			)

			if out := w.TickN(5); len(out) != 0 {
				t.Fatalf("frozen agent despawned: %+v", out)
			}
			views := w.Agents()
			if len(views) != 1 || !views[0].Frozen {
				t.Fatalf("agents = %+v", views)
			}
			if views[0].Speed != 0 {
				t.Errorf("frozen agent moving at %v", views[0].Speed)
			}
			if w.Release(views[0].ID) {
				t.Error("frozen agent released")
			}
		})
	}
}

func TestFrozenAgentIsNotPushed(t *testing.T) {
	cfg := testConfig(t, "framework")
	w := newTestWorld(t, cfg,
		WithProfile(goalOnly),
		WithAgents(
			spawn.Request{Pos: geom.V(-4.5, 0), Goal: geom.V(-5.5, 0), GroupID: spawn.NewGroup, CanMove: true},
			spawn.Request{Pos: geom.V(-2, 0), Goal: geom.V(-4.9, 0), GroupID: spawn.NewGroup, CanMove: true},
		),
	)

	frozen := func() AgentView {
		for _, v := range w.Agents() {
			if v.Frozen {
				return v
			}
		}
		t.Fatal("no frozen agent")
		return AgentView{}
	}

	w.Tick()
	start := frozen().Pos
	for i := 0; i < 60; i++ {
		w.Tick()
		if got := frozen(); got.Pos != start || got.Vel != (geom.Vec2{}) {
			t.Fatalf("tick %d: frozen agent at %v moving %v, want held at %v", i+1, got.Pos, got.Vel, start)
		}
	}
}

// groupPair places two agents 0.5 apart facing each other. The smaller
// solver radius keeps them clear of each other's separation push.
func groupPair(t *testing.T) (*World, []uint32) {
	t.Helper()
	cfg := testConfig(t, "framework")
	cfg.Avoidance.Radius = 0.2
	w := newTestWorld(t, cfg,
		WithProfile(profile.Vector{Group: 1}),
		WithAgents(
			spawn.Request{Pos: geom.V(10, -10), Goal: geom.V(20, -10), GroupID: spawn.NewGroup, CanMove: true},
			spawn.Request{Pos: geom.V(10.5, -10), Goal: geom.V(0, -10), GroupID: spawn.NewGroup, CanMove: true},
		),
	)
	w.Tick()
	views := w.Agents()
	if len(views) != 2 {
		t.Fatalf("agents = %+v", views)
	}
	return w, []uint32{views[0].ID, views[1].ID}
}

func TestGroupPairScoresEachPartner(t *testing.T) {
	w, ids := groupPair(t)
	stationary := systems.GroupReward + systems.GroupStillReward
	full := stationary + systems.GroupSettleReward
	for _, id := range ids {
		a, _ := w.Agent(id)
		if a.Speed > w.Capabilities().StationarySpeed {
			t.Errorf("agent %d speed %v, want stationary", id, a.Speed)
		}
		if a.Score.Group <= stationary+0.9*systems.GroupSettleReward || a.Score.Group > full+1e-12 {
			t.Errorf("agent %d group signal = %v, want near %v", id, a.Score.Group, full)
		}
		if a.Score.Stale != 0 {
			t.Errorf("agent %d saw a stale group snapshot", id)
		}
	}
}

func TestSingletonConnectivityStaysZero(t *testing.T) {
	cfg := testConfig(t, "framework")
	w := newTestWorld(t, cfg,
		WithProfile(profile.Vector{Goal: 1, Connectivity: 1}),
		WithAgents(spawn.Request{Pos: geom.V(5, -10), Goal: geom.V(20, -10), GroupID: spawn.NewGroup, CanMove: true}),
	)
	for i := 0; i < 25; i++ {
		if out := w.Tick(); len(out) != 0 {
			t.Fatalf("tick %d: unexpected outcomes %+v", i, out)
		}
		a, ok := w.Agent(0)
		if !ok {
			t.Fatal("agent missing")
		}
		if a.Score.Connect != 0 || a.Score.Stale != 0 {
			t.Fatalf("tick %d: connect=%v stale=%d", i, a.Score.Connect, a.Score.Stale)
		}
	}
}

func TestEdgeBlendsFollowRoomEdits(t *testing.T) {
	cfg := testConfig(t, "framework")
	w := newTestWorld(t, cfg, WithProfile(goalOnly), WithEvents())
	if !w.Field().SetProfileAtIndex(profile.RootCoord(0, 0), 0, profile.Vector{Group: 1}) {
		t.Fatal("SetProfileAtIndex failed")
	}
	w.TickN(3)

	r, _ := w.Field().RootRoom(0, 1)
	want := profile.Vector{Goal: 0.5, Group: 0.5, Connectivity: 0.125}
	if got := r.Edge(profile.West); !got.IsSimilar(want, 1e-12) {
		t.Errorf("west edge = %+v, want %+v", got, want)
	}
}

func TestFieldEditsReachControllerSameTick(t *testing.T) {
	cfg := testConfig(t, "framework")
	w := newTestWorld(t, cfg,
		WithProfile(goalOnly),
		// Off the room center so the query blends with the edges.
		WithAgents(spawn.Request{Pos: geom.V(13, -7), Goal: geom.V(20, -14), GroupID: spawn.NewGroup, CanMove: true}),
	)
	w.Tick()

	edited := profile.Vector{Goal: 0.2, Group: 0.3, Interaction: 0.5, Connectivity: 0.6}
	for _, r := range w.Field().Rooms() {
		w.Field().SetProfileAtIndex(r.Coord(), 0, edited)
	}
	w.Tick()
	a, ok := w.Agent(0)
	if !ok {
		t.Fatal("agent missing")
	}
	if !a.Weights.IsSimilar(edited, 1e-9) {
		t.Errorf("weights = %+v, want the edited profile %+v", a.Weights, edited)
	}
}

func TestSeekBucketHoldsUntilResume(t *testing.T) {
	cfg := testConfig(t, "framework")
	cfg.Field.Buckets = 3
	w := newTestWorld(t, cfg, WithEvents())
	w.Tick()

	if w.SeekBucket(3) {
		t.Error("out of range bucket accepted")
	}
	if !w.SeekBucket(2) {
		t.Fatal("SeekBucket(2) failed")
	}
	r, _ := w.Field().RootRoom(0, 0)
	want, _ := r.At(2)
	w.TickN(3)
	if w.Timeline().Active() != 2 || r.Current() != want {
		t.Errorf("active=%d current=%+v, want bucket 2 %+v", w.Timeline().Active(), r.Current(), want)
	}

	w.ResumeTimeline()
	w.Tick()
	want, _ = r.At(0)
	if w.Timeline().Active() != 0 || r.Current() != want {
		t.Errorf("after resume: active=%d current=%+v, want bucket 0 %+v", w.Timeline().Active(), r.Current(), want)
	}
}

func TestTrainingGroupDrivesUntilInherited(t *testing.T) {
	cfg := testConfig(t, "training")
	w := newTestWorld(t, cfg,
		WithProfile(goalOnly),
		WithAgents(spawn.Request{
			Pos:          geom.V(-4.5, -10),
			Goal:         geom.V(40, -10),
			GroupID:      spawn.NewGroup,
			InitialSpeed: 1,
			CanMove:      true,
		}),
	)

	w.TickN(12)
	a, ok := w.Agent(0)
	if !ok {
		t.Fatal("agent missing")
	}
	if a.Inherit {
		t.Fatal("inherited before entering the area")
	}
	if math.Abs(a.Speed-1) > 1e-9 {
		t.Errorf("speed = %v, want the initial speed 1", a.Speed)
	}
	want := w.Capabilities().GroupDefault
	want.Connectivity = goalOnly.Connectivity
	if !a.Weights.IsSimilar(want, 1e-9) {
		t.Errorf("weights = %+v, want %+v", a.Weights, want)
	}

	w.TickN(48)
	a, _ = w.Agent(0)
	if !a.Inherit || !a.Weights.IsSimilar(goalOnly, 1e-9) {
		t.Errorf("inherit=%v weights=%+v after entering the area", a.Inherit, a.Weights)
	}
}

func TestSpawnGroupAtSharesGroup(t *testing.T) {
	cfg := testConfig(t, "framework")
	w := newTestWorld(t, cfg, WithProfile(goalOnly), WithEvents())

	ids := w.SpawnGroupAt(geom.V(10, -10), 3, geom.V(20, -10))
	if len(ids) != 3 {
		t.Fatalf("spawned %d, want 3", len(ids))
	}
	a, _ := w.Agent(ids[0])
	rec, ok := w.Ledger().Record(a.GroupID)
	if !ok || rec.Size() != 3 {
		t.Fatalf("group record = %+v, ok=%v", rec, ok)
	}
	for _, id := range ids {
		v, _ := w.Agent(id)
		if d := v.Pos.Dist(geom.V(10, -10)); math.Abs(d-cfg.Spawn.RingRadius) > 1e-9 {
			t.Errorf("agent %d at distance %v from the ring center", id, d)
		}
	}
}

func TestPoolReusesAndGrows(t *testing.T) {
	cfg := testConfig(t, "framework")
	cfg.Agent.PoolSize = 1
	w := newTestWorld(t, cfg, WithProfile(goalOnly), WithEvents())

	first := w.SpawnGroupAt(geom.V(0, 0), 1, geom.V(0.5, 0))
	if out := w.Tick(); len(out) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(out))
	}
	again := w.SpawnGroupAt(geom.V(10, -10), 2, geom.V(20, -10))
	if again[0] != first[0] || again[1] != 1 {
		t.Errorf("ids = %v after reuse of %v", again, first)
	}
	a, _ := w.Agent(again[0])
	if a.Step != 0 || a.Score != (components.Score{}) {
		t.Errorf("reused slot kept state: step=%d score=%+v", a.Step, a.Score)
	}
}

func TestRemoveRoomDespawnsOccupants(t *testing.T) {
	cfg := testConfig(t, "framework")
	w := newTestWorld(t, cfg,
		WithProfile(goalOnly),
		WithAgents(spawn.Request{Pos: geom.V(-10, 0.5), Goal: geom.V(-10, 4), GroupID: spawn.NewGroup, CanMove: true}),
	)
	c := profile.Coord{X: -1, Z: 0}
	if !w.AddRoom(c) {
		t.Fatal("AddRoom failed")
	}
	w.Tick()

	if ok, _ := w.RemoveRoom(profile.RootCoord(0, 0)); ok {
		t.Error("root room removed")
	}
	ok, out := w.RemoveRoom(c)
	if !ok || len(out) != 1 || out[0].Kind != components.OutcomeRemoved {
		t.Fatalf("ok=%v outcomes=%+v", ok, out)
	}
	if w.ActiveCount() != 0 {
		t.Errorf("active = %d", w.ActiveCount())
	}
}

func TestDatasetFramesSpawnWithGroup(t *testing.T) {
	cfg := testConfig(t, "framework")
	s := dataset.Synthesize(3, 3, 2, 250, 1)
	// Spawn at the grid center with a goal 0.6 to the east.
	s.Agents = map[string][][]float64{"2": {{0, 0.5, 0.5, 0, 0.52, 0.5, 3}}}
	w := newTestWorld(t, cfg, WithSimulation(s))

	if w.Timeline() == nil || w.Timeline().Len() != 2 {
		t.Fatalf("timeline = %+v", w.Timeline())
	}
	if out := w.TickN(2); len(out) != 0 {
		t.Fatalf("spawned before frame 2: %+v", out)
	}
	out := w.Tick()
	if len(out) != 1 || out[0].GroupID != 3 || out[0].Kind != components.OutcomeArrived {
		t.Errorf("outcomes = %+v", out)
	}
}

func TestDeterministicBySeed(t *testing.T) {
	run := func() ([]Outcome, []AgentView) {
		cfg := testConfig(t, "training")
		cfg.Spawn.Agents = 12
		w := newTestWorld(t, cfg, WithSeed(9))
		w.TickN(300)
		return w.Outcomes(), w.Agents()
	}
	o1, a1 := run()
	o2, a2 := run()
	if !reflect.DeepEqual(o1, o2) {
		t.Error("outcomes differ between identical runs")
	}
	if !reflect.DeepEqual(a1, a2) {
		t.Error("agent states differ between identical runs")
	}
	if len(o1)+len(a1) == 0 {
		t.Error("nothing spawned")
	}
}

func TestStatsCallbackPerWindow(t *testing.T) {
	cfg := testConfig(t, "framework")
	cfg.Telemetry.StatsWindow = 0.4 // 10 ticks
	var windows []telemetry.WindowStats
	w := newTestWorld(t, cfg,
		WithProfile(goalOnly),
		WithAgents(spawn.Request{Pos: geom.V(0, 0), Goal: geom.V(0.5, 0), GroupID: spawn.NewGroup, CanMove: true}),
		WithStatsCallback(func(s telemetry.WindowStats) { windows = append(windows, s) }),
	)
	w.TickN(20)
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
	if windows[0].Spawned != 1 || windows[0].Arrived != 1 || windows[1].Spawned != 0 {
		t.Errorf("windows = %+v", windows)
	}
}

func TestOutputAndIndex(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, "framework")
	w, err := New(cfg,
		WithProfile(goalOnly),
		WithOutput(dir),
		WithIndex(filepath.Join(dir, "runs.db")),
		WithAgents(spawn.Request{Pos: geom.V(0, 0), Goal: geom.V(0.5, 0), GroupID: spawn.NewGroup, CanMove: true}),
	)
	if err != nil {
		t.Fatal(err)
	}
	w.TickN(3)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "outcomes.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "arrived") {
		t.Errorf("outcomes.csv = %q", lines)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Error(err)
	}

	s, err := telemetry.QueryRun(context.Background(), filepath.Join(dir, "runs.db"), w.RunID())
	if err != nil {
		t.Fatal(err)
	}
	if s.Outcomes["arrived"] != 1 || s.Ticks != 3 || s.Mode != cfg.Sim.Mode {
		t.Errorf("run summary = %+v", s)
	}
}

func TestResolveCapabilitiesOverlay(t *testing.T) {
	cfg := testConfig(t, "training")
	cfg.Agent.GroupingDistance = 2.5
	cfg.Agent.MaxNeighbours = 0
	caps, err := resolveCapabilities(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if caps.GroupDistance != 2.5 {
		t.Errorf("group distance = %v, want 2.5", caps.GroupDistance)
	}
	if caps.MaxNeighbours != systems.Training().MaxNeighbours {
		t.Errorf("max neighbours = %d, want the variant value", caps.MaxNeighbours)
	}

	cfg.Derived.Variant = "replay"
	if _, err := resolveCapabilities(cfg); err == nil {
		t.Error("unknown variant accepted")
	}
}
