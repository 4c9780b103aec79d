package telemetry

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/profile"
)

// trajectorySkip is the number of leading warm-up samples left out of a
// written route.
const trajectorySkip = 4

// TrajectoryRow is one sample of an agent's route: time since spawn,
// position, yaw in degrees and the weights it steered by.
type TrajectoryRow struct {
	T           float64 `csv:"t"`
	X           float64 `csv:"x"`
	Z           float64 `csv:"z"`
	Rot         float64 `csv:"rot"`
	Goal        float64 `csv:"g"`
	Group       float64 `csv:"gr"`
	Interaction float64 `csv:"i"`
	Connect     float64 `csv:"c"`
}

// TrajectoryWriter buffers each active agent's route and writes it to
// dir/agent_<id>_<spawn>.csv when the agent finishes. Rows are
// semicolon separated with no header. A nil writer does nothing.
type TrajectoryWriter struct {
	dir    string
	dt     float64
	routes map[uint32]*route
}

type route struct {
	spawnTick int
	rows      []TrajectoryRow
}

// NewTrajectoryWriter creates the directory and returns a writer, or nil
// when dir is empty.
func NewTrajectoryWriter(dir string, dt float64) (*TrajectoryWriter, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating trajectory directory: %w", err)
	}
	return &TrajectoryWriter{dir: dir, dt: dt, routes: make(map[uint32]*route)}, nil
}

// Begin starts a new route for agent.
func (w *TrajectoryWriter) Begin(agent uint32, spawnTick int) {
	if w == nil {
		return
	}
	w.routes[agent] = &route{spawnTick: spawnTick}
}

// Sample appends the agent's state at tick.
func (w *TrajectoryWriter) Sample(agent uint32, tick int, pos, heading geom.Vec2, weights profile.Vector) {
	if w == nil {
		return
	}
	r := w.routes[agent]
	if r == nil {
		return
	}
	t := math.Round(float64(tick-r.spawnTick)*w.dt*100) / 100
	r.rows = append(r.rows, TrajectoryRow{
		T: t, X: pos.X, Z: pos.Z, Rot: geom.Yaw(heading),
		Goal: weights.Goal, Group: weights.Group, Interaction: weights.Interaction, Connect: weights.Connectivity,
	})
}

// Finish writes the agent's route and forgets it.
func (w *TrajectoryWriter) Finish(agent uint32) error {
	if w == nil {
		return nil
	}
	r := w.routes[agent]
	if r == nil {
		return nil
	}
	delete(w.routes, agent)
	if len(r.rows) <= trajectorySkip {
		return nil
	}

	path := filepath.Join(w.dir, fmt.Sprintf("agent_%d_%d.csv", agent, r.spawnTick))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trajectory: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	cw := csv.NewWriter(bw)
	cw.Comma = ';'
	if err := gocsv.MarshalCSVWithoutHeaders(r.rows[trajectorySkip:], gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("writing trajectory: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing trajectory: %w", err)
	}
	return f.Close()
}

// Pending returns the number of routes still being recorded.
func (w *TrajectoryWriter) Pending() int {
	if w == nil {
		return 0
	}
	return len(w.routes)
}
