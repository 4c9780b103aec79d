package avoidance

import (
	"cmp"
	"slices"

	"github.com/pthm-cable/crowd/geom"
)

type agentState struct {
	pos    geom.Vec2
	vel    geom.Vec2
	pref   geom.Vec2
	live   bool
	pinned bool
}

type segment struct {
	a, b geom.Vec2
}

// Local is an in-process Service. Each step an agent keeps its preferred
// velocity, minus a reciprocal separation term for neighbors predicted to
// overlap within TimeHorizon, plus a push away from nearby obstacle edges.
type Local struct {
	params Params
	agents []agentState
	free   []Handle

	pending   [][]geom.Vec2
	obstacles []segment

	grid *Grid
	pool *workerPool

	// Step snapshot, indexed by position in order.
	order      []Handle
	positions  []geom.Vec2
	velocities []geom.Vec2
	prefs      []geom.Vec2
	next       []geom.Vec2
}

// NewLocal creates a solver whose neighbor grid covers [lo, hi].
func NewLocal(p Params, lo, hi geom.Vec2) *Local {
	l := &Local{params: p}
	cell := p.NeighborDist
	if cell <= 0 {
		cell = 1
	}
	l.grid = NewGrid(lo, hi, cell)
	l.pool = newWorkerPool(p.Workers, l.computeChunk)
	return l
}

// Params returns the solver parameters.
func (l *Local) Params() Params { return l.params }

// Register adds an agent at pos, reusing the most recently released handle.
func (l *Local) Register(pos geom.Vec2) Handle {
	st := agentState{pos: pos, live: true}
	if n := len(l.free); n > 0 {
		h := l.free[n-1]
		l.free = l.free[:n-1]
		l.agents[h] = st
		return h
	}
	l.agents = append(l.agents, st)
	return Handle(len(l.agents) - 1)
}

// Unregister releases h.
func (l *Local) Unregister(h Handle) error {
	if !l.valid(h) {
		return ErrUnknownHandle
	}
	l.agents[h] = agentState{}
	l.free = append(l.free, h)
	return nil
}

// SetPreferredVelocity sets the velocity the agent wants this step.
func (l *Local) SetPreferredVelocity(h Handle, v geom.Vec2) {
	if l.valid(h) {
		l.agents[h].pref = v
	}
}

// SetVelocity overwrites the realized velocity.
func (l *Local) SetVelocity(h Handle, v geom.Vec2) {
	if l.valid(h) {
		l.agents[h].vel = v
	}
}

// SetPinned holds h in place. A pinned agent stays in the neighbor snapshot
// but ignores its preferred velocity and every push.
func (l *Local) SetPinned(h Handle, pinned bool) {
	if l.valid(h) {
		l.agents[h].pinned = pinned
		if pinned {
			l.agents[h].vel = geom.Vec2{}
		}
	}
}

// Position returns the agent's position, or the zero vector for an unknown handle.
func (l *Local) Position(h Handle) geom.Vec2 {
	if !l.valid(h) {
		return geom.Vec2{}
	}
	return l.agents[h].pos
}

// Velocity returns the agent's realized velocity.
func (l *Local) Velocity(h Handle) geom.Vec2 {
	if !l.valid(h) {
		return geom.Vec2{}
	}
	return l.agents[h].vel
}

// Len returns the number of registered agents.
func (l *Local) Len() int { return len(l.agents) - len(l.free) }

// AddObstaclePolygon queues a polygon for the next CommitObstacles.
func (l *Local) AddObstaclePolygon(poly []geom.Vec2) {
	if len(poly) < 2 {
		return
	}
	l.pending = append(l.pending, slices.Clone(poly))
}

// CommitObstacles turns queued polygons into edges.
func (l *Local) CommitObstacles() {
	for _, poly := range l.pending {
		for i := range poly {
			l.obstacles = append(l.obstacles, segment{a: poly[i], b: poly[(i+1)%len(poly)]})
		}
	}
	l.pending = l.pending[:0]
}

// NumObstacleEdges returns the number of committed obstacle edges.
func (l *Local) NumObstacleEdges() int { return len(l.obstacles) }

// Step advances every registered agent by dt.
func (l *Local) Step(dt float64) {
	// Phase A: snapshot live agents.
	l.order = l.order[:0]
	l.positions = l.positions[:0]
	l.velocities = l.velocities[:0]
	l.prefs = l.prefs[:0]
	l.grid.Clear()
	for h := range l.agents {
		st := &l.agents[h]
		if !st.live {
			continue
		}
		l.grid.Insert(len(l.order), st.pos)
		l.order = append(l.order, Handle(h))
		l.positions = append(l.positions, st.pos)
		l.velocities = append(l.velocities, st.vel)
		l.prefs = append(l.prefs, st.pref)
	}

	n := len(l.order)
	if cap(l.next) < n {
		l.next = make([]geom.Vec2, n)
	}
	l.next = l.next[:n]

	// Phase B: compute.
	l.pool.run(n)

	// Phase C: apply.
	for i, h := range l.order {
		st := &l.agents[h]
		if st.pinned {
			continue
		}
		st.vel = l.next[i]
		st.pos = st.pos.Add(st.vel.Scale(dt))
	}
}

// Close stops the worker pool.
func (l *Local) Close() error {
	l.pool.stop()
	return nil
}

func (l *Local) valid(h Handle) bool {
	return h >= 0 && int(h) < len(l.agents) && l.agents[h].live
}

// computeChunk reads only the step snapshot and writes only next[i0:i1].
func (l *Local) computeChunk(i0, i1 int, scratch *[]Neighbor) {
	p := &l.params
	for i := i0; i < i1; i++ {
		pos := l.positions[i]
		vel := l.velocities[i]
		v := l.prefs[i]

		*scratch = l.grid.QueryRadiusInto((*scratch)[:0], pos, p.NeighborDist, i, l.positions)
		nb := *scratch
		slices.SortFunc(nb, func(a, b Neighbor) int {
			if c := cmp.Compare(a.DistSq, b.DistSq); c != 0 {
				return c
			}
			return cmp.Compare(a.Index, b.Index)
		})
		if p.MaxNeighbors > 0 && len(nb) > p.MaxNeighbors {
			nb = nb[:p.MaxNeighbors]
		}
		v = v.Add(l.separation(vel, nb))
		v = v.Add(l.obstaclePush(pos, v))

		l.next[i] = v.ClampLen(p.MaxSpeed)
	}
}

// separation returns the velocity change that removes half of each
// predicted overlap over the time horizon.
func (l *Local) separation(vel geom.Vec2, nb []Neighbor) geom.Vec2 {
	p := &l.params
	if p.TimeHorizon <= 0 {
		return geom.Vec2{}
	}
	combined := 2 * p.Radius
	var out geom.Vec2
	for _, n := range nb {
		if n.DistSq < 1e-18 {
			continue
		}
		dist := n.Delta.Len()
		dir := n.Delta.Scale(1 / dist)
		closing := max(vel.Sub(l.velocities[n.Index]).Dot(dir), 0)
		gap := dist - closing*p.TimeHorizon
		if overlap := combined - gap; overlap > 0 {
			out = out.Sub(dir.Scale(0.5 * overlap / p.TimeHorizon))
		}
	}
	return out
}

// obstaclePush returns the velocity change away from edges closer than the
// agent's reach.
func (l *Local) obstaclePush(pos, v geom.Vec2) geom.Vec2 {
	p := &l.params
	if len(l.obstacles) == 0 || p.TimeHorizonObst <= 0 {
		return geom.Vec2{}
	}
	reach := p.Radius + v.Len()*p.TimeHorizonObst
	var out geom.Vec2
	for _, s := range l.obstacles {
		q := closestOnSegment(pos, s.a, s.b)
		away := pos.Sub(q)
		d := away.Len()
		if d >= reach || d < 1e-9 {
			continue
		}
		out = out.Add(away.Scale((reach - d) / (d * p.TimeHorizonObst)))
	}
	return out
}

func closestOnSegment(p, a, b geom.Vec2) geom.Vec2 {
	ab := b.Sub(a)
	den := ab.LenSq()
	if den == 0 {
		return a
	}
	t := geom.Clamp01(p.Sub(a).Dot(ab) / den)
	return a.Add(ab.Scale(t))
}
