package sim

import (
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/crowd/avoidance"
	"github.com/pthm-cable/crowd/components"
	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/spawn"
	"github.com/pthm-cable/crowd/telemetry"
)

// spawnDue activates every request whose event is due. Requests carrying
// spawn.NewGroup share one group id per event.
func (w *World) spawnDue() {
	for _, ev := range w.scheduler.Due(w.tick) {
		fresh := -1
		for _, req := range ev.Spawns {
			gid := req.GroupID
			if gid == spawn.NewGroup {
				if fresh < 0 {
					fresh = w.ledger.Allocate()
				}
				gid = fresh
			}
			w.activate(req, gid)
		}
	}
}

// SpawnGroupAt places n agents on a ring around point, all in one new group
// walking to goal. It returns their ids.
func (w *World) SpawnGroupAt(point geom.Vec2, n int, goal geom.Vec2) []uint32 {
	if n <= 0 {
		return nil
	}
	gid := w.ledger.Allocate()
	ids := make([]uint32, 0, n)
	for _, p := range spawn.Ring(point, n, w.cfg.Spawn.RingRadius) {
		ids = append(ids, w.activate(spawn.Request{Pos: p, Goal: goal, GroupID: gid, CanMove: true}, gid))
	}
	return ids
}

// acquire pops a pooled entity, growing the pool when it is empty.
func (w *World) acquire() ecs.Entity {
	if n := len(w.pool); n > 0 {
		e := w.pool[n-1]
		w.pool = w.pool[:n-1]
		return e
	}
	return w.newPooledEntity()
}

// activate resets a pooled entity for req and registers it with the
// services.
func (w *World) activate(req spawn.Request, gid int) uint32 {
	e := w.acquire()
	pos := w.posMap.Get(e)
	vel := w.velMap.Get(e)
	head := w.headMap.Get(e)
	a := w.agentMap.Get(e)
	w.scoreMap.Get(e).Reset()

	pos.Vec2 = req.Pos
	vel.Vec2 = geom.Vec2{}
	head.Vec2 = req.Goal.Sub(req.Pos).Normalize()
	if head.LenSq() == 0 {
		head.Vec2 = geom.V(0, 1)
	}

	speed := req.InitialSpeed
	if speed <= 0 {
		speed = w.cfg.Agent.MaxSpeed
	}
	dist := req.Goal.Dist(req.Pos)
	*a = components.Agent{
		ID:              a.ID,
		Active:          true,
		Handle:          int(w.avoid.Register(req.Pos)),
		GroupID:         gid,
		Start:           req.Pos,
		Goal:            req.Goal,
		CanMove:         req.CanMove,
		SpawnTick:       w.tick,
		EndTick:         req.EndTick,
		MaxSpeed:        w.cfg.Agent.MaxSpeed,
		InitialSpeed:    speed,
		Weights:         w.field.Query(req.Pos),
		GoalDist:        dist,
		InitialGoalDist: dist,
		BestGoalDist:    dist,
	}

	w.ledger.Join(gid, a.ID)
	if req.InitialSpeed > 0 {
		w.ledger.SetInitialSpeed(gid, req.InitialSpeed)
	}
	w.active++

	w.lifetime.Register(a.ID, w.tick, gid)
	w.traj.Begin(a.ID, w.tick)
	w.collector.Record(telemetry.NewSpawnEvent(w.tick, a.ID, gid))
	slog.Debug("agent_spawned", "agent", a.ID, "group", gid, "tick", w.tick)
	return a.ID
}

// applyRemovals despawns the queued agents. Each produces exactly one
// outcome; the entity goes back to the pool.
func (w *World) applyRemovals() []Outcome {
	if len(w.pending) == 0 {
		return nil
	}
	out := make([]Outcome, 0, len(w.pending))
	recs := make([]telemetry.OutcomeRecord, 0, len(w.pending))
	for _, r := range w.pending {
		a := w.agentMap.Get(r.entity)
		if !a.Active {
			continue
		}
		if err := w.avoid.Unregister(avoidance.Handle(a.Handle)); err != nil {
			slog.Warn("avoidance_unregister_failed", "agent", a.ID, "error", err)
		}
		w.ledger.Leave(a.ID, a.GroupID)
		a.Active = false
		a.Handle = -1
		w.active--

		o := Outcome{
			Agent:   a.ID,
			GroupID: a.GroupID,
			Kind:    r.outcome,
			Tick:    w.tick,
			Steps:   a.Step,
			Return:  w.scoreMap.Get(r.entity).Total,
		}
		w.outcomes = append(w.outcomes, o)
		out = append(out, o)

		rec := w.lifetime.Finish(a.ID, w.tick, o.Kind, o.Return)
		recs = append(recs, rec)
		w.index.RecordOutcome(rec)
		if err := w.traj.Finish(a.ID); err != nil {
			slog.Error("failed to write trajectory", "agent", a.ID, "error", err)
		}
		w.collector.Record(telemetry.NewOutcomeEvent(w.tick, a.ID, a.GroupID, o.Kind, o.Return))
		slog.Debug("agent_despawned", "agent", a.ID, "group", a.GroupID, "outcome", o.Kind.String(), "tick", w.tick)

		w.pool = append(w.pool, r.entity)
	}
	w.pending = w.pending[:0]

	if err := w.output.WriteOutcomes(recs); err != nil {
		slog.Error("failed to write outcomes", "error", err)
	}
	return out
}
