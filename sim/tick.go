package sim

import (
	"log/slog"

	"github.com/pthm-cable/crowd/avoidance"
	"github.com/pthm-cable/crowd/components"
	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/systems"
	"github.com/pthm-cable/crowd/telemetry"
)

// Tick advances the simulation by one fixed step and returns the outcomes
// of agents that finished during it.
//
// Every write to the ledger and the field happens before the controller
// reads them, and the avoidance service is stepped exactly once.
func (w *World) Tick() []Outcome {
	w.perf.StartTick()

	// 1. Due spawns
	w.perf.StartPhase(telemetry.PhaseSpawn)
	w.spawnDue()

	// 2. Group aggregates and inheritance latches
	w.perf.StartPhase(telemetry.PhaseLedger)
	for _, id := range w.ledger.RecomputeAll(w) {
		slog.Debug("group_inherits", "group", id, "tick", w.tick)
	}

	// 3. Time bucket and edge blends
	w.perf.StartPhase(telemetry.PhaseField)
	w.advanceField()

	// 4. Preferred velocities
	w.perf.StartPhase(telemetry.PhaseController)
	w.control()

	// 5. Local avoidance
	w.perf.StartPhase(telemetry.PhaseAvoidance)
	w.avoid.Step(w.cfg.Sim.DT)

	// 6. Readback and scoring
	w.perf.StartPhase(telemetry.PhaseScoring)
	w.readback()
	w.score()

	// 7. Despawns, after the scoring query has closed
	w.perf.StartPhase(telemetry.PhaseCleanup)
	out := w.applyRemovals()

	w.perf.StartPhase(telemetry.PhaseTelemetry)
	w.tick++
	w.flushTelemetry()
	w.perf.EndTick()
	return out
}

// advanceField switches the time bucket when due and refreshes every edge
// blend. Blends are rebuilt each tick since rooms can be edited between
// ticks without a bucket change.
func (w *World) advanceField() {
	if w.timeline != nil {
		if idx, changed := w.timeline.Advance(w.tick); changed {
			w.field.SetActiveBucketAll(idx)
			slog.Debug("bucket_changed", "bucket", idx, "tick", w.tick)
		}
	}
	w.field.RecomputeEdgeBlends()
}

// control picks each active agent's behavior weights and submits its
// preferred velocity.
func (w *World) control() {
	caps := &w.caps
	query := w.agentFilter.Query()
	for query.Next() {
		pos, vel, head, a, _ := query.Get()
		if !a.Active {
			continue
		}
		h := avoidance.Handle(a.Handle)

		a.Inherit = w.ledger.Inherits(a.GroupID)
		a.Weights = systems.ResolveWeights(w.field.Query(pos.Vec2), a.Inherit, caps)
		a.Driven = false

		switch {
		case a.Frozen:
			a.Preferred = geom.Vec2{}
			w.avoid.SetPreferredVelocity(h, a.Preferred)
			w.avoid.SetPinned(h, true)

		case systems.InWarmup(a.CanMove, a.LocalFrame, caps):
			// Crawl toward the goal so the first controller step has a heading.
			v := systems.WarmupVelocity(pos.Vec2, a.Goal)
			if v.LenSq() > 0 {
				head.Vec2 = v.Normalize()
			}
			a.Preferred = v
			w.avoid.SetVelocity(h, v)
			w.avoid.SetPreferredVelocity(h, v)

		case caps.RequireInheritance && !a.Inherit:
			a.Preferred = systems.DriveVelocity(head.Vec2, 0, a.InitialSpeed, a.MaxSpeed)
			w.avoid.SetPreferredVelocity(h, a.Preferred)
			a.Step++

		default:
			w.obs = systems.Observe(w.obs, a, head.Vec2, vel.Vec2)
			act := w.policy.Decide(w.obs)
			a.Preferred = systems.MapAction(float64(act.Forward), float64(act.Turn), head.Vec2, a.MaxSpeed, caps)
			a.Driven = true
			w.avoid.SetPreferredVelocity(h, a.Preferred)
			a.Step++
		}
		a.LocalFrame++
	}
}

// readback copies the solver's positions and velocities into the ECS and
// fills the post-step position snapshot used by proximity queries.
func (w *World) readback() {
	dt := w.cfg.Sim.DT
	w.positions = w.positions[:0]
	w.speeds = w.speeds[:0]

	query := w.agentFilter.Query()
	for query.Next() {
		pos, vel, head, a, _ := query.Get()
		if !a.Active {
			continue
		}
		h := avoidance.Handle(a.Handle)
		pos.Vec2 = w.avoid.Position(h)
		vel.Vec2 = w.avoid.Velocity(h)
		speed := vel.Len()
		if speed > headingMinSpeed {
			head.Vec2 = vel.Scale(1 / speed)
		}
		a.Speed = speed

		w.positions = append(w.positions, pos.Vec2)
		w.speeds = append(w.speeds, speed)
		w.lifetime.RecordStep(a.ID, speed, dt)
		w.traj.Sample(a.ID, w.tick, pos.Vec2, head.Vec2, a.Weights)
	}
	w.grid.Rebuild(w.positions)
}

// score evaluates every active agent and queues the ones whose episode
// ended.
func (w *World) score() {
	query := w.agentFilter.Query()
	for query.Next() {
		pos, vel, head, a, sc := query.Get()
		if !a.Active {
			continue
		}

		ctx := systems.ScoreContext{
			Caps:         &w.caps,
			Neighborhood: w.grid.CloserAgent(pos.Vec2, w.cfg.Agent.NeighbourDistance),
			GoalInBounds: w.field.InBounds(a.Goal),
			OnField:      w.field.InBounds(pos.Vec2),
			Contact:      systems.ClassifyContact(pos.Vec2, w.radius, w.boxes),
			Tick:         w.tick,
			MaxStep:      w.cfg.Sim.MaxSteps,
		}
		ctx.Interaction, ctx.HasInteraction = systems.CloserInteraction(pos.Vec2, w.boxes)
		ctx.Group, ctx.GroupOK = w.ledger.Snapshot(a.GroupID, a.ID)
		if !ctx.GroupOK {
			slog.Warn("ledger_membership_stale", "agent", a.ID, "group", a.GroupID, "tick", w.tick)
			w.lifetime.RecordStale(a.ID)
			w.collector.Record(telemetry.NewStaleEvent(w.tick, a.ID, a.GroupID))
		}

		s := systems.Score(a, pos.Vec2, head.Vec2, vel.Vec2, &ctx)
		s.Accumulate(sc)

		if s.Froze {
			w.lifetime.RecordFreeze(a.ID)
			w.collector.Record(telemetry.NewFreezeEvent(w.tick, a.ID, a.GroupID))
			slog.Debug("agent_frozen", "agent", a.ID, "tick", w.tick)
		}
		if s.Outcome != components.OutcomeNone {
			w.pending = append(w.pending, removal{entity: query.Entity(), outcome: s.Outcome})
		}
	}
}
