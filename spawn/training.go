package spawn

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/ledger"
)

// lineOffsets place group members along the spawn line, centre first.
var lineOffsets = [...]float64{0, 1, -1, 2, -2}

// Training generates the randomized training scene: groups leave one spawn
// area for the opposite one.
type Training struct {
	Areas []ledger.Area // 2 or 4; the goal area is the opposite one

	GroupMin, GroupMax int // group size in [GroupMin, GroupMax)
	SpeedMin, SpeedMax float64
	DelayMin, DelayMax float64 // seconds between groups
	GoalNoise          float64
}

// DefaultTraining returns the training scene defaults for the given areas.
func DefaultTraining(areas []ledger.Area) *Training {
	return &Training{
		Areas:     areas,
		GroupMin:  2,
		GroupMax:  4,
		SpeedMin:  0.5,
		SpeedMax:  1.5,
		DelayMin:  0.75,
		DelayMax:  1.5,
		GoalNoise: 0.05,
	}
}

// Group generates one group of n agents with a shared goal area.
func (g *Training) Group(rng *rand.Rand, n int) []Request {
	if len(g.Areas) == 0 || n <= 0 {
		return nil
	}
	n = min(n, len(lineOffsets))

	spawnIdx := rng.Intn(len(g.Areas))
	goalIdx := (spawnIdx + len(g.Areas)/2) % len(g.Areas)
	angle := 0.0
	if len(g.Areas) == 4 && spawnIdx%2 == 1 {
		angle = 90
	}

	origin := randomIn(rng, g.Areas[spawnIdx])
	goal := randomIn(rng, g.Areas[goalIdx])
	speed := uniform(rng, g.SpeedMin, g.SpeedMax)

	rad := angle * math.Pi / 180
	dir := geom.V(math.Cos(rad), math.Sin(rad))

	out := make([]Request, n)
	for i := range out {
		pos := origin
		if n > 1 {
			pos = origin.Add(dir.Scale(lineOffsets[i]))
		}
		noise := geom.V(uniform(rng, -g.GoalNoise, g.GoalNoise), uniform(rng, -g.GoalNoise, g.GoalNoise))
		out[i] = Request{
			Pos:          pos,
			Goal:         goal.Add(noise),
			GroupID:      NewGroup,
			InitialSpeed: speed,
			CanMove:      true,
		}
	}
	return out
}

// Plan returns events covering n agents starting at startTick. The last
// group is truncated to fit.
func (g *Training) Plan(rng *rand.Rand, n, startTick int, dt float64) []Event {
	var events []Event
	tick := startTick
	for left := n; left > 0; {
		size := g.GroupMin
		if g.GroupMax > g.GroupMin {
			size += rng.Intn(g.GroupMax - g.GroupMin)
		}
		size = min(max(size, 1), left)

		events = append(events, Event{Tick: tick, Spawns: g.Group(rng, size)})
		left -= size

		delay := uniform(rng, g.DelayMin, g.DelayMax)
		if dt > 0 {
			tick += max(int(math.Round(delay/dt)), 1)
		}
	}
	return events
}

func randomIn(rng *rand.Rand, a ledger.Area) geom.Vec2 {
	return geom.V(
		uniform(rng, a.Center.X-a.HalfExtent.X, a.Center.X+a.HalfExtent.X),
		uniform(rng, a.Center.Z-a.HalfExtent.Z, a.Center.Z+a.HalfExtent.Z),
	)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}
