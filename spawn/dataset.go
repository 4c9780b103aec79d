package spawn

import (
	"math"
	"slices"

	"github.com/pthm-cable/crowd/geom"
)

// Dataset agent row layout after reordering: spawn x, spawn z, goal x,
// goal z, unused, group id. Coordinates are normalized to [0, 1].
const (
	rowSpawnX = iota
	rowSpawnZ
	rowGoalX
	rowGoalZ
	rowUnused
	rowGroup
	rowLen
)

// FrameParams map dataset coordinates onto the field.
type FrameParams struct {
	HalfSize      float64
	Cols, Rows    int
	GridCenter    geom.Vec2
	FrameInterval int
	EndMultiplier float64
}

// DatasetRow reorders a raw dataset agent entry
// [_, x, z, unused, gx, gz, group] into the row layout used by FrameEvents.
func DatasetRow(raw []float64) ([]float64, bool) {
	if len(raw) < 7 {
		return nil, false
	}
	return []float64{raw[1], raw[2], raw[4], raw[5], raw[3], raw[6]}, true
}

// ToWorld maps a normalized dataset coordinate into world space.
func (p FrameParams) ToWorld(nx, nz float64) geom.Vec2 {
	x := geom.MapRange(nx, 0, 1, -1, 1) * p.HalfSize * float64(p.Cols)
	z := geom.MapRange(nz, 0, 1, -1, 1) * p.HalfSize * float64(p.Rows)
	return p.GridCenter.Add(geom.V(x, z))
}

// EndTick returns the tick after which an agent spawned at frame may expire.
// The next interval boundary is counted on top of the spawn frame.
func (p FrameParams) EndTick(frame int) int {
	next := frame
	if p.FrameInterval > 0 {
		next = (frame/p.FrameInterval + 1) * p.FrameInterval
	}
	return frame + next + int(math.Round(float64(p.FrameInterval)*p.EndMultiplier))
}

// FrameEvents turns rows keyed by frame into spawn events, one per frame in
// ascending order. Rows shorter than the layout are skipped.
func FrameEvents(frames map[int][][]float64, p FrameParams) []Event {
	keys := make([]int, 0, len(frames))
	for f := range frames {
		keys = append(keys, f)
	}
	slices.Sort(keys)

	events := make([]Event, 0, len(keys))
	for _, f := range keys {
		end := p.EndTick(f)
		var reqs []Request
		for _, row := range frames[f] {
			if len(row) < rowLen {
				continue
			}
			reqs = append(reqs, Request{
				Pos:     p.ToWorld(row[rowSpawnX], row[rowSpawnZ]),
				Goal:    p.ToWorld(row[rowGoalX], row[rowGoalZ]),
				GroupID: int(row[rowGroup]),
				EndTick: end,
				CanMove: true,
			})
		}
		if len(reqs) > 0 {
			events = append(events, Event{Tick: f, Spawns: reqs})
		}
	}
	return events
}

// Ring places n points on a ring around center, or center itself when n is 1.
func Ring(center geom.Vec2, n int, radius float64) []geom.Vec2 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []geom.Vec2{center}
	}
	out := make([]geom.Vec2, n)
	for i := range out {
		rad := float64(i) * 2 * math.Pi / float64(n)
		out[i] = center.Add(geom.V(math.Cos(rad), math.Sin(rad)).Scale(radius))
	}
	return out
}
