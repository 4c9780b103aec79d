// Package ledger tracks live aggregate statistics for interconnection groups.
//
// A group exists exactly while it has members: Leave deletes a record the
// moment its last member goes, and the id becomes available for reuse.
package ledger

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/crowd/geom"
)

// DefaultInitialSpeed is the reference speed of a group created by Join
// before SetInitialSpeed is called.
const DefaultInitialSpeed = 1.0

// MemberSource supplies the state of group members during RecomputeAll.
type MemberSource interface {
	MemberState(agent uint32) (pos geom.Vec2, speed float64, ok bool)
}

// Record is a snapshot of one group's aggregates.
type Record struct {
	ID            int
	Members       []uint32
	Centroid      geom.Vec2
	MeanDistance  float64
	SpeedVariance float64
	InitialSpeed  float64
	Inherit       bool
}

// Size returns the member count.
func (r Record) Size() int { return len(r.Members) }

type record struct {
	members       []uint32
	centroid      geom.Vec2
	meanDistance  float64
	speedVariance float64
	initialSpeed  float64
	inherit       bool
}

// Ledger maps group ids to their aggregates.
type Ledger struct {
	records map[int]*record
	free    []int
	next    int
	area    *Area

	// scratch buffers for RecomputeAll
	positions []geom.Vec2
	speeds    []float64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{records: make(map[int]*record)}
}

// SetInheritanceArea sets the zone a whole group must occupy before its
// members inherit weights from the field. nil disables latching.
func (l *Ledger) SetInheritanceArea(a *Area) {
	l.area = a
}

// Allocate returns an id not currently in use, preferring the lowest
// recycled one.
func (l *Ledger) Allocate() int {
	for len(l.free) > 0 {
		id := l.free[0]
		l.free = l.free[1:]
		if _, live := l.records[id]; !live {
			return id
		}
	}
	for {
		id := l.next
		l.next++
		if _, live := l.records[id]; !live {
			return id
		}
	}
}

// Join adds agent to group id, creating the record if needed.
func (l *Ledger) Join(id int, agent uint32) {
	r, ok := l.records[id]
	if !ok {
		r = &record{initialSpeed: DefaultInitialSpeed}
		l.records[id] = r
		l.unfree(id)
		if id >= l.next {
			l.next = id + 1
		}
	}
	for _, m := range r.members {
		if m == agent {
			return
		}
	}
	r.members = append(r.members, agent)
}

// Leave removes agent from group id. It reports whether the group dissolved.
func (l *Ledger) Leave(agent uint32, id int) bool {
	r, ok := l.records[id]
	if !ok {
		return false
	}
	for i, m := range r.members {
		if m == agent {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	if len(r.members) > 0 {
		return false
	}
	delete(l.records, id)
	l.free = append(l.free, id)
	sort.Ints(l.free)
	return true
}

func (l *Ledger) unfree(id int) {
	for i, f := range l.free {
		if f == id {
			l.free = append(l.free[:i], l.free[i+1:]...)
			return
		}
	}
}

// SetInitialSpeed sets the group's reference speed.
func (l *Ledger) SetInitialSpeed(id int, s float64) bool {
	r, ok := l.records[id]
	if !ok {
		return false
	}
	r.initialSpeed = s
	return true
}

// RecomputeAll refreshes every group's centroid, mean distance to centroid
// and population speed variance. It returns the ids of groups whose members
// all entered the inheritance area for the first time.
func (l *Ledger) RecomputeAll(src MemberSource) (latched []int) {
	for _, id := range l.IDs() {
		r := l.records[id]
		l.positions = l.positions[:0]
		l.speeds = l.speeds[:0]
		for _, m := range r.members {
			pos, speed, ok := src.MemberState(m)
			if !ok {
				continue
			}
			l.positions = append(l.positions, pos)
			l.speeds = append(l.speeds, speed)
		}
		if len(l.positions) == 0 {
			continue
		}

		var sum geom.Vec2
		for _, p := range l.positions {
			sum = sum.Add(p)
		}
		r.centroid = sum.Scale(1 / float64(len(l.positions)))

		dists := make([]float64, len(l.positions))
		for i, p := range l.positions {
			dists[i] = p.Dist(r.centroid)
		}
		r.meanDistance = stat.Mean(dists, nil)
		r.speedVariance = stat.PopVariance(l.speeds, nil)

		if l.area != nil && !r.inherit && l.allInside() {
			r.inherit = true
			latched = append(latched, id)
		}
	}
	return latched
}

func (l *Ledger) allInside() bool {
	for _, p := range l.positions {
		if !l.area.Contains(p) {
			return false
		}
	}
	return true
}

// Record returns a snapshot of group id.
func (l *Ledger) Record(id int) (Record, bool) {
	r, ok := l.records[id]
	if !ok {
		return Record{}, false
	}
	return r.snapshot(id), true
}

// Snapshot returns group id's aggregates as seen by agent. ok is false when
// the group is gone or agent is not one of its members.
func (l *Ledger) Snapshot(id int, agent uint32) (Record, bool) {
	r, ok := l.records[id]
	if !ok {
		return Record{}, false
	}
	for _, m := range r.members {
		if m == agent {
			return r.snapshot(id), true
		}
	}
	return Record{}, false
}

func (r *record) snapshot(id int) Record {
	members := make([]uint32, len(r.members))
	copy(members, r.members)
	return Record{
		ID:            id,
		Members:       members,
		Centroid:      r.centroid,
		MeanDistance:  r.meanDistance,
		SpeedVariance: r.speedVariance,
		InitialSpeed:  r.initialSpeed,
		Inherit:       r.inherit,
	}
}

// Inherits reports whether group id has latched into inheriting weights.
func (l *Ledger) Inherits(id int) bool {
	r, ok := l.records[id]
	return ok && r.inherit
}

// Len returns the number of live groups.
func (l *Ledger) Len() int { return len(l.records) }

// IDs returns the live group ids in ascending order.
func (l *Ledger) IDs() []int {
	ids := make([]int, 0, len(l.records))
	for id := range l.records {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
