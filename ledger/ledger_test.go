package ledger

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/crowd/geom"
)

type member struct {
	pos   geom.Vec2
	speed float64
}

// fakeSource records which agents RecomputeAll asked about.
type fakeSource struct {
	state map[uint32]member
	asked map[uint32]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{state: make(map[uint32]member), asked: make(map[uint32]int)}
}

func (s *fakeSource) MemberState(a uint32) (geom.Vec2, float64, bool) {
	s.asked[a]++
	m, ok := s.state[a]
	return m.pos, m.speed, ok
}

func TestRecomputeAggregates(t *testing.T) {
	l := New()
	src := newFakeSource()
	src.state[1] = member{geom.V(0, 0), 1}
	src.state[2] = member{geom.V(2, 0), 3}
	l.Join(7, 1)
	l.Join(7, 2)

	l.RecomputeAll(src)
	r, ok := l.Record(7)
	if !ok {
		t.Fatal("record missing")
	}
	if r.Centroid != geom.V(1, 0) {
		t.Errorf("centroid = %v, want (1,0)", r.Centroid)
	}
	if math.Abs(r.MeanDistance-1) > 1e-12 {
		t.Errorf("mean distance = %v, want 1", r.MeanDistance)
	}
	// Population variance of {1, 3} is 1.
	if math.Abs(r.SpeedVariance-1) > 1e-12 {
		t.Errorf("speed variance = %v, want 1", r.SpeedVariance)
	}
	if r.InitialSpeed != DefaultInitialSpeed {
		t.Errorf("initial speed = %v, want %v", r.InitialSpeed, DefaultInitialSpeed)
	}
}

func TestLeaveDissolvesAndRecycles(t *testing.T) {
	l := New()
	a := l.Allocate()
	b := l.Allocate()
	l.Join(a, 1)
	l.Join(b, 2)
	l.Join(b, 3)

	if l.Leave(2, b) {
		t.Fatal("group dissolved with a member left")
	}
	if !l.Leave(3, b) {
		t.Fatal("group did not dissolve")
	}
	if _, ok := l.Record(b); ok {
		t.Fatal("dissolved record still present")
	}

	src := newFakeSource()
	l.RecomputeAll(src)
	if src.asked[3] != 0 || src.asked[2] != 0 {
		t.Errorf("recompute touched dissolved group members: %v", src.asked)
	}
	if got := l.Allocate(); got != b {
		t.Errorf("Allocate = %d, want recycled %d", got, b)
	}
}

func TestAllocateSkipsLiveIDs(t *testing.T) {
	l := New()
	l.Join(0, 1)
	l.Join(1, 2)
	if got := l.Allocate(); got != 2 {
		t.Errorf("Allocate = %d, want 2", got)
	}
}

func TestLiveCountMatchesNonEmptyGroups(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := New()
	membership := make(map[uint32]int)

	for step := 0; step < 2000; step++ {
		agent := uint32(rng.Intn(40))
		if g, in := membership[agent]; in {
			l.Leave(agent, g)
			delete(membership, agent)
		} else {
			g := rng.Intn(8)
			l.Join(g, agent)
			membership[agent] = g
		}

		groups := make(map[int]bool)
		for _, g := range membership {
			groups[g] = true
		}
		if l.Len() != len(groups) {
			t.Fatalf("step %d: live records %d, non-empty groups %d", step, l.Len(), len(groups))
		}
	}
}

func TestSnapshotRejectsNonMember(t *testing.T) {
	l := New()
	l.Join(3, 10)
	if _, ok := l.Snapshot(3, 10); !ok {
		t.Error("member snapshot rejected")
	}
	if _, ok := l.Snapshot(3, 11); ok {
		t.Error("non-member snapshot accepted")
	}
	l.Leave(10, 3)
	if _, ok := l.Snapshot(3, 10); ok {
		t.Error("snapshot of dissolved group accepted")
	}
}

func TestInheritanceLatch(t *testing.T) {
	l := New()
	l.SetInheritanceArea(&Area{Center: geom.V(0, 0), HalfExtent: geom.V(6, 6)})
	src := newFakeSource()
	src.state[1] = member{geom.V(10, 0), 1}
	src.state[2] = member{geom.V(1, 1), 1}
	l.Join(0, 1)
	l.Join(0, 2)

	if got := l.RecomputeAll(src); len(got) != 0 {
		t.Fatalf("latched early: %v", got)
	}
	src.state[1] = member{geom.V(5.9, -5.9), 1}
	if got := l.RecomputeAll(src); len(got) != 1 || got[0] != 0 {
		t.Fatalf("latched = %v, want [0]", got)
	}
	src.state[1] = member{geom.V(20, 0), 1}
	l.RecomputeAll(src)
	if !l.Inherits(0) {
		t.Error("latch reverted after member left the area")
	}
}

func TestAreaContainsIsStrict(t *testing.T) {
	a := Area{Center: geom.V(0, 0), HalfExtent: geom.V(7, 6)}
	if a.Contains(geom.V(7, 0)) || a.Contains(geom.V(0, -6)) {
		t.Error("boundary point counted as inside")
	}
	if !a.Contains(geom.V(6.99, 5.99)) {
		t.Error("interior point counted as outside")
	}
}
