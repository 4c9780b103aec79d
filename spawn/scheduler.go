// Package spawn schedules agent activations: a tick-ordered event queue plus
// generators for the training scene and for dataset-driven frames.
package spawn

import (
	"container/heap"

	"github.com/pthm-cable/crowd/geom"
)

// NewGroup asks the simulation to allocate a fresh group id at spawn time.
// All requests in one event carrying NewGroup share the allocated id.
const NewGroup = -1

// Request describes one agent to activate.
type Request struct {
	Pos          geom.Vec2
	Goal         geom.Vec2
	GroupID      int
	InitialSpeed float64 // group initial speed; 0 keeps the ledger default
	EndTick      int     // dataset end tick; 0 means none
	CanMove      bool    // false holds the agent in warm-up until released
}

// Event is a batch of requests due at Tick. Seq breaks ties in push order.
type Event struct {
	Tick   int
	Seq    int
	Spawns []Request
}

// eventHeap implements heap.Interface ordered by (Tick, Seq).
type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].Tick != h[j].Tick {
		return h[i].Tick < h[j].Tick
	}
	return h[i].Seq < h[j].Seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = Event{}
	*h = old[:n-1]
	return e
}

// Scheduler is a min-queue of spawn events. It is advanced once per tick.
type Scheduler struct {
	events eventHeap
	seq    int
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Push queues e, assigning its sequence number.
func (s *Scheduler) Push(e Event) {
	e.Seq = s.seq
	s.seq++
	heap.Push(&s.events, e)
}

// PushAll queues events in order.
func (s *Scheduler) PushAll(events []Event) {
	for _, e := range events {
		s.Push(e)
	}
}

// Due pops every event with Tick <= tick, earliest first.
func (s *Scheduler) Due(tick int) []Event {
	var out []Event
	for s.events.Len() > 0 && s.events[0].Tick <= tick {
		out = append(out, heap.Pop(&s.events).(Event))
	}
	return out
}

// Len returns the number of queued events.
func (s *Scheduler) Len() int { return s.events.Len() }

// Pending returns the number of queued agent requests.
func (s *Scheduler) Pending() int {
	n := 0
	for _, e := range s.events {
		n += len(e.Spawns)
	}
	return n
}
