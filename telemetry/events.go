// Package telemetry provides crowd run statistics, CSV output, trajectory
// export and a sqlite run index.
package telemetry

import "github.com/pthm-cable/crowd/components"

// EventType identifies telemetry events.
type EventType uint8

const (
	EventSpawn EventType = iota
	EventArrive
	EventCollide
	EventExit
	EventExpire
	EventFreeze
	EventStale
	EventRemove
)

func (t EventType) String() string {
	switch t {
	case EventSpawn:
		return "spawn"
	case EventArrive:
		return "arrive"
	case EventCollide:
		return "collide"
	case EventExit:
		return "exit"
	case EventExpire:
		return "expire"
	case EventFreeze:
		return "freeze"
	case EventStale:
		return "stale"
	case EventRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event represents a single telemetry event.
type Event struct {
	Type    EventType
	Tick    int
	AgentID uint32
	GroupID int

	Outcome components.Outcome // terminal events only
	Return  float64            // accumulated score at the time of the event
}

// NewSpawnEvent creates a spawn event.
func NewSpawnEvent(tick int, agentID uint32, groupID int) Event {
	return Event{Type: EventSpawn, Tick: tick, AgentID: agentID, GroupID: groupID}
}

// NewOutcomeEvent creates the terminal event matching outcome.
func NewOutcomeEvent(tick int, agentID uint32, groupID int, outcome components.Outcome, ret float64) Event {
	return Event{
		Type:    OutcomeEventType(outcome),
		Tick:    tick,
		AgentID: agentID,
		GroupID: groupID,
		Outcome: outcome,
		Return:  ret,
	}
}

// NewFreezeEvent creates an event for an agent that stopped at an
// out-of-bounds goal.
func NewFreezeEvent(tick int, agentID uint32, groupID int) Event {
	return Event{Type: EventFreeze, Tick: tick, AgentID: agentID, GroupID: groupID}
}

// NewStaleEvent creates an event for a rejected group snapshot.
func NewStaleEvent(tick int, agentID uint32, groupID int) Event {
	return Event{Type: EventStale, Tick: tick, AgentID: agentID, GroupID: groupID}
}

// OutcomeEventType maps a terminal outcome to its event type.
func OutcomeEventType(o components.Outcome) EventType {
	switch o {
	case components.OutcomeArrived:
		return EventArrive
	case components.OutcomeCollidedObstacle, components.OutcomeCollidedInteraction:
		return EventCollide
	case components.OutcomeBoundaryExit:
		return EventExit
	case components.OutcomeExpired:
		return EventExpire
	default:
		return EventRemove
	}
}
