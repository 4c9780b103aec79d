// Package avoidance provides the local collision-avoidance service that turns
// each agent's preferred velocity into a realized velocity for one step.
package avoidance

import (
	"errors"

	"github.com/pthm-cable/crowd/geom"
)

// Handle identifies an agent registered with a Service.
type Handle int

// ErrUnknownHandle is returned when a handle is not registered.
var ErrUnknownHandle = errors.New("avoidance: unknown handle")

// Service is the contract the simulation core drives once per tick.
// Step must be called exactly once per tick, after every preferred velocity
// for that tick has been set, and outputs are only read after it returns.
type Service interface {
	Register(pos geom.Vec2) Handle
	Unregister(h Handle) error
	SetPreferredVelocity(h Handle, v geom.Vec2)
	// SetVelocity overwrites the realized velocity, bypassing the solver.
	SetVelocity(h Handle, v geom.Vec2)
	// SetPinned holds the agent in place with zero velocity. Others still
	// steer around it.
	SetPinned(h Handle, pinned bool)
	Step(dt float64)
	Position(h Handle) geom.Vec2
	Velocity(h Handle) geom.Vec2
	// AddObstaclePolygon queues a counter-clockwise polygon. It has no
	// effect until CommitObstacles.
	AddObstaclePolygon(poly []geom.Vec2)
	CommitObstacles()
}

// Params configure the Local solver.
type Params struct {
	NeighborDist    float64
	MaxNeighbors    int
	TimeHorizon     float64
	TimeHorizonObst float64
	Radius          float64
	MaxSpeed        float64
	Workers         int
}

// DefaultParams returns the solver defaults.
func DefaultParams() Params {
	return Params{
		NeighborDist:    3,
		MaxNeighbors:    8,
		TimeHorizon:     3,
		TimeHorizonObst: 1,
		Radius:          0.35,
		MaxSpeed:        2.25,
		Workers:         12,
	}
}
