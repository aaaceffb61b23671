package state

import (
	"context"
	"log/slog"
)

type KdModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State is the protocol state of one node. It must only be accessed from
// tasks run by its Scheduler.
type State struct {
	*Env
	Links   *LinkTable
	Queue   *ForwardQueue
	Modules map[string]KdModule
}

// Env can be read from any Goroutine
type Env struct {
	NodeCfg
	Id        NodeId
	Context   context.Context
	Cancel    context.CancelCauseFunc
	Clock     Clock
	Scheduler Scheduler
	Log       *slog.Logger
}

// NewState builds the link table and forwarding queue of a node from its config.
func NewState(env *Env, position, velocity Vec2, oracle PositionOracle) *State {
	return &State{
		Env: env,
		Links: NewLinkTable(env.MaxRange, position, velocity,
			WithClock(env.Clock),
			WithLogger(env.Log.With("module", "links")),
			WithPositionOracle(oracle),
			WithAlpha(env.Alpha),
			WithLongHorizon(env.LongHorizon),
			WithThresholdCurve(env.Threshold),
			WithPoissonMean(env.PoissonMean),
		),
		Queue:   NewForwardQueue(env.QueueMaxLen, env.QueueTimeout),
		Modules: make(map[string]KdModule),
	}
}
