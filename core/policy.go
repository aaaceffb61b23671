package core

import (
	"math/rand/v2"
	"time"

	"github.com/encodeous/kdtm/state"
)

// WarningView is what a ForwardPolicy gets to see when deciding on a warning.
type WarningView struct {
	Self      state.NodeId
	Now       time.Time
	Position  state.Vec2 // own position
	MessageId state.MessageId
	Newest    *state.QueueEntry
	Copies    int
	Centroid  state.Vec2 // mean position of the previous hops heard so far
	Links     *state.LinkTable
}

// ForwardPolicy decides when and whether a received warning is re-broadcast.
// Backoff is consulted once, on the first copy. ShouldForward is consulted
// once the backoff has elapsed.
type ForwardPolicy interface {
	Backoff(v WarningView) time.Duration
	ShouldForward(v WarningView) bool
}

// FloodPolicy forwards every warning exactly once after a uniformly random
// delay in [0, MaxBackoff].
type FloodPolicy struct {
	MaxBackoff time.Duration
	Rand       *rand.Rand
}

func NewFloodPolicy(maxBackoff time.Duration, seed uint64) *FloodPolicy {
	return &FloodPolicy{
		MaxBackoff: maxBackoff,
		Rand:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (p *FloodPolicy) Backoff(v WarningView) time.Duration {
	if p.MaxBackoff <= 0 {
		return 0
	}
	return time.Duration(p.Rand.Int64N(int64(p.MaxBackoff) + 1))
}

func (p *FloodPolicy) ShouldForward(v WarningView) bool {
	return true
}
