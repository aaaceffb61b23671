package core

import (
	"math/rand/v2"
	"time"

	"github.com/encodeous/kdtm/perf"
	"github.com/encodeous/kdtm/state"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jellydator/ttlcache/v3"
)

// Transport hands a frame to the link layer, which delivers it to every node in range.
type Transport interface {
	Broadcast(from state.NodeId, frame []byte) error
}

// Kinematics reports the current position and velocity of a node.
type Kinematics interface {
	Kinematics(id state.NodeId) (position, velocity state.Vec2)
}

// DeliveryFunc is called the first time a node receives a given warning.
type DeliveryFunc func(id state.NodeId, msg state.MessageId, hops uint32, at time.Time)

// Node is the kdtm protocol module: it beacons hellos, maintains the link
// table from received hellos and relays warnings through the forwarding queue.
type Node struct {
	Transport  Transport
	Kinematics Kinematics
	Policy     ForwardPolicy
	Metrics    *perf.Collector
	OnDeliver  DeliveryFunc
	Rand       *rand.Rand

	// warnings we have finished handling, with the time they were purged
	completed *lru.Cache[state.MessageId, time.Time]
	// destinations we recently logged a transmission failure for
	txErrors *ttlcache.Cache[state.NodeId, time.Time]
	seq      uint32
	label    string
}

func (n *Node) Init(s *state.State) error {
	completed, err := lru.New[state.MessageId, time.Time](state.CompletedMessageCapacity)
	if err != nil {
		return err
	}
	n.completed = completed
	// expiry follows the wall clock, not simulated time, so accelerated
	// runs log each destination far less often than TxErrorLogInterval
	n.txErrors = ttlcache.New[state.NodeId, time.Time](
		ttlcache.WithTTL[state.NodeId, time.Time](state.TxErrorLogInterval),
		ttlcache.WithDisableTouchOnHit[state.NodeId, time.Time](),
	)
	n.label = s.Id.String()
	if n.Rand == nil {
		n.Rand = rand.New(rand.NewPCG(uint64(s.Id), 0))
	}
	if n.Policy == nil {
		n.Policy = NewFloodPolicy(s.MaxBackoff, uint64(s.Id))
	}

	s.Links.SetTxErrorHandler(func(dst state.NodeId) {
		n.handleTxError(s, dst)
	})
	n.refreshKinematics(s)

	jitter := time.Duration(0)
	if state.HelloJitter > 0 {
		jitter = time.Duration(n.Rand.Int64N(int64(state.HelloJitter)))
	}
	s.RepeatTask(n.SendHello, jitter, s.HelloInterval)
	return nil
}

func (n *Node) Cleanup(s *state.State) error {
	n.txErrors.DeleteAll()
	n.completed.Purge()
	s.Links.Clear()
	for _, msg := range s.Queue.Messages() {
		s.Queue.Purge(msg)
	}
	return nil
}

// refreshKinematics copies our true motion into the link table before any prediction is made.
func (n *Node) refreshKinematics(s *state.State) (state.Vec2, state.Vec2) {
	pos, vel := n.Kinematics.Kinematics(s.Id)
	s.Links.SetMyPosition(pos)
	s.Links.SetMyVelocity(vel)
	return pos, vel
}

// OnTrajectoryChange records that the previous trajectory lasted lastDuration
// and a new one begins at now.
func (n *Node) OnTrajectoryChange(s *state.State, now time.Time, lastDuration time.Duration) {
	s.Links.SetPoissonCoeff(lastDuration.Seconds())
	s.Links.SetTrajectoryBegin(now)
	n.refreshKinematics(s)
	s.Log.Debug("trajectory change", "last", lastDuration, "mean", s.Links.PoissonCoeff(), "beta", s.Links.Beta())
}

func (n *Node) Degree(s *state.State) float64 {
	return s.Links.CalculateDegree(s.Clock.Now())
}

func (n *Node) Threshold(s *state.State) float64 {
	return s.Links.CalculateThreshold(s.Clock.Now())
}

// Completed reports whether msg has been handled and purged.
func (n *Node) Completed(msg state.MessageId) bool {
	return n.completed.Contains(msg)
}

// ReportMetrics publishes the current link state to the collector.
func (n *Node) ReportMetrics(s *state.State) {
	now := s.Clock.Now()
	degree := s.Links.CalculateDegree(now)
	threshold := s.Links.Curve().Eval(degree)
	n.Metrics.SetLinkState(n.label, degree, threshold, s.Links.Len())
}

func (n *Node) handleTxError(s *state.State, dst state.NodeId) {
	n.Metrics.TxError(n.label)
	if _, found := n.txErrors.GetOrSet(dst, s.Clock.Now()); found {
		return
	}
	s.Log.Warn("transmission failed", "dst", dst, "neighbour", s.Links.IsNeighbour(dst))
}
