package sim

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/encodeous/kdtm/perf"
	"github.com/encodeous/kdtm/protocol"
	"github.com/encodeous/kdtm/state"
)

// Receiver consumes frames delivered by the medium.
type Receiver interface {
	HandleFrame(s *state.State, from state.NodeId, frame []byte) error
}

type attachment struct {
	s    *state.State
	recv Receiver
}

// Medium is a shared broadcast channel. A frame reaches every node within
// range of the sender at send time, after the propagation delay, unless it
// is lost. Losses are reported to the sender's link table.
type Medium struct {
	engine   *Engine
	mobility *Mobility
	maxRange float64
	loss     float64
	delay    time.Duration
	rand     *rand.Rand
	log      *slog.Logger
	nodes    map[state.NodeId]attachment

	Sent      uint64
	Delivered uint64
	Lost      uint64
}

func NewMedium(engine *Engine, mobility *Mobility, maxRange, loss float64, r *rand.Rand, log *slog.Logger) *Medium {
	return &Medium{
		engine:   engine,
		mobility: mobility,
		maxRange: maxRange,
		loss:     loss,
		delay:    state.PropagationDelay,
		rand:     r,
		log:      log,
		nodes:    make(map[state.NodeId]attachment),
	}
}

func (m *Medium) Attach(s *state.State, recv Receiver) {
	m.nodes[s.Id] = attachment{s: s, recv: recv}
}

// Broadcast implements core.Transport.
func (m *Medium) Broadcast(from state.NodeId, frame []byte) error {
	sender, ok := m.nodes[from]
	if !ok {
		return errors.New("broadcast from unattached node " + from.String())
	}
	m.Sent++
	for _, to := range m.mobility.InRange(from, m.maxRange) {
		dst, ok := m.nodes[to]
		if !ok {
			continue
		}
		if m.rand.Float64() < m.loss {
			m.Lost++
			perf.LostPerSecond.Add(1)
			sender.s.Links.ProcessTxError(to)
			continue
		}
		m.Delivered++
		m.engine.Schedule(dst.s, func(s *state.State) error {
			return m.deliver(dst, from, frame)
		}, m.delay)
	}
	return nil
}

func (m *Medium) deliver(dst attachment, from state.NodeId, frame []byte) error {
	err := dst.recv.HandleFrame(dst.s, from, frame)
	if errors.Is(err, protocol.ErrShortBuffer) || errors.Is(err, protocol.ErrInvalidType) ||
		errors.Is(err, protocol.ErrInvalidValue) {
		// a malformed frame is dropped, it does not stop the run
		m.log.Warn("dropped malformed frame", "from", from, "to", dst.s.Id, "error", err)
		return nil
	}
	return err
}
