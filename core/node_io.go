package core

import (
	"fmt"
	"slices"

	"github.com/encodeous/kdtm/perf"
	"github.com/encodeous/kdtm/protocol"
	"github.com/encodeous/kdtm/state"
)

func (n *Node) broadcast(s *state.State, h protocol.Header) error {
	frame, err := protocol.Encode(h)
	if err != nil {
		return err
	}
	n.Metrics.Frame(n.label, h.Type().String(), "tx")
	perf.FramesPerSecond.Add(1)
	perf.BytesPerSecond.Add(float64(len(frame)))
	return n.Transport.Broadcast(s.Id, frame)
}

// SendHello beacons our current kinematic state.
func (n *Node) SendHello(s *state.State) error {
	pos, vel := n.refreshKinematics(s)
	h := &protocol.HelloHeader{
		Id:              s.Id,
		Origin:          pos,
		Speed:           vel,
		Time:            s.Clock.Now(),
		TrajectoryBegin: s.Links.TrajectoryBegin(),
		Beta:            s.Links.Beta(),
	}
	perf.HellosPerSecond.Add(1)
	return n.broadcast(s, h)
}

// HandleFrame processes one frame received from the link layer.
func (n *Node) HandleFrame(s *state.State, from state.NodeId, frame []byte) error {
	h, err := protocol.Decode(frame)
	if err != nil {
		return fmt.Errorf("frame from %s: %w", from, err)
	}
	n.Metrics.Frame(n.label, h.Type().String(), "rx")
	switch h := h.(type) {
	case *protocol.HelloHeader:
		n.handleHello(s, h)
		return nil
	case *protocol.WarningHeader:
		return n.handleWarning(s, h, frame)
	default:
		return fmt.Errorf("frame from %s: %w", from, protocol.ErrInvalidType)
	}
}

func (n *Node) handleHello(s *state.State, h *protocol.HelloHeader) {
	if h.Id == s.Id {
		return
	}
	n.refreshKinematics(s)
	s.Links.AddEntry(h.Id, h.Origin, h.Speed, h.Time, h.Beta, h.TrajectoryBegin)
}

func (n *Node) view(s *state.State, msg state.MessageId) WarningView {
	newest, _ := s.Queue.GetEntry(msg)
	return WarningView{
		Self:      s.Id,
		Now:       s.Clock.Now(),
		Position:  s.Links.MyPosition(),
		MessageId: msg,
		Newest:    newest,
		Copies:    s.Queue.Len(msg),
		Centroid:  s.Queue.CalculateSpatialDist(msg),
		Links:     s.Links,
	}
}

func (n *Node) handleWarning(s *state.State, h *protocol.WarningHeader, frame []byte) error {
	perf.WarningsPerSecond.Add(1)
	msg := h.MessageId
	if n.completed.Contains(msg) {
		n.Metrics.Warning(n.label, perf.WarningLate)
		return nil
	}
	if s.Queue.Find(msg, h.PrevHopId) {
		n.Metrics.Warning(n.label, perf.WarningDuplicate)
		s.Log.Debug("duplicate warning", "msg", msg, "prev", h.PrevHopId)
		return nil
	}
	if s.Queue.Len(msg) >= s.Queue.MaxLen() {
		n.Metrics.Warning(n.label, perf.WarningOverflow)
		return nil
	}

	now := s.Clock.Now()
	entry := &state.QueueEntry{
		Position:  h.Position,
		Payload:   slices.Clone(frame),
		SourceId:  h.SourceId,
		MessageId: msg,
		PrevHopId: h.PrevHopId,
		HopCount:  h.HopCount,
	}

	prev, err := s.Queue.GetEntry(msg)
	if err == nil {
		// later copies share the timer and outcome of the first one
		entry.SetBackoff(now, prev.Backoff(now))
		entry.Forwarded = prev.Forwarded
		s.Queue.Add(entry)
		n.Metrics.Warning(n.label, perf.WarningDuplicate)
		s.Log.Debug("warning copy", "msg", msg, "prev", h.PrevHopId, "copies", s.Queue.Len(msg),
			"centroid", s.Queue.CalculateSpatialDist(msg))
		return nil
	}

	n.refreshKinematics(s)
	s.Queue.Add(entry)
	n.Metrics.Warning(n.label, perf.WarningFirst)
	if n.OnDeliver != nil {
		n.OnDeliver(s.Id, msg, h.HopCount+1, now)
	}
	backoff := n.Policy.Backoff(n.view(s, msg))
	entry.SetBackoff(now, backoff)
	s.Log.Debug("new warning", "msg", msg, "src", h.SourceId, "prev", h.PrevHopId, "hops", h.HopCount, "backoff", backoff)
	s.ScheduleTask(func(s *state.State) error {
		return n.onBackoff(s, msg)
	}, backoff)
	return nil
}

func (n *Node) onBackoff(s *state.State, msg state.MessageId) error {
	entry, err := s.Queue.GetEntry(msg)
	if err != nil {
		return err
	}
	if s.Queue.IsAlreadyForwarded(msg) {
		return nil
	}
	n.refreshKinematics(s)
	if n.Policy.ShouldForward(n.view(s, msg)) {
		err = n.broadcast(s, &protocol.WarningHeader{
			SourceId:  entry.SourceId,
			PrevHopId: s.Id,
			HopCount:  entry.HopCount + 1,
			MessageId: msg,
			Position:  s.Links.MyPosition(),
		})
		if err != nil {
			return err
		}
		entry.Forwarded = true
		n.Metrics.Warning(n.label, perf.WarningForwarded)
		s.Log.Debug("forwarded warning", "msg", msg, "copies", s.Queue.Len(msg))
	} else {
		n.Metrics.Warning(n.label, perf.WarningSuppressed)
		s.Log.Debug("suppressed warning", "msg", msg, "copies", s.Queue.Len(msg))
	}
	n.retire(s, msg)
	return nil
}

// retire purges msg from the queue once the queue timeout has passed.
func (n *Node) retire(s *state.State, msg state.MessageId) {
	s.ScheduleTask(func(s *state.State) error {
		s.Queue.Purge(msg)
		n.completed.Add(msg, s.Clock.Now())
		return nil
	}, s.Queue.Timeout())
}

// OriginateWarning floods a new warning from this node and returns its id.
func (n *Node) OriginateWarning(s *state.State) (state.MessageId, error) {
	msg, err := state.NewMessageId(s.Id, n.seq+1)
	if err != nil {
		return 0, err
	}
	n.seq++
	pos, _ := n.refreshKinematics(s)
	h := &protocol.WarningHeader{
		SourceId:  s.Id,
		PrevHopId: s.Id,
		HopCount:  0,
		MessageId: msg,
		Position:  pos,
	}
	frame, err := protocol.Encode(h)
	if err != nil {
		return 0, err
	}
	s.Queue.Add(&state.QueueEntry{
		Position:  pos,
		Payload:   frame,
		SourceId:  s.Id,
		MessageId: msg,
		PrevHopId: s.Id,
		Forwarded: true,
	})
	n.Metrics.Warning(n.label, perf.WarningOriginated)
	s.Log.Info("originating warning", "msg", msg)
	if err := n.broadcast(s, h); err != nil {
		return 0, err
	}
	n.retire(s, msg)
	return msg, nil
}
