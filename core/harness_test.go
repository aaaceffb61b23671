package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/kdtm/protocol"
	"github.com/encodeous/kdtm/state"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

type loopTask struct {
	at  time.Time
	seq int
	s   *state.State
	fun func(*state.State) error
}

// loop is a manually advanced clock and scheduler shared by every node of a test.
type loop struct {
	now   time.Time
	seq   int
	tasks []loopTask
}

func newLoop() *loop {
	return &loop{now: epoch}
}

func (l *loop) Now() time.Time {
	return l.now
}

func (l *loop) Schedule(s *state.State, fun func(*state.State) error, delay time.Duration) {
	l.seq++
	l.tasks = append(l.tasks, loopTask{at: l.now.Add(max(delay, 0)), seq: l.seq, s: s, fun: fun})
}

// advance runs every task due in the next d, in time order.
func (l *loop) advance(t *testing.T, d time.Duration) {
	t.Helper()
	until := l.now.Add(d)
	for {
		idx := -1
		for i, task := range l.tasks {
			if task.at.After(until) {
				continue
			}
			if idx == -1 || task.at.Before(l.tasks[idx].at) ||
				(task.at.Equal(l.tasks[idx].at) && task.seq < l.tasks[idx].seq) {
				idx = i
			}
		}
		if idx == -1 {
			break
		}
		task := l.tasks[idx]
		l.tasks = slices.Delete(l.tasks, idx, idx+1)
		l.now = task.at
		require.NoError(t, task.fun(task.s))
	}
	l.now = until
}

type HarnessEvent struct {
	From   state.NodeId
	Header protocol.Header
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, ev := range h {
		out = append(out, fmt.Sprintf("%s %s", ev.From, ev.Header))
	}
	return strings.Join(out, "\n")
}

func (h HarnessEvents) OfType(t protocol.MsgType) HarnessEvents {
	res := make(HarnessEvents, 0)
	for _, ev := range h {
		if ev.Header.Type() == t {
			res = append(res, ev)
		}
	}
	return res
}

// Harness stands in for the link layer and the mobility model.
type Harness struct {
	t          *testing.T
	events     HarnessEvents
	kinematics map[state.NodeId][2]state.Vec2
}

func NewHarness(t *testing.T) *Harness {
	return &Harness{t: t, kinematics: make(map[state.NodeId][2]state.Vec2)}
}

func (h *Harness) Broadcast(from state.NodeId, frame []byte) error {
	hdr, err := protocol.Decode(frame)
	require.NoError(h.t, err)
	h.events = append(h.events, HarnessEvent{From: from, Header: hdr})
	return nil
}

func (h *Harness) Kinematics(id state.NodeId) (state.Vec2, state.Vec2) {
	k, ok := h.kinematics[id]
	if !ok {
		return state.InvalidPosition, state.Vec2{}
	}
	return k[0], k[1]
}

func (h *Harness) Move(id state.NodeId, position, velocity state.Vec2) {
	h.kinematics[id] = [2]state.Vec2{position, velocity}
}

func (h *Harness) Warnings() HarnessEvents {
	return h.events.OfType(protocol.MsgWarning)
}

// fixedPolicy waits a constant backoff and then applies forward.
type fixedPolicy struct {
	backoff time.Duration
	forward bool
}

func (p fixedPolicy) Backoff(v WarningView) time.Duration {
	return p.backoff
}

func (p fixedPolicy) ShouldForward(v WarningView) bool {
	return p.forward
}

type delivery struct {
	Node state.NodeId
	Msg  state.MessageId
	Hops uint32
}

type testNode struct {
	*Node
	s          *state.State
	deliveries []delivery
}

func startNode(t *testing.T, l *loop, h *Harness, id state.NodeId, cfg state.NodeCfg, log *slog.Logger, policy ForwardPolicy) *testNode {
	t.Helper()
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	t.Cleanup(func() {
		cancel(context.Canceled)
	})
	env := &state.Env{
		NodeCfg:   cfg,
		Id:        id,
		Context:   ctx,
		Cancel:    cancel,
		Clock:     l,
		Scheduler: l,
		Log:       log,
	}
	pos, vel := h.Kinematics(id)
	tn := &testNode{s: state.NewState(env, pos, vel, nil)}
	tn.Node = &Node{
		Transport:  h,
		Kinematics: h,
		Policy:     policy,
		OnDeliver: func(id state.NodeId, msg state.MessageId, hops uint32, at time.Time) {
			tn.deliveries = append(tn.deliveries, delivery{id, msg, hops})
		},
	}
	require.NoError(t, Start(tn.s, tn.Node))
	return tn
}

func (tn *testNode) receive(t *testing.T, from state.NodeId, hdr protocol.Header) {
	t.Helper()
	frame, err := protocol.Encode(hdr)
	require.NoError(t, err)
	require.NoError(t, tn.HandleFrame(tn.s, from, frame))
}

func warningFrom(prev state.NodeId, msg state.MessageId, hops uint32, pos state.Vec2) *protocol.WarningHeader {
	return &protocol.WarningHeader{
		SourceId:  1,
		PrevHopId: prev,
		HopCount:  hops,
		MessageId: msg,
		Position:  pos,
	}
}
