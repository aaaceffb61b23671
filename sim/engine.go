package sim

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/encodeous/kdtm/perf"
	"github.com/encodeous/kdtm/state"
)

type event struct {
	at    time.Time
	seq   uint64
	fun   func() error
	index int
}

// eventQueue orders events by time, then by insertion order.
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *eventQueue) Push(x any) {
	ev := x.(*event)
	ev.index = len(*q)
	*q = append(*q, ev)
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	ev.index = -1
	*q = old[:n-1]
	return ev
}

// Engine is a single threaded discrete event scheduler. It owns simulated
// time: Now only moves forward when the next event is dispatched. In
// realtime mode dispatch is paced against the wall clock.
type Engine struct {
	now   time.Time
	start time.Time
	mode  state.SimMode
	wall  clock.Clock
	queue eventQueue
	seq   uint64

	ctx    context.Context
	cancel context.CancelCauseFunc
	log    *slog.Logger

	Dispatched uint64
}

type EngineOption func(*Engine)

// WithWallClock sets the clock used to pace realtime runs and to time dispatches.
func WithWallClock(c clock.Clock) EngineOption {
	return func(e *Engine) {
		e.wall = c
	}
}

func NewEngine(ctx context.Context, start time.Time, mode state.SimMode, log *slog.Logger, opts ...EngineOption) *Engine {
	ctx, cancel := context.WithCancelCause(ctx)
	e := &Engine{
		now:    start,
		start:  start,
		mode:   mode,
		wall:   clock.New(),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Now() time.Time {
	return e.now
}

// Elapsed is the simulated time since the start of the run.
func (e *Engine) Elapsed() time.Duration {
	return e.now.Sub(e.start)
}

func (e *Engine) Context() context.Context {
	return e.ctx
}

func (e *Engine) Cancel(cause error) {
	e.cancel(cause)
}

func (e *Engine) Pending() int {
	return len(e.queue)
}

// After runs fun once delay has passed in simulated time. Negative delays run at the current time.
func (e *Engine) After(delay time.Duration, fun func() error) {
	if delay < 0 {
		delay = 0
	}
	e.seq++
	heap.Push(&e.queue, &event{
		at:  e.now.Add(delay),
		seq: e.seq,
		fun: fun,
	})
}

// Schedule implements state.Scheduler.
func (e *Engine) Schedule(s *state.State, fun func(*state.State) error, delay time.Duration) {
	e.After(delay, func() error {
		return fun(s)
	})
}

// Run dispatches events in time order until until is reached, the queue
// drains or the context is cancelled. An error returned by an event cancels
// the run and is returned.
func (e *Engine) Run(until time.Time) error {
	wallStart := e.wall.Now()
	e.log.Debug("started engine", "mode", e.mode, "until", until.Sub(e.start))
	for len(e.queue) > 0 {
		if e.ctx.Err() != nil {
			break
		}
		next := e.queue[0]
		if next.at.After(until) {
			break
		}
		if e.mode == state.ModeRealTime {
			if !e.waitFor(wallStart, next.at) {
				break
			}
		}
		heap.Pop(&e.queue)
		e.now = next.at

		start := e.wall.Now()
		err := next.fun()
		elapsed := e.wall.Since(start)
		e.Dispatched++
		perf.EventsPerSecond.Add(1)
		perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
		if err != nil {
			e.log.Error("error occurred during dispatch: ", "error", err)
			e.cancel(err)
			break
		}
		if e.mode == state.ModeRealTime && elapsed > time.Millisecond*4 {
			e.log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(next.fun).Pointer()).Name(), "elapsed", elapsed, "len", len(e.queue))
		}
	}
	if e.now.Before(until) && e.ctx.Err() == nil {
		e.now = until
	}

	cause := context.Cause(e.ctx)
	e.log.Debug("stopped engine", "elapsed", e.Elapsed(), "events", e.Dispatched)
	if cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

// waitFor blocks until the wall clock catches up with at. It returns false if the run was cancelled.
func (e *Engine) waitFor(wallStart time.Time, at time.Time) bool {
	wait := at.Sub(e.start) - e.wall.Since(wallStart)
	if wait <= 0 {
		return true
	}
	timer := e.wall.Timer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-e.ctx.Done():
		return false
	}
}
