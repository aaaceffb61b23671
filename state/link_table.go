package state

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// LinkTable holds the predicted link window of every neighbour we have heard
// a hello from, plus our own kinematic state. It is owned by a single
// goroutine; none of its methods lock.
type LinkTable struct {
	links map[NodeId]NeighbourLink

	myPosition Vec2
	myVelocity Vec2
	maxRange   float64
	alpha      float64
	horizon    time.Duration
	curve      ThresholdCurve

	trajectoryBegin time.Time
	// running mean of our own trajectory durations, in seconds
	poissonSamples uint32
	poissonMean    float64

	clock   Clock
	oracle  PositionOracle
	txError TxErrorHandler
	log     *slog.Logger
}

type LinkTableOption func(*LinkTable)

func WithClock(clk Clock) LinkTableOption {
	return func(t *LinkTable) {
		t.clock = clk
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(log *slog.Logger) LinkTableOption {
	return func(t *LinkTable) {
		t.log = log
	}
}

func WithPositionOracle(oracle PositionOracle) LinkTableOption {
	return func(t *LinkTable) {
		t.oracle = oracle
	}
}

func WithTxErrorHandler(fn TxErrorHandler) LinkTableOption {
	return func(t *LinkTable) {
		t.txError = fn
	}
}

func WithAlpha(alpha float64) LinkTableOption {
	return func(t *LinkTable) {
		t.alpha = alpha
	}
}

func WithLongHorizon(horizon time.Duration) LinkTableOption {
	return func(t *LinkTable) {
		t.horizon = horizon
	}
}

func WithThresholdCurve(curve ThresholdCurve) LinkTableOption {
	return func(t *LinkTable) {
		t.curve = curve
	}
}

// WithPoissonMean seeds the trajectory duration estimate with one sample.
func WithPoissonMean(mean float64) LinkTableOption {
	return func(t *LinkTable) {
		t.poissonMean = mean
		t.poissonSamples = 1
	}
}

func NewLinkTable(maxRange float64, position, velocity Vec2, opts ...LinkTableOption) *LinkTable {
	t := &LinkTable{
		links:          make(map[NodeId]NeighbourLink),
		myPosition:     position,
		myVelocity:     velocity,
		maxRange:       maxRange,
		alpha:          DefaultAlpha,
		horizon:        LongHorizon,
		curve:          DefaultThresholdCurve,
		poissonSamples: DefaultPoissonSamples,
		poissonMean:    DefaultPoissonMean,
		clock:          clock.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t.trajectoryBegin = t.clock.Now()
	return t
}

// AddEntry replaces whatever we knew about id with a fresh prediction
// computed against our current position and velocity.
func (t *LinkTable) AddEntry(id NodeId, position, velocity Vec2, observed time.Time, betaJ float64, tj time.Time) {
	delete(t.links, id)
	from, to := t.CalculateTimeFromTo(observed, position, velocity)
	t.links[id] = NeighbourLink{
		Id:              id,
		Position:        position,
		Velocity:        velocity,
		From:            from,
		To:              to,
		Beta:            betaJ,
		TrajectoryBegin: tj,
	}
	t.log.Debug("link window", "id", id, "from", from.Sub(observed), "to", to.Sub(observed))
}

func (t *LinkTable) DeleteEntry(id NodeId) {
	delete(t.links, id)
}

func (t *LinkTable) Clear() {
	clear(t.links)
}

// GetEntryUpdateTime returns the predicted expiry of the link to id.
func (t *LinkTable) GetEntryUpdateTime(id NodeId) (time.Time, error) {
	l, ok := t.links[id]
	if !ok {
		return time.Time{}, fmt.Errorf("neighbour %s: %w", id, ErrNotFound)
	}
	return l.To, nil
}

func (t *LinkTable) IsNeighbour(id NodeId) bool {
	_, ok := t.links[id]
	return ok
}

func (t *LinkTable) Neighbour(id NodeId) (NeighbourLink, error) {
	l, ok := t.links[id]
	if !ok {
		return NeighbourLink{}, fmt.Errorf("neighbour %s: %w", id, ErrNotFound)
	}
	return l, nil
}

// Stability evaluates the stability of the link to id at at.
func (t *LinkTable) Stability(id NodeId, at time.Time) (float64, error) {
	l, err := t.Neighbour(id)
	if err != nil {
		return 0, err
	}
	return t.CalculateStability(at, l.TrajectoryBegin, l.Beta), nil
}

// Neighbours returns the ids currently in the table in ascending order.
func (t *LinkTable) Neighbours() []NodeId {
	return slices.Sorted(maps.Keys(t.links))
}

func (t *LinkTable) Len() int {
	return len(t.links)
}

// Purge removes every link whose window has closed.
func (t *LinkTable) Purge() {
	if len(t.links) == 0 {
		return
	}
	now := t.clock.Now()
	before := len(t.links)
	maps.DeleteFunc(t.links, func(id NodeId, l NeighbourLink) bool {
		return l.Expired(now)
	})
	if n := before - len(t.links); n > 0 {
		t.log.Debug("purged expired links", "count", n, "remaining", len(t.links))
	}
}

// GetPosition looks up the true position of id. It returns InvalidPosition
// if no oracle is configured or the id cannot be resolved.
func (t *LinkTable) GetPosition(id NodeId) Vec2 {
	if t.oracle == nil {
		return InvalidPosition
	}
	pos, ok := t.oracle.Position(id)
	if !ok {
		return InvalidPosition
	}
	return pos
}

// HasPosition reports whether a position is known for id, either from a hello or from the oracle.
func (t *LinkTable) HasPosition(id NodeId) bool {
	if t.IsNeighbour(id) {
		return true
	}
	return t.GetPosition(id) != InvalidPosition
}

// TxErrorCallback returns the hook the link layer should call on a failed transmission.
func (t *LinkTable) TxErrorCallback() TxErrorHandler {
	return t.ProcessTxError
}

func (t *LinkTable) SetTxErrorHandler(fn TxErrorHandler) {
	t.txError = fn
}

func (t *LinkTable) ProcessTxError(dst NodeId) {
	t.log.Debug("tx error", "dst", dst, "neighbour", t.IsNeighbour(dst))
	if t.txError != nil {
		t.txError(dst)
	}
}

func (t *LinkTable) MaxRange() float64 {
	return t.maxRange
}

func (t *LinkTable) SetMaxRange(maxRange float64) {
	t.maxRange = maxRange
}

func (t *LinkTable) MyPosition() Vec2 {
	return t.myPosition
}

func (t *LinkTable) SetMyPosition(position Vec2) {
	t.myPosition = position
}

func (t *LinkTable) MyVelocity() Vec2 {
	return t.myVelocity
}

func (t *LinkTable) SetMyVelocity(velocity Vec2) {
	t.myVelocity = velocity
}

// PoissonCoeff is the mean duration of our own trajectories, in seconds.
func (t *LinkTable) PoissonCoeff() float64 {
	return t.poissonMean
}

// SetPoissonCoeff folds one observed trajectory duration (seconds) into the running mean.
func (t *LinkTable) SetPoissonCoeff(sample float64) {
	n := float64(t.poissonSamples)
	t.poissonMean = (n*t.poissonMean + sample) / (n + 1)
	t.poissonSamples++
}

// Beta is our own mobility-stability rate, the inverse of the mean trajectory duration.
func (t *LinkTable) Beta() float64 {
	if t.poissonMean <= 0 {
		return 0
	}
	return 1 / t.poissonMean
}

func (t *LinkTable) TrajectoryBegin() time.Time {
	return t.trajectoryBegin
}

func (t *LinkTable) SetTrajectoryBegin(begin time.Time) {
	t.trajectoryBegin = begin
}

func (t *LinkTable) Alpha() float64 {
	return t.alpha
}

func (t *LinkTable) SetAlpha(alpha float64) {
	t.alpha = alpha
}

func (t *LinkTable) Curve() ThresholdCurve {
	return t.curve
}

func (t *LinkTable) String() string {
	t.Purge()
	sb := strings.Builder{}
	for _, id := range t.Neighbours() {
		l := t.links[id]
		sb.WriteString(fmt.Sprintf("id: %s arrived: %s leaves: %s\n",
			id, l.From.Format(time.StampMilli), l.To.Format(time.StampMilli)))
	}
	return sb.String()
}
