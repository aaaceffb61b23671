package sim

import (
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/encodeous/kdtm/state"
)

// trajectory is one straight-line leg of a node's movement.
type trajectory struct {
	begin    time.Time
	end      time.Time
	origin   state.Vec2
	velocity state.Vec2
}

func (t trajectory) at(now time.Time) state.Vec2 {
	return t.origin.Add(t.velocity.Scale(now.Sub(t.begin).Seconds()))
}

// Mobility is the ground truth movement of every node: a random direction
// model whose legs last an exponentially distributed time and end early at
// the arena boundary.
type Mobility struct {
	cfg   state.MobilityCfg
	arena state.ArenaCfg
	clock state.Clock
	rand  *rand.Rand
	legs  map[state.NodeId]*trajectory
}

func NewMobility(cfg state.MobilityCfg, arena state.ArenaCfg, clk state.Clock, r *rand.Rand) *Mobility {
	return &Mobility{
		cfg:   cfg,
		arena: arena,
		clock: clk,
		rand:  r,
		legs:  make(map[state.NodeId]*trajectory),
	}
}

// Place starts id at position. A zero velocity is replaced by a random one.
// It returns when the first leg ends.
func (m *Mobility) Place(id state.NodeId, position, velocity state.Vec2) time.Time {
	now := m.clock.Now()
	position = m.clip(position)
	if velocity == (state.Vec2{}) {
		velocity = m.randomVelocity()
	}
	leg := &trajectory{begin: now, origin: position, velocity: velocity}
	leg.end = now.Add(m.legDuration(position, velocity))
	m.legs[id] = leg
	return leg.end
}

// PlaceRandom starts id at a uniformly random position in the arena.
func (m *Mobility) PlaceRandom(id state.NodeId) time.Time {
	pos := state.Vec2{
		X: m.rand.Float64() * m.arena.Width,
		Y: m.rand.Float64() * m.arena.Height,
	}
	return m.Place(id, pos, state.Vec2{})
}

// Turn ends the current leg of id and starts a new one in a random direction.
// It returns the duration of the finished leg and when the new one ends.
func (m *Mobility) Turn(id state.NodeId) (time.Duration, time.Time) {
	now := m.clock.Now()
	leg := m.legs[id]
	pos := m.clip(leg.at(now))
	last := now.Sub(leg.begin)
	velocity := m.randomVelocity()
	next := &trajectory{begin: now, origin: pos, velocity: velocity}
	next.end = now.Add(m.legDuration(pos, velocity))
	m.legs[id] = next
	return last, next.end
}

// Position implements state.PositionOracle.
func (m *Mobility) Position(id state.NodeId) (state.Vec2, bool) {
	leg, ok := m.legs[id]
	if !ok {
		return state.InvalidPosition, false
	}
	return m.clip(leg.at(m.clock.Now())), true
}

// Kinematics implements core.Kinematics.
func (m *Mobility) Kinematics(id state.NodeId) (state.Vec2, state.Vec2) {
	leg, ok := m.legs[id]
	if !ok {
		return state.InvalidPosition, state.Vec2{}
	}
	return m.clip(leg.at(m.clock.Now())), leg.velocity
}

// InRange returns every node other than id within maxRange of it, in ascending id order.
func (m *Mobility) InRange(id state.NodeId, maxRange float64) []state.NodeId {
	pos, ok := m.Position(id)
	if !ok {
		return nil
	}
	res := make([]state.NodeId, 0)
	for other := range m.legs {
		if other == id {
			continue
		}
		p, _ := m.Position(other)
		if p.DistanceTo(pos) <= maxRange {
			res = append(res, other)
		}
	}
	slices.Sort(res)
	return res
}

func (m *Mobility) randomVelocity() state.Vec2 {
	speed := m.cfg.MinSpeed + m.rand.Float64()*(m.cfg.MaxSpeed-m.cfg.MinSpeed)
	angle := m.rand.Float64() * 2 * math.Pi
	return state.Vec2{X: speed * math.Cos(angle), Y: speed * math.Sin(angle)}
}

// legDuration draws an exponential duration, cut short where the leg would leave the arena.
func (m *Mobility) legDuration(position, velocity state.Vec2) time.Duration {
	d := m.rand.ExpFloat64() * m.cfg.MeanTrajectory.Seconds()
	d = math.Min(d, m.timeToBoundary(position, velocity))
	// a leg always lasts a little, so a node parked on the boundary still turns away from it
	d = math.Max(d, 0.001)
	return time.Duration(d * float64(time.Second))
}

func (m *Mobility) timeToBoundary(p, v state.Vec2) float64 {
	t := math.Inf(1)
	axis := func(x, vx, limit float64) {
		switch {
		case vx > 0:
			t = math.Min(t, (limit-x)/vx)
		case vx < 0:
			t = math.Min(t, -x/vx)
		}
	}
	axis(p.X, v.X, m.arena.Width)
	axis(p.Y, v.Y, m.arena.Height)
	return math.Max(t, 0)
}

func (m *Mobility) clip(p state.Vec2) state.Vec2 {
	return state.Vec2{
		X: math.Max(0, math.Min(p.X, m.arena.Width)),
		Y: math.Max(0, math.Min(p.Y, m.arena.Height)),
	}
}
