package state

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var obs = time.Unix(1000, 0)

func stationaryTable(maxRange float64) *LinkTable {
	return NewLinkTable(maxRange, Vec2{}, Vec2{}, WithClock(clock.NewMock()))
}

func TestCalculateTimeFromTo_NoRelativeMotion(t *testing.T) {
	lt := stationaryTable(100)
	from, to := lt.CalculateTimeFromTo(obs, Vec2{X: 50}, Vec2{})
	assert.Equal(t, obs, from)
	assert.Equal(t, obs.Add(LongHorizon), to)
}

func TestCalculateTimeFromTo_SameVelocity(t *testing.T) {
	// moving together never changes the distance
	lt := NewLinkTable(100, Vec2{}, Vec2{X: 3, Y: 4}, WithClock(clock.NewMock()))
	from, to := lt.CalculateTimeFromTo(obs, Vec2{X: 10, Y: 10}, Vec2{X: 3, Y: 4})
	assert.Equal(t, obs, from)
	assert.Equal(t, obs.Add(LongHorizon), to)
}

func TestCalculateTimeFromTo_LeavingRange(t *testing.T) {
	lt := stationaryTable(100)
	// 100t^2 + 1000t + 2500 = 10000, roots -15 and 5
	from, to := lt.CalculateTimeFromTo(obs, Vec2{X: 50}, Vec2{X: 10})
	assert.Equal(t, obs, from)
	assert.Equal(t, obs.Add(5*time.Second), to)
}

func TestCalculateTimeFromTo_PassingThrough(t *testing.T) {
	lt := stationaryTable(100)
	from, to := lt.CalculateTimeFromTo(obs, Vec2{}, Vec2{X: 10})
	assert.Equal(t, obs, from)
	assert.Equal(t, obs.Add(10*time.Second), to)
}

func TestCalculateTimeFromTo_Approaching(t *testing.T) {
	lt := stationaryTable(100)
	// enters range after 10s, leaves after 30s
	from, to := lt.CalculateTimeFromTo(obs, Vec2{X: -200}, Vec2{X: 10})
	assert.Equal(t, obs.Add(10*time.Second), from)
	assert.Equal(t, obs.Add(30*time.Second), to)
}

func TestCalculateTimeFromTo_Tangent(t *testing.T) {
	lt := stationaryTable(100)
	from, to := lt.CalculateTimeFromTo(obs, Vec2{X: -100, Y: 100}, Vec2{X: 10})
	assert.Equal(t, obs.Add(10*time.Second), from)
	assert.Equal(t, from, to)
}

func TestCalculateTimeFromTo_NeverInRange(t *testing.T) {
	lt := stationaryTable(100)
	from, to := lt.CalculateTimeFromTo(obs, Vec2{X: 200}, Vec2{Y: 10})
	assert.Equal(t, obs, from)
	assert.Equal(t, obs.Add(LongHorizon), to)
}

func TestCalculateTimeFromTo_AlreadyOver(t *testing.T) {
	lt := stationaryTable(100)
	// both crossings are in the past
	from, to := lt.CalculateTimeFromTo(obs, Vec2{X: 200}, Vec2{X: 10})
	assert.Equal(t, obs, from)
	assert.Equal(t, obs, to)
}

func TestCalculateTimeFromTo_CappedAtHorizon(t *testing.T) {
	lt := stationaryTable(100)
	from, to := lt.CalculateTimeFromTo(obs, Vec2{}, Vec2{X: 0.1})
	assert.Equal(t, obs, from)
	assert.Equal(t, obs.Add(LongHorizon), to)

	lt = NewLinkTable(100, Vec2{}, Vec2{}, WithClock(clock.NewMock()), WithLongHorizon(time.Minute))
	_, to = lt.CalculateTimeFromTo(obs, Vec2{}, Vec2{X: 0.1})
	assert.Equal(t, obs.Add(time.Minute), to)
}

func TestCalculateTimeFromTo_Ordered(t *testing.T) {
	lt := NewLinkTable(120, Vec2{X: 10, Y: -20}, Vec2{X: -3, Y: 7}, WithClock(clock.NewMock()))
	for _, c := range []struct{ pos, vel Vec2 }{
		{Vec2{X: 0, Y: 0}, Vec2{X: 1, Y: 1}},
		{Vec2{X: 300, Y: 0}, Vec2{X: -20, Y: 0}},
		{Vec2{X: -50, Y: 90}, Vec2{X: 4, Y: -9}},
		{Vec2{X: 1000, Y: 1000}, Vec2{X: 0, Y: 0}},
	} {
		from, to := lt.CalculateTimeFromTo(obs, c.pos, c.vel)
		assert.False(t, from.Before(obs), "%v", c)
		assert.False(t, to.Before(from), "%v", c)
		assert.False(t, to.After(obs.Add(LongHorizon)), "%v", c)
	}
}

func TestAddEntry_ReplacesRecord(t *testing.T) {
	lt := stationaryTable(100)
	lt.AddEntry(7, Vec2{X: 50}, Vec2{X: 10}, obs, 0.01, obs)
	lt.AddEntry(7, Vec2{}, Vec2{X: 10}, obs, 0.02, obs.Add(-time.Second))

	assert.Equal(t, 1, lt.Len())
	l, err := lt.Neighbour(7)
	require.NoError(t, err)
	expected := NeighbourLink{
		Id:              7,
		Position:        Vec2{},
		Velocity:        Vec2{X: 10},
		From:            obs,
		To:              obs.Add(10 * time.Second),
		Beta:            0.02,
		TrajectoryBegin: obs.Add(-time.Second),
	}
	if diff := cmp.Diff(expected, l); diff != "" {
		t.Errorf("unexpected link (-want +got):\n%s", diff)
	}
}

func TestAddEntry_UsesCurrentKinematics(t *testing.T) {
	lt := stationaryTable(100)
	lt.AddEntry(1, Vec2{}, Vec2{X: 10}, obs, 0, obs)
	first, err := lt.GetEntryUpdateTime(1)
	require.NoError(t, err)

	// moving along with the neighbour keeps the link forever
	lt.SetMyVelocity(Vec2{X: 10})
	lt.AddEntry(1, Vec2{}, Vec2{X: 10}, obs, 0, obs)
	second, err := lt.GetEntryUpdateTime(1)
	require.NoError(t, err)

	assert.Equal(t, obs.Add(10*time.Second), first)
	assert.Equal(t, obs.Add(LongHorizon), second)
}

func TestGetEntryUpdateTime_NotFound(t *testing.T) {
	lt := stationaryTable(100)
	_, err := lt.GetEntryUpdateTime(3)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = lt.Neighbour(3)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = lt.Stability(3, obs)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteEntry(t *testing.T) {
	lt := stationaryTable(100)
	lt.AddEntry(1, Vec2{X: 10}, Vec2{}, obs, 0, obs)
	lt.AddEntry(2, Vec2{X: 20}, Vec2{}, obs, 0, obs)

	lt.DeleteEntry(1)
	lt.DeleteEntry(42)
	assert.False(t, lt.IsNeighbour(1))
	assert.True(t, lt.IsNeighbour(2))

	lt.Clear()
	assert.Equal(t, 0, lt.Len())
	lt.Clear()
}

func TestPurge(t *testing.T) {
	clk := clock.NewMock()
	lt := NewLinkTable(100, Vec2{}, Vec2{}, WithClock(clk))
	now := clk.Now()
	lt.AddEntry(1, Vec2{X: 50}, Vec2{X: 10}, now, 0, now) // leaves after 5s
	lt.AddEntry(2, Vec2{}, Vec2{X: 10}, now, 0, now)      // leaves after 10s
	lt.AddEntry(3, Vec2{X: 10}, Vec2{}, now, 0, now)      // stays

	lt.Purge()
	assert.Equal(t, []NodeId{1, 2, 3}, lt.Neighbours())

	clk.Add(5 * time.Second)
	lt.Purge()
	assert.Equal(t, []NodeId{2, 3}, lt.Neighbours())

	clk.Add(6 * time.Second)
	lt.Purge()
	lt.Purge()
	assert.Equal(t, []NodeId{3}, lt.Neighbours())
}

func TestPurge_ExpiredOnArrival(t *testing.T) {
	clk := clock.NewMock()
	lt := NewLinkTable(100, Vec2{}, Vec2{}, WithClock(clk))
	now := clk.Now()
	lt.AddEntry(1, Vec2{X: 200}, Vec2{X: 10}, now, 0, now)
	assert.True(t, lt.IsNeighbour(1))
	lt.Purge()
	assert.False(t, lt.IsNeighbour(1))
}

type staticOracle map[NodeId]Vec2

func (o staticOracle) Position(id NodeId) (Vec2, bool) {
	p, ok := o[id]
	return p, ok
}

func TestGetPosition(t *testing.T) {
	lt := stationaryTable(100)
	assert.Equal(t, InvalidPosition, lt.GetPosition(1))
	assert.False(t, lt.HasPosition(1))

	lt = NewLinkTable(100, Vec2{}, Vec2{}, WithClock(clock.NewMock()),
		WithPositionOracle(staticOracle{1: {X: 4, Y: 2}}))
	assert.Equal(t, Vec2{X: 4, Y: 2}, lt.GetPosition(1))
	assert.Equal(t, InvalidPosition, lt.GetPosition(2))
	assert.True(t, lt.HasPosition(1))

	lt.AddEntry(2, Vec2{X: 10}, Vec2{}, obs, 0, obs)
	assert.True(t, lt.HasPosition(2))
}

func TestProcessTxError(t *testing.T) {
	failed := make([]NodeId, 0)
	lt := NewLinkTable(100, Vec2{}, Vec2{}, WithClock(clock.NewMock()),
		WithTxErrorHandler(func(dst NodeId) {
			failed = append(failed, dst)
		}))
	lt.TxErrorCallback()(4)
	lt.ProcessTxError(5)
	assert.Equal(t, []NodeId{4, 5}, failed)

	assert.NotPanics(t, func() {
		stationaryTable(100).ProcessTxError(1)
	})
}

func TestPoissonCoeff(t *testing.T) {
	lt := stationaryTable(100)
	assert.Equal(t, DefaultPoissonMean, lt.PoissonCoeff())
	assert.InDelta(t, 1.0/300, lt.Beta(), 1e-12)

	lt.SetPoissonCoeff(100)
	assert.InDelta(t, 200, lt.PoissonCoeff(), 1e-9)
	lt.SetPoissonCoeff(500)
	assert.InDelta(t, 300, lt.PoissonCoeff(), 1e-9)

	zero := NewLinkTable(100, Vec2{}, Vec2{}, WithClock(clock.NewMock()), WithPoissonMean(0))
	assert.Equal(t, 0.0, zero.Beta())
}

func TestLinkTableString(t *testing.T) {
	clk := clock.NewMock()
	lt := NewLinkTable(100, Vec2{}, Vec2{}, WithClock(clk))
	now := clk.Now()
	lt.AddEntry(2, Vec2{X: 10}, Vec2{}, now, 0, now)
	lt.AddEntry(1, Vec2{X: 200}, Vec2{X: 10}, now, 0, now)

	out := lt.String()
	assert.Contains(t, out, "id: n2")
	assert.NotContains(t, out, "id: n1")
}
