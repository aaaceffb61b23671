package state

import (
	"math"
	"time"
)

// The squared distance between us and a neighbour evolves as
// Pij(t) = A*t^2 + B*t + C, t measured from the observation.

func (t *LinkTable) coeffA(velocity Vec2) float64 {
	return t.myVelocity.Sub(velocity).Norm2()
}

func (t *LinkTable) coeffB(position, velocity Vec2) float64 {
	return 2 * t.myPosition.Sub(position).Dot(t.myVelocity.Sub(velocity))
}

func (t *LinkTable) coeffC(position Vec2) float64 {
	return t.myPosition.Sub(position).Norm2()
}

// CalculateTimeFromTo predicts the absolute window during which a neighbour
// observed at position/velocity stays within range, by solving Pij(t) = range^2.
func (t *LinkTable) CalculateTimeFromTo(observed time.Time, position, velocity Vec2) (time.Time, time.Time) {
	a := t.coeffA(velocity)
	b := t.coeffB(position, velocity)
	c := t.coeffC(position)
	r2 := t.maxRange * t.maxRange
	horizon := t.horizon.Seconds()

	var from, to float64
	switch {
	case a == 0 && b == 0:
		// no relative motion, the link never changes state
		from, to = 0, horizon
	case a == 0:
		from = (r2 - c) / b
		to = from
	default:
		delta := b*b - 4*a*(c-r2)
		switch {
		case delta > 0:
			sq := math.Sqrt(delta)
			// a > 0, so the first root is the earlier crossing
			from = (-b - sq) / (2 * a)
			to = (-b + sq) / (2 * a)
		case delta == 0:
			from = -b / (2 * a)
			to = from
		default:
			from, to = 0, horizon
		}
	}

	// the link may have been established before this observation,
	// and a window entirely in the past collapses onto the observation
	from = clamp(from, 0, horizon)
	to = clamp(to, from, horizon)

	return observed.Add(seconds(from)), observed.Add(seconds(to))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
