package state

import (
	"math"
	"time"
)

// ThresholdCurve maps a kinetic degree onto c0 - c1*exp(-c2*degree). With
// c1, c2 >= 0 it is non-decreasing in degree and bounded to [c0-c1, c0).
type ThresholdCurve struct {
	C0 float64 `yaml:"c0"`
	C1 float64 `yaml:"c1"`
	C2 float64 `yaml:"c2"`
}

func (c ThresholdCurve) Eval(degree float64) float64 {
	return c.C0 - c.C1*math.Exp(-c.C2*degree)
}

// Bounds returns the value at degree 0 and the asymptote.
func (c ThresholdCurve) Bounds() (float64, float64) {
	return c.C0 - c.C1, c.C0
}

// CalculateStability is the probability that neither end of the link has
// changed trajectory by at, with both ends modelled as Poisson processes:
//
//	exp(-(bi+bj) * (at - (ti*bi + tj*bj)/(bi+bj)))
//
// which is evaluated as exp(-(bi*(at-ti) + bj*(at-tj))) to keep absolute
// timestamps out of the subtraction.
func (t *LinkTable) CalculateStability(at time.Time, tj time.Time, betaJ float64) float64 {
	betaI := t.Beta()
	if betaI == 0 && betaJ == 0 {
		return 1
	}
	exponent := betaI*at.Sub(t.trajectoryBegin).Seconds() + betaJ*at.Sub(tj).Seconds()
	return math.Exp(-exponent)
}

// CalculateDoubleSigmoid is a smooth indicator of at lying inside [from, to],
// with steepness alpha.
func (t *LinkTable) CalculateDoubleSigmoid(from, to, at time.Time) float64 {
	rise := 1.0 / (1.0 + math.Exp(-t.alpha*at.Sub(from).Seconds()))
	fall := 1.0 / (1.0 + math.Exp(t.alpha*at.Sub(to).Seconds()))
	return rise * fall
}

// CalculateDegree purges expired links and returns the kinetic degree at at:
// the stability-weighted, presence-weighted neighbour count.
func (t *LinkTable) CalculateDegree(at time.Time) float64 {
	t.Purge()
	degree := 0.0
	for _, id := range t.Neighbours() {
		l := t.links[id]
		stability := t.CalculateStability(at, l.TrajectoryBegin, l.Beta)
		presence := t.CalculateDoubleSigmoid(l.From, l.To, at)
		t.log.Debug("link contribution", "id", id, "stability", stability, "presence", presence,
			"beta_i", t.Beta(), "beta_j", l.Beta)
		degree += stability * presence
	}
	t.log.Debug("kinetic degree", "degree", degree, "links", len(t.links))
	return degree
}

// CalculateThreshold maps the kinetic degree at at through the threshold curve.
func (t *LinkTable) CalculateThreshold(at time.Time) float64 {
	return t.curve.Eval(t.CalculateDegree(at))
}
