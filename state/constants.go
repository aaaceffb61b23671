package state

import "time"

var (
	// LongHorizon stands in for an infinite link lifetime. It must exceed any run length we care about.
	LongHorizon = time.Second * 500
	DefaultAlpha = 10.0 // sigmoid steepness, 1/s

	// own trajectory duration estimate, seeded with one pseudo-sample
	DefaultPoissonMean    = 300.0
	DefaultPoissonSamples = uint32(1)

	DefaultThresholdCurve = ThresholdCurve{C0: 0.80, C1: 0.95, C2: 0.06}

	HelloInterval = time.Second * 1
	HelloJitter   = time.Millisecond * 100

	QueueTimeout             = time.Second * 10
	QueueMaxLen              = 64
	MaxForwardBackoff        = time.Millisecond * 200
	CompletedMessageCapacity = 4096

	// TxErrorLogInterval limits how often a failing destination is logged
	TxErrorLogInterval = time.Second * 5

	PropagationDelay = time.Millisecond * 1
	ReportInterval   = time.Second * 5

	DefaultMaxRange = 250.0
)
