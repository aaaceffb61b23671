package perf

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Warning outcomes, used as the "outcome" label of kdtm_warnings_total.
const (
	WarningOriginated = "originated"
	WarningFirst      = "first"
	WarningDuplicate  = "duplicate"
	WarningLate       = "late"
	WarningOverflow   = "overflow"
	WarningForwarded  = "forwarded"
	WarningSuppressed = "suppressed"
)

// Collector exposes per-node protocol state to Prometheus. A nil *Collector
// is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Degree     *prometheus.GaugeVec
	Threshold  *prometheus.GaugeVec
	Neighbours *prometheus.GaugeVec
	Frames     *prometheus.CounterVec
	Warnings   *prometheus.CounterVec
	TxErrors   *prometheus.CounterVec
}

// NewCollector registers the kdtm metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	degree, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kdtm_kinetic_degree",
		Help: "Stability weighted neighbour count of a node.",
	}, []string{"node"}), "kdtm_kinetic_degree")
	if err != nil {
		return nil, err
	}
	threshold, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kdtm_threshold",
		Help: "Forwarding threshold derived from the kinetic degree.",
	}, []string{"node"}), "kdtm_threshold")
	if err != nil {
		return nil, err
	}
	neighbours, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kdtm_neighbours",
		Help: "Number of unexpired entries in the link table of a node.",
	}, []string{"node"}), "kdtm_neighbours")
	if err != nil {
		return nil, err
	}
	frames, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kdtm_frames_total",
		Help: "Frames handled by a node, labeled by message type and direction.",
	}, []string{"node", "type", "direction"}), "kdtm_frames_total")
	if err != nil {
		return nil, err
	}
	warnings, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kdtm_warnings_total",
		Help: "Warning copies handled by a node, labeled by outcome.",
	}, []string{"node", "outcome"}), "kdtm_warnings_total")
	if err != nil {
		return nil, err
	}
	txErrors, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kdtm_tx_errors_total",
		Help: "Link layer transmission failures reported to a node.",
	}, []string{"node"}), "kdtm_tx_errors_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:   gatherer,
		Degree:     degree,
		Threshold:  threshold,
		Neighbours: neighbours,
		Frames:     frames,
		Warnings:   warnings,
		TxErrors:   txErrors,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) SetLinkState(node string, degree, threshold float64, neighbours int) {
	if c == nil {
		return
	}
	c.Degree.WithLabelValues(node).Set(degree)
	c.Threshold.WithLabelValues(node).Set(threshold)
	c.Neighbours.WithLabelValues(node).Set(float64(neighbours))
}

func (c *Collector) Frame(node, msgType, direction string) {
	if c == nil {
		return
	}
	c.Frames.WithLabelValues(node, msgType, direction).Inc()
}

func (c *Collector) Warning(node, outcome string) {
	if c == nil {
		return
	}
	c.Warnings.WithLabelValues(node, outcome).Inc()
}

func (c *Collector) TxError(node string) {
	if c == nil {
		return
	}
	c.TxErrors.WithLabelValues(node).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
