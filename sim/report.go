package sim

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/encodeous/kdtm/state"
	"github.com/goccy/go-yaml"
)

// Sample is the link state of one node at one report tick.
type Sample struct {
	At             time.Duration `yaml:"at"`
	Node           state.NodeId  `yaml:"node"`
	Degree         float64       `yaml:"degree"`
	Threshold      float64       `yaml:"threshold"`
	Neighbours     int           `yaml:"neighbours"`      // entries in the link table
	TrueNeighbours int           `yaml:"true_neighbours"` // nodes actually in range
}

type Delivery struct {
	Node    state.NodeId  `yaml:"node"`
	Hops    uint32        `yaml:"hops"`
	Latency time.Duration `yaml:"latency"`
}

type WarningStats struct {
	Id         state.MessageId `yaml:"id"`
	Origin     state.NodeId    `yaml:"origin"`
	At         time.Duration   `yaml:"at"`
	Deliveries []Delivery      `yaml:"deliveries"`
}

// Coverage is the share of the other nodes that received the warning.
func (w *WarningStats) Coverage(nodes int) float64 {
	if nodes <= 1 {
		return 0
	}
	return float64(len(w.Deliveries)) / float64(nodes-1)
}

func (w *WarningStats) MaxHops() uint32 {
	var hops uint32
	for _, d := range w.Deliveries {
		hops = max(hops, d.Hops)
	}
	return hops
}

type Report struct {
	Seed      int64           `yaml:"seed"`
	Nodes     int             `yaml:"nodes"`
	Duration  time.Duration   `yaml:"duration"`
	Events    uint64          `yaml:"events"`
	Sent      uint64          `yaml:"frames_sent"`
	Delivered uint64          `yaml:"frames_delivered"`
	Lost      uint64          `yaml:"frames_lost"`
	Samples   []Sample        `yaml:"samples"`
	Warnings  []*WarningStats `yaml:"warnings"`
}

func (r *Report) warning(id state.MessageId) *WarningStats {
	idx := slices.IndexFunc(r.Warnings, func(w *WarningStats) bool {
		return w.Id == id
	})
	if idx == -1 {
		return nil
	}
	return r.Warnings[idx]
}

// MeanDegree averages the kinetic degree over every sample.
func (r *Report) MeanDegree() float64 {
	if len(r.Samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range r.Samples {
		sum += s.Degree
	}
	return sum / float64(len(r.Samples))
}

func (r *Report) Write(path string) error {
	bytes, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bytes, 0600)
}

func (r *Report) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("nodes: %d duration: %s events: %d\n", r.Nodes, r.Duration, r.Events))
	sb.WriteString(fmt.Sprintf("frames sent: %d delivered: %d lost: %d\n", r.Sent, r.Delivered, r.Lost))
	sb.WriteString(fmt.Sprintf("mean kinetic degree: %.3f over %d samples\n", r.MeanDegree(), len(r.Samples)))
	for _, w := range r.Warnings {
		sb.WriteString(fmt.Sprintf("warning %s from %s at %s: coverage %.1f%% max hops %d\n",
			w.Id, w.Origin, w.At, w.Coverage(r.Nodes)*100, w.MaxHops()))
	}
	return sb.String()
}
