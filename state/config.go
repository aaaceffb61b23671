package state

import (
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// NodeCfg holds the per-node protocol parameters. Every node in a scenario
// shares the same NodeCfg.
type NodeCfg struct {
	MaxRange      float64        `yaml:"max_range"`      // radio range, metres
	Alpha         float64        `yaml:"alpha"`          // double sigmoid steepness
	LongHorizon   time.Duration  `yaml:"long_horizon"`   // stand-in for an unbounded link window
	Threshold     ThresholdCurve `yaml:"threshold"`      // degree to threshold mapping
	PoissonMean   float64        `yaml:"poisson_mean"`   // seed for the mean trajectory duration, seconds
	HelloInterval time.Duration  `yaml:"hello_interval"` // time between beacons
	QueueTimeout  time.Duration  `yaml:"queue_timeout"`  // how long a handled warning is kept before it is purged
	QueueMaxLen   int            `yaml:"queue_max_len"`  // copies kept per warning
	MaxBackoff    time.Duration  `yaml:"max_backoff"`    // upper bound of the random forwarding delay
}

type SimMode string

const (
	ModeAccelerated SimMode = "accelerated"
	ModeRealTime    SimMode = "realtime"
)

type ArenaCfg struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

func (a ArenaCfg) Contains(p Vec2) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= a.Width && p.Y <= a.Height
}

type MobilityCfg struct {
	MinSpeed       float64       `yaml:"min_speed"`       // metres per second
	MaxSpeed       float64       `yaml:"max_speed"`       // metres per second
	MeanTrajectory time.Duration `yaml:"mean_trajectory"` // mean time between direction changes
}

// NodeSpec pins the initial state of one node. Nodes without a spec are placed at random.
type NodeSpec struct {
	Id       NodeId `yaml:"id"`
	Position Vec2   `yaml:"position"`
	Velocity Vec2   `yaml:"velocity"`
}

// WarningCfg originates one warning from Origin, At into the run.
type WarningCfg struct {
	Origin NodeId        `yaml:"origin"`
	At     time.Duration `yaml:"at"`
}

type ScenarioCfg struct {
	Seed           int64         `yaml:"seed"`
	Duration       time.Duration `yaml:"duration"`
	ReportInterval time.Duration `yaml:"report_interval"`
	Mode           SimMode       `yaml:"mode"`
	Arena          ArenaCfg      `yaml:"arena"`
	NodeCount      int           `yaml:"node_count,omitempty"` // used when Nodes is empty, ids are 1..NodeCount
	Nodes          []NodeSpec    `yaml:"nodes,omitempty"`
	Mobility       MobilityCfg   `yaml:"mobility"`
	LossRate       float64       `yaml:"loss_rate"`
	Warnings       []WarningCfg  `yaml:"warnings,omitempty"`
	Node           NodeCfg       `yaml:"node"`
	LogPath        string        `yaml:"log_path,omitempty"` // if not empty, logs are also written to this file
}

// NodeIds returns the ids of every node in the scenario.
func (c *ScenarioCfg) NodeIds() []NodeId {
	if len(c.Nodes) != 0 {
		ids := make([]NodeId, 0, len(c.Nodes))
		for _, n := range c.Nodes {
			ids = append(ids, n.Id)
		}
		return ids
	}
	ids := make([]NodeId, 0, c.NodeCount)
	for i := 1; i <= c.NodeCount; i++ {
		ids = append(ids, NodeId(i))
	}
	return ids
}

func DefaultNodeCfg() NodeCfg {
	return NodeCfg{
		MaxRange:      DefaultMaxRange,
		Alpha:         DefaultAlpha,
		LongHorizon:   LongHorizon,
		Threshold:     DefaultThresholdCurve,
		PoissonMean:   DefaultPoissonMean,
		HelloInterval: HelloInterval,
		QueueTimeout:  QueueTimeout,
		QueueMaxLen:   QueueMaxLen,
		MaxBackoff:    MaxForwardBackoff,
	}
}

func DefaultScenarioCfg() ScenarioCfg {
	return ScenarioCfg{
		Seed:           1,
		Duration:       time.Minute * 5,
		ReportInterval: ReportInterval,
		Mode:           ModeAccelerated,
		Arena:          ArenaCfg{Width: 1000, Height: 1000},
		NodeCount:      20,
		Mobility: MobilityCfg{
			MinSpeed:       1,
			MaxSpeed:       15,
			MeanTrajectory: time.Minute,
		},
		LossRate: 0.01,
		Warnings: []WarningCfg{
			{Origin: 1, At: time.Second * 30},
		},
		Node: DefaultNodeCfg(),
	}
}

// ReadScenario reads a scenario from path. Missing fields keep their default values.
func ReadScenario(path string) (*ScenarioCfg, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultScenarioCfg()
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func WriteScenario(path string, cfg *ScenarioCfg) error {
	bytes, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bytes, 0600)
}
