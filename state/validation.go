package state

import (
	"fmt"
	"slices"

	"go.uber.org/multierr"
)

func NodeConfigValidator(node *NodeCfg) error {
	var err error
	if node.MaxRange <= 0 {
		err = multierr.Append(err, fmt.Errorf("node.max_range must be positive, got %v", node.MaxRange))
	}
	if node.Alpha <= 0 {
		err = multierr.Append(err, fmt.Errorf("node.alpha must be positive, got %v", node.Alpha))
	}
	if node.LongHorizon <= 0 {
		err = multierr.Append(err, fmt.Errorf("node.long_horizon must be positive, got %s", node.LongHorizon))
	}
	if node.Threshold.C1 < 0 || node.Threshold.C2 < 0 {
		err = multierr.Append(err, fmt.Errorf("node.threshold c1 and c2 must not be negative, got %+v", node.Threshold))
	}
	if node.PoissonMean <= 0 {
		err = multierr.Append(err, fmt.Errorf("node.poisson_mean must be positive, got %v", node.PoissonMean))
	}
	if node.HelloInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("node.hello_interval must be positive, got %s", node.HelloInterval))
	}
	if node.QueueTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("node.queue_timeout must be positive, got %s", node.QueueTimeout))
	}
	if node.QueueMaxLen <= 0 {
		err = multierr.Append(err, fmt.Errorf("node.queue_max_len must be positive, got %d", node.QueueMaxLen))
	}
	if node.MaxBackoff < 0 {
		err = multierr.Append(err, fmt.Errorf("node.max_backoff must not be negative, got %s", node.MaxBackoff))
	}
	return err
}

func ScenarioConfigValidator(cfg *ScenarioCfg) error {
	err := NodeConfigValidator(&cfg.Node)
	if cfg.Duration <= 0 {
		err = multierr.Append(err, fmt.Errorf("duration must be positive, got %s", cfg.Duration))
	}
	if cfg.ReportInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("report_interval must be positive, got %s", cfg.ReportInterval))
	}
	if cfg.Mode != ModeAccelerated && cfg.Mode != ModeRealTime {
		err = multierr.Append(err, fmt.Errorf("mode must be %q or %q, got %q", ModeAccelerated, ModeRealTime, cfg.Mode))
	}
	if cfg.Arena.Width <= 0 || cfg.Arena.Height <= 0 {
		err = multierr.Append(err, fmt.Errorf("arena must have a positive size, got %vx%v", cfg.Arena.Width, cfg.Arena.Height))
	}
	if cfg.Mobility.MinSpeed < 0 || cfg.Mobility.MaxSpeed < cfg.Mobility.MinSpeed {
		err = multierr.Append(err, fmt.Errorf("mobility speeds must satisfy 0 <= min_speed <= max_speed, got %v, %v",
			cfg.Mobility.MinSpeed, cfg.Mobility.MaxSpeed))
	}
	if cfg.Mobility.MeanTrajectory <= 0 {
		err = multierr.Append(err, fmt.Errorf("mobility.mean_trajectory must be positive, got %s", cfg.Mobility.MeanTrajectory))
	}
	if cfg.LossRate < 0 || cfg.LossRate >= 1 {
		err = multierr.Append(err, fmt.Errorf("loss_rate must be in [0, 1), got %v", cfg.LossRate))
	}

	if len(cfg.Nodes) == 0 && cfg.NodeCount <= 0 {
		err = multierr.Append(err, fmt.Errorf("scenario has no nodes, set node_count or nodes"))
	}
	if len(cfg.Nodes) == 0 && cfg.NodeCount > int(MaxNodeId) {
		err = multierr.Append(err, fmt.Errorf("node_count must be at most %d, got %d", MaxNodeId, cfg.NodeCount))
	}
	seen := make(map[NodeId]bool)
	for _, n := range cfg.Nodes {
		if seen[n.Id] {
			err = multierr.Append(err, fmt.Errorf("duplicate node id %s", n.Id))
		}
		seen[n.Id] = true
		if n.Id > MaxNodeId {
			err = multierr.Append(err, fmt.Errorf("node %s: id must be at most %d", n.Id, MaxNodeId))
		}
		if !cfg.Arena.Contains(n.Position) {
			err = multierr.Append(err, fmt.Errorf("node %s starts outside the arena at %s", n.Id, n.Position))
		}
	}

	ids := cfg.NodeIds()
	for i, w := range cfg.Warnings {
		if !slices.Contains(ids, w.Origin) {
			err = multierr.Append(err, fmt.Errorf("warnings[%d]: origin %s is not defined", i, w.Origin))
		}
		if w.At < 0 || w.At > cfg.Duration {
			err = multierr.Append(err, fmt.Errorf("warnings[%d]: at %s is outside the run", i, w.At))
		}
	}
	return err
}
