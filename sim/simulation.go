package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/encodeous/kdtm/core"
	"github.com/encodeous/kdtm/perf"
	"github.com/encodeous/kdtm/state"
)

// Epoch is the simulated wall time at which every run starts.
var Epoch = time.Unix(1_700_000_000, 0).UTC()

// Simulation runs a whole scenario: one kdtm node per scenario node, moving
// under Mobility and talking over a shared Medium.
type Simulation struct {
	cfg        *state.ScenarioCfg
	log        *slog.Logger
	metrics    *perf.Collector
	engineOpts []EngineOption

	engine   *Engine
	mobility *Mobility
	medium   *Medium
	ids      []state.NodeId
	states   map[state.NodeId]*state.State
	report   *Report
}

type Option func(*Simulation)

func WithMetrics(c *perf.Collector) Option {
	return func(sim *Simulation) {
		sim.metrics = c
	}
}

func WithEngineOptions(opts ...EngineOption) Option {
	return func(sim *Simulation) {
		sim.engineOpts = append(sim.engineOpts, opts...)
	}
}

// New validates cfg and builds every node of the scenario. Nothing runs until Run is called.
func New(ctx context.Context, cfg *state.ScenarioCfg, log *slog.Logger, opts ...Option) (*Simulation, error) {
	if err := state.ScenarioConfigValidator(cfg); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	sim := &Simulation{
		cfg:    cfg,
		log:    log,
		states: make(map[state.NodeId]*state.State),
		report: &Report{Seed: cfg.Seed},
	}
	for _, opt := range opts {
		opt(sim)
	}

	seed := uint64(cfg.Seed)
	sim.engine = NewEngine(ctx, Epoch, cfg.Mode, log.With("module", "engine"), sim.engineOpts...)
	sim.mobility = NewMobility(cfg.Mobility, cfg.Arena, sim.engine, rand.New(rand.NewPCG(seed, 1)))
	sim.medium = NewMedium(sim.engine, sim.mobility, cfg.Node.MaxRange, cfg.LossRate,
		rand.New(rand.NewPCG(seed, 2)), log.With("module", "medium"))
	sim.ids = cfg.NodeIds()

	specs := make(map[state.NodeId]state.NodeSpec)
	for _, spec := range cfg.Nodes {
		specs[spec.Id] = spec
	}
	for _, id := range sim.ids {
		var legEnd time.Time
		if spec, ok := specs[id]; ok {
			legEnd = sim.mobility.Place(id, spec.Position, spec.Velocity)
		} else {
			legEnd = sim.mobility.PlaceRandom(id)
		}
		pos, vel := sim.mobility.Kinematics(id)

		env := &state.Env{
			NodeCfg:   cfg.Node,
			Id:        id,
			Context:   sim.engine.Context(),
			Cancel:    sim.engine.Cancel,
			Clock:     sim.engine,
			Scheduler: sim.engine,
			Log:       log.With("node", id.String()),
		}
		s := state.NewState(env, pos, vel, sim.mobility)
		node := &core.Node{
			Transport:  sim.medium,
			Kinematics: sim.mobility,
			Policy:     core.NewFloodPolicy(cfg.Node.MaxBackoff, seed^uint64(id)<<32),
			Metrics:    sim.metrics,
			OnDeliver:  sim.onDeliver,
			Rand:       rand.New(rand.NewPCG(seed, 100+uint64(id))),
		}
		sim.medium.Attach(s, node)
		if err := core.Start(s, node); err != nil {
			return nil, fmt.Errorf("start %s: %w", id, err)
		}
		sim.states[id] = s
		sim.scheduleTurn(s, node, legEnd)
	}

	for _, w := range cfg.Warnings {
		sim.engine.Schedule(sim.states[w.Origin], sim.originate, w.At)
	}
	sim.engine.After(cfg.ReportInterval, sim.sample)
	return sim, nil
}

func (sim *Simulation) Engine() *Engine {
	return sim.engine
}

func (sim *Simulation) Mobility() *Mobility {
	return sim.mobility
}

// State returns the protocol state of id, or nil if there is no such node.
func (sim *Simulation) State(id state.NodeId) *state.State {
	return sim.states[id]
}

func (sim *Simulation) scheduleTurn(s *state.State, node *core.Node, at time.Time) {
	sim.engine.Schedule(s, func(s *state.State) error {
		last, next := sim.mobility.Turn(s.Id)
		node.OnTrajectoryChange(s, s.Clock.Now(), last)
		sim.scheduleTurn(s, node, next)
		return nil
	}, at.Sub(sim.engine.Now()))
}

func (sim *Simulation) originate(s *state.State) error {
	node := core.GetNode(s)
	msg, err := node.OriginateWarning(s)
	if err != nil {
		return err
	}
	sim.report.Warnings = append(sim.report.Warnings, &WarningStats{
		Id:     msg,
		Origin: s.Id,
		At:     sim.engine.Elapsed(),
	})
	return nil
}

func (sim *Simulation) onDeliver(id state.NodeId, msg state.MessageId, hops uint32, at time.Time) {
	w := sim.report.warning(msg)
	if w == nil {
		return
	}
	w.Deliveries = append(w.Deliveries, Delivery{
		Node:    id,
		Hops:    hops,
		Latency: at.Sub(Epoch) - w.At,
	})
}

// sample records the link state of every node, then re-arms itself.
func (sim *Simulation) sample() error {
	elapsed := sim.engine.Elapsed()
	for _, id := range sim.ids {
		s := sim.states[id]
		node := core.GetNode(s)
		degree := node.Degree(s)
		sim.report.Samples = append(sim.report.Samples, Sample{
			At:             elapsed,
			Node:           id,
			Degree:         degree,
			Threshold:      s.Links.Curve().Eval(degree),
			Neighbours:     s.Links.Len(),
			TrueNeighbours: len(sim.mobility.InRange(id, s.MaxRange)),
		})
		node.ReportMetrics(s)
	}
	sim.log.Info("progress", "elapsed", elapsed, "events", sim.engine.Dispatched, "pending", sim.engine.Pending())
	sim.engine.After(sim.cfg.ReportInterval, sim.sample)
	return nil
}

// Run executes the scenario to completion, or until ctx is cancelled, and returns what was observed.
func (sim *Simulation) Run() (*Report, error) {
	err := sim.engine.Run(Epoch.Add(sim.cfg.Duration))
	for _, id := range sim.ids {
		core.Stop(sim.states[id])
	}
	sim.report.Nodes = len(sim.ids)
	sim.report.Duration = sim.engine.Elapsed()
	sim.report.Events = sim.engine.Dispatched
	sim.report.Sent = sim.medium.Sent
	sim.report.Delivered = sim.medium.Delivered
	sim.report.Lost = sim.medium.Lost
	return sim.report, err
}
