package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/encodeous/kdtm/core"
	"github.com/encodeous/kdtm/perf"
	"github.com/encodeous/kdtm/sim"
	"github.com/encodeous/kdtm/state"
	"github.com/spf13/cobra"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run a simulation scenario",
	Run: func(cmd *cobra.Command, args []string) {
		scenarioPath, _ := cmd.Flags().GetString("scenario")
		logPath, _ := cmd.Flags().GetString("log-path")
		metricsAddr, _ := cmd.Flags().GetString("metrics")
		outPath, _ := cmd.Flags().GetString("output")

		cfg, err := state.ReadScenario(scenarioPath)
		if err != nil {
			panic(err)
		}
		if logPath != "" {
			cfg.LogPath = logPath
		}
		err = state.ScenarioConfigValidator(cfg)
		if err != nil {
			panic(err)
		}

		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}
		logger, closer, err := core.NewLogger(level, "kdtm", cfg.LogPath)
		if err != nil {
			panic(err)
		}
		defer closer.Close()

		opts := make([]sim.Option, 0)
		if metricsAddr != "" {
			collector, err := perf.NewCollector(nil)
			if err != nil {
				panic(err)
			}
			opts = append(opts, sim.WithMetrics(collector))
			http.Handle("/metrics", collector.Handler())
			go func() {
				logger.Info("serving metrics", "addr", metricsAddr)
				err := http.ListenAndServe(metricsAddr, nil)
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server stopped", "error", err)
				}
			}()
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := sim.New(ctx, cfg, logger, opts...)
		if err != nil {
			panic(err)
		}
		logger.Info("starting simulation", "nodes", len(cfg.NodeIds()), "duration", cfg.Duration, "mode", cfg.Mode, "seed", cfg.Seed)
		report, err := s.Run()
		if err != nil {
			logger.Error("simulation failed", "error", err)
		}
		fmt.Print(report.String())
		if outPath != "" {
			if err := report.Write(outPath); err != nil {
				panic(err)
			}
		}
		if err != nil {
			stop()
			closer.Close()
			os.Exit(1)
		}
	},
	GroupID: "kd",
}

func init() {
	rootCmd.AddCommand(simCmd)
	simCmd.Flags().StringP("scenario", "s", "scenario.yaml", "Path to the scenario config")
	simCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	simCmd.Flags().String("log-path", "", "Also write logs to this file")
	simCmd.Flags().String("metrics", "", "Serve prometheus metrics and /debug/metrics on this address, e.g. :9090")
	simCmd.Flags().StringP("output", "o", "", "Write the run report as yaml to this file")
}
