package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/kdtm/state"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Write a default scenario",
	Run: func(cmd *cobra.Command, args []string) {
		outPath, _ := cmd.Flags().GetString("output")
		nodes, _ := cmd.Flags().GetInt("nodes")
		force, _ := cmd.Flags().GetBool("force")

		if _, err := os.Stat(outPath); err == nil && !force {
			fmt.Printf("%s already exists, use --force to overwrite it\n", outPath)
			os.Exit(1)
		}

		cfg := state.DefaultScenarioCfg()
		cfg.NodeCount = nodes
		err := state.ScenarioConfigValidator(&cfg)
		if err != nil {
			panic(err)
		}
		err = state.WriteScenario(outPath, &cfg)
		if err != nil {
			panic(err)
		}
		fmt.Printf("wrote scenario with %d nodes to %s\n", nodes, outPath)
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringP("output", "o", "scenario.yaml", "Path to write the scenario to")
	newCmd.Flags().IntP("nodes", "n", state.DefaultScenarioCfg().NodeCount, "Number of randomly placed nodes")
	newCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
}
