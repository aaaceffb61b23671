package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kdtm",
	Short: "Kinetic degree threshold flooding simulator",
	Long: `kdtm simulates warning dissemination in a mobile ad hoc network.
Each node predicts how long its links will last from the hellos of its neighbours, and summarizes them as a kinetic degree.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Create Scenarios",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "kd",
		Title: "kdtm Commands",
	})
}
