package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "torchgan",
	Short: "Boundary-equilibrium GAN training and evaluation",
	Long: "Torchgan trains a boundary-equilibrium GAN on synthetic data,\n" +
		"records per-step telemetry in a local sqlite store and scores\n" +
		"generator checkpoints with a classifier-based sample metric.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
