// Package cmd implements the hpypseq CLI commands, a cobra.Command tree
// replacing the teacher's flat flag.FlagSet the way rcliao-agent-memory's
// internal/cli replaces flag with a persistent-flag command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagInitD         float64
	flagInitTheta     float64
	flagGammaA        float64
	flagGammaB        float64
	flagBetaA         float64
	flagBetaB         float64
	flagSplitter      string
	flagAlphabetPath  string
	flagSeed          int64
	flagDirectSampler bool
)

// RootCmd is the top-level hpypseq command.
var RootCmd = &cobra.Command{
	Use:   "hpypseq",
	Short: "Hierarchical Pitman-Yor sequence modeling",
	Long:  "hpypseq builds a hierarchical Pitman-Yor context tree over a symbol sequence and trains, predicts, and Gibbs-resamples it.",
}

func init() {
	RootCmd.PersistentFlags().Float64Var(&flagInitD, "d", 0.1, "initial discount hyperparameter")
	RootCmd.PersistentFlags().Float64Var(&flagInitTheta, "theta", 2.0, "initial concentration hyperparameter")
	RootCmd.PersistentFlags().Float64Var(&flagGammaA, "gammaA", 1.0, "gamma prior shape for concentration reestimation")
	RootCmd.PersistentFlags().Float64Var(&flagGammaB, "gammaB", 1.0, "gamma prior rate for concentration reestimation")
	RootCmd.PersistentFlags().Float64Var(&flagBetaA, "betaA", 1.0, "beta prior a for discount reestimation")
	RootCmd.PersistentFlags().Float64Var(&flagBetaB, "betaB", 1.0, "beta prior b for discount reestimation")
	RootCmd.PersistentFlags().StringVar(&flagSplitter, "splitter", " ", "token splitter for corpus files")
	RootCmd.PersistentFlags().StringVar(&flagAlphabetPath, "alphabet", "", "alphabet manifest path (loaded if it exists, then written back with any new tokens)")
	RootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "random seed (0 = time-based)")
	RootCmd.PersistentFlags().BoolVar(&flagDirectSampler, "direct", false, "use the direct-count Gibbs sampler instead of add/remove")
}

func exitErr(action string, err error) {
	fmt.Fprintf(os.Stderr, "hpypseq: %s: %v\n", action, err)
	os.Exit(1)
}
