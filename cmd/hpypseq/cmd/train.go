package cmd

import (
	"fmt"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
)

var (
	flagSweeps     int
	flagReestimate bool
)

func init() {
	c := &cobra.Command{
		Use:   "train [corpus]",
		Short: "Build a context tree over a corpus and Gibbs-resample it",
		Args:  cobra.ExactArgs(1),
		Run:   runTrain,
	}
	c.Flags().IntVar(&flagSweeps, "sweeps", 5, "number of Gibbs sweeps over the tree")
	c.Flags().BoolVar(&flagReestimate, "reestimate", false, "resample discount/concentration hyperparameters between sweeps (uses --gammaA/--gammaB/--betaA/--betaB)")
	RootCmd.AddCommand(c)
}

func runTrain(cmd *cobra.Command, args []string) {
	loaded := loadCorpus(args[0])
	m := buildModel(loaded)

	fmt.Printf("building tree over %d symbols (%s, id=%s)\n", loaded.Buffer.Len(), loaded.Name, loaded.ID)
	m.BuildTree(loaded.Buffer.Len())

	bar := pb.StartNew(flagSweeps)
	for i := 0; i < flagSweeps; i++ {
		m.RunGibbsSampler(flagDirectSampler)
		if flagReestimate {
			m.ReestimateHyperparameters()
		}
		bar.Add(1)
	}
	bar.Finish()

	if !m.CheckConsistency() {
		exitErr("train", fmt.Errorf("tree failed its hierarchical consistency check after training"))
	}
	fmt.Printf("log joint = %v\n", m.ComputeLogJoint())
}
