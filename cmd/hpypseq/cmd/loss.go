package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagWithDeletionLag int

func init() {
	c := &cobra.Command{
		Use:   "loss [corpus]",
		Short: "Report per-position log2 loss while incrementally building a context tree",
		Args:  cobra.ExactArgs(1),
		Run:   runLoss,
	}
	c.Flags().IntVar(&flagWithDeletionLag, "lag", 0, "sliding window size (0 disables deletion, conditioning on the full prefix)")
	RootCmd.AddCommand(c)
}

func runLoss(cmd *cobra.Command, args []string) {
	loaded := loadCorpus(args[0])
	m := buildModel(loaded)

	n := loaded.Buffer.Len()
	var losses []float64
	if flagWithDeletionLag > 0 {
		losses = m.ComputeLossesWithDeletion(0, n, flagWithDeletionLag)
	} else {
		losses = m.ComputeLosses(0, n)
	}

	sum := 0.0
	for i, l := range losses {
		sum += l
		fmt.Printf("%d\t%v\n", i, l)
	}
	fmt.Printf("mean loss over %d positions = %v\n", len(losses), sum/float64(len(losses)))

	if !m.CheckConsistency() {
		exitErr("loss", fmt.Errorf("tree failed its hierarchical consistency check"))
	}
}
