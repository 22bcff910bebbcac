package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tomoris/hpypseq/seq"
)

var (
	flagContextStart int
	flagContextLen   int
	flagTopK         int
)

func init() {
	c := &cobra.Command{
		Use:   "predict [corpus]",
		Short: "Build a tree over a corpus and print the predictive distribution for a context",
		Args:  cobra.ExactArgs(1),
		Run:   runPredict,
	}
	c.Flags().IntVar(&flagContextStart, "start", 0, "context start position")
	c.Flags().IntVar(&flagContextLen, "len", 1, "context length")
	c.Flags().IntVar(&flagTopK, "top", 10, "number of top symbols to print")
	RootCmd.AddCommand(c)
}

func runPredict(cmd *cobra.Command, args []string) {
	loaded := loadCorpus(args[0])
	m := buildModel(loaded)

	start := seq.Position(flagContextStart)
	stop := start + seq.Position(flagContextLen)
	if stop > loaded.Buffer.Len() {
		exitErr("predict", fmt.Errorf("context [%d,%d) exceeds corpus length %d", start, stop, loaded.Buffer.Len()))
	}

	m.BuildTree(loaded.Buffer.Len())
	m.InsertContext(start, stop)
	dist := m.PredictiveDistribution(start, stop)

	type scored struct {
		sym seq.Symbol
		p   float64
	}
	ranked := make([]scored, len(dist))
	for s, p := range dist {
		ranked[s] = scored{seq.Symbol(s), p}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].p > ranked[j].p })

	k := flagTopK
	if k > len(ranked) {
		k = len(ranked)
	}
	for _, r := range ranked[:k] {
		fmt.Printf("%s\t%v\n", loaded.Alphabet.Token(r.sym), r.p)
	}
}
