package cmd

import (
	"math/rand"
	"os"
	"time"

	"github.com/tomoris/hpypseq/hpyp"
	"github.com/tomoris/hpypseq/params"
	"github.com/tomoris/hpypseq/restaurant"
	"github.com/tomoris/hpypseq/seqio"
	"github.com/tomoris/hpypseq/tree"
)

// loadCorpus reads filePath into a seqio.LoadedSequence, reusing the
// alphabet manifest at flagAlphabetPath if one already exists there, and
// writing the (possibly grown) alphabet back afterward.
func loadCorpus(filePath string) *seqio.LoadedSequence {
	alphabet := seqio.NewAlphabet()
	if flagAlphabetPath != "" {
		if _, err := os.Stat(flagAlphabetPath); err == nil {
			alphabet = seqio.LoadAlphabet(flagAlphabetPath)
		}
	}
	loaded := seqio.LoadFromFileWithAlphabet(filePath, flagSplitter, alphabet)
	if flagAlphabetPath != "" {
		seqio.SaveAlphabet(loaded.Alphabet, flagAlphabetPath)
	}
	return loaded
}

func newRNG() *rand.Rand {
	seed := flagSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// buildModel wires a freshly-loaded corpus into a hpyp.Model, using the
// direct-count restaurant kind when flagDirectSampler asks for the
// direct Gibbs sampler (Model.RunGibbsSampler(true) requires
// restaurant.DirectPayload support at every node) and the add/remove kind
// otherwise.
func buildModel(loaded *seqio.LoadedSequence) *hpyp.Model {
	rng := newRNG()
	kind := restaurant.KindAddRemove
	if flagDirectSampler {
		kind = restaurant.KindCompactDirect
	}
	pool := restaurant.NewPool(kind, rng)
	provider := params.NewPitmanYor(flagInitD, flagInitTheta, flagGammaA, flagGammaB, flagBetaA, flagBetaB, rng)
	arena := tree.NewArena(loaded.Buffer)
	return hpyp.NewModel(loaded.Buffer, arena, pool, provider, rng)
}
