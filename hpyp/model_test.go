package hpyp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/tomoris/hpypseq/params"
	"github.com/tomoris/hpypseq/restaurant"
	"github.com/tomoris/hpypseq/seq"
	"github.com/tomoris/hpypseq/tree"
)

func newTestModel(numTypes int, symbols []seq.Symbol, kind restaurant.Kind, seed int64) (*Model, *seq.Buffer) {
	buf := seq.NewBuffer(numTypes)
	buf.AppendAll(symbols)
	arena := tree.NewArena(buf)
	rng := rand.New(rand.NewSource(seed))
	pool := restaurant.NewPool(kind, rng)
	provider := params.NewPitmanYor(0.5, 1.0, 1, 1, 1, 1, rng)
	return NewModel(buf, arena, pool, provider, rng), buf
}

// S1
func TestBuildTreeSeatsRootCounts(t *testing.T) {
	m, _ := newTestModel(2, []seq.Symbol{0, 0, 0, 0}, restaurant.KindAddRemove, 1)
	m.BuildTree(4)
	if !m.CheckConsistency() {
		t.Fatalf("inconsistent after BuildTree")
	}
	root := payloadOf(m.arena.View(m.arena.Root()))
	if root.CFor(0) != 4 {
		t.Fatalf("c(root,0) = %d, want 4", root.CFor(0))
	}
	if root.CFor(1) != 0 {
		t.Fatalf("c(root,1) = %d, want 0", root.CFor(1))
	}
	if root.TFor(0) < 1 || root.TFor(0) > 4 {
		t.Fatalf("t(root,0) = %d, want in [1,4]", root.TFor(0))
	}
}

// S2
func TestComputeLossesBoundedOnRepeatingPattern(t *testing.T) {
	m, _ := newTestModel(2, []seq.Symbol{0, 1, 0, 1, 0, 1}, restaurant.KindAddRemove, 2)
	losses := m.ComputeLosses(0, 6)
	if math.Abs(losses[0]-1.0) > 1e-9 {
		t.Fatalf("losses[0] = %v, want log2(2) = 1.0", losses[0])
	}
	for i, l := range losses {
		if l < 0 || l > 2 {
			t.Fatalf("losses[%d] = %v, want in [0,2]", i, l)
		}
	}
	if !m.CheckConsistency() {
		t.Fatalf("inconsistent after ComputeLosses")
	}
}

// S3
func TestPredictiveDistributionSumsToOne(t *testing.T) {
	m, _ := newTestModel(2, []seq.Symbol{0, 1, 0}, restaurant.KindAddRemove, 3)
	m.BuildTree(3)
	dist := m.PredictiveDistribution(0, 3)
	sum := 0.0
	for _, p := range dist {
		if p < 0 || p > 1 {
			t.Fatalf("probability out of [0,1]: %v", p)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("predictive distribution sums to %v, want 1.0", sum)
	}
}

// S6
func TestInsertForcesSplitAndPreservesConsistency(t *testing.T) {
	symbols := []seq.Symbol{0, 1, 2, 0, 3, 2}
	m, _ := newTestModel(4, symbols, restaurant.KindAddRemove, 6)
	path0 := m.InsertContext(0, 3)
	if len(path0) != 2 {
		t.Fatalf("first insert path length = %d, want 2", len(path0))
	}
	path1 := m.InsertContext(3, 6)
	if len(path1) != 3 {
		t.Fatalf("second insert path length = %d, want 3 (forced split)", len(path1))
	}
	parentLen := path1[0].Depth
	splitLen := path1[1].Depth
	origLen := path1[2].Depth
	if !(parentLen < splitLen && splitLen < origLen) {
		t.Fatalf("depths %d < %d < %d does not hold", parentLen, splitLen, origLen)
	}
	if !m.CheckConsistency() {
		t.Fatalf("inconsistent after forced split")
	}
}

// invariant 6: prediction modes agree on an exact node match
func TestPredictionModesAgreeOnExactMatch(t *testing.T) {
	m, _ := newTestModel(2, []seq.Symbol{0, 1, 0, 1}, restaurant.KindAddRemove, 7)
	m.BuildTree(4)
	m.InsertContext(0, 4)
	above := m.Predict(Above, 0, 4, 1)
	below := m.Predict(Below, 0, 4, 1)
	frag := m.Predict(Fragment, 0, 4, 1)
	if math.Abs(above-below) > 1e-9 || math.Abs(above-frag) > 1e-9 {
		t.Fatalf("prediction modes disagree on exact node: above=%v below=%v frag=%v", above, below, frag)
	}
}

// invariant 7: an add/remove Gibbs sweep leaves root counts unchanged (it
// only ever reseats within the same tree, never changing which table a
// customer's ancestors ultimately belong to in aggregate); a direct-count
// sweep does not share that guarantee, since directGibbsWalk propagates a
// resampled non-root node's new table count straight into its parent's
// customer count (hpyp/gibbs.go's parentPl.SetC call), so a depth-1 node's
// resample can and does change c(root,y). Only consistency is asserted
// after the direct sweep.
func TestGibbsSweepPreservesRootCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	symbols := make([]seq.Symbol, 200)
	for i := range symbols {
		symbols[i] = seq.Symbol(rng.Intn(4))
	}
	m, _ := newTestModel(4, symbols, restaurant.KindCompactDirect, 11)
	m.BuildTree(seq.Position(len(symbols)))
	if !m.CheckConsistency() {
		t.Fatalf("inconsistent after BuildTree")
	}
	root := payloadOf(m.arena.View(m.arena.Root()))
	before := make(map[seq.Symbol]int)
	for _, y := range root.Types() {
		before[y] = root.CFor(y)
	}

	m.RunGibbsSampler(false)
	if !m.CheckConsistency() {
		t.Fatalf("inconsistent after add/remove Gibbs sweep")
	}
	for y, c := range before {
		if root.CFor(y) != c {
			t.Fatalf("c(root,%d) changed from %d to %d after add/remove Gibbs sweep", y, c, root.CFor(y))
		}
	}

	m.RunGibbsSampler(true)
	if !m.CheckConsistency() {
		t.Fatalf("inconsistent after direct Gibbs sweep")
	}
}

// invariant 8: joint log-probability is finite
func TestComputeLogJointFinite(t *testing.T) {
	m, _ := newTestModel(3, []seq.Symbol{0, 1, 2, 0, 1, 2, 0}, restaurant.KindAddRemove, 13)
	m.BuildTree(7)
	lj := m.ComputeLogJoint()
	if math.IsInf(lj, 0) || math.IsNaN(lj) {
		t.Fatalf("ComputeLogJoint = %v, want finite", lj)
	}
}

func TestRemoveObservationRequiresCachedPath(t *testing.T) {
	m, _ := newTestModel(2, []seq.Symbol{0, 1}, restaurant.KindAddRemove, 14)
	m.BuildTree(2)
	defer func() {
		if recover() == nil {
			t.Fatalf("RemoveObservation should panic with a nil cachedPath")
		}
	}()
	m.RemoveObservation(0, 2, 0, nil)
}
