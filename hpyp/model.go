// Package hpyp orchestrates the context tree, restaurant seating, and
// parameter provider into the online hierarchical Pitman-Yor sequence
// model: incremental tree maintenance, the add/remove customer protocol
// along a root-to-leaf path, predictive queries in three modes, loss
// computation, and the two Gibbs resamplers.
//
// Grounded on NPYLM/HPYLM.go's add/remove/predict methods (AddCustomer,
// RemoveCustomer, CalcProbability) and NPYLM/NPYLM.go's training/sampling
// drivers (Train, SampleWordSegmentation), generalized from those methods'
// whole-word, string-keyed recursion to a generic root-to-node path over
// the tree package's context tree, with tree.NodeID handles and
// restaurant.Payload standing in for the teacher's recursive restaurant
// struct walk.
package hpyp

import (
	"fmt"
	"math"

	"github.com/tomoris/hpypseq/numeric"
	"github.com/tomoris/hpypseq/params"
	"github.com/tomoris/hpypseq/restaurant"
	"github.com/tomoris/hpypseq/seq"
	"github.com/tomoris/hpypseq/tree"
)

// PredictMode selects one of the three predictive-query strategies a
// context tree supports.
type PredictMode int

const (
	// Above predicts from the longest suffix path already present in the
	// tree (no fragmentation).
	Above PredictMode = iota
	// Below predicts from the node above where a lookup would fragment an
	// existing edge, without simulating the split.
	Below
	// Fragment predicts through a transient node simulating the split a
	// real insertion would perform.
	Fragment
)

func (m PredictMode) String() string {
	switch m {
	case Above:
		return "above"
	case Below:
		return "below"
	case Fragment:
		return "fragment"
	default:
		return fmt.Sprintf("PredictMode(%d)", int(m))
	}
}

// Random is the minimal random source the model needs, satisfied directly
// by *math/rand.Rand and by numeric.Rng.
type Random interface {
	Float64() float64
}

// defaultGradientRate is insertContextAndObservation's fixed gradient step,
// resolved from hpyp_model.cc's 10e-4 literal.
const defaultGradientRate = 1e-3

// Model is the online HPYP sequence engine.
type Model struct {
	sequence seq.Sequence
	arena    *tree.Arena
	factory  restaurant.Factory
	provider params.Provider
	rng      Random
	gradRate float64
	baseProb float64
}

// NewModel wires the context tree, restaurant factory, parameter provider,
// and random source into a Model over sequence.
func NewModel(sequence seq.Sequence, arena *tree.Arena, factory restaurant.Factory, provider params.Provider, rng Random) *Model {
	if sequence.NumTypes() <= 0 {
		panic("hpyp: NewModel: sequence must declare a positive NumTypes")
	}
	return &Model{
		sequence: sequence,
		arena:    arena,
		factory:  factory,
		provider: provider,
		rng:      rng,
		gradRate: defaultGradientRate,
		baseProb: 1.0 / float64(sequence.NumTypes()),
	}
}

// NumTypes returns the size of the observed alphabet.
func (m *Model) NumTypes() int { return m.sequence.NumTypes() }

// Arena exposes the underlying context tree, mainly for callers that need
// to drive their own DFS sweep.
func (m *Model) Arena() *tree.Arena { return m.arena }

func payloadOf(nv tree.NodeView) restaurant.Payload {
	pl, ok := nv.Payload.(restaurant.Payload)
	if !ok {
		panic(fmt.Sprintf("hpyp: node %d carries no restaurant payload", nv.ID))
	}
	return pl
}

func directPayloadOf(nv tree.NodeView) restaurant.DirectPayload {
	pl, ok := nv.Payload.(restaurant.DirectPayload)
	if !ok {
		panic(fmt.Sprintf("hpyp: node %d's payload does not support direct table-count mutation", nv.ID))
	}
	return pl
}

// computeProbabilityPath returns p[0..len(path)]: p[0] is the base
// distribution's probability, and p[j] for j=1..len(path) is
// path[j-1]'s restaurant-smoothed prediction of obs.
func (m *Model) computeProbabilityPath(path tree.Path, d, alpha []float64, obs seq.Symbol) []float64 {
	if len(d) != len(path) || len(alpha) != len(path) {
		panic(fmt.Sprintf("hpyp: computeProbabilityPath: d/alpha length (%d/%d) must match path length (%d)", len(d), len(alpha), len(path)))
	}
	p := make([]float64, len(path)+1)
	p[0] = m.baseProb
	for j := 1; j <= len(path); j++ {
		p[j] = payloadOf(path[j-1]).ComputeProbability(obs, p[j-1], d[j-1], alpha[j-1])
	}
	return p
}

// updatePath seats obs starting at the deepest node, walking to root,
// stopping as soon as a level reports no new table opened.
func (m *Model) updatePath(path tree.Path, p, d, alpha []float64, obs seq.Symbol) {
	frac := 1.0
	for j := len(path); j >= 1 && frac != 0; j-- {
		frac = payloadOf(path[j-1]).AddCustomer(obs, p[j-1], d[j-1], alpha[j-1], m.rng, frac)
	}
}

// removeObservationFromPath removes one customer of type obs starting at
// the deepest node, walking to root, stopping as soon as a level reports
// no table closed.
func (m *Model) removeObservationFromPath(path tree.Path, obs seq.Symbol) {
	frac := 1.0
	for j := len(path); j >= 1 && frac != 0; j-- {
		frac = payloadOf(path[j-1]).RemoveCustomer(obs, m.rng, frac)
	}
}

// handleSplit re-seats the split child's tables into the newly-inserted
// intermediate node so the hierarchical invariant holds immediately after
// a context-tree split.
func (m *Model) handleSplit(parent, newNode tree.NodeView, splitChild tree.NodeID) {
	splitChildView := m.arena.View(splitChild)
	if !(parent.Depth < splitChildView.Depth && parent.Depth < newNode.Depth) {
		panic(fmt.Sprintf("hpyp: handleSplit: parent length %d must be less than both children (%d, %d)", parent.Depth, splitChildView.Depth, newNode.Depth))
	}
	if !(splitChildView.Depth > newNode.Depth) {
		panic(fmt.Sprintf("hpyp: handleSplit: split child's original length %d must exceed the new intermediate node's length %d", splitChildView.Depth, newNode.Depth))
	}
	dBefore := m.provider.GetDiscount(parent.Depth, splitChildView.Depth)
	dAfter := m.provider.GetDiscount(newNode.Depth, splitChildView.Depth)
	payloadOf(splitChildView).UpdateAfterSplit(payloadOf(newNode), dBefore, dAfter, false)
}

// InsertContext ensures a node exists for seq[start:stop), splitting an
// existing edge if necessary, and returns the root-to-node path.
func (m *Model) InsertContext(start, stop seq.Position) tree.Path {
	res := m.arena.Insert(start, stop, func() interface{} { return m.factory.Make() })
	switch res.Action {
	case tree.Split:
		parent := res.Path[len(res.Path)-3]
		newNode := res.Path[len(res.Path)-2]
		m.handleSplit(parent, newNode, res.SplitChild)
	case tree.SplitSuffix:
		parent := res.Path[len(res.Path)-2]
		newNode := res.Path[len(res.Path)-1]
		m.handleSplit(parent, newNode, res.SplitChild)
	}
	return res.Path
}

// InsertContextAndObservation inserts the context if needed, seats obs
// along the resulting path, accumulates this observation's contribution to
// the hyperparameter gradient, and applies one fixed-rate gradient step.
// Returns the probability path computed before seating obs.
func (m *Model) InsertContextAndObservation(start, stop seq.Position, obs seq.Symbol) []float64 {
	path := m.InsertContext(start, stop)
	d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
	p := m.computeProbabilityPath(path, d, alpha, obs)
	m.provider.AccumulateGradient(path, p, d, alpha)
	m.updatePath(path, p, d, alpha, obs)
	m.provider.StepGradient(m.gradRate)
	return p
}

// InsertObservation seats obs at a context assumed already present in the
// tree. cachedPath, if non-nil, is used instead of a fresh lookup.
func (m *Model) InsertObservation(start, stop seq.Position, obs seq.Symbol, cachedPath *tree.Path) []float64 {
	var path tree.Path
	if cachedPath != nil {
		path = *cachedPath
	} else {
		path = m.arena.FindNode(start, stop)
	}
	d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
	p := m.computeProbabilityPath(path, d, alpha, obs)
	m.updatePath(path, p, d, alpha, obs)
	return p
}

// InsertRoot seats the very first observation at the root (empty context)
// only.
func (m *Model) InsertRoot(obs seq.Symbol) []float64 {
	path := tree.Path{m.arena.View(m.arena.Root())}
	d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
	p := m.computeProbabilityPath(path, d, alpha, obs)
	m.updatePath(path, p, d, alpha, obs)
	return p
}

// RemoveObservation removes obs from the context seq[start:stop). It
// requires a non-nil cachedPath: the source this engine is grounded on
// unconditionally dereferences a cached path here (a latent null-dereference
// spec.md's design notes flag explicitly), and this implementation follows
// the documented fix of requiring the cache rather than reproducing that
// defect. The cached path's terminal node is verified against a fresh
// lookup before use.
func (m *Model) RemoveObservation(start, stop seq.Position, obs seq.Symbol, cachedPath *tree.Path) {
	if cachedPath == nil {
		panic("hpyp: RemoveObservation: cachedPath must not be nil")
	}
	path := *cachedPath
	if len(path) == 0 {
		panic("hpyp: RemoveObservation: cachedPath must not be empty")
	}
	fresh := m.arena.FindNode(start, stop)
	last, freshLast := path[len(path)-1], fresh[len(fresh)-1]
	if last.ID != freshLast.ID || last.End != freshLast.End {
		panic(fmt.Sprintf("hpyp: RemoveObservation: cached path is stale for context [%d,%d)", start, stop))
	}
	m.removeObservationFromPath(path, obs)
}

// Predict returns the predictive probability of obs given seq[start:stop)
// under the given mode.
func (m *Model) Predict(mode PredictMode, start, stop seq.Position, obs seq.Symbol) float64 {
	switch mode {
	case Above:
		return m.predictAbove(start, stop, obs)
	case Below:
		return m.predictBelow(start, stop, obs)
	case Fragment:
		return m.predictWithFragmentation(start, stop, obs)
	default:
		panic(fmt.Sprintf("hpyp: Predict: unknown mode %v", mode))
	}
}

func (m *Model) predictAbove(start, stop seq.Position, obs seq.Symbol) float64 {
	path := m.arena.FindLongestSuffix(start, stop)
	d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
	p := m.computeProbabilityPath(path, d, alpha, obs)
	return p[len(p)-1]
}

func (m *Model) predictBelow(start, stop seq.Position, obs seq.Symbol) float64 {
	_, path, _ := m.arena.FindLongestSuffixVirtual(start, stop)
	d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
	p := m.computeProbabilityPath(path, d, alpha, obs)
	return p[len(p)-1]
}

// predictWithFragmentation is identical to predictBelow when the virtual
// lookup reports no fragmentation. Otherwise it allocates a transient
// payload standing in for the intermediate node a real insertion would
// create at depth fragmentLen, reseeds it via UpdateAfterSplit in
// only-new mode (so the split child's real payload is left untouched),
// and predicts through it using the deepest real node's own probability
// as its parent probability -- the "p[|p|-2]" convention resolved from
// hpyp_model.cc, restated here in terms of the not-yet-appended entry it
// refers to.
func (m *Model) predictWithFragmentation(start, stop seq.Position, obs seq.Symbol) float64 {
	fragLen, path, splitChild := m.arena.FindLongestSuffixVirtual(start, stop)
	d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
	p := m.computeProbabilityPath(path, d, alpha, obs)
	if fragLen == 0 {
		return p[len(p)-1]
	}

	parent := path[len(path)-1]
	splitChildView := m.arena.View(splitChild)
	dBefore := m.provider.GetDiscount(parent.Depth, splitChildView.Depth)
	dAfterFragment := m.provider.GetDiscount(parent.Depth, fragLen)
	alphaAfterFragment := m.provider.GetConcentration(dAfterFragment, parent.Depth, fragLen)

	transient := m.factory.Make()
	defer m.factory.Recycle(transient)
	payloadOf(splitChildView).UpdateAfterSplit(transient, dBefore, dAfterFragment, true)

	return transient.ComputeProbability(obs, p[len(p)-1], dAfterFragment, alphaAfterFragment)
}

// PredictiveDistribution returns the predictive probability of every type
// given seq[start:stop), sharing one (path, d, alpha) across types.
func (m *Model) PredictiveDistribution(start, stop seq.Position) []float64 {
	path := m.arena.FindLongestSuffix(start, stop)
	d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
	numTypes := m.sequence.NumTypes()
	dist := make([]float64, numTypes)
	for typ := 0; typ < numTypes; typ++ {
		p := m.computeProbabilityPath(path, d, alpha, seq.Symbol(typ))
		dist[typ] = p[len(p)-1]
	}
	return dist
}

// PredictiveDistributionWithMixing interpolates each type's probability
// across depths of its probability path, weighted by w (index 0 is the
// base distribution's weight), with the remaining mass assigned to the
// deepest entry.
func (m *Model) PredictiveDistributionWithMixing(start, stop seq.Position, w []float64) []float64 {
	path := m.arena.FindLongestSuffix(start, stop)
	d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
	numTypes := m.sequence.NumTypes()
	dist := make([]float64, numTypes)
	for typ := 0; typ < numTypes; typ++ {
		p := m.computeProbabilityPath(path, d, alpha, seq.Symbol(typ))
		limit := len(w)
		if len(p) < limit {
			limit = len(p)
		}
		mixed, sum := 0.0, 0.0
		for j := 0; j < limit; j++ {
			mixed += w[j] * p[j]
			sum += w[j]
		}
		mixed += (1 - sum) * p[len(p)-1]
		dist[typ] = mixed
	}
	return dist
}

// ComputeLosses returns, for each position in seq[start:stop), the log2
// loss of predicting it immediately before inserting it: losses[0] is
// log2(numTypes) (the root has seen nothing yet); losses[i] for i>0 is
// -log2(p[len(p)-2]) from InsertContextAndObservation, the second-to-last
// (not last) entry of its probability path, per hpyp_model.cc's exact
// convention.
func (m *Model) ComputeLosses(start, stop seq.Position) []float64 {
	n := int(stop - start)
	if n <= 0 {
		panic("hpyp: ComputeLosses: stop must be greater than start")
	}
	losses := make([]float64, n)
	losses[0] = math.Log2(float64(m.sequence.NumTypes()))
	m.InsertRoot(m.sequence.At(start))
	for i := start + 1; i < stop; i++ {
		p := m.InsertContextAndObservation(start, i, m.sequence.At(i))
		losses[int(i-start)] = -math.Log2(p[len(p)-2])
	}
	return losses
}

// ComputeLossesWithDeletion is ComputeLosses with a sliding window: once
// position i-lag falls behind the current position, its observation is
// removed again, so the model only ever conditions on the last lag
// observations.
func (m *Model) ComputeLossesWithDeletion(start, stop seq.Position, lag int) []float64 {
	n := int(stop - start)
	if n <= 0 {
		panic("hpyp: ComputeLossesWithDeletion: stop must be greater than start")
	}
	losses := make([]float64, n)
	losses[0] = math.Log2(float64(m.sequence.NumTypes()))
	m.InsertRoot(m.sequence.At(start))
	cache := map[seq.Position]tree.Path{start: {m.arena.View(m.arena.Root())}}
	for i := start + 1; i < stop; i++ {
		path := m.InsertContext(start, i)
		cache[i] = path
		d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
		obs := m.sequence.At(i)
		p := m.computeProbabilityPath(path, d, alpha, obs)
		m.provider.AccumulateGradient(path, p, d, alpha)
		m.updatePath(path, p, d, alpha, obs)
		m.provider.StepGradient(m.gradRate)
		losses[int(i-start)] = -math.Log2(p[len(p)-2])

		if lag > 0 {
			if dropPos := i - seq.Position(lag); dropPos >= start {
				if cachedPath, ok := cache[dropPos]; ok {
					m.RemoveObservation(start, dropPos, m.sequence.At(dropPos), &cachedPath)
					delete(cache, dropPos)
				}
			}
		}
	}
	return losses
}

// RemoveAddSweep removes then re-inserts the observation at every position
// in [start,stop), a non-Gibbs resampling of seating along already-present
// context paths.
func (m *Model) RemoveAddSweep(start, stop seq.Position) {
	for i := start; i < stop; i++ {
		obs := m.sequence.At(i)
		path := m.arena.FindNode(start, i)
		m.RemoveObservation(start, i, obs, &path)
		path = m.arena.FindNode(start, i)
		d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
		p := m.computeProbabilityPath(path, d, alpha, obs)
		m.updatePath(path, p, d, alpha, obs)
	}
}

// CollectDepthStats walks the whole tree and aggregates, for every context
// length a node in the tree currently has, the totals
// params.Provider.ReestimateHyperparameters needs: tables opened,
// customers seated, and tables seated with more than one customer. The
// root's own stats live at index 0, matching params.PitmanYor's own
// depth-indexed tables.
func (m *Model) CollectDepthStats() []params.DepthStats {
	var stats []params.DepthStats
	grow := func(depth int) {
		for len(stats) <= depth {
			stats = append(stats, params.DepthStats{})
		}
	}
	accumulate := func(nv tree.NodeView, depth int) {
		grow(depth)
		pl := payloadOf(nv)
		stats[depth].Tables += pl.T()
		stats[depth].Customers += pl.C()
		stats[depth].TablesWithGtOne += pl.MultiCustomerTables()
	}

	it := m.arena.DFSPathIterator()
	rootPath := it.Path()
	accumulate(rootPath[0], rootPath[0].Depth)
	for it.Next() {
		path := it.Path()
		node := path[len(path)-1]
		accumulate(node, node.Depth)
	}
	return stats
}

// ReestimateHyperparameters resamples every context length's discount and
// concentration from their posteriors, using CollectDepthStats' summary of
// the tree's current seating.
func (m *Model) ReestimateHyperparameters() {
	m.provider.ReestimateHyperparameters(m.CollectDepthStats())
}

// BuildTree inserts seq[0:stop) into an empty model from scratch.
func (m *Model) BuildTree(stop seq.Position) {
	if stop <= 0 {
		return
	}
	m.InsertRoot(m.sequence.At(0))
	for i := seq.Position(1); i < stop; i++ {
		m.InsertContextAndObservation(0, i, m.sequence.At(i))
	}
}

// UpdateTree extends a model already built up through start with
// seq[start:stop).
func (m *Model) UpdateTree(start, stop seq.Position) {
	for i := start; i < stop; i++ {
		m.InsertContextAndObservation(0, i, m.sequence.At(i))
	}
}

// CheckConsistency verifies invariants 1 and 2 (per-node and hierarchical
// consistency) over the whole tree.
func (m *Model) CheckConsistency() bool {
	it := m.arena.DFSPathIterator()
	root := payloadOf(it.Path()[0])
	if !root.CheckConsistency() {
		return false
	}
	childTSum := map[restaurant.Payload]map[seq.Symbol]int{}
	for it.Next() {
		path := it.Path()
		node := path[len(path)-1]
		pl := payloadOf(node)
		if !pl.CheckConsistency() {
			return false
		}
		parentPl := payloadOf(path[len(path)-2])
		sums := childTSum[parentPl]
		if sums == nil {
			sums = map[seq.Symbol]int{}
			childTSum[parentPl] = sums
		}
		for _, typ := range pl.Types() {
			sums[typ] += pl.TFor(typ)
		}
	}
	for parentPl, sums := range childTSum {
		for typ, sumT := range sums {
			if parentPl.CFor(typ) < sumT {
				return false
			}
		}
	}
	return true
}

// ComputeLogJoint sums ComputeLogRestaurantProb over every node in the
// tree.
func (m *Model) ComputeLogJoint() float64 {
	it := m.arena.DFSPathIterator()
	rootPath := it.Path()
	d, alpha := m.provider.ExtendDiscounts(rootPath, nil, nil)
	total := m.computeLogRestaurantProb(rootPath[0], d[0], alpha[0], true)
	for it.Next() {
		path := it.Path()
		d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
		node := path[len(path)-1]
		total += m.computeLogRestaurantProb(node, d[len(d)-1], alpha[len(alpha)-1], false)
	}
	return total
}

// computeLogRestaurantProb is the per-node term ComputeLogJoint sums:
// logKramp(alpha+d, d, t-1) - logKramp(alpha+1, 1, c-1) plus the
// per-type Stirling terms, plus (root only) the base-measure term.
// Deterministic nodes (c<=1) contribute 0 in total, the root's
// base-measure term included.
func (m *Model) computeLogRestaurantProb(node tree.NodeView, d, alpha float64, isRoot bool) float64 {
	pl := payloadOf(node)
	c, t := pl.C(), pl.T()
	if c <= 1 {
		return 0
	}
	logP := numeric.LogKramp(alpha+d, d, t-1) - numeric.LogKramp(alpha+1, 1, c-1)
	stirling := pl.Stirling()
	for _, typ := range pl.Types() {
		logP += stirling.Log(pl.CFor(typ), pl.TFor(typ))
	}
	if isRoot {
		for _, typ := range pl.Types() {
			logP += float64(pl.TFor(typ)) * math.Log(m.baseProb)
		}
	}
	return logP
}
