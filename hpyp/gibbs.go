package hpyp

import (
	"math"

	"github.com/tomoris/hpypseq/numeric"
	"github.com/tomoris/hpypseq/restaurant"
	"github.com/tomoris/hpypseq/seq"
	"github.com/tomoris/hpypseq/tree"
)

// AddRemoveSamplePath resamples the terminal node's own seating for every
// type with at least two customers: each customer is removed (propagating
// the removal upward while a table keeps closing) and immediately re-added
// (propagating upward while a table keeps opening), recomputing the
// probability path between the two so the reseat sees up-to-date state.
// This recomputes the full path rather than resuming from "one past the
// stopping point" (spec.md's phrasing) -- the simpler alternative design
// notes explicitly allow, traded for the incremental partial recompute.
func (m *Model) AddRemoveSamplePath(path tree.Path) {
	terminal := payloadOf(path[len(path)-1])
	types := append([]seq.Symbol(nil), terminal.Types()...)
	for _, y := range types {
		c0 := terminal.CFor(y)
		if c0 < 2 {
			continue
		}
		for k := 0; k < c0; k++ {
			m.removeObservationFromPath(path, y)
			d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
			p := m.computeProbabilityPath(path, d, alpha, y)
			m.updatePath(path, p, d, alpha, y)
		}
	}
}

// DirectGibbsSamplePath resamples, for every type with at least two
// customers at the terminal node, that type's table count via
// directGibbsWalk: starting at the terminal node and moving toward the
// root only while the resampled count changes. Every node visited must
// carry a restaurant.DirectPayload.
func (m *Model) DirectGibbsSamplePath(path tree.Path, d, alpha []float64) {
	terminal := directPayloadOf(path[len(path)-1])
	types := append([]seq.Symbol(nil), terminal.Types()...)
	for _, y := range types {
		if terminal.CFor(y) < 2 {
			continue
		}
		m.directGibbsWalk(path, len(path)-1, y, d, alpha)
	}
}

// directGibbsWalk implements directGibbsSamplePath's per-type upward walk,
// resampling tw at path[idx], propagating the resulting parent customer
// count change to path[idx-1], and continuing upward only while the
// resampled count actually changed.
func (m *Model) directGibbsWalk(path tree.Path, idx int, y seq.Symbol, d, alpha []float64) {
	for idx >= 0 {
		pl := directPayloadOf(path[idx])
		cw := pl.CFor(y)
		if cw == 0 {
			return
		}
		tw := pl.TFor(y)
		otherT := pl.T() - tw
		stirling := pl.Stirling()
		isRoot := idx == 0

		var parentPl restaurant.DirectPayload
		var parentCw, parentTw, parentOtherC int
		var parentAlpha float64
		if !isRoot {
			parentPl = directPayloadOf(path[idx-1])
			parentCw = parentPl.CFor(y)
			parentTw = parentPl.TFor(y)
			parentOtherC = parentPl.C() - tw
			parentAlpha = alpha[idx-1]
		}

		logWeights := make([]float64, cw)
		for cand := 1; cand <= cw; cand++ {
			existingTerm := numeric.LogKramp(alpha[idx]+d[idx], d[idx], otherT+cand-1)
			ownStirling := stirling.Log(cw, cand)

			var parentTerm, parentStirlingTerm float64
			if isRoot {
				parentTerm = float64(cand) * math.Log(m.baseProb)
			} else {
				newParentCw := parentCw - tw + cand
				if newParentCw < parentTw {
					logWeights[cand-1] = math.Inf(-1)
					continue
				}
				parentTerm = -numeric.LogKramp(parentAlpha+1, 1, parentOtherC+cand-1)
				parentStirlingTerm = parentPl.Stirling().Log(newParentCw, parentTw)
			}
			logWeights[cand-1] = existingTerm + parentTerm + ownStirling + parentStirlingTerm
		}

		chosen := numeric.SampleLogUnnormalized(logWeights, m.rng) + 1
		if chosen == tw {
			return
		}
		pl.SetT(y, chosen)
		if !isRoot {
			parentPl.SetC(y, parentCw-tw+chosen)
		}
		idx--
	}
}

// RunGibbsSampler drives a DFS sweep over every root-to-node path in the
// tree, resampling each path's terminal node with either the add/remove or
// direct-count sampler. Parameters are recomputed fresh at each path
// (spec.md's design notes explicitly allow this simpler alternative to
// incrementally maintaining them across sibling/ascent/descend
// transitions).
func (m *Model) RunGibbsSampler(direct bool) {
	it := m.arena.DFSPathIterator()
	m.samplePath(it.Path(), direct)
	for it.Next() {
		m.samplePath(it.Path(), direct)
	}
}

func (m *Model) samplePath(path tree.Path, direct bool) {
	if direct {
		d, alpha := m.provider.ExtendDiscounts(path, nil, nil)
		m.DirectGibbsSamplePath(path, d, alpha)
		return
	}
	m.AddRemoveSamplePath(path)
}
