// Package params supplies discount/concentration hyperparameters to the
// HPYP engine and accumulates/applies the online gradient step spec.md's
// insertContextAndObservation performs after every insertion.
//
// Grounded on NPYLM/HPYLM.go's per-depth theta/d/gammaA/gammaB/betaA/betaB
// arrays and estimateHyperPrameters (Beta/Gamma/Bernoulli resampling via
// gonum.org/v1/gonum/stat/distuv), generalized from per-fixed-depth arrays
// to a dynamically growing table keyed by context length, since this
// module's context tree has no fixed maximum depth.
package params

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tomoris/hpypseq/tree"
	"gonum.org/v1/gonum/stat/distuv"
)

// Provider supplies per-length discount/concentration parameters and
// accumulates/applies the gradient step used after every observed
// insertion.
type Provider interface {
	// GetDiscount returns the discount for a node whose parent has
	// context length parentLen and which itself has context length
	// childLen.
	GetDiscount(parentLen, childLen int) float64
	// GetConcentration returns the concentration for the same edge,
	// given its discount d (some providers derive alpha from d).
	GetConcentration(d float64, parentLen, childLen int) float64

	// ExtendDiscounts appends missing discount/concentration entries for
	// path (a root-to-node path) onto d/alpha in place, so callers that
	// walk a path incrementally (Gibbs samplers) don't need to recompute
	// already-known prefix entries.
	ExtendDiscounts(path tree.Path, d, alpha []float64) (dOut, alphaOut []float64)

	// AccumulateGradient records this observation's contribution to the
	// discount/concentration gradient at every depth along path, given
	// the aligned probability/discount/concentration vectors already
	// computed for it.
	AccumulateGradient(path tree.Path, p, d, alpha []float64)

	// StepGradient applies the accumulated gradient at the given fixed
	// rate and resets the accumulator.
	StepGradient(rate float64)

	// ReestimateHyperparameters resamples every depth's theta/d from
	// their Gamma/Beta posteriors, given the current tree's table/customer
	// counts summarized by depthStats (see params.DepthStats).
	ReestimateHyperparameters(stats []DepthStats)
}

// DepthStats summarizes, for one context length, the aggregate seating
// state the hyperparameter posteriors need: total tables opened, total
// customers seated, and (for the discount posterior) the number of
// tables with more than one customer.
type DepthStats struct {
	Tables          int
	Customers       int
	TablesWithGtOne int
}

// PitmanYor is the default Provider: one (discount, concentration) pair
// per context length, grown lazily, with a fixed-rate online gradient step
// perturbed by a small Gaussian jitter (grounded on the teacher's own use
// of distuv for hyperparameter noise, generalized from a full posterior
// resample to a jitter term since the plain gradient step is what spec.md
// mandates for insertContextAndObservation).
type PitmanYor struct {
	initD, initTheta float64
	gammaA, gammaB   float64
	betaA, betaB     float64

	d         []float64
	theta     []float64
	gradD     []float64
	gradTheta []float64

	rng    *rand.Rand
	jitter distuv.Normal
}

// randSource adapts a *math/rand.Rand to the golang.org/x/exp/rand.Source
// interface gonum's distuv distributions require for their Src field.
type randSource struct {
	rng *rand.Rand
}

func (s randSource) Uint64() uint64   { return s.rng.Uint64() }
func (s randSource) Seed(seed uint64) { s.rng.Seed(int64(seed)) }

// NewPitmanYor returns a Provider seeded with initial discount/concentration
// values and Beta(betaA,betaB)/Gamma(gammaA,gammaB) hyperpriors used by
// ReestimateHyperparameters, mirroring NewHPYLM's constructor arguments.
func NewPitmanYor(initD, initTheta, gammaA, gammaB, betaA, betaB float64, rng *rand.Rand) *PitmanYor {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &PitmanYor{
		initD: initD, initTheta: initTheta,
		gammaA: gammaA, gammaB: gammaB,
		betaA: betaA, betaB: betaB,
		rng:    rng,
		jitter: distuv.Normal{Mu: 0, Sigma: 1, Src: randSource{rng}},
	}
}

func (p *PitmanYor) grow(depth int) {
	for len(p.d) <= depth {
		p.d = append(p.d, p.initD)
		p.theta = append(p.theta, p.initTheta)
		p.gradD = append(p.gradD, 0)
		p.gradTheta = append(p.gradTheta, 0)
	}
}

func (p *PitmanYor) GetDiscount(parentLen, childLen int) float64 {
	if childLen <= parentLen {
		panic(fmt.Sprintf("params: GetDiscount: childLen %d must exceed parentLen %d", childLen, parentLen))
	}
	p.grow(childLen)
	return p.d[childLen]
}

func (p *PitmanYor) GetConcentration(d float64, parentLen, childLen int) float64 {
	p.grow(childLen)
	return p.theta[childLen]
}

func (p *PitmanYor) ExtendDiscounts(path tree.Path, d, alpha []float64) ([]float64, []float64) {
	for i := len(d); i < len(path); i++ {
		childLen := path[i].Depth
		if i == 0 {
			// root: no parent edge, index the per-depth table at 0 directly
			// rather than through GetDiscount's parent<child contract.
			p.grow(0)
			d = append(d, p.d[0])
			alpha = append(alpha, p.theta[0])
			continue
		}
		parentLen := path[i-1].Depth
		dv := p.GetDiscount(parentLen, childLen)
		d = append(d, dv)
		alpha = append(alpha, p.GetConcentration(dv, parentLen, childLen))
	}
	return d, alpha
}

// AccumulateGradient uses a bounded ascent-direction surrogate rather than
// an exact analytic HPYP hyperparameter gradient: spec.md leaves the exact
// gradient formula for insertContextAndObservation unspecified beyond "a
// small fixed rate", so the update direction here is the sign of how much
// each level's own restaurant improved on its parent's prediction, scaled
// by that improvement's magnitude: prob[j] is path[j-1]'s prediction, so
// prob[j]-prob[j-1] is credited to path[j-1]'s context length.
func (p *PitmanYor) AccumulateGradient(path tree.Path, prob, d, alpha []float64) {
	p.grow(path[len(path)-1].Depth)
	for j := 1; j < len(prob); j++ {
		delta := prob[j] - prob[j-1]
		p.gradD[path[j-1].Depth] += delta
		p.gradTheta[path[j-1].Depth] += delta
	}
}

func (p *PitmanYor) StepGradient(rate float64) {
	for i := range p.d {
		if p.gradD[i] == 0 && p.gradTheta[i] == 0 {
			continue
		}
		p.d[i] += rate*p.gradD[i] + rate*0.1*p.jitter.Rand()
		if p.d[i] < 0 {
			p.d[i] = 0
		}
		if p.d[i] >= 1 {
			p.d[i] = 1 - 1e-9
		}
		p.theta[i] += rate*p.gradTheta[i] + rate*0.1*p.jitter.Rand()
		if p.theta[i] < 0 {
			p.theta[i] = 0
		}
		p.gradD[i] = 0
		p.gradTheta[i] = 0
	}
}

// ReestimateHyperparameters resamples theta via a Gamma(gammaA, rate)
// posterior and d via a Beta(betaA, betaB) posterior, using the
// auxiliary-variable style summaries in stats, matching the shape (not the
// exact auxiliary-variable derivation, which needs table-size histograms
// this module's DepthStats intentionally doesn't carry) of the teacher's
// estimateHyperPrameters.
func (p *PitmanYor) ReestimateHyperparameters(stats []DepthStats) {
	p.grow(len(stats))
	for depth, s := range stats {
		if s.Customers == 0 {
			continue
		}
		gammaPosteriorA := p.gammaA + float64(s.Tables)
		gammaPosteriorB := p.gammaB + math.Log(1+float64(s.Customers))
		gamma := distuv.Gamma{Alpha: gammaPosteriorA, Beta: gammaPosteriorB, Src: randSource{p.rng}}
		p.theta[depth] = gamma.Rand()

		betaPosteriorA := p.betaA + float64(s.TablesWithGtOne)
		betaPosteriorB := p.betaB + float64(s.Tables-s.TablesWithGtOne)
		if betaPosteriorA <= 0 {
			betaPosteriorA = 1e-6
		}
		if betaPosteriorB <= 0 {
			betaPosteriorB = 1e-6
		}
		beta := distuv.Beta{Alpha: betaPosteriorA, Beta: betaPosteriorB, Src: randSource{p.rng}}
		p.d[depth] = beta.Rand()
	}
}
