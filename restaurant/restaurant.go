// Package restaurant implements the Chinese-restaurant seating state that
// lives at every context-tree node. Two concrete Payload kinds are
// provided: AddRemove, which tracks per-table sizes so a customer can be
// removed exactly, and CompactDirect, which tracks only aggregate
// per-type counts for the direct-count Gibbs sampler.
//
// Grounded on NPYLM/HPYLM.go's restaurant struct (tables map[string][]table,
// customerCount, totalTableCountForCustomer, totalTableCount), generalized
// from per-word tables keyed by a joined string context to per-type tables
// with an explicit fractional-propagation add/remove contract instead of
// the teacher's own recursive whole-path resampling.
package restaurant

import (
	"fmt"

	"github.com/tomoris/hpypseq/numeric"
	"github.com/tomoris/hpypseq/seq"
)

// Payload is the HPYP-smoothed predictive state of a single context-tree
// node: how many customers of each type are seated, at how many tables,
// and the operations needed to seat/unseat a customer and to compute a
// predictive probability against a parent's probability.
type Payload interface {
	// ComputeProbability returns the predictive probability of typ given
	// this restaurant's seating and the smoothing parameters (parentProb,
	// discount d, concentration alpha). Reduces to parentProb when the
	// restaurant is empty.
	ComputeProbability(typ seq.Symbol, parentProb, d, alpha float64) float64

	// AddCustomer seats one customer of type typ, deciding stochastically
	// whether a new table is opened. newTable is the weight of the
	// customer being seated (always 1 for the restaurants this package
	// implements). Returns newTable if a new table opened (the caller
	// must propagate that weight to the parent), or 0 otherwise.
	AddCustomer(typ seq.Symbol, parentProb, d, alpha float64, rng numeric.Rng, newTable float64) float64

	// RemoveCustomer removes one customer of type typ, deciding which
	// table it leaves. frac is the weight of the customer being removed.
	// Returns frac if that removal closed a table (the caller must
	// propagate the removal to the parent), or 0 otherwise.
	RemoveCustomer(typ seq.Symbol, rng numeric.Rng, frac float64) float64

	// UpdateAfterSplit is called after the context tree inserts a new
	// intermediate node between this payload's node and its old parent.
	// It reseats this payload's own tables as customers of newPayload so
	// the hierarchical invariant (parent's customer count covers its
	// children's table counts) holds immediately after the split.
	// dBefore/dAfter are this payload's discount before and after the
	// split (against its old and new immediate parent, respectively).
	// If onlyNew is true, only newPayload is mutated — used by
	// speculative fragmentation queries where the real node in the tree
	// (this payload) must not be touched.
	UpdateAfterSplit(newPayload Payload, dBefore, dAfter float64, onlyNew bool)

	// Types returns the distinct symbol types with at least one customer.
	Types() []seq.Symbol
	// C returns the total customer count across all types.
	C() int
	// CFor returns the customer count for a single type.
	CFor(typ seq.Symbol) int
	// T returns the total table count across all types.
	T() int
	// TFor returns the table count for a single type.
	TFor(typ seq.Symbol) int

	// MultiCustomerTables returns the number of currently open tables,
	// summed across all types, seated with more than one customer. Used
	// by the discount hyperparameter's Beta posterior
	// (params.DepthStats.TablesWithGtOne).
	MultiCustomerTables() int

	// CheckConsistency verifies this payload's own bookkeeping invariants
	// (t <= c, t==0 iff c==0, sums over per-type counts match totals).
	CheckConsistency() bool

	// Stirling returns a log-Stirling-number-of-the-second-kind table
	// scoped to this payload, lazily grown on demand. The direct-count
	// Gibbs sampler uses one per node it visits; other callers can ignore
	// it entirely (it costs nothing until Log is called).
	Stirling() *numeric.StirlingTable
}

// DirectPayload is implemented by restaurant kinds that support the
// direct-count Gibbs sampler's table-count mutation.
type DirectPayload interface {
	Payload
	// SetT overwrites the table count for typ, clamped to [1, CFor(typ)]
	// when CFor(typ) > 0.
	SetT(typ seq.Symbol, tw int)
	// SetC overwrites the customer count for typ directly, without seating
	// or unseating individual customers. Used only to propagate a resampled
	// child table count into a parent's aggregate customer count during the
	// direct-count Gibbs sampler's upward walk.
	SetC(typ seq.Symbol, cw int)
}

// Factory creates and recycles Payload instances. A single Factory backs
// every node a context tree allocates, plus the transient payloads used by
// speculative fragmentation queries.
type Factory interface {
	Make() Payload
	Recycle(Payload)
}

// Kind selects which concrete Payload a Pool manufactures.
type Kind int

const (
	KindAddRemove Kind = iota
	KindCompactDirect
)

// Pool is the default Factory: a freelist-backed manufacturer of one
// concrete Payload kind, sharing a single random source across every
// payload it creates (mirrors the arena-reuses-slots discipline of
// gnoverse-tlin's trie arena, generalized from node slots to payload
// instances since Payload construction is the expensive/reusable unit
// here, not node allocation).
type Pool struct {
	kind Kind
	list []Payload
	rng  numeric.Rng
}

// NewPool returns a Pool manufacturing payloads of the given kind, using
// rng for every stochastic seating decision.
func NewPool(kind Kind, rng numeric.Rng) *Pool {
	return &Pool{kind: kind, rng: rng}
}

// resettable is satisfied by every concrete payload kind this package
// implements, so Pool.Make can hand back a freelist entry in a clean state.
type resettable interface {
	reset()
}

func (p *Pool) Make() Payload {
	if n := len(p.list); n > 0 {
		pl := p.list[n-1]
		p.list = p.list[:n-1]
		if r, ok := pl.(resettable); ok {
			r.reset()
		} else {
			panic(fmt.Sprintf("restaurant: payload %T does not support reset", pl))
		}
		return pl
	}
	switch p.kind {
	case KindCompactDirect:
		return newCompactDirect(p.rng)
	default:
		return newAddRemove(p.rng)
	}
}

func (p *Pool) Recycle(pl Payload) {
	p.list = append(p.list, pl)
}

var (
	_ resettable = (*AddRemove)(nil)
	_ resettable = (*CompactDirect)(nil)
)
