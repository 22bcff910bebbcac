package restaurant

import (
	"fmt"
	"math"
	"sort"

	"github.com/tomoris/hpypseq/numeric"
	"github.com/tomoris/hpypseq/seq"
)

// CompactDirect tracks only aggregate per-type customer/table counts, with
// no per-table detail. It exists for the direct-count Gibbs sampler, which
// resamples a node's whole table-count vector at once from the Stirling-
// weighted posterior rather than by simulating individual seatings — the
// "new" restaurant kind spec.md calls for alongside AddRemove, with no
// teacher equivalent (the teacher never separates table identity from
// count at all).
type CompactDirect struct {
	cByType map[seq.Symbol]int
	tByType map[seq.Symbol]int
	cTotal  int
	tTotal  int
	rng     numeric.Rng
	stirling *numeric.StirlingTable
}

func newCompactDirect(rng numeric.Rng) *CompactDirect {
	return &CompactDirect{
		cByType: make(map[seq.Symbol]int),
		tByType: make(map[seq.Symbol]int),
		rng:     rng,
	}
}

func (r *CompactDirect) reset() {
	for k := range r.cByType {
		delete(r.cByType, k)
	}
	for k := range r.tByType {
		delete(r.tByType, k)
	}
	r.cTotal, r.tTotal = 0, 0
	r.stirling = nil
}

func (r *CompactDirect) ComputeProbability(typ seq.Symbol, parentProb, d, alpha float64) float64 {
	if r.cTotal == 0 {
		return parentProb
	}
	cw := float64(r.cByType[typ])
	tw := float64(r.tByType[typ])
	num := (cw - d*tw) + (alpha+d*float64(r.tTotal))*parentProb
	return num / (alpha + float64(r.cTotal))
}

// AddCustomer uses an aggregate approximation to the seating decision
// (no individual table sizes to weight by): all existing tables of typ
// together weigh max(0, cw-d*tw) against the new-table weight. It is the
// seating step a model built on CompactDirect payloads uses for online
// insertion and for the add/remove Gibbs sampler; the direct-count sampler
// instead mutates table counts wholesale via SetT.
func (r *CompactDirect) AddCustomer(typ seq.Symbol, parentProb, d, alpha float64, rng numeric.Rng, newTable float64) float64 {
	if rng == nil {
		rng = r.rng
	}
	tw := float64(r.tByType[typ])
	cw := float64(r.cByType[typ])
	pExisting := math.Max(0, cw-d*tw)
	pNew := (alpha + d*float64(r.tTotal)) * parentProb
	opened := numeric.SampleUnnormalized([]float64{pExisting, pNew}, rng) == 1
	r.cByType[typ]++
	r.cTotal++
	if opened {
		r.tByType[typ]++
		r.tTotal++
		return newTable
	}
	return 0
}

func (r *CompactDirect) RemoveCustomer(typ seq.Symbol, rng numeric.Rng, frac float64) float64 {
	if rng == nil {
		rng = r.rng
	}
	cw := r.cByType[typ]
	tw := r.tByType[typ]
	if cw == 0 {
		panic(fmt.Sprintf("restaurant: RemoveCustomer: no customers of type %d seated", typ))
	}
	closeProb := float64(tw) / float64(cw)
	if tw == 1 && cw > 1 {
		// the type's only table still seats the remaining customers
		closeProb = 0
	}
	closed := rng.Float64() < closeProb
	r.cByType[typ]--
	r.cTotal--
	if closed {
		r.tByType[typ]--
		r.tTotal--
	}
	if r.cByType[typ] == 0 {
		delete(r.cByType, typ)
		delete(r.tByType, typ)
	}
	if closed {
		return frac
	}
	return 0
}

func (r *CompactDirect) UpdateAfterSplit(newPayload Payload, dBefore, dAfter float64, onlyNew bool) {
	types := r.Types()
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, typ := range types {
		tw := r.tByType[typ]
		if tw == 0 {
			continue
		}
		seatForcedNewTables(newPayload, typ, tw)
	}
	_ = dBefore
	_ = dAfter
	_ = onlyNew
}

func (r *CompactDirect) Types() []seq.Symbol {
	out := make([]seq.Symbol, 0, len(r.cByType))
	for t := range r.cByType {
		out = append(out, t)
	}
	return out
}

func (r *CompactDirect) C() int                  { return r.cTotal }
func (r *CompactDirect) CFor(typ seq.Symbol) int { return r.cByType[typ] }
func (r *CompactDirect) T() int                  { return r.tTotal }
func (r *CompactDirect) TFor(typ seq.Symbol) int { return r.tByType[typ] }

// SetT overwrites the table count for typ, clamped to [1, CFor(typ)] when
// CFor(typ) > 0 (a type with any customers must have at least one table).
// When CFor(typ) is 0, tw must be 0 and the call changes nothing.
func (r *CompactDirect) SetT(typ seq.Symbol, tw int) {
	cw := r.cByType[typ]
	if cw == 0 {
		if tw != 0 {
			panic(fmt.Sprintf("restaurant: SetT: type %d has no customers, cannot set %d tables", typ, tw))
		}
		return
	}
	if tw < 1 {
		tw = 1
	}
	if tw > cw {
		tw = cw
	}
	old := r.tByType[typ]
	r.tByType[typ] = tw
	r.tTotal += tw - old
}

// SetC overwrites the customer count for typ directly. Table count is
// clamped to remain valid ([1, cw] whenever cw > 0), adjusting tTotal by
// the same delta so the aggregate totals stay in sync. This mutation exists
// for the direct-count Gibbs sampler's upward walk (hpyp.DirectGibbsSamplePath),
// which needs to push a resampled child table count into its parent's
// aggregate customer count without seating a real customer.
func (r *CompactDirect) SetC(typ seq.Symbol, cw int) {
	if cw < 0 {
		panic(fmt.Sprintf("restaurant: SetC: negative customer count %d", cw))
	}
	oldC := r.cByType[typ]
	oldT := r.tByType[typ]
	if cw == 0 {
		if oldC != 0 {
			delete(r.cByType, typ)
			delete(r.tByType, typ)
			r.cTotal -= oldC
			r.tTotal -= oldT
		}
		return
	}
	r.cByType[typ] = cw
	r.cTotal += cw - oldC
	tw := oldT
	if tw < 1 {
		tw = 1
	}
	if tw > cw {
		tw = cw
	}
	if tw != oldT {
		r.tByType[typ] = tw
		r.tTotal += tw - oldT
	}
}

// MultiCustomerTables approximates the count of tables seated with more
// than one customer: CompactDirect keeps no per-table size array, so for
// each type it uses max(0, cw-tw) clamped to tw, the number of tables that
// must hold an "extra" customer beyond the one needed to keep every table
// non-empty (the true count can be lower, down to 1, if those extras all
// piled onto a single table, but never higher).
func (r *CompactDirect) MultiCustomerTables() int {
	n := 0
	for typ, cw := range r.cByType {
		tw := r.tByType[typ]
		extra := cw - tw
		if extra <= 0 {
			continue
		}
		if extra > tw {
			extra = tw
		}
		n += extra
	}
	return n
}

func (r *CompactDirect) Stirling() *numeric.StirlingTable {
	if r.stirling == nil {
		r.stirling = numeric.NewStirlingTable()
	}
	return r.stirling
}

func (r *CompactDirect) CheckConsistency() bool {
	if (r.cTotal == 0) != (r.tTotal == 0) {
		return false
	}
	cSum, tSum := 0, 0
	for typ, cw := range r.cByType {
		tw := r.tByType[typ]
		if tw < 1 || tw > cw {
			return false
		}
		cSum += cw
		tSum += tw
	}
	return cSum == r.cTotal && tSum == r.tTotal
}

var _ DirectPayload = (*CompactDirect)(nil)
