package restaurant

import (
	"fmt"
	"math"
	"sort"

	"github.com/tomoris/hpypseq/numeric"
	"github.com/tomoris/hpypseq/seq"
)

// AddRemove tracks individual table sizes per type, so a customer removal
// can pick a real table to leave exactly (as opposed to CompactDirect's
// aggregate-only bookkeeping). Grounded on NPYLM/HPYLM.go's restaurant
// struct: tables map[string][]table becomes tables map[seq.Symbol][]uint32,
// customerCount/totalTableCountForCustomer/totalTableCount become the
// per-type and running totals below.
type AddRemove struct {
	tables  map[seq.Symbol][]uint32
	cByType map[seq.Symbol]int
	tByType map[seq.Symbol]int
	cTotal  int
	tTotal  int
	rng     numeric.Rng
	// stirling is a per-payload log-Stirling table, created lazily by
	// Stirling() (hpyp's joint log-probability reads it; the direct-Gibbs
	// sampler only runs against CompactDirect), mirroring CompactDirect's
	// field of the same name.
	stirling *numeric.StirlingTable
}

func newAddRemove(rng numeric.Rng) *AddRemove {
	return &AddRemove{
		tables:  make(map[seq.Symbol][]uint32),
		cByType: make(map[seq.Symbol]int),
		tByType: make(map[seq.Symbol]int),
		rng:     rng,
	}
}

func (r *AddRemove) reset() {
	for k := range r.tables {
		delete(r.tables, k)
	}
	for k := range r.cByType {
		delete(r.cByType, k)
	}
	for k := range r.tByType {
		delete(r.tByType, k)
	}
	r.cTotal, r.tTotal = 0, 0
	r.stirling = nil
}

func (r *AddRemove) ComputeProbability(typ seq.Symbol, parentProb, d, alpha float64) float64 {
	if r.cTotal == 0 {
		return parentProb
	}
	cw := float64(r.cByType[typ])
	tw := float64(r.tByType[typ])
	num := (cw - d*tw) + (alpha+d*float64(r.tTotal))*parentProb
	return num / (alpha + float64(r.cTotal))
}

func (r *AddRemove) AddCustomer(typ seq.Symbol, parentProb, d, alpha float64, rng numeric.Rng, newTable float64) float64 {
	if rng == nil {
		rng = r.rng
	}
	tbls := r.tables[typ]
	scores := make([]float64, len(tbls)+1)
	for i, sz := range tbls {
		scores[i] = math.Max(0, float64(sz)-d)
	}
	scores[len(tbls)] = (alpha + d*float64(r.tTotal)) * parentProb
	k := numeric.SampleUnnormalized(scores, rng)
	opened := k == len(tbls)
	if opened {
		r.tables[typ] = append(tbls, 1)
		r.tByType[typ]++
		r.tTotal++
	} else {
		tbls[k]++
	}
	r.cByType[typ]++
	r.cTotal++
	if opened {
		return newTable
	}
	return 0
}

func (r *AddRemove) RemoveCustomer(typ seq.Symbol, rng numeric.Rng, frac float64) float64 {
	if rng == nil {
		rng = r.rng
	}
	tbls := r.tables[typ]
	if len(tbls) == 0 {
		panic(fmt.Sprintf("restaurant: RemoveCustomer: no customers of type %d seated", typ))
	}
	weights := make([]float64, len(tbls))
	for i, sz := range tbls {
		weights[i] = float64(sz)
	}
	k := numeric.SampleUnnormalized(weights, rng)
	tbls[k]--
	r.cByType[typ]--
	r.cTotal--
	closed := tbls[k] == 0
	if closed {
		tbls = append(tbls[:k], tbls[k+1:]...)
		r.tByType[typ]--
		r.tTotal--
	}
	if len(tbls) == 0 {
		delete(r.tables, typ)
		delete(r.cByType, typ)
		delete(r.tByType, typ)
	} else {
		r.tables[typ] = tbls
	}
	if closed {
		return frac
	}
	return 0
}

// UpdateAfterSplit seats t(this,type) forced-new-table customers into
// newPayload for every type this payload has open tables for, so the
// hierarchical invariant c(new) >= sum children t(child) holds immediately
// after a context-tree split introduces newPayload as this payload's new
// parent. This payload itself is left unchanged in every mode.
func (r *AddRemove) UpdateAfterSplit(newPayload Payload, dBefore, dAfter float64, onlyNew bool) {
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
	_ = onlyNew // AddRemove's own bookkeeping needs no change; see UpdateAfterSplit doc.
}

// seatForcedNewTables seats n customers of typ into p, each opening its own
// table, without going through the stochastic AddCustomer decision — this
// is the deterministic "one table in the child becomes one customer, one
// table in the new intermediate" reseeding operation, valid for both
// concrete restaurant kinds since it only touches aggregate/per-table
// counts, never the parent-mixing probability.
func seatForcedNewTables(p Payload, typ seq.Symbol, n int) {
	switch v := p.(type) {
	case *AddRemove:
		for i := 0; i < n; i++ {
			v.tables[typ] = append(v.tables[typ], 1)
		}
		v.cByType[typ] += n
		v.tByType[typ] += n
		v.cTotal += n
		v.tTotal += n
	case *CompactDirect:
		v.cByType[typ] += n
		v.tByType[typ] += n
		v.cTotal += n
		v.tTotal += n
	default:
		panic(fmt.Sprintf("restaurant: seatForcedNewTables: unsupported payload type %T", p))
	}
}

func (r *AddRemove) Types() []seq.Symbol {
	out := make([]seq.Symbol, 0, len(r.cByType))
	for t := range r.cByType {
		out = append(out, t)
	}
	return out
}

func (r *AddRemove) C() int                        { return r.cTotal }
func (r *AddRemove) CFor(typ seq.Symbol) int        { return r.cByType[typ] }
func (r *AddRemove) T() int                  { return r.tTotal }
func (r *AddRemove) TFor(typ seq.Symbol) int { return r.tByType[typ] }

// MultiCustomerTables counts tables with size > 1 exactly, from the
// per-table size arrays this restaurant kind tracks.
func (r *AddRemove) MultiCustomerTables() int {
	n := 0
	for _, tbls := range r.tables {
		for _, sz := range tbls {
			if sz > 1 {
				n++
			}
		}
	}
	return n
}

func (r *AddRemove) Stirling() *numeric.StirlingTable {
	if r.stirling == nil {
		r.stirling = numeric.NewStirlingTable()
	}
	return r.stirling
}

func (r *AddRemove) CheckConsistency() bool {
	if (r.cTotal == 0) != (r.tTotal == 0) {
		return false
	}
	cSum, tSum := 0, 0
	for typ, tbls := range r.tables {
		sum := 0
		for _, sz := range tbls {
			if sz == 0 {
				return false
			}
			sum += int(sz)
		}
		if sum != r.cByType[typ] {
			return false
		}
		if len(tbls) != r.tByType[typ] {
			return false
		}
		if r.tByType[typ] > r.cByType[typ] {
			return false
		}
		cSum += r.cByType[typ]
		tSum += r.tByType[typ]
	}
	return cSum == r.cTotal && tSum == r.tTotal
}
