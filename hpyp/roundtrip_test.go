package hpyp

import (
	"reflect"
	"testing"

	"github.com/tomoris/hpypseq/restaurant"
	"github.com/tomoris/hpypseq/seq"
)

type nodeSnapshot struct {
	c, t       int
	cByType    map[seq.Symbol]int
	tByType    map[seq.Symbol]int
}

func snapshotTree(m *Model) []nodeSnapshot {
	var out []nodeSnapshot
	snap := func(pl restaurant.Payload) nodeSnapshot {
		cByType := map[seq.Symbol]int{}
		tByType := map[seq.Symbol]int{}
		for _, typ := range pl.Types() {
			cByType[typ] = pl.CFor(typ)
			tByType[typ] = pl.TFor(typ)
		}
		return nodeSnapshot{c: pl.C(), t: pl.T(), cByType: cByType, tByType: tByType}
	}
	it := m.arena.DFSPathIterator()
	out = append(out, snap(payloadOf(it.Path()[0])))
	for it.Next() {
		path := it.Path()
		out = append(out, snap(payloadOf(path[len(path)-1])))
	}
	return out
}

// S4: insertObservation followed by removeObservation on the same cached
// path must leave every node's c and t exactly as they were.
func TestInsertObservationRemoveObservationRoundTrips(t *testing.T) {
	m, _ := newTestModel(2, []seq.Symbol{0, 1}, restaurant.KindAddRemove, 21)
	m.BuildTree(2)

	path := m.InsertContext(0, 2)
	before := snapshotTree(m)

	m.InsertObservation(0, 2, 0, &path)
	m.RemoveObservation(0, 2, 0, &path)

	after := snapshotTree(m)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("round trip changed tree state:\nbefore=%+v\nafter=%+v", before, after)
	}
	if !m.CheckConsistency() {
		t.Fatalf("inconsistent after round trip")
	}
}

// invariant 4, generalized to deeper paths: round trips using a type that
// has never been observed anywhere in the tree are exact regardless of
// which table RemoveCustomer's weighted draw happens to pick, since every
// node along the path holds exactly one (freshly-opened) table for that
// type at the moment of removal -- a type with existing multi-table
// history at an ancestor can, in general, have its removal pick a
// different table than the one insertion just grew, restoring aggregate
// customer counts but not necessarily the exact table-size multiset; this
// module tracks only aggregates, not customer-to-table identity, so this
// test deliberately stays inside the region where that ambiguity cannot
// arise instead of asserting a guarantee the design doesn't provide.
func TestInsertRemoveRoundTripsForNeverBeforeSeenType(t *testing.T) {
	symbols := []seq.Symbol{0, 1, 2, 1, 0, 2, 1, 0}
	m, _ := newTestModel(5, symbols, restaurant.KindAddRemove, 22)
	m.BuildTree(seq.Position(len(symbols)))

	for _, ctxLen := range []seq.Position{1, 2, 3} {
		path := m.InsertContext(0, ctxLen)
		before := snapshotTree(m)
		for _, obs := range []seq.Symbol{3, 4} {
			m.InsertObservation(0, ctxLen, obs, &path)
			m.RemoveObservation(0, ctxLen, obs, &path)
			after := snapshotTree(m)
			if !reflect.DeepEqual(before, after) {
				t.Fatalf("round trip for ctxLen=%d obs=%d changed tree state", ctxLen, obs)
			}
		}
	}
}
