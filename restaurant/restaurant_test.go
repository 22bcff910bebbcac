package restaurant

import (
	"math/rand"
	"testing"

	"github.com/tomoris/hpypseq/seq"
)

func TestAddRemoveSeatAndUnseat(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	r := newAddRemove(rng)

	const typ = seq.Symbol(1)
	const d, alpha, parentProb = 0.5, 1.0, 0.25

	if got := r.ComputeProbability(typ, parentProb, d, alpha); got != parentProb {
		t.Fatalf("empty restaurant probability = %v, want parentProb %v", got, parentProb)
	}

	nt := r.AddCustomer(typ, parentProb, d, alpha, rng, 1)
	if nt != 1 {
		t.Fatalf("first customer of a type must always open a new table, got newTable=%v", nt)
	}
	if r.C() != 1 || r.T() != 1 {
		t.Fatalf("after first add: C=%d T=%d, want 1,1", r.C(), r.T())
	}
	if !r.CheckConsistency() {
		t.Fatalf("inconsistent after add")
	}

	removed := r.RemoveCustomer(typ, rng, 1)
	if removed != 1 {
		t.Fatalf("removing the only customer must close the only table, got %v", removed)
	}
	if r.C() != 0 || r.T() != 0 {
		t.Fatalf("after removing last customer: C=%d T=%d, want 0,0", r.C(), r.T())
	}
	if !r.CheckConsistency() {
		t.Fatalf("inconsistent after remove")
	}
}

func TestAddRemoveManyCustomersStayConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := newAddRemove(rng)
	types := []seq.Symbol{0, 1, 2}
	for i := 0; i < 500; i++ {
		typ := types[i%len(types)]
		r.AddCustomer(typ, 0.33, 0.3, 2.0, rng, 1)
		if !r.CheckConsistency() {
			t.Fatalf("inconsistent after add #%d", i)
		}
	}
	for r.C() > 0 {
		var typ seq.Symbol
		for _, ty := range r.Types() {
			if r.CFor(ty) > 0 {
				typ = ty
				break
			}
		}
		r.RemoveCustomer(typ, rng, 1)
		if !r.CheckConsistency() {
			t.Fatalf("inconsistent after remove, remaining C=%d", r.C())
		}
	}
}

func TestUpdateAfterSplitPreservesHierarchicalInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	child := newAddRemove(rng)
	for i := 0; i < 20; i++ {
		child.AddCustomer(seq.Symbol(i%2), 0.5, 0.4, 1.5, rng, 1)
	}
	newNode := newAddRemove(rng)
	child.UpdateAfterSplit(newNode, 0.4, 0.6, false)

	for _, typ := range child.Types() {
		if newNode.CFor(typ) < child.TFor(typ) {
			t.Errorf("type %d: new node customers %d < child tables %d, invariant violated",
				typ, newNode.CFor(typ), child.TFor(typ))
		}
	}
	if !newNode.CheckConsistency() {
		t.Fatalf("new node inconsistent after split")
	}
}

func TestCompactDirectSetT(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	r := newCompactDirect(rng)
	const typ = seq.Symbol(0)
	for i := 0; i < 10; i++ {
		r.AddCustomer(typ, 0.5, 0.3, 1.0, rng, 1)
	}
	if r.CFor(typ) != 10 {
		t.Fatalf("CFor = %d, want 10", r.CFor(typ))
	}
	r.SetT(typ, 4)
	if r.TFor(typ) != 4 {
		t.Fatalf("TFor after SetT(4) = %d, want 4", r.TFor(typ))
	}
	if !r.CheckConsistency() {
		t.Fatalf("inconsistent after SetT")
	}
	r.SetT(typ, 100) // clamps to CFor(typ)
	if r.TFor(typ) != r.CFor(typ) {
		t.Fatalf("TFor after over-large SetT = %d, want clamp to %d", r.TFor(typ), r.CFor(typ))
	}
}
