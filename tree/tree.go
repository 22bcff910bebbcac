// Package tree implements the compacted context tree the HPYP engine
// indexes contexts with: a patricia trie over "read backward from a fixed
// end position" symbol strings, so contexts of different lengths ending at
// the same position share a root-to-node path, and occurrences of the same
// trailing content anywhere in the sequence share the same node.
//
// The node-storage design is grounded on gnoverse-tlin's arena trie
// (integer NodeID handles into a single growable slice instead of
// pointers); the edge-splitting/path-contraction semantics are grounded on
// vanadium-core's ptrie (an edge holds enough information to detect a
// partial match and materialize a new node mid-edge), generalized here from
// an explicit contracted bit-string to a pair of endpoints into the
// sequence, since edge content is always compared against the sequence
// itself rather than stored redundantly.
package tree

import (
	"fmt"
	"sort"

	"github.com/tomoris/hpypseq/seq"
)

// NodeID is a stable handle into an Arena's node slice.
type NodeID int32

// NoNode is the sentinel "absent node" handle.
const NoNode NodeID = -1

type node struct {
	start, end seq.Position
	depth      int
	parent     NodeID
	children   map[seq.Symbol]NodeID
	payload    interface{}
}

// NodeView is a read-only snapshot of one node, safe to retain after
// further tree mutation (its Payload, if mutable, still aliases live
// state — only the tree-structural fields are frozen).
type NodeView struct {
	ID      NodeID
	Start   seq.Position
	End     seq.Position
	Depth   int
	Payload interface{}
}

// Path is a root-to-node sequence of NodeViews, path[0] always the root.
type Path []NodeView

// Action classifies what Insert did to reach the returned path.
type Action int

const (
	// NoSplit: either an existing node already matched the full context
	// exactly, or a fresh leaf was attached to an unoccupied child slot.
	// No existing edge was disturbed.
	NoSplit Action = iota
	// Split: a new node was created mid-edge (SplitChild's edge), and the
	// requested context hangs below it as a new leaf. The split node is
	// second-to-last in Path; SplitChild is unchanged in content but now
	// parented under the new split node.
	Split
	// SplitSuffix: the requested context landed exactly at a point mid an
	// existing edge, so the newly created node IS the requested node
	// (last in Path) and SplitChild (the node whose edge held that point)
	// now hangs below it.
	SplitSuffix
)

// InsertResult is what Insert returns.
type InsertResult struct {
	Path       Path
	Action     Action
	SplitChild NodeID
}

// Arena owns node storage for one context tree over one Sequence.
type Arena struct {
	seq   seq.Sequence
	nodes []node
}

// NewArena returns an Arena with just a root node (depth 0, empty context).
func NewArena(sequence seq.Sequence) *Arena {
	a := &Arena{seq: sequence}
	a.nodes = append(a.nodes, node{parent: NoNode, children: make(map[seq.Symbol]NodeID)})
	return a
}

// Root returns the root node's handle.
func (a *Arena) Root() NodeID { return 0 }

// View returns a snapshot of the node with the given handle.
func (a *Arena) View(id NodeID) NodeView {
	n := &a.nodes[id]
	return NodeView{ID: id, Start: n.start, End: n.end, Depth: n.depth, Payload: n.payload}
}

// NumNodes returns the number of allocated nodes, including the root.
func (a *Arena) NumNodes() int { return len(a.nodes) }

func (a *Arena) newNode(start, end seq.Position, depth int, parent NodeID, makePayload func() interface{}) NodeID {
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, node{
		start:    start,
		end:      end,
		depth:    depth,
		parent:   parent,
		children: make(map[seq.Symbol]NodeID),
		payload:  makePayload(),
	})
	return id
}

// symAt returns the symbol depth positions before stop, i.e. the depth-th
// trailing symbol of the context ending at stop (depth counts from 1).
func (a *Arena) symAt(stop seq.Position, depth int) seq.Symbol {
	return a.seq.At(stop - seq.Position(depth))
}

// matchLen walks forward from d, comparing the query context ending at
// stop against the edge content ending at edgeEnd, up to limit (exclusive
// upper bound on depth), returning the depth reached.
func (a *Arena) matchLen(stop, edgeEnd seq.Position, d, limit int) int {
	m := d
	for m < limit {
		if a.symAt(stop, m+1) != a.seq.At(edgeEnd-seq.Position(m+1)) {
			break
		}
		m++
	}
	return m
}

// Insert ensures a node exists whose content is exactly seq[start:stop),
// creating and splitting nodes as needed, and returns the root-to-node
// path plus how it got there. makePayload is called once per newly
// allocated node (never for an exact-match return).
func (a *Arena) Insert(start, stop seq.Position, makePayload func() interface{}) InsertResult {
	target := int(stop - start)
	path := Path{a.View(a.Root())}
	cur := a.Root()
	d := 0
	for d < target {
		sym := a.symAt(stop, d+1)
		childID, ok := a.nodes[cur].children[sym]
		if !ok {
			leaf := a.newNode(start, stop, target, cur, makePayload)
			a.nodes[cur].children[sym] = leaf
			path = append(path, a.View(leaf))
			return InsertResult{Path: path, Action: NoSplit, SplitChild: NoNode}
		}
		cd := a.nodes[childID].depth
		childEnd := a.nodes[childID].end
		limit := cd
		if target < limit {
			limit = target
		}
		m := a.matchLen(stop, childEnd, d, limit)

		if m < cd && m < target {
			mid := a.newNode(stop-seq.Position(m), stop, m, cur, makePayload)
			a.nodes[cur].children[sym] = mid
			childOldSym := a.seq.At(childEnd - seq.Position(m+1))
			a.nodes[mid].children[childOldSym] = childID
			a.nodes[childID].parent = mid
			leaf := a.newNode(start, stop, target, mid, makePayload)
			newLeafSym := a.symAt(stop, m+1)
			a.nodes[mid].children[newLeafSym] = leaf
			path = append(path, a.View(mid), a.View(leaf))
			return InsertResult{Path: path, Action: Split, SplitChild: childID}
		}

		if m == target {
			if target == cd {
				path = append(path, a.View(childID))
				return InsertResult{Path: path, Action: NoSplit, SplitChild: NoNode}
			}
			n := a.newNode(stop-seq.Position(target), stop, target, cur, makePayload)
			a.nodes[cur].children[sym] = n
			childOldSym := a.seq.At(childEnd - seq.Position(target+1))
			a.nodes[n].children[childOldSym] = childID
			a.nodes[childID].parent = n
			path = append(path, a.View(n))
			return InsertResult{Path: path, Action: SplitSuffix, SplitChild: childID}
		}

		// m == cd < target: the whole edge matched, descend further.
		path = append(path, a.View(childID))
		cur = childID
		d = cd
	}
	return InsertResult{Path: path, Action: NoSplit, SplitChild: NoNode}
}

// FindLongestSuffix returns the path to the deepest existing node whose
// content is a suffix of seq[start:stop), without creating anything.
func (a *Arena) FindLongestSuffix(start, stop seq.Position) Path {
	target := int(stop - start)
	path := Path{a.View(a.Root())}
	cur := a.Root()
	d := 0
	for d < target {
		sym := a.symAt(stop, d+1)
		childID, ok := a.nodes[cur].children[sym]
		if !ok {
			return path
		}
		cd := a.nodes[childID].depth
		childEnd := a.nodes[childID].end
		limit := cd
		if target < limit {
			limit = target
		}
		m := a.matchLen(stop, childEnd, d, limit)
		if m < cd {
			return path
		}
		path = append(path, a.View(childID))
		cur = childID
		d = cd
	}
	return path
}

// FindLongestSuffixVirtual is like FindLongestSuffix, but additionally
// reports fragmentLen: the depth a hypothetical split would land at if the
// match ran out partway through an existing edge (0 when the match ran out
// exactly at a node boundary, meaning no fragmentation is needed), and
// splitChild: the node whose edge would be split (NoNode when fragmentLen
// is 0).
func (a *Arena) FindLongestSuffixVirtual(start, stop seq.Position) (fragmentLen int, path Path, splitChild NodeID) {
	target := int(stop - start)
	path = Path{a.View(a.Root())}
	cur := a.Root()
	d := 0
	for d < target {
		sym := a.symAt(stop, d+1)
		childID, ok := a.nodes[cur].children[sym]
		if !ok {
			return 0, path, NoNode
		}
		cd := a.nodes[childID].depth
		childEnd := a.nodes[childID].end
		limit := cd
		if target < limit {
			limit = target
		}
		m := a.matchLen(stop, childEnd, d, limit)
		if m < cd {
			if m == d {
				return 0, path, NoNode
			}
			return m, path, childID
		}
		path = append(path, a.View(childID))
		cur = childID
		d = cd
	}
	return 0, path, NoNode
}

// FindNode returns the path to the node whose content is exactly
// seq[start:stop). Panics if no such node exists.
func (a *Arena) FindNode(start, stop seq.Position) Path {
	target := int(stop - start)
	path := Path{a.View(a.Root())}
	cur := a.Root()
	d := 0
	for d < target {
		sym := a.symAt(stop, d+1)
		childID, ok := a.nodes[cur].children[sym]
		if !ok {
			panic(fmt.Sprintf("tree: FindNode: context [%d,%d) does not exist", start, stop))
		}
		cd := a.nodes[childID].depth
		childEnd := a.nodes[childID].end
		limit := cd
		if target < limit {
			limit = target
		}
		m := a.matchLen(stop, childEnd, d, limit)
		if m < cd {
			panic(fmt.Sprintf("tree: FindNode: context [%d,%d) does not exist (falls mid-edge)", start, stop))
		}
		path = append(path, a.View(childID))
		cur = childID
		d = cd
	}
	return path
}

// sortedChildSymbols returns id's child keys in ascending order, for
// deterministic traversal order.
func (a *Arena) sortedChildSymbols(id NodeID) []seq.Symbol {
	n := &a.nodes[id]
	syms := make([]seq.Symbol, 0, len(n.children))
	for s := range n.children {
		syms = append(syms, s)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	return syms
}
