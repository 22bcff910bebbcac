package tree

import "github.com/tomoris/hpypseq/seq"

type dfsFrame struct {
	id        NodeID
	childSyms []seq.Symbol
	idx       int
}

// DFSIterator walks every root-to-node path in the tree in pre-order,
// starting at the root itself. Each call to Next advances to the next
// path in the walk by one of three transitions: descend to a first child,
// move to a sibling (ascend then descend into the next child slot), or
// ascend past an exhausted subtree and retry from there. Callers that
// maintain per-depth aligned vectors (discount/concentration/additional
// data) along the path can detect which transition happened by comparing
// the new Path's length and prefix against the previous one.
type DFSIterator struct {
	a     *Arena
	stack []dfsFrame
	path  Path
}

// DFSPathIterator returns an iterator already positioned at the root path.
// Call Path to read it, then Next to advance.
func (a *Arena) DFSPathIterator() *DFSIterator {
	root := a.Root()
	return &DFSIterator{
		a:     a,
		stack: []dfsFrame{{id: root, childSyms: a.sortedChildSymbols(root)}},
		path:  Path{a.View(root)},
	}
}

// Path returns the current root-to-node path. The returned slice is owned
// by the iterator and may be overwritten by the next call to Next.
func (it *DFSIterator) Path() Path { return it.path }

// Next advances to the next path in pre-order and reports whether one
// exists.
func (it *DFSIterator) Next() bool {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		if top.idx < len(top.childSyms) {
			sym := top.childSyms[top.idx]
			top.idx++
			childID := it.a.nodes[top.id].children[sym]
			it.stack = append(it.stack, dfsFrame{id: childID, childSyms: it.a.sortedChildSymbols(childID)})
			it.path = append(it.path, it.a.View(childID))
			return true
		}
		it.stack = it.stack[:len(it.stack)-1]
		if len(it.path) > 0 {
			it.path = it.path[:len(it.path)-1]
		}
	}
	return false
}
