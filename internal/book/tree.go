package book

import "aegis/internal/common"

// The price index is an AVL tree of priceLevel nodes, keyed strictly on
// price. Every comparison in this file reads price, never an arena index
// — the original's delete_node_from_tree conflated the two (comparing
// node_idx against root as if it were the sort key); that is the bug
// spec.md flags and this tree avoids throughout, including deletion.
//
// A second, independent linking — betterNeighbor/worseNeighbor — threads
// all live levels on a side into a best-first doubly linked list, so
// sweeps and depth snapshots never need to walk the tree.

func (b *OrderBook) height(idx uint32) int8 {
	if idx == none {
		return 0
	}
	return b.priceArena.Get(idx).height
}

func (b *OrderBook) updateHeight(idx uint32) {
	n := b.priceArena.Get(idx)
	lh, rh := b.height(n.left), b.height(n.right)
	if lh > rh {
		n.height = lh + 1
	} else {
		n.height = rh + 1
	}
}

func (b *OrderBook) balanceFactor(idx uint32) int8 {
	n := b.priceArena.Get(idx)
	return b.height(n.left) - b.height(n.right)
}

// rotateLeft and rotateRight are the standard AVL rotations, operating on
// arena indices instead of pointers; both fix up parent links and return
// the index now rooting the rotated subtree.

func (b *OrderBook) rotateLeft(side common.Side, x uint32) uint32 {
	s := b.sideOf(side)
	xNode := b.priceArena.Get(x)
	y := xNode.right
	yNode := b.priceArena.Get(y)

	xNode.right = yNode.left
	if yNode.left != none {
		b.priceArena.Get(yNode.left).parent = x
	}
	yNode.parent = xNode.parent
	if xNode.parent == none {
		s.root = y
	} else {
		p := b.priceArena.Get(xNode.parent)
		if p.left == x {
			p.left = y
		} else {
			p.right = y
		}
	}
	yNode.left = x
	xNode.parent = y

	b.updateHeight(x)
	b.updateHeight(y)
	return y
}

func (b *OrderBook) rotateRight(side common.Side, x uint32) uint32 {
	s := b.sideOf(side)
	xNode := b.priceArena.Get(x)
	y := xNode.left
	yNode := b.priceArena.Get(y)

	xNode.left = yNode.right
	if yNode.right != none {
		b.priceArena.Get(yNode.right).parent = x
	}
	yNode.parent = xNode.parent
	if xNode.parent == none {
		s.root = y
	} else {
		p := b.priceArena.Get(xNode.parent)
		if p.left == x {
			p.left = y
		} else {
			p.right = y
		}
	}
	yNode.right = x
	xNode.parent = y

	b.updateHeight(x)
	b.updateHeight(y)
	return y
}

// retrace walks from start up to the root, updating heights and applying
// rotations wherever a node's balance factor leaves [-1, 1]. Shared by
// insertion (at most one rotation needed) and deletion (possibly several
// up the chain).
func (b *OrderBook) retrace(side common.Side, start uint32) {
	cur := start
	for cur != none {
		b.updateHeight(cur)
		bf := b.balanceFactor(cur)
		if bf > 1 {
			left := b.priceArena.Get(cur).left
			if b.balanceFactor(left) < 0 {
				b.rotateLeft(side, left)
			}
			cur = b.rotateRight(side, cur)
		} else if bf < -1 {
			right := b.priceArena.Get(cur).right
			if b.balanceFactor(right) > 0 {
				b.rotateRight(side, right)
			}
			cur = b.rotateLeft(side, cur)
		}
		cur = b.priceArena.Get(cur).parent
	}
}

// findLevel searches for price on side, returning none if absent.
func (b *OrderBook) findLevel(side common.Side, price uint64) uint32 {
	cur := b.sideOf(side).root
	for cur != none {
		node := b.priceArena.Get(cur)
		switch {
		case price == node.price:
			return cur
		case price < node.price:
			cur = node.left
		default:
			cur = node.right
		}
	}
	return none
}

// insertIntoList splices idx into the best-first list between betterIdx
// and worseIdx (either may be none), updating the side's best pointer.
func (b *OrderBook) insertIntoList(side common.Side, idx, betterIdx, worseIdx uint32) {
	s := b.sideOf(side)
	lvl := b.priceArena.Get(idx)
	lvl.betterNeighbor = betterIdx
	lvl.worseNeighbor = worseIdx
	if betterIdx != none {
		b.priceArena.Get(betterIdx).worseNeighbor = idx
	} else {
		s.best = idx
	}
	if worseIdx != none {
		b.priceArena.Get(worseIdx).betterNeighbor = idx
	}
}

// unlinkFromList removes idx from the best-first list, fixing up the
// side's best pointer if idx was it.
func (b *OrderBook) unlinkFromList(side common.Side, idx uint32) {
	s := b.sideOf(side)
	lvl := b.priceArena.Get(idx)
	if lvl.betterNeighbor != none {
		b.priceArena.Get(lvl.betterNeighbor).worseNeighbor = lvl.worseNeighbor
	} else {
		s.best = lvl.worseNeighbor
	}
	if lvl.worseNeighbor != none {
		b.priceArena.Get(lvl.worseNeighbor).betterNeighbor = lvl.betterNeighbor
	}
}

// treeInsertOrGet returns the index of price's level on side, allocating
// and linking a new one if absent. created reports whether a new level
// was allocated.
func (b *OrderBook) treeInsertOrGet(side common.Side, price uint64) (idx uint32, created bool, err error) {
	s := b.sideOf(side)

	if s.root == none {
		idx, err = b.priceArena.Allocate()
		if err != nil {
			return none, false, err
		}
		*b.priceArena.Get(idx) = priceLevel{
			price: price, head: none, tail: none,
			parent: none, left: none, right: none,
			betterNeighbor: none, worseNeighbor: none,
			height: 1,
		}
		s.root = idx
		s.best = idx
		return idx, true, nil
	}

	var parent uint32 = none
	var predIdx, succIdx uint32 = none, none
	goLeft := false
	cur := s.root
	for cur != none {
		node := b.priceArena.Get(cur)
		switch {
		case price == node.price:
			return cur, false, nil
		case price < node.price:
			succIdx = cur
			parent = cur
			goLeft = true
			cur = node.left
		default:
			predIdx = cur
			parent = cur
			goLeft = false
			cur = node.right
		}
	}

	idx, err = b.priceArena.Allocate()
	if err != nil {
		return none, false, err
	}
	*b.priceArena.Get(idx) = priceLevel{
		price: price, head: none, tail: none,
		parent: parent, left: none, right: none,
		betterNeighbor: none, worseNeighbor: none,
		height: 1,
	}
	if goLeft {
		b.priceArena.Get(parent).left = idx
	} else {
		b.priceArena.Get(parent).right = idx
	}

	var betterIdx, worseIdx uint32
	if side == common.Bid {
		// Best bid is the highest price: the ascending successor is
		// closer to best, the predecessor further.
		betterIdx, worseIdx = succIdx, predIdx
	} else {
		betterIdx, worseIdx = predIdx, succIdx
	}
	b.insertIntoList(side, idx, betterIdx, worseIdx)

	b.retrace(side, parent)
	return idx, true, nil
}

// removePriceLevel deletes idx from both the sorted list and the BST,
// rebalancing the BST afterward. Deletion with two children promotes the
// in-order successor by relinking tree edges, never by copying price/
// quantity fields into another slot — that would leave any OrderEntry
// still pointing at the old slot via levelIndex dangling.
func (b *OrderBook) removePriceLevel(side common.Side, idx uint32) {
	b.unlinkFromList(side, idx)

	s := b.sideOf(side)
	node := b.priceArena.Get(idx)
	left, right, parent := node.left, node.right, node.parent

	var replacement uint32
	var rebalanceFrom uint32

	switch {
	case left == none && right == none:
		replacement = none
		rebalanceFrom = parent
	case left == none:
		replacement = right
		b.priceArena.Get(right).parent = parent
		rebalanceFrom = parent
	case right == none:
		replacement = left
		b.priceArena.Get(left).parent = parent
		rebalanceFrom = parent
	default:
		succ := right
		for b.priceArena.Get(succ).left != none {
			succ = b.priceArena.Get(succ).left
		}
		succParent := b.priceArena.Get(succ).parent
		succRight := b.priceArena.Get(succ).right

		if succParent != idx {
			if b.priceArena.Get(succParent).left == succ {
				b.priceArena.Get(succParent).left = succRight
			} else {
				b.priceArena.Get(succParent).right = succRight
			}
			if succRight != none {
				b.priceArena.Get(succRight).parent = succParent
			}
			b.priceArena.Get(succ).right = right
			b.priceArena.Get(right).parent = succ
			rebalanceFrom = succParent
		} else {
			rebalanceFrom = succ
		}
		b.priceArena.Get(succ).left = left
		b.priceArena.Get(left).parent = succ
		b.priceArena.Get(succ).parent = parent
		replacement = succ
	}

	if parent == none {
		s.root = replacement
	} else {
		p := b.priceArena.Get(parent)
		if p.left == idx {
			p.left = replacement
		} else {
			p.right = replacement
		}
	}

	b.priceArena.Release(idx)
	if rebalanceFrom != none {
		b.retrace(side, rebalanceFrom)
	}
}
