package book

import "aegis/internal/common"

// DepthLevel is one row of a Depth snapshot.
type DepthLevel struct {
	Price    uint64
	Quantity uint64
}

// BestPrice returns side's best resting price, or false if side is empty.
func (b *OrderBook) BestPrice(side common.Side) (uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.sideOf(side)
	if s.best == none {
		return 0, false
	}
	return b.priceArena.Get(s.best).price, true
}

// Spread returns ask-best minus bid-best, or false if either side is
// empty. A crossed book (should never occur given Place's invariants)
// reports zero rather than a negative value.
func (b *OrderBook) Spread() (uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bids.best == none || b.asks.best == none {
		return 0, false
	}
	bid := b.priceArena.Get(b.bids.best).price
	ask := b.priceArena.Get(b.asks.best).price
	if ask >= bid {
		return ask - bid, true
	}
	return 0, true
}

// Depth walks side best-first, returning up to limit (price, quantity)
// rows.
func (b *OrderBook) Depth(side common.Side, limit int) []DepthLevel {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.sideOf(side)
	out := make([]DepthLevel, 0, limit)
	idx := s.best
	for idx != none && len(out) < limit {
		lvl := b.priceArena.Get(idx)
		out = append(out, DepthLevel{Price: lvl.price, Quantity: lvl.aggregateQuantity})
		idx = lvl.worseNeighbor
	}
	return out
}

// OrderCount returns side's resting order count.
func (b *OrderBook) OrderCount(side common.Side) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sideOf(side).orderCount
}

// TotalQuantity returns side's resting aggregate quantity.
func (b *OrderBook) TotalQuantity(side common.Side) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sideOf(side).totalQuantity
}

// Capacity reports the fixed price-level and order arena capacities.
func (b *OrderBook) Capacity() (levels, orders uint32) {
	return b.priceArena.Cap(), b.orderArena.Cap()
}
