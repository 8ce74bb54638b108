package book

import "aegis/internal/common"

// enqueueOrder appends orderIdx to levelIdx's FIFO tail, preserving time
// priority since callers only ever append orders in arrival order.
func (b *OrderBook) enqueueOrder(levelIdx, orderIdx uint32) {
	lvl := b.priceArena.Get(levelIdx)
	oe := b.orderArena.Get(orderIdx)

	oe.prev = lvl.tail
	oe.next = none
	if lvl.tail != none {
		b.orderArena.Get(lvl.tail).next = orderIdx
	} else {
		lvl.head = orderIdx
	}
	lvl.tail = orderIdx
	lvl.orderCount++
	lvl.aggregateQuantity += oe.remainingQuantity
}

// unlinkOrder removes orderIdx from levelIdx's FIFO, wherever in the
// chain it sits, and debits the level's aggregate quantity by whatever
// remains of it.
func (b *OrderBook) unlinkOrder(levelIdx, orderIdx uint32) {
	lvl := b.priceArena.Get(levelIdx)
	oe := b.orderArena.Get(orderIdx)

	if oe.prev != none {
		b.orderArena.Get(oe.prev).next = oe.next
	} else {
		lvl.head = oe.next
	}
	if oe.next != none {
		b.orderArena.Get(oe.next).prev = oe.prev
	} else {
		lvl.tail = oe.prev
	}
	lvl.orderCount--
	lvl.aggregateQuantity -= oe.remainingQuantity
}

// restOrder finds-or-creates price's level on side, allocates an order
// arena slot for o, and enqueues it at the tail. Any arena exhaustion
// rolls back a level it created to keep BookFull a clean no-op.
func (b *OrderBook) restOrder(o common.Order) (common.OrderID, error) {
	levelIdx, created, err := b.treeInsertOrGet(o.Side, o.Price)
	if err != nil {
		b.logger.Warn().Str("side", o.Side.String()).Uint64("price", o.Price).Msg("book full: no price level slot")
		return common.NilOrderID, common.ErrBookFull
	}

	orderIdx, err := b.orderArena.Allocate()
	if err != nil {
		if created {
			b.removePriceLevel(o.Side, levelIdx)
		}
		b.logger.Warn().Str("side", o.Side.String()).Msg("book full: no order slot")
		return common.NilOrderID, common.ErrBookFull
	}

	*b.orderArena.Get(orderIdx) = orderEntry{
		orderID:           o.OrderID,
		ownerID:           o.OwnerID,
		remainingQuantity: o.Quantity,
		timestamp:         o.Timestamp,
		maxTSValid:        o.MaxTSValid,
		levelIndex:        levelIdx,
		prev:              none,
		next:              none,
	}
	b.enqueueOrder(levelIdx, orderIdx)

	s := b.sideOf(o.Side)
	s.orderCount++
	s.totalQuantity += o.Quantity
	b.orderIndex.Set(orderIndexEntry{id: o.OrderID, index: orderIdx, side: o.Side})

	if created {
		b.logger.Debug().Str("side", o.Side.String()).Uint64("price", o.Price).Msg("price level created")
	}
	return o.OrderID, nil
}

// releaseRestingOrder unlinks orderIdx from levelIdx's FIFO, drops it
// from the order-id index, debits side aggregates by whatever quantity
// it still carried, and frees its arena slot. Callers remove the price
// level separately once its orderCount reaches zero.
func (b *OrderBook) releaseRestingOrder(side common.Side, levelIdx, orderIdx uint32) {
	oe := b.orderArena.Get(orderIdx)
	qty := oe.remainingQuantity
	id := oe.orderID

	b.unlinkOrder(levelIdx, orderIdx)

	s := b.sideOf(side)
	s.orderCount--
	s.totalQuantity -= qty

	b.orderIndex.Delete(orderIndexEntry{id: id})
	b.orderArena.Release(orderIdx)
}
