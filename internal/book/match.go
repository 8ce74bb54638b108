package book

import "aegis/internal/common"

// sweep walks the resting side opposite o.Side, best price first,
// consuming o.Quantity against resting orders until either o is
// exhausted or (when unbounded is false) the best remaining resting
// price no longer crosses o.Price. It mutates o.Quantity in place and
// returns every trade produced.
//
// Expired resting orders are dropped as encountered, matching the
// original's inline expiry check during match_bid_order/match_ask_order
// rather than requiring a separate purge pass first.
func (b *OrderBook) sweep(o *common.Order, policy common.SelfTradePolicy, unbounded bool) ([]common.Trade, error) {
	// AbortTransaction must leave the book untouched on abort (§4.4.2(b)).
	// Everything below this point mutates arena/index state as it walks,
	// so the only way to honor that without a separate undo log is to
	// confirm up front, without mutating anything, that this walk will
	// not cross a same-owner resting order before it would stop anyway.
	if policy == common.AbortTransaction && b.selfTradeWouldAbort(*o, unbounded) {
		return nil, common.ErrSelfTrade
	}

	opp := o.Side.Opposite()
	s := b.sideOf(opp)
	var trades []common.Trade

outer:
	for o.Quantity > 0 && s.best != none {
		levelIdx := s.best
		lvl := b.priceArena.Get(levelIdx)
		if !unbounded && !crosses(o.Side, o.Price, lvl.price) {
			break
		}

		orderIdx := lvl.head
		for orderIdx != none && o.Quantity > 0 {
			resting := b.orderArena.Get(orderIdx)
			nextIdx := resting.next

			if resting.maxTSValid > 0 && o.Timestamp > resting.maxTSValid {
				b.releaseRestingOrder(opp, levelIdx, orderIdx)
				orderIdx = nextIdx
				continue
			}

			if resting.ownerID == o.OwnerID {
				switch policy {
				case common.DecrementTake:
					b.logger.Debug().Msg("self-trade: decrement-take, no trade emitted")
					o.Quantity = 0
					break outer
				case common.CancelResting:
					b.logger.Debug().Msg("self-trade: resting order canceled")
					b.releaseRestingOrder(opp, levelIdx, orderIdx)
					orderIdx = nextIdx
					continue
				case common.AbortTransaction:
					b.logger.Debug().Msg("self-trade: aborting transaction")
					return nil, common.ErrSelfTrade
				}
			}

			fillQty := min(o.Quantity, resting.remainingQuantity)
			trades = append(trades, common.Trade{
				MakerOrderID: resting.orderID,
				TakerOrderID: o.OrderID,
				Price:        lvl.price,
				Quantity:     fillQty,
				MakerOwnerID: resting.ownerID,
				TakerOwnerID: o.OwnerID,
				Timestamp:    o.Timestamp,
			})

			o.Quantity -= fillQty
			resting.remainingQuantity -= fillQty
			lvl.aggregateQuantity -= fillQty
			s.totalQuantity -= fillQty

			if resting.remainingQuantity == 0 {
				b.releaseRestingOrder(opp, levelIdx, orderIdx)
				orderIdx = nextIdx
			}
		}

		if lvl.orderCount == 0 {
			b.removePriceLevel(opp, levelIdx)
		}
	}

	return trades, nil
}

// selfTradeWouldAbort replays the same best-first, level-by-level,
// head-to-tail walk sweep would perform — without touching any arena or
// index state — and reports whether it would reach a resting order owned
// by o before either o's quantity is exhausted or (when unbounded is
// false) the best remaining price stops crossing. Expired resting orders
// are skipped exactly as sweep skips them, since sweep encounters and
// discards them in the same order on the real pass.
func (b *OrderBook) selfTradeWouldAbort(o common.Order, unbounded bool) bool {
	opp := o.Side.Opposite()
	s := b.sideOf(opp)

	remaining := o.Quantity
	levelIdx := s.best
	for remaining > 0 && levelIdx != none {
		lvl := b.priceArena.Get(levelIdx)
		if !unbounded && !crosses(o.Side, o.Price, lvl.price) {
			break
		}

		orderIdx := lvl.head
		for orderIdx != none && remaining > 0 {
			resting := b.orderArena.Get(orderIdx)

			if resting.maxTSValid > 0 && o.Timestamp > resting.maxTSValid {
				orderIdx = resting.next
				continue
			}
			if resting.ownerID == o.OwnerID {
				return true
			}

			remaining -= min(remaining, resting.remainingQuantity)
			orderIdx = resting.next
		}

		levelIdx = lvl.worseNeighbor
	}
	return false
}

// wouldCross reports whether a PostOnly order on side at price would
// immediately match the opposite side's best resting price.
func (b *OrderBook) wouldCross(side common.Side, price uint64) bool {
	opp := side.Opposite()
	s := b.sideOf(opp)
	if s.best == none {
		return false
	}
	lvl := b.priceArena.Get(s.best)
	return crosses(side, price, lvl.price)
}

// checkFillable reports whether quantity could be filled in full against
// side's opposite book at a limit of price, without mutating the book.
// It accumulates level aggregates best-first and returns true the moment
// the target is reached, matching the original's can_fill_completely.
func (b *OrderBook) checkFillable(side common.Side, price, quantity uint64) bool {
	opp := side.Opposite()
	s := b.sideOf(opp)

	var acc uint64
	idx := s.best
	for idx != none {
		lvl := b.priceArena.Get(idx)
		if !crosses(side, price, lvl.price) {
			break
		}
		acc += lvl.aggregateQuantity
		if acc >= quantity {
			return true
		}
		idx = lvl.worseNeighbor
	}
	return false
}
