package book

import "aegis/internal/common"

// maybePurge runs a bounded expiry sweep when lastUpdateSeq has run
// purgeInterval calls ahead of the last purge, alternating sides so
// both get attention over time. The counter is an internal call count,
// not derived from the caller-supplied now — purge cadence must stay
// deterministic regardless of what timestamps callers choose (see
// SPEC_FULL.md §C.5).
func (b *OrderBook) maybePurge(now int64) {
	if b.lastUpdateSeq-b.lastPurgeSeq < b.purgeInterval {
		return
	}
	side := b.purgeTurn
	b.purgeTurn = side.Opposite()
	b.purgeSideBounded(side, now, defaultMaxPurgeWork)
	b.lastPurgeSeq = b.lastUpdateSeq
}

// PurgeExpired walks both sides, unlinking any resting order whose
// MaxTSValid has passed as of now, and returns how many were removed.
// Each side's walk is bounded so a caller-invoked purge cannot stall for
// an unbounded amount of time on a book with many expired entries.
func (b *OrderBook) PurgeExpired(now int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := b.purgeSideBounded(common.Bid, now, defaultMaxPurgeWork)
	removed += b.purgeSideBounded(common.Ask, now, defaultMaxPurgeWork)
	b.lastPurgeSeq = b.lastUpdateSeq
	return removed
}

// purgeSideBounded walks side's price levels best-first, scanning each
// level's whole FIFO (an expired order can be anywhere in arrival order,
// not just at the head) and dropping anything past its MaxTSValid, until
// either the side is exhausted or maxWork entries have been examined.
func (b *OrderBook) purgeSideBounded(side common.Side, now int64, maxWork int) int {
	s := b.sideOf(side)
	removed := 0
	work := 0

	levelIdx := s.best
	for levelIdx != none && work < maxWork {
		lvl := b.priceArena.Get(levelIdx)
		nextLevel := lvl.worseNeighbor

		orderIdx := lvl.head
		for orderIdx != none && work < maxWork {
			oe := b.orderArena.Get(orderIdx)
			nextOrder := oe.next
			work++
			if oe.maxTSValid > 0 && now > oe.maxTSValid {
				b.releaseRestingOrder(side, levelIdx, orderIdx)
				removed++
			}
			orderIdx = nextOrder
		}

		if lvl.orderCount == 0 {
			b.removePriceLevel(side, levelIdx)
		}
		levelIdx = nextLevel
	}

	if removed > 0 {
		b.logger.Debug().Str("side", side.String()).Int("removed", removed).Msg("purge: expired orders removed")
	}
	return removed
}
