package book

import "aegis/internal/common"

// PlaceOutcome is the result of a Place call: any trades produced, the
// order id left resting (if any), and an error kind. Matching spec §6.1,
// the error is carried on the outcome rather than as a second return
// value — Trades may be non-empty even when Err is set (a Limit order
// whose residual hits BookFull keeps the trades it already made). A
// self-trade abort returns no trades, since AbortTransaction aborts
// before any trade is made.
type PlaceOutcome struct {
	Trades   []common.Trade
	Residual *common.OrderID
	Err      error
}

// CancelOutcome reports what Cancel removed.
type CancelOutcome struct {
	CanceledQuantity uint64
	Price            uint64
	Side             common.Side
}

// Place submits o to the book. Dispatch is purely on o.Kind; every branch
// holds the single book mutex for its whole duration (§5: single writer).
func (b *OrderBook) Place(o common.Order) PlaceOutcome {
	if err := o.Validate(); err != nil {
		return PlaceOutcome{Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.bumpSeq()
	b.maybePurge(o.Timestamp)

	switch o.Kind {
	case common.Market:
		return b.placeMarket(o)
	case common.Limit:
		return b.placeLimit(o)
	case common.PostOnly:
		return b.placePostOnly(o)
	case common.ImmediateOrCancel:
		return b.placeIOC(o)
	case common.FillOrKill:
		return b.placeFOK(o)
	default:
		return PlaceOutcome{Err: common.ErrInvalidOrder}
	}
}

func (b *OrderBook) placeMarket(o common.Order) PlaceOutcome {
	trades, err := b.sweep(&o, b.effectivePolicy(o), true)
	if err != nil {
		return PlaceOutcome{Err: err}
	}
	return PlaceOutcome{Trades: trades}
}

func (b *OrderBook) placeLimit(o common.Order) PlaceOutcome {
	trades, err := b.sweep(&o, b.effectivePolicy(o), false)
	if err != nil {
		return PlaceOutcome{Err: err}
	}
	if o.Quantity == 0 {
		return PlaceOutcome{Trades: trades}
	}
	residual, err := b.restOrder(o)
	if err != nil {
		return PlaceOutcome{Trades: trades, Err: err}
	}
	return PlaceOutcome{Trades: trades, Residual: &residual}
}

func (b *OrderBook) placePostOnly(o common.Order) PlaceOutcome {
	if b.wouldCross(o.Side, o.Price) {
		return PlaceOutcome{Err: common.ErrWouldCross}
	}
	residual, err := b.restOrder(o)
	if err != nil {
		return PlaceOutcome{Err: err}
	}
	return PlaceOutcome{Residual: &residual}
}

func (b *OrderBook) placeIOC(o common.Order) PlaceOutcome {
	trades, err := b.sweep(&o, b.effectivePolicy(o), false)
	if err != nil {
		return PlaceOutcome{Err: err}
	}
	// Any residual is discarded, not rested: that is the entire
	// difference between ImmediateOrCancel and Limit.
	return PlaceOutcome{Trades: trades}
}

func (b *OrderBook) placeFOK(o common.Order) PlaceOutcome {
	if !b.checkFillable(o.Side, o.Price, o.Quantity) {
		return PlaceOutcome{Err: common.ErrInsufficientLiquidity}
	}
	trades, err := b.sweep(&o, b.effectivePolicy(o), false)
	if err != nil {
		return PlaceOutcome{Err: err}
	}
	return PlaceOutcome{Trades: trades}
}

// Cancel removes a resting order by id. sideHint is accepted for
// interface parity with spec §6.1's cancel(Book, order_id, Side); since
// this book maintains a global order-id index it is not required for
// correctness and is not consulted.
func (b *OrderBook) Cancel(id common.OrderID, _ common.Side) (CancelOutcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bumpSeq()

	entry, ok := b.orderIndex.Get(orderIndexEntry{id: id})
	if !ok {
		return CancelOutcome{}, common.ErrOrderNotFound
	}

	side := entry.side
	orderIdx := entry.index
	oe := b.orderArena.Get(orderIdx)
	levelIdx := oe.levelIndex
	lvl := b.priceArena.Get(levelIdx)
	price := lvl.price
	qty := oe.remainingQuantity

	b.releaseRestingOrder(side, levelIdx, orderIdx)
	if lvl.orderCount == 0 {
		b.removePriceLevel(side, levelIdx)
	}

	return CancelOutcome{CanceledQuantity: qty, Price: price, Side: side}, nil
}
