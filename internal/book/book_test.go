package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/common"
)

func testBook(t *testing.T) *OrderBook {
	t.Helper()
	return New(8, 32, common.DecrementTake, 100)
}

func owner(b byte) common.OwnerID {
	var id common.OwnerID
	id[0] = b
	return id
}

func limitOrder(side common.Side, price, qty uint64, ownerByte byte, ts int64) common.Order {
	return common.Order{
		OrderID:   common.NewOrderID(),
		OwnerID:   owner(ownerByte),
		Side:      side,
		Kind:      common.Limit,
		Price:     price,
		Quantity:  qty,
		Timestamp: ts,
	}
}

// E1: a resting limit order, then a crossing limit order fully fills it.
func TestLimitCrossFullyFillsResting(t *testing.T) {
	b := testBook(t)
	resting := limitOrder(common.Ask, 100, 10, 1, 1)
	out := b.Place(resting)
	require.NoError(t, out.Err)
	require.NotNil(t, out.Residual)

	taker := limitOrder(common.Bid, 100, 10, 2, 2)
	out = b.Place(taker)
	require.NoError(t, out.Err)
	require.Len(t, out.Trades, 1)
	assert.Equal(t, uint64(100), out.Trades[0].Price)
	assert.Equal(t, uint64(10), out.Trades[0].Quantity)
	assert.Nil(t, out.Residual)

	_, ok := b.BestPrice(common.Ask)
	assert.False(t, ok)
}

// E2: a limit order partially fills, then rests its residual quantity.
func TestLimitPartialFillRestsResidual(t *testing.T) {
	b := testBook(t)
	resting := limitOrder(common.Ask, 100, 5, 1, 1)
	require.NoError(t, b.Place(resting).Err)

	taker := limitOrder(common.Bid, 100, 8, 2, 2)
	out := b.Place(taker)
	require.NoError(t, out.Err)
	require.Len(t, out.Trades, 1)
	assert.Equal(t, uint64(5), out.Trades[0].Quantity)
	require.NotNil(t, out.Residual)

	price, ok := b.BestPrice(common.Bid)
	require.True(t, ok)
	assert.Equal(t, uint64(100), price)
	assert.Equal(t, uint64(3), b.TotalQuantity(common.Bid))
}

// E3: a market order sweeps multiple price levels and discards residual.
func TestMarketSweepsMultipleLevelsAndDiscardsResidual(t *testing.T) {
	b := testBook(t)
	require.NoError(t, b.Place(limitOrder(common.Ask, 100, 5, 1, 1)).Err)
	require.NoError(t, b.Place(limitOrder(common.Ask, 101, 5, 1, 1)).Err)

	taker := common.Order{
		OrderID: common.NewOrderID(), OwnerID: owner(2),
		Side: common.Bid, Kind: common.Market, Quantity: 20, Timestamp: 2,
	}
	out := b.Place(taker)
	require.NoError(t, out.Err)
	require.Len(t, out.Trades, 2)
	assert.Equal(t, uint64(5), out.Trades[0].Quantity)
	assert.Equal(t, uint64(100), out.Trades[0].Price)
	assert.Equal(t, uint64(5), out.Trades[1].Quantity)
	assert.Equal(t, uint64(101), out.Trades[1].Price)
	assert.Nil(t, out.Residual)
	assert.Equal(t, uint32(0), b.OrderCount(common.Ask))
}

// E4: PostOnly rejected when it would cross (inclusive-equal), accepted
// when it would not.
func TestPostOnlyRejectsOnCross(t *testing.T) {
	b := testBook(t)
	require.NoError(t, b.Place(limitOrder(common.Ask, 100, 5, 1, 1)).Err)

	crossing := limitOrder(common.Bid, 100, 5, 2, 2)
	crossing.Kind = common.PostOnly
	out := b.Place(crossing)
	assert.ErrorIs(t, out.Err, common.ErrWouldCross)

	nonCrossing := limitOrder(common.Bid, 99, 5, 2, 2)
	nonCrossing.Kind = common.PostOnly
	out = b.Place(nonCrossing)
	require.NoError(t, out.Err)
	require.NotNil(t, out.Residual)
}

// E5: FillOrKill rejects when liquidity is insufficient, leaving the
// book untouched; succeeds atomically when liquidity suffices.
func TestFillOrKillRejectsWithoutMutatingBook(t *testing.T) {
	b := testBook(t)
	require.NoError(t, b.Place(limitOrder(common.Ask, 100, 5, 1, 1)).Err)

	fok := common.Order{
		OrderID: common.NewOrderID(), OwnerID: owner(2),
		Side: common.Bid, Kind: common.FillOrKill, Price: 100, Quantity: 10, Timestamp: 2,
	}
	out := b.Place(fok)
	assert.ErrorIs(t, out.Err, common.ErrInsufficientLiquidity)
	assert.Equal(t, uint64(5), b.TotalQuantity(common.Ask))

	fok.Quantity = 5
	out = b.Place(fok)
	require.NoError(t, out.Err)
	require.Len(t, out.Trades, 1)
	assert.Equal(t, uint64(0), b.TotalQuantity(common.Ask))
}

// E6: self-trade policies behave distinctly for the same configuration.
func TestSelfTradePolicies(t *testing.T) {
	t.Run("decrement_take", func(t *testing.T) {
		b := testBook(t)
		require.NoError(t, b.Place(limitOrder(common.Ask, 100, 5, 1, 1)).Err)
		taker := limitOrder(common.Bid, 100, 5, 1, 2)
		out := b.Place(taker)
		require.NoError(t, out.Err)
		assert.Empty(t, out.Trades)
		assert.Equal(t, uint64(5), b.TotalQuantity(common.Ask))
	})

	t.Run("cancel_resting", func(t *testing.T) {
		b := testBook(t)
		policy := common.CancelResting
		resting := limitOrder(common.Ask, 100, 5, 1, 1)
		resting.SelfTradePolicy = &policy
		require.NoError(t, b.Place(resting).Err)
		require.NoError(t, b.Place(limitOrder(common.Ask, 101, 5, 9, 1)).Err)

		taker := limitOrder(common.Bid, 101, 5, 1, 2)
		taker.SelfTradePolicy = &policy
		out := b.Place(taker)
		require.NoError(t, out.Err)
		require.Len(t, out.Trades, 1)
		assert.Equal(t, uint64(101), out.Trades[0].Price)
		assert.Equal(t, uint64(0), b.TotalQuantity(common.Ask))
	})

	t.Run("abort_transaction", func(t *testing.T) {
		b := testBook(t)
		policy := common.AbortTransaction
		resting := limitOrder(common.Ask, 100, 5, 1, 1)
		resting.SelfTradePolicy = &policy
		require.NoError(t, b.Place(resting).Err)

		taker := limitOrder(common.Bid, 100, 5, 1, 2)
		taker.SelfTradePolicy = &policy
		out := b.Place(taker)
		assert.ErrorIs(t, out.Err, common.ErrSelfTrade)
		assert.Empty(t, out.Trades)
		assert.Equal(t, uint64(5), b.TotalQuantity(common.Ask))
	})

	// A same-owner resting order at a worse price must abort the whole
	// sweep and leave a genuine counterparty fill at a better price
	// untouched: no trade recorded, no liquidity consumed anywhere in the
	// walk, even though the abort is only discovered after that better
	// price level would otherwise already have been matched.
	t.Run("abort_transaction_rolls_back_prior_fill_in_same_walk", func(t *testing.T) {
		b := testBook(t)
		policy := common.AbortTransaction

		counterparty := limitOrder(common.Ask, 100, 5, 2, 1)
		require.NoError(t, b.Place(counterparty).Err)

		selfResting := limitOrder(common.Ask, 101, 5, 1, 1)
		selfResting.SelfTradePolicy = &policy
		require.NoError(t, b.Place(selfResting).Err)

		taker := limitOrder(common.Bid, 101, 10, 1, 2)
		taker.SelfTradePolicy = &policy
		out := b.Place(taker)

		assert.ErrorIs(t, out.Err, common.ErrSelfTrade)
		assert.Empty(t, out.Trades)
		assert.Equal(t, uint64(10), b.TotalQuantity(common.Ask))
		price, ok := b.BestPrice(common.Ask)
		require.True(t, ok)
		assert.Equal(t, uint64(100), price)
		assert.Equal(t, uint32(2), b.OrderCount(common.Ask))
	})
}

func TestCancelRemovesOrderAndEmptyLevel(t *testing.T) {
	b := testBook(t)
	o := limitOrder(common.Bid, 100, 5, 1, 1)
	out := b.Place(o)
	require.NoError(t, out.Err)
	require.NotNil(t, out.Residual)

	co, err := b.Cancel(*out.Residual, common.Bid)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), co.CanceledQuantity)
	assert.Equal(t, uint64(100), co.Price)

	_, ok := b.BestPrice(common.Bid)
	assert.False(t, ok)
}

func TestCancelUnknownOrderIDReturnsNotFound(t *testing.T) {
	b := testBook(t)
	_, err := b.Cancel(common.NewOrderID(), common.Bid)
	assert.ErrorIs(t, err, common.ErrOrderNotFound)
}

func TestPurgeExpiredRemovesPastMaxTSValid(t *testing.T) {
	b := testBook(t)
	o := limitOrder(common.Bid, 100, 5, 1, 1)
	o.MaxTSValid = 10
	require.NoError(t, b.Place(o).Err)

	removed := b.PurgeExpired(11)
	assert.Equal(t, 1, removed)
	_, ok := b.BestPrice(common.Bid)
	assert.False(t, ok)
}

func TestDepthReturnsBestFirstUpToLimit(t *testing.T) {
	b := testBook(t)
	require.NoError(t, b.Place(limitOrder(common.Bid, 100, 1, 1, 1)).Err)
	require.NoError(t, b.Place(limitOrder(common.Bid, 102, 1, 1, 1)).Err)
	require.NoError(t, b.Place(limitOrder(common.Bid, 101, 1, 1, 1)).Err)

	depth := b.Depth(common.Bid, 2)
	require.Len(t, depth, 2)
	assert.Equal(t, uint64(102), depth[0].Price)
	assert.Equal(t, uint64(101), depth[1].Price)
}

func TestBookFullRejectsOrderOnOrderArenaExhaustion(t *testing.T) {
	b := New(8, 2, common.DecrementTake, 100)
	require.NoError(t, b.Place(limitOrder(common.Bid, 100, 1, 1, 1)).Err)
	require.NoError(t, b.Place(limitOrder(common.Bid, 101, 1, 1, 1)).Err)

	out := b.Place(limitOrder(common.Bid, 102, 1, 1, 1))
	assert.ErrorIs(t, out.Err, common.ErrBookFull)
}

func TestInvalidOrderRejectedBeforeLocking(t *testing.T) {
	b := testBook(t)
	out := b.Place(common.Order{OrderID: common.NewOrderID(), OwnerID: owner(1), Side: common.Bid, Kind: common.Limit, Price: 100, Quantity: 0})
	assert.ErrorIs(t, out.Err, common.ErrInvalidOrder)
}

// An order carrying an unrecognized Kind must be rejected by Validate,
// before Place's purge sweep runs — §7 treats InvalidOrder as a
// no-mutation outcome, same as WouldCross/SelfTrade.
func TestUnknownOrderKindRejectedBeforePurge(t *testing.T) {
	b := testBook(t)
	expiring := limitOrder(common.Bid, 100, 5, 1, 1)
	expiring.MaxTSValid = 5
	require.NoError(t, b.Place(expiring).Err)

	bogus := limitOrder(common.Ask, 100, 5, 2, 10)
	bogus.Kind = common.OrderKind(250)
	out := b.Place(bogus)
	assert.ErrorIs(t, out.Err, common.ErrInvalidOrder)

	// The expired order must still be resting: a purge sweep driven by
	// this order's timestamp (10 > MaxTSValid 5) never ran.
	_, ok := b.BestPrice(common.Bid)
	assert.True(t, ok)
}

func TestManyPriceLevelsKeepTreeBalancedAndOrdered(t *testing.T) {
	b := New(64, 256, common.DecrementTake, 1000)
	prices := []uint64{50, 10, 90, 30, 70, 20, 40, 60, 80, 5, 15, 25, 35, 45, 55}
	for i, p := range prices {
		require.NoError(t, b.Place(limitOrder(common.Bid, p, 1, byte(i+1), int64(i))).Err)
	}

	depth := b.Depth(common.Bid, len(prices))
	require.Len(t, depth, len(prices))
	for i := 1; i < len(depth); i++ {
		assert.Greater(t, depth[i-1].Price, depth[i].Price, "depth must be strictly descending for bids")
	}
}
