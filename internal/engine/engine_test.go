package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/common"
)

type recordingReporter struct {
	trades []common.Trade
	errs   []error
}

func (r *recordingReporter) ReportTrades(_ MarketID, _ common.Side, trades []common.Trade) {
	r.trades = append(r.trades, trades...)
}

func (r *recordingReporter) ReportError(_ MarketID, _ common.OrderID, err error) {
	r.errs = append(r.errs, err)
}

func TestEngineRoutesOrdersToTheirOwnMarket(t *testing.T) {
	e := New(DefaultConfig(), "BTC-USD", "ETH-USD")
	reporter := &recordingReporter{}
	e.SetReporter(reporter)

	resting := common.Order{
		OrderID: common.NewOrderID(), OwnerID: common.OwnerIDFromBytes([]byte("mm")),
		Side: common.Ask, Kind: common.Limit, Price: 100, Quantity: 5, Timestamp: 1,
	}
	_, err := e.PlaceOrder("BTC-USD", resting)
	require.NoError(t, err)

	taker := common.Order{
		OrderID: common.NewOrderID(), OwnerID: common.OwnerIDFromBytes([]byte("taker")),
		Side: common.Bid, Kind: common.Limit, Price: 100, Quantity: 5, Timestamp: 2,
	}
	_, err = e.PlaceOrder("BTC-USD", taker)
	require.NoError(t, err)
	assert.Len(t, reporter.trades, 1)

	// ETH-USD book is untouched by BTC-USD activity.
	_, ok := e.Book("ETH-USD").BestPrice(common.Ask)
	assert.False(t, ok)
}

func TestEngineCreatesBookOnDemand(t *testing.T) {
	e := New(DefaultConfig())
	b := e.Book("NEW-MARKET")
	assert.NotNil(t, b)
	assert.Contains(t, e.Markets(), MarketID("NEW-MARKET"))
}

func TestEngineReportsErrorsOnRejectedOrders(t *testing.T) {
	e := New(DefaultConfig(), "BTC-USD")
	reporter := &recordingReporter{}
	e.SetReporter(reporter)

	_, err := e.PlaceOrder("BTC-USD", common.Order{OrderID: common.NewOrderID(), Kind: common.Limit, Quantity: 0})
	assert.Error(t, err)
	require.Len(t, reporter.errs, 1)
	assert.ErrorIs(t, reporter.errs[0], common.ErrInvalidOrder)
}
