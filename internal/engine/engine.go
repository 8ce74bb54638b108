// Package engine is the process-level owner of per-market order books:
// §5's "multiple books may coexist in one process", generalizing the
// teacher's Engine{Books map[AssetType]OrderBook} to an arbitrary set of
// markets, each backed by an independently-arena'd internal/book.OrderBook.
package engine

import (
	"sync"

	"aegis/internal/book"
	"aegis/internal/common"
)

// MarketID names one order book within an Engine, e.g. a ticker or
// trading pair symbol.
type MarketID string

// Reporter receives trade and error notifications produced by Place
// calls, the way the teacher's Server.ReportTrade/ReportError do for
// connected clients.
type Reporter interface {
	// ReportTrades is notified with the side of the order that triggered
	// matching (the taker side); every trade's maker rested on the
	// opposite side.
	ReportTrades(market MarketID, takerSide common.Side, trades []common.Trade)
	ReportError(market MarketID, orderID common.OrderID, err error)
}

type noopReporter struct{}

func (noopReporter) ReportTrades(MarketID, common.Side, []common.Trade) {}
func (noopReporter) ReportError(MarketID, common.OrderID, error)        {}

// Config controls the arena sizing and self-trade default every market
// created through New shares.
type Config struct {
	CapacityLevels         uint32
	CapacityOrders         uint32
	DefaultSelfTradePolicy common.SelfTradePolicy
	PurgeInterval          uint64
}

// DefaultConfig mirrors book.NewDefault's capacities.
func DefaultConfig() Config {
	return Config{
		CapacityLevels:         book.DefaultCapacityLevels,
		CapacityOrders:         book.DefaultCapacityOrders,
		DefaultSelfTradePolicy: common.DecrementTake,
		PurgeInterval:          book.DefaultPurgeInterval,
	}
}

// Engine owns one OrderBook per MarketID.
type Engine struct {
	mu       sync.RWMutex
	cfg      Config
	books    map[MarketID]*book.OrderBook
	reporter Reporter
}

// New builds an Engine with a book pre-created for each given market.
func New(cfg Config, markets ...MarketID) *Engine {
	e := &Engine{
		cfg:      cfg,
		books:    make(map[MarketID]*book.OrderBook, len(markets)),
		reporter: noopReporter{},
	}
	for _, m := range markets {
		e.books[m] = book.New(cfg.CapacityLevels, cfg.CapacityOrders, cfg.DefaultSelfTradePolicy, cfg.PurgeInterval)
	}
	return e
}

// SetReporter installs the Reporter notified of trades/errors produced
// by PlaceOrder and CancelOrder. Until it is called, the engine reports
// nothing; r must not be nil.
func (e *Engine) SetReporter(r Reporter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reporter = r
}

// Book returns market's order book, creating one with the engine's
// default configuration if it does not already exist.
func (e *Engine) Book(market MarketID) *book.OrderBook {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[market]
	if !ok {
		b = book.New(e.cfg.CapacityLevels, e.cfg.CapacityOrders, e.cfg.DefaultSelfTradePolicy, e.cfg.PurgeInterval)
		e.books[market] = b
	}
	return b
}

// PlaceOrder submits o to market's book and reports the outcome.
func (e *Engine) PlaceOrder(market MarketID, o common.Order) (book.PlaceOutcome, error) {
	b := e.Book(market)
	outcome := b.Place(o)
	if outcome.Err != nil {
		e.reporter.ReportError(market, o.OrderID, outcome.Err)
		return outcome, outcome.Err
	}
	if len(outcome.Trades) > 0 {
		e.reporter.ReportTrades(market, o.Side, outcome.Trades)
	}
	return outcome, nil
}

// CancelOrder cancels orderID on market's book.
func (e *Engine) CancelOrder(market MarketID, orderID common.OrderID, side common.Side) (book.CancelOutcome, error) {
	b := e.Book(market)
	out, err := b.Cancel(orderID, side)
	if err != nil {
		e.reporter.ReportError(market, orderID, err)
	}
	return out, err
}

// Markets returns the set of markets currently tracked.
func (e *Engine) Markets() []MarketID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]MarketID, 0, len(e.books))
	for m := range e.books {
		out = append(out, m)
	}
	return out
}
