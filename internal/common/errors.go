package common

import "errors"

// Error kinds a caller distinguishes with errors.Is. CapacityInvariantViolated
// is fatal: it means the arena free-list bookkeeping disagrees with itself
// and the book must not be trusted further.
var (
	ErrInvalidOrder              = errors.New("common: invalid order")
	ErrWouldCross                = errors.New("common: post-only order would cross the book")
	ErrInsufficientLiquidity     = errors.New("common: insufficient liquidity for fill-or-kill")
	ErrSelfTrade                 = errors.New("common: self-trade, transaction aborted")
	ErrBookFull                  = errors.New("common: order book arena exhausted")
	ErrOrderNotFound             = errors.New("common: order not found")
	ErrCapacityInvariantViolated = errors.New("common: capacity invariant violated")
)
