// Package common holds the types shared by every package in this module:
// the order/trade records, the small enums that drive matching, and the
// error sentinels callers match on with errors.Is.
package common

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Side is which book an order rests on or crosses against.
type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// Opposite returns the side a Place on s would match against.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// OrderKind selects the matching behavior for a Place call.
type OrderKind uint8

const (
	Limit OrderKind = iota
	Market
	PostOnly
	ImmediateOrCancel
	FillOrKill
)

func (k OrderKind) String() string {
	switch k {
	case Limit:
		return "limit"
	case Market:
		return "market"
	case PostOnly:
		return "post_only"
	case ImmediateOrCancel:
		return "immediate_or_cancel"
	case FillOrKill:
		return "fill_or_kill"
	default:
		return "unknown"
	}
}

// SelfTradePolicy governs what happens when a taker would match against a
// resting order owned by the same owner.
type SelfTradePolicy uint8

const (
	DecrementTake SelfTradePolicy = iota
	CancelResting
	AbortTransaction
)

func (p SelfTradePolicy) String() string {
	switch p {
	case DecrementTake:
		return "decrement_take"
	case CancelResting:
		return "cancel_resting"
	case AbortTransaction:
		return "abort_transaction"
	default:
		return "unknown"
	}
}

// OrderID is the 128-bit order identifier. It is backed by uuid.UUID so
// test fixtures and wire encoders can lean on github.com/google/uuid.
type OrderID uuid.UUID

// NilOrderID is the zero value, never assigned to a real order.
var NilOrderID OrderID

func NewOrderID() OrderID {
	return OrderID(uuid.New())
}

// ParseOrderID parses the canonical UUID string form produced by
// OrderID.String.
func ParseOrderID(s string) (OrderID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NilOrderID, err
	}
	return OrderID(id), nil
}

func (id OrderID) String() string {
	return uuid.UUID(id).String()
}

func (id OrderID) IsNil() bool {
	return id == NilOrderID
}

// OwnerID is an opaque 256-bit owner identifier. It is compared for
// equality only (self-trade detection); its contents are meaningless to
// this package.
type OwnerID [32]byte

var NilOwnerID OwnerID

func OwnerIDFromBytes(b []byte) OwnerID {
	var id OwnerID
	copy(id[:], b)
	return id
}

func (id OwnerID) String() string {
	return hex.EncodeToString(id[:])
}

// Order is the input record to Place: everything the matching engine
// needs to know about a single incoming order.
type Order struct {
	OrderID  OrderID
	OwnerID  OwnerID
	Side     Side
	Kind     OrderKind
	Price    uint64 // integer ticks; ignored for Market orders
	Quantity uint64 // integer lots

	// Timestamp is caller-supplied and used for trade stamps and expiry
	// comparisons. The engine never reads the wall clock.
	Timestamp int64

	// MaxTSValid is the last timestamp at which this order may still
	// match or rest. Zero means the order never expires.
	MaxTSValid int64

	// SelfTradePolicy overrides the book's default policy for this order
	// only. Nil means "use the book's default".
	SelfTradePolicy *SelfTradePolicy
}

// Validate checks the fields Place cannot proceed without. It does not
// check book capacity or crossing — those are matching-time concerns.
func (o Order) Validate() error {
	switch o.Kind {
	case Limit, Market, PostOnly, ImmediateOrCancel, FillOrKill:
	default:
		return ErrInvalidOrder
	}
	if o.Quantity == 0 {
		return ErrInvalidOrder
	}
	if o.Kind != Market && o.Price == 0 {
		return ErrInvalidOrder
	}
	if o.MaxTSValid != 0 && o.MaxTSValid < o.Timestamp {
		return ErrInvalidOrder
	}
	return nil
}

// IsExpired reports whether the order is no longer eligible to match or
// rest as of asOf.
func (o Order) IsExpired(asOf int64) bool {
	return o.MaxTSValid > 0 && asOf > o.MaxTSValid
}

// Trade is one fill: a single resting order matched against a single
// taker, for some quantity at the resting order's price.
type Trade struct {
	MakerOrderID OrderID
	TakerOrderID OrderID
	Price        uint64
	Quantity     uint64
	MakerOwnerID OwnerID
	TakerOwnerID OwnerID
	Timestamp    int64
}

func (t Trade) String() string {
	return fmt.Sprintf("trade maker=%s taker=%s price=%d qty=%d",
		t.MakerOrderID, t.TakerOrderID, t.Price, t.Quantity)
}
