// Package book is the matching engine core: a fixed-capacity price/order
// arena pair, a price index kept as an AVL tree overlaid with a sorted
// doubly-linked list, per-level FIFO queues, and the Place/Cancel/Purge/
// Snapshot operations that dispatch on OrderKind and self-trade policy.
package book

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"

	"aegis/internal/arena"
	"aegis/internal/common"
)

const none = arena.None

// Default arena capacities, matching the original's price_nodes[256]/
// order_nodes[1024].
const (
	DefaultCapacityLevels = 256
	DefaultCapacityOrders = 1024

	// DefaultPurgeInterval is the call-count threshold between automatic
	// expiry sweeps: a sweep runs once lastUpdateSeq - lastPurgeSeq
	// reaches this value.
	DefaultPurgeInterval = 100

	// defaultMaxPurgeWork bounds how many order entries a single purge
	// pass examines, so a purge triggered mid-Place cannot stall the
	// caller for an unbounded amount of time.
	defaultMaxPurgeWork = 4096
)

// priceLevel is one arena-resident price-level node: a BST node (keyed on
// price) doubling as a node in the best-first sorted list, plus the head/
// tail of that price's FIFO order queue.
type priceLevel struct {
	price             uint64
	aggregateQuantity uint64
	orderCount        uint32

	head, tail uint32 // order arena indices, FIFO

	// BST links, keyed strictly on price (never on arena index — see
	// DESIGN.md for the bug this avoids).
	parent, left, right uint32
	height               int8

	// Sorted-list links in best-first order for this level's side.
	// betterNeighbor points toward the best price, worseNeighbor away
	// from it.
	betterNeighbor, worseNeighbor uint32
}

// orderEntry is one arena-resident resting order: a FIFO node within its
// price level's queue.
type orderEntry struct {
	orderID           common.OrderID
	ownerID           common.OwnerID
	remainingQuantity uint64
	timestamp         int64
	maxTSValid        int64
	levelIndex        uint32
	prev, next        uint32
}

// sideState is the per-side root of the price index: the BST root and a
// cached pointer to the best-first list head, plus side aggregates.
type sideState struct {
	root uint32
	best uint32

	orderCount    uint32
	totalQuantity uint64
}

// orderIndexEntry is the secondary, order-id-keyed index used by Cancel
// when no side/level hint is supplied. Backed by github.com/tidwall/btree,
// the teacher's generic tree library, repurposed here: the teacher keys
// its BTreeG by price for the primary book; price there must be
// arena-indexed for the persisted layout (see DESIGN.md), so this index
// instead keys on the 128-bit order id.
type orderIndexEntry struct {
	id    common.OrderID
	index uint32
	side  common.Side
}

func lessOrderIndexEntry(a, b orderIndexEntry) bool {
	for i := range a.id {
		if a.id[i] != b.id[i] {
			return a.id[i] < b.id[i]
		}
	}
	return false
}

// OrderBook is one market's matching engine: fixed arenas, a price index
// per side, and the single mutex every mutating operation takes (§5:
// single-writer, no torn reads for readers).
type OrderBook struct {
	mu sync.Mutex

	priceArena *arena.Arena[priceLevel]
	orderArena *arena.Arena[orderEntry]
	orderIndex *btree.BTreeG[orderIndexEntry]

	bids, asks sideState

	defaultSelfTradePolicy common.SelfTradePolicy
	purgeInterval          uint64
	purgeTurn              common.Side

	lastUpdateSeq uint64
	lastPurgeSeq  uint64

	logger zerolog.Logger
}

// Option configures an OrderBook at construction time.
type Option func(*OrderBook)

// WithLogger overrides the package default (the global zerolog logger).
func WithLogger(logger zerolog.Logger) Option {
	return func(b *OrderBook) { b.logger = logger }
}

// New builds an OrderBook with the given arena capacities.
func New(capacityLevels, capacityOrders uint32, defaultPolicy common.SelfTradePolicy, purgeInterval uint64, opts ...Option) *OrderBook {
	b := &OrderBook{
		priceArena:             arena.New[priceLevel](capacityLevels),
		orderArena:             arena.New[orderEntry](capacityOrders),
		orderIndex:             btree.NewBTreeG(lessOrderIndexEntry),
		bids:                   sideState{root: none, best: none},
		asks:                   sideState{root: none, best: none},
		defaultSelfTradePolicy: defaultPolicy,
		purgeInterval:          purgeInterval,
		purgeTurn:              common.Bid,
		logger:                 log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewDefault builds an OrderBook with the spec's default capacities.
func NewDefault(defaultPolicy common.SelfTradePolicy, opts ...Option) *OrderBook {
	return New(DefaultCapacityLevels, DefaultCapacityOrders, defaultPolicy, DefaultPurgeInterval, opts...)
}

func (b *OrderBook) sideOf(s common.Side) *sideState {
	if s == common.Bid {
		return &b.bids
	}
	return &b.asks
}

func (b *OrderBook) effectivePolicy(o common.Order) common.SelfTradePolicy {
	if o.SelfTradePolicy != nil {
		return *o.SelfTradePolicy
	}
	return b.defaultSelfTradePolicy
}

func (b *OrderBook) bumpSeq() {
	b.lastUpdateSeq++
}

// crosses reports whether a resting order at restingPrice would match a
// taker on takerSide bounded by takerPrice. Equal prices cross (confirmed
// by the original's would_match: inclusive comparisons both sides).
func crosses(takerSide common.Side, takerPrice, restingPrice uint64) bool {
	if takerSide == common.Bid {
		return restingPrice <= takerPrice
	}
	return restingPrice >= takerPrice
}
