// Package net is the demonstration wire protocol: fixed-header binary
// messages over TCP, encoded/decoded with encoding/binary exactly the
// way the teacher's internal/net/messages.go does, generalized from a
// single AssetType/float64-price equities order to this module's
// MarketID/integer-tick Order.
package net

import (
	"encoding/binary"
	"errors"
	"fmt"

	"aegis/internal/common"
	"aegis/internal/engine"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short for declared length")
)

type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	LogBook
)

type ReportMessageType uint8

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

// Message format constants. MarketLen is the fixed width a MarketID is
// packed/truncated into on the wire.
const (
	BaseMessageHeaderLen = 2
	MarketLen            = 8

	// MarketLen + Kind(1) + Side(1) + Price(8) + Quantity(8) + OwnerID(32)
	// + Timestamp(8) + MaxTSValid(8) + SelfTradePolicy(1)
	NewOrderMessageHeaderLen = MarketLen + 1 + 1 + 8 + 8 + 32 + 8 + 8 + 1

	// MarketLen + OrderID(16) + Side(1)
	CancelOrderMessageHeaderLen = MarketLen + 16 + 1
)

// noSelfTradeOverride marks "use the book's default policy" on the wire.
const noSelfTradeOverride = 0xFF

type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) GetType() MessageType { return m.TypeOf }

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]
	switch typeOf {
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case LogBook:
		return BaseMessage{TypeOf: LogBook}, nil
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

type NewOrderMessage struct {
	BaseMessage
	Market     engine.MarketID
	Kind       common.OrderKind
	Side       common.Side
	Price      uint64
	Quantity   uint64
	OwnerID    common.OwnerID
	Timestamp  int64
	MaxTSValid int64
	STPolicy   *common.SelfTradePolicy
}

// Order builds the common.Order Place expects, minting a fresh OrderID
// the way the teacher's NewOrderMessage.Order() does.
func (m NewOrderMessage) Order() common.Order {
	return common.Order{
		OrderID:         common.NewOrderID(),
		OwnerID:         m.OwnerID,
		Side:            m.Side,
		Kind:            m.Kind,
		Price:           m.Price,
		Quantity:        m.Quantity,
		Timestamp:       m.Timestamp,
		MaxTSValid:      m.MaxTSValid,
		SelfTradePolicy: m.STPolicy,
	}
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}

	off := 0
	m.Market = engine.MarketID(trimTrailingZeros(msg[off : off+MarketLen]))
	off += MarketLen
	m.Kind = common.OrderKind(msg[off])
	off++
	m.Side = common.Side(msg[off])
	off++
	m.Price = binary.BigEndian.Uint64(msg[off : off+8])
	off += 8
	m.Quantity = binary.BigEndian.Uint64(msg[off : off+8])
	off += 8
	m.OwnerID = common.OwnerIDFromBytes(msg[off : off+32])
	off += 32
	m.Timestamp = int64(binary.BigEndian.Uint64(msg[off : off+8]))
	off += 8
	m.MaxTSValid = int64(binary.BigEndian.Uint64(msg[off : off+8]))
	off += 8
	if raw := msg[off]; raw != noSelfTradeOverride {
		policy := common.SelfTradePolicy(raw)
		m.STPolicy = &policy
	}

	return m, nil
}

type CancelOrderMessage struct {
	BaseMessage
	Market  engine.MarketID
	OrderID common.OrderID
	Side    common.Side
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	off := 0
	m.Market = engine.MarketID(trimTrailingZeros(msg[off : off+MarketLen]))
	off += MarketLen
	copy(m.OrderID[:], msg[off:off+16])
	off += 16
	m.Side = common.Side(msg[off])
	return m, nil
}

func trimTrailingZeros(b []byte) string {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return string(b[:i])
}

// Report is the fixed-header execution/error report sent back to a
// connected client.
type Report struct {
	MessageType     ReportMessageType
	Side            common.Side
	Quantity        uint64
	Price           uint64
	Timestamp       int64
	OrderID         common.OrderID
	CounterpartyLen uint16
	ErrStrLen       uint32
	Market          engine.MarketID
	Counterparty    string
	Err             string
}

const reportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 16 + 2 + 4 + MarketLen

func (r *Report) Serialize() []byte {
	total := reportFixedHeaderLen + len(r.Err) + len(r.Counterparty)
	buf := make([]byte, total)

	off := 0
	buf[off] = byte(r.MessageType)
	off++
	buf[off] = byte(r.Side)
	off++
	binary.BigEndian.PutUint64(buf[off:off+8], r.Quantity)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], r.Price)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.Timestamp))
	off += 8
	copy(buf[off:off+16], r.OrderID[:])
	off += 16
	binary.BigEndian.PutUint16(buf[off:off+2], r.CounterpartyLen)
	off += 2
	binary.BigEndian.PutUint32(buf[off:off+4], r.ErrStrLen)
	off += 4
	marketBytes := make([]byte, MarketLen)
	copy(marketBytes, r.Market)
	copy(buf[off:off+MarketLen], marketBytes)
	off += MarketLen

	if r.ErrStrLen > 0 {
		copy(buf[off:], r.Err)
		off += int(r.ErrStrLen)
	}
	if r.CounterpartyLen > 0 {
		copy(buf[off:], r.Counterparty)
	}
	return buf
}

func generateWireTradeReports(market engine.MarketID, trade common.Trade, takerSide common.Side) ([]byte, []byte) {
	makerReport := Report{
		MessageType:     ExecutionReport,
		Side:            takerSide.Opposite(),
		Quantity:        trade.Quantity,
		Price:           trade.Price,
		Timestamp:       trade.Timestamp,
		OrderID:         trade.MakerOrderID,
		Market:          market,
		Counterparty:    trade.TakerOwnerID.String(),
		CounterpartyLen: uint16(len(trade.TakerOwnerID.String())),
	}
	takerReport := Report{
		MessageType:     ExecutionReport,
		Side:            takerSide,
		Quantity:        trade.Quantity,
		Price:           trade.Price,
		Timestamp:       trade.Timestamp,
		OrderID:         trade.TakerOrderID,
		Market:          market,
		Counterparty:    trade.MakerOwnerID.String(),
		CounterpartyLen: uint16(len(trade.MakerOwnerID.String())),
	}
	return makerReport.Serialize(), takerReport.Serialize()
}

func generateWireErrorReport(market engine.MarketID, orderID common.OrderID, err error) []byte {
	errStr := fmt.Sprintf("%v", err)
	r := Report{
		MessageType: ErrorReport,
		OrderID:     orderID,
		Market:      market,
		ErrStrLen:   uint32(len(errStr)),
		Err:         errStr,
	}
	return r.Serialize()
}
