package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"aegis/internal/common"
	aegisNet "aegis/internal/net"
)

func main() {
	// 1. CLI Parameter Parsing
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	owner := flag.String("owner", "", "Owner name (compulsory)")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'log']")

	// Order Parameters
	market := flag.String("market", "BTC-USD", "Market symbol (max 8 chars)")
	sideStr := flag.String("side", "bid", "Order side: 'bid' or 'ask'")
	kindStr := flag.String("kind", "limit", "Order kind: 'limit', 'market', 'post_only', 'ioc' or 'fok'")
	price := flag.Uint64("price", 100, "Limit price (integer ticks)")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")
	maxTSValid := flag.Int64("max-ts-valid", 0, "Last timestamp this order may still match or rest, 0 for no expiry")

	// Cancel Parameters
	orderIDStr := flag.String("order-id", "", "OrderID to cancel")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s as '%s'\n", *serverAddr, *owner)

	go readReports(conn)

	side := common.Bid
	if strings.ToLower(*sideStr) == "ask" {
		side = common.Ask
	}

	kind := parseKind(*kindStr)
	ownerID := common.OwnerIDFromBytes([]byte(*owner))

	switch strings.ToLower(*action) {
	case "place":
		for _, q := range parseQuantities(*qtyStr) {
			err := sendPlaceOrder(conn, *market, kind, side, *price, q, ownerID, *maxTSValid)
			if err != nil {
				log.Printf("Failed to place order (Qty: %d): %v", q, err)
			} else {
				fmt.Printf("-> Sent %s %s order: %s %d @ %d\n", strings.ToUpper(*sideStr), kind, *market, q, *price)
			}
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		if *orderIDStr == "" {
			log.Fatal("Error: -order-id is required for cancellation")
		}
		if err := sendCancelOrder(conn, *market, *orderIDStr, side); err != nil {
			log.Printf("Failed to send cancel request: %v", err)
		} else {
			fmt.Printf("-> Sent cancel request for order %s\n", *orderIDStr)
		}

	case "log":
		if err := sendLog(conn); err != nil {
			log.Printf("Failed to send log request: %v", err)
		} else {
			fmt.Println("-> Sent log request")
		}

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

func parseKind(s string) common.OrderKind {
	switch strings.ToLower(s) {
	case "market":
		return common.Market
	case "post_only", "postonly":
		return common.PostOnly
	case "ioc", "immediate_or_cancel":
		return common.ImmediateOrCancel
	case "fok", "fill_or_kill":
		return common.FillOrKill
	default:
		return common.Limit
	}
}

func parseQuantities(input string) []uint64 {
	parts := strings.Split(input, ",")
	var result []uint64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("Warning: Invalid quantity '%s', skipping.", p)
		}
	}
	return result
}

// sendPlaceOrder builds a NewOrder message matching
// aegisNet.NewOrderMessageHeaderLen's field layout exactly.
func sendPlaceOrder(conn net.Conn, market string, kind common.OrderKind, side common.Side, price, qty uint64, ownerID common.OwnerID, maxTSValid int64) error {
	totalLen := aegisNet.BaseMessageHeaderLen + aegisNet.NewOrderMessageHeaderLen
	buf := make([]byte, totalLen)

	binary.BigEndian.PutUint16(buf[0:2], uint16(aegisNet.NewOrder))
	off := 2

	marketBytes := make([]byte, aegisNet.MarketLen)
	copy(marketBytes, market)
	copy(buf[off:off+aegisNet.MarketLen], marketBytes)
	off += aegisNet.MarketLen

	buf[off] = byte(kind)
	off++
	buf[off] = byte(side)
	off++

	binary.BigEndian.PutUint64(buf[off:off+8], price)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], qty)
	off += 8

	copy(buf[off:off+32], ownerID[:])
	off += 32

	binary.BigEndian.PutUint64(buf[off:off+8], uint64(time.Now().UnixNano()))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(maxTSValid))
	off += 8

	buf[off] = 0xFF // no self-trade-policy override

	_, err := conn.Write(buf)
	return err
}

// sendCancelOrder builds a CancelOrder message. orderID is parsed as a
// UUID string and packed into its raw 16 bytes.
func sendCancelOrder(conn net.Conn, market, orderIDStr string, side common.Side) error {
	id, err := parseOrderID(orderIDStr)
	if err != nil {
		return err
	}

	totalLen := aegisNet.BaseMessageHeaderLen + aegisNet.CancelOrderMessageHeaderLen
	buf := make([]byte, totalLen)

	binary.BigEndian.PutUint16(buf[0:2], uint16(aegisNet.CancelOrder))
	off := 2

	marketBytes := make([]byte, aegisNet.MarketLen)
	copy(marketBytes, market)
	copy(buf[off:off+aegisNet.MarketLen], marketBytes)
	off += aegisNet.MarketLen

	copy(buf[off:off+16], id[:])
	off += 16
	buf[off] = byte(side)

	_, err = conn.Write(buf)
	return err
}

func sendLog(conn net.Conn) error {
	buf := make([]byte, aegisNet.BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(aegisNet.LogBook))
	_, err := conn.Write(buf)
	return err
}

// readReports continuously reads and parses Report messages from the
// server, matching Report.Serialize's field layout.
func readReports(conn net.Conn) {
	for {
		headerBuf := make([]byte, reportFixedHeaderLen)
		if _, err := io.ReadFull(conn, headerBuf); err != nil {
			if err != io.EOF {
				log.Printf("Connection lost: %v", err)
			}
			os.Exit(0)
		}

		off := 0
		msgType := aegisNet.ReportMessageType(headerBuf[off])
		off++
		side := common.Side(headerBuf[off])
		off++
		qty := binary.BigEndian.Uint64(headerBuf[off : off+8])
		off += 8
		price := binary.BigEndian.Uint64(headerBuf[off : off+8])
		off += 8
		timestamp := int64(binary.BigEndian.Uint64(headerBuf[off : off+8]))
		off += 8
		orderIDBytes := headerBuf[off : off+16]
		off += 16
		counterpartyLen := binary.BigEndian.Uint16(headerBuf[off : off+2])
		off += 2
		errStrLen := binary.BigEndian.Uint32(headerBuf[off : off+4])
		off += 4
		market := strings.TrimRight(string(headerBuf[off:off+8]), "\x00")

		totalVarLen := int(counterpartyLen) + int(errStrLen)
		var varBuf []byte
		if totalVarLen > 0 {
			varBuf = make([]byte, totalVarLen)
			if _, err := io.ReadFull(conn, varBuf); err != nil {
				log.Printf("Error reading report body: %v", err)
				return
			}
		}

		errStr, counterparty := "", ""
		if errStrLen > 0 {
			errStr = string(varBuf[:errStrLen])
		}
		if counterpartyLen > 0 {
			counterparty = string(varBuf[errStrLen:])
		}

		if msgType == aegisNet.ErrorReport {
			fmt.Printf("\n[SERVER ERROR] market=%s order=%x %s\n", market, orderIDBytes, errStr)
			continue
		}
		fmt.Printf("\n[EXECUTION] %s %s | Qty: %d | Price: %d | vs: %s | ts: %d\n",
			side, market, qty, price, counterparty, timestamp)
	}
}

func parseOrderID(s string) ([16]byte, error) {
	var out [16]byte
	id, err := common.ParseOrderID(s)
	if err != nil {
		return out, err
	}
	copy(out[:], id[:])
	return out, nil
}

// reportFixedHeaderLen matches Report's fixed-width fields:
// 1+1+8+8+8+16+2+4+8 = 56 bytes.
const reportFixedHeaderLen = 56
