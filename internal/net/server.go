package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"aegis/internal/common"
	"aegis/internal/engine"
	"aegis/internal/utils"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// ClientSession tracks one connected TCP session.
type ClientSession struct {
	conn net.Conn
}

// ClientMessage links a decoded message to the connection it arrived on.
type ClientMessage struct {
	clientAddress string
	message       Message
}

// Server is a thin TCP demonstration harness embedding an *engine.Engine,
// the way spec.md describes callers embedding the engine. It is not part
// of the matching engine's tested surface.
type Server struct {
	address            string
	port               int
	engine             *engine.Engine
	pool               utils.WorkerPool[net.Conn]
	cancel             context.CancelFunc
	clientSessions     map[string]ClientSession
	ownerAddress       map[string]string // owner id hex -> client address
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage
}

func New(address string, port int, eng *engine.Engine) *Server {
	return &Server{
		address:        address,
		port:           port,
		engine:         eng,
		pool:           utils.NewWorkerPool[net.Conn](defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
		ownerAddress:   make(map[string]string),
		clientMessages: make(chan ClientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}
			log.Info().Str("address", conn.RemoteAddr().String()).Msg("new client connected")
			s.addClientSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

// ReportTrades implements engine.Reporter: it writes one execution
// report to each side's connection, when that side's connection is still
// known. A counterparty with no tracked session (placed out-of-band, or
// already disconnected) is silently skipped — this demo harness does not
// persist reports for later delivery.
func (s *Server) ReportTrades(market engine.MarketID, takerSide common.Side, trades []common.Trade) {
	for _, trade := range trades {
		makerBuf, takerBuf := generateWireTradeReports(market, trade, takerSide)
		s.writeToOwner(trade.MakerOwnerID.String(), makerBuf)
		s.writeToOwner(trade.TakerOwnerID.String(), takerBuf)
	}
}

// ReportError implements engine.Reporter.
func (s *Server) ReportError(market engine.MarketID, orderID common.OrderID, err error) {
	log.Error().Str("market", string(market)).Str("orderID", orderID.String()).Err(err).Msg("order rejected")
}

// writeToOwner looks up which connection last placed an order as ownerID
// and writes buf to it. An owner with no tracked session (never placed
// an order on this connection, or already disconnected) is skipped.
func (s *Server) writeToOwner(ownerID string, buf []byte) {
	s.clientSessionsLock.Lock()
	address, ok := s.ownerAddress[ownerID]
	var client ClientSession
	if ok {
		client, ok = s.clientSessions[address]
	}
	s.clientSessionsLock.Unlock()
	if !ok {
		return
	}
	if _, err := client.conn.Write(buf); err != nil {
		log.Error().Err(err).Str("address", address).Msg("unable to send report")
		s.deleteClientSession(address)
	}
}

func (s *Server) reportErrorToClient(clientAddress string, orderID common.OrderID, market engine.MarketID, err error) {
	s.clientSessionsLock.Lock()
	client, ok := s.clientSessions[clientAddress]
	s.clientSessionsLock.Unlock()
	if !ok {
		return
	}
	buf := generateWireErrorReport(market, orderID, err)
	if _, werr := client.conn.Write(buf); werr != nil {
		log.Error().Err(werr).Str("address", clientAddress).Msg("unable to send error report")
		s.deleteClientSession(clientAddress)
	}
}

func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			if err := s.handleMessage(message); err != nil {
				log.Error().Err(err).Str("clientAddress", message.clientAddress).Msg("error handling message")
			}
		}
	}
}

func (s *Server) handleMessage(message ClientMessage) error {
	switch message.message.GetType() {
	case NewOrder:
		m, ok := message.message.(NewOrderMessage)
		if !ok {
			return ErrImproperConversion
		}
		order := m.Order()
		s.linkOwner(order.OwnerID.String(), message.clientAddress)
		if _, err := s.engine.PlaceOrder(m.Market, order); err != nil {
			s.reportErrorToClient(message.clientAddress, order.OrderID, m.Market, err)
			return err
		}
	case CancelOrder:
		m, ok := message.message.(CancelOrderMessage)
		if !ok {
			return ErrImproperConversion
		}
		if _, err := s.engine.CancelOrder(m.Market, m.OrderID, m.Side); err != nil {
			s.reportErrorToClient(message.clientAddress, m.OrderID, m.Market, err)
			return err
		}
	case Heartbeat:
		// Nothing to do: the connection's liveness is enough.
	case LogBook:
		for _, market := range s.engine.Markets() {
			log.Info().Str("market", string(market)).Msg("book present")
		}
	default:
		log.Error().Int("messageType", int(message.message.GetType())).Msg("invalid message type")
		return ErrInvalidMessageType
	}
	return nil
}

// handleConnection reads one message off conn, forwards it to
// sessionHandler, and re-queues itself so the pool keeps servicing this
// connection for subsequent messages.
func (s *Server) handleConnection(t *tomb.Tomb, conn net.Conn) error {
	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed setting deadline")
		return nil
	}

	buffer := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			s.deleteClientSession(conn.RemoteAddr().String())
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("error parsing message")
			s.pool.AddTask(conn)
			return nil
		}

		s.clientMessages <- ClientMessage{
			message:       message,
			clientAddress: conn.RemoteAddr().String(),
		}
		s.pool.AddTask(conn)
	}
	return nil
}

// linkOwner records that ownerID's orders arrive from clientAddress, so a
// later trade report addressed to ownerID can be routed back.
func (s *Server) linkOwner(ownerID, clientAddress string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	s.ownerAddress[ownerID] = clientAddress
}

func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{conn: conn}
}

func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	delete(s.clientSessions, address)
}
