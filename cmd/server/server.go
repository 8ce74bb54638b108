package main

import (
	"context"
	"flag"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"aegis/internal/engine"
	"aegis/internal/net"
)

func main() {
	address := flag.String("address", "0.0.0.0", "listen address")
	port := flag.Int("port", 9001, "listen port")
	markets := flag.String("markets", "BTC-USD,ETH-USD", "comma-separated markets to pre-create")
	flag.Parse()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	var marketIDs []engine.MarketID
	for _, m := range strings.Split(*markets, ",") {
		if m == "" {
			continue
		}
		marketIDs = append(marketIDs, engine.MarketID(m))
	}

	// Setup the matching engine and the TCP server demonstrating it.
	eng := engine.New(engine.DefaultConfig(), marketIDs...)
	srv := net.New(*address, *port, eng)
	eng.SetReporter(srv)

	log.Info().Strs("markets", strings.Split(*markets, ",")).Msg("starting aegis server")

	go srv.Run(ctx)
	// Block on running the server.
	<-ctx.Done()
}
