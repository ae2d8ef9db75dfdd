// Command flowd runs a standalone flow transport endpoint: it accepts
// inbound connections, answers the built-in well-known endpoints, and
// optionally exposes a Prometheus /metrics endpoint. Structured as the
// teacher's cmd/outline-cli-ws/main.go: flag-parsed config path, stdlib log
// for top-level lifecycle, a signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/endyjasmi/foundationdb/config"
	"github.com/endyjasmi/foundationdb/flow"
	"github.com/endyjasmi/foundationdb/flow/metrics"
	"github.com/endyjasmi/foundationdb/flow/schema"
	"github.com/endyjasmi/foundationdb/flow/schema/testschema"
	"github.com/endyjasmi/foundationdb/uid"
	"github.com/endyjasmi/foundationdb/wire"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "c", "flowd.yaml", "config path")
	flag.Parse()

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enable {
		metrics.Enable()
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Addr); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		log.Printf("metrics listening on %s", cfg.Metrics.Addr)
	}

	local := wire.ConnectPacket{ProtocolVersion: wire.ProtocolVersion}
	if cfg.Wire.EnableChecksum {
		local.Features = wire.FeatureChecksumEnabled
	}

	replyExtractor := schema.ReplyExtractorFunc(testschema.ReplyPromise)

	router := flow.NewRouter(flow.RouterConfig{
		Handlers: map[uid.WLTOKEN]flow.Handler{
			uid.WLTOKENPingPacket:         flow.PingHandler(replyExtractor),
			uid.WLTOKENNetworkTest:        flow.NetworkTestHandler(logger),
			uid.WLTOKENReservedForTesting: flow.NetworkTestHandler(logger),
		},
		Names:   testschema.DefaultNames,
		Extract: replyExtractor,
		Logger:  logger,
	})

	ln, err := flow.NewListener(cfg.Listen.Addr, flow.ListenerConfig{
		Local:      local,
		Router:     router,
		MaxPayload: cfg.Wire.MaxPayload,
		Logger:     logger,
		OnAccept: func(h *flow.ConnectionHandler) {
			metrics.ConnectionAccepted()
			go func() {
				<-h.Done()
				metrics.ConnectionClosed()
				if err := h.Err(); err != nil {
					logger.Debug("connection closed", zap.String("peer", h.Addr()), zap.Error(err))
				}
			}()
		},
	})
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.Listen.Addr, err)
	}
	log.Printf("flowd listening on %s", ln.Addr())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutting down...")
		cancel()
		_ = ln.Close()
	}()

	if err := ln.Serve(ctx); err != nil && err != flow.ErrListenerClosed {
		log.Printf("serve: %v", err)
	}
}
