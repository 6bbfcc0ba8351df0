package main

import (
	"context"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"

	"pumpfun-relay/internal/config"
	"pumpfun-relay/internal/extract"
	"pumpfun-relay/internal/geyser"
	"pumpfun-relay/internal/hub"
	"pumpfun-relay/internal/observability"
	"pumpfun-relay/internal/relaytcp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	if err := config.Load(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.LogLevel(),
	}))
	slog.SetDefault(logger)

	// TLS trust for the geyser connection comes from the host. Without it
	// no upstream connection can ever succeed, so abort before serving.
	roots, err := x509.SystemCertPool()
	if err != nil {
		return fmt.Errorf("load system certificate pool: %w", err)
	}

	if metricsAddr := config.Global.String(config.METRICS_ADDR); metricsAddr != "" {
		go serveMetrics(metricsAddr, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := hub.New(hub.DefaultCapacity)
	extractor := extract.NewExtractor(config.Global.String(config.PROGRAM_ID))

	subscriber := geyser.NewSubscriber(geyser.Config{
		Endpoint:  config.Global.String(config.GRPC_ENDPOINT),
		Token:     config.Global.String(config.GRPC_TOKEN),
		ProgramID: config.Global.String(config.PROGRAM_ID),
	}, roots, func(tx *pb.SubscribeUpdateTransaction) {
		observability.RecordTransactionReceived()

		rec := extractor.Extract(tx)
		if rec == nil {
			return
		}
		observability.RecordCreateExtracted(rec.IsCreateV2)
		logger.Info("create detected",
			slog.String("mint", rec.MintAddress),
			slog.String("creator", rec.CreatorAddress),
			slog.String("signature", rec.Signature),
			slog.Uint64("slot", rec.Slot),
			slog.Bool("create_v2", rec.IsCreateV2),
		)

		if h.Publish(rec) == 0 {
			observability.RecordIdlePublish()
			logger.Warn("no subscribers attached, dropping record",
				slog.String("mint", rec.MintAddress))
			return
		}
		observability.RecordPublished()
	}, logger)

	server := relaytcp.NewServer(h, logger)
	if err := server.Listen(config.Global.String(config.TCP_ADDR)); err != nil {
		return err
	}

	go subscriber.Run(ctx)

	// On the first signal stop accepting and close the hub so every writer
	// drains its retained records and exits.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
		h.Close()
		server.Close()
	}()

	err = server.Serve(ctx)
	logger.Info("shutdown complete")
	return err
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	logger.Info("metrics server listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", slog.Any("error", err))
	}
}
