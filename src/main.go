package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/marianofino/pocket-mqtt/src/config"
	"github.com/marianofino/pocket-mqtt/src/mqttbroker"
	"github.com/marianofino/pocket-mqtt/src/security/crypto"
	"github.com/marianofino/pocket-mqtt/src/store"
	"github.com/marianofino/pocket-mqtt/src/telemetry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()
	}()

	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.Kitchen,
		}),
	))
	l := slog.Default().With("context", "main")

	cfg, err := config.Load()
	if err != nil {
		fatal(l, err, "failed to load configuration")
	}

	pepper, err := crypto.LoadPepper(cfg.TenantTokenPepper, cfg.IsProduction())
	if err != nil {
		fatal(l, err, "failed to load tenant token pepper")
	}

	pool, err := store.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		fatal(l, err, "failed to connect to database")
	}
	defer pool.Close()

	deviceStore := store.NewPgDeviceCredentialStore(pool)
	telemetryStore := store.NewPgTelemetryStore(pool)

	batcher := telemetry.New(telemetryStore, telemetry.Config{
		MaxBufferSize: cfg.BatchMaxSize,
		FlushInterval: time.Duration(cfg.BatchFlushIntervalMs) * time.Millisecond,
		MaxRetries:    cfg.BatchMaxRetries,
	}, l)
	batcher.Start()

	server, err := mqttbroker.New(mqttbroker.Config{
		Port:          cfg.MQTTPort,
		WSPort:        cfg.MQTTWSPort,
		MaxPayloadLen: cfg.MaxPayloadBytes,
	}, deviceStore, pepper, batcher, l)
	if err != nil {
		fatal(l, err, "failed to construct mqtt server")
	}

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- server.Start()
	}()

	select {
	case err := <-serveErrCh:
		if err != nil {
			fatal(l, err, "mqtt server exited unexpectedly")
		}
	case <-ctx.Done():
		l.Info("shutdown signal received, stopping subsystems")
	}

	var shutdownErrs []error
	if err := server.Stop(); err != nil {
		shutdownErrs = append(shutdownErrs, err)
	}
	if err := batcher.Stop(context.Background()); err != nil {
		shutdownErrs = append(shutdownErrs, err)
	}

	if joined := errors.Join(shutdownErrs...); joined != nil {
		l.Error("errors during shutdown", "error", joined)
	}

	l.Info("graceful shutdown completed")
}

func fatal(l *slog.Logger, err error, msg string) {
	l.Error(msg, "error", err)
	os.Exit(1)
}
