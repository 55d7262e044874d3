package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/opsboard-relay/internal/audit"
	"github.com/DoyleJ11/opsboard-relay/internal/config"
	"github.com/DoyleJ11/opsboard-relay/internal/httpapi"
	"github.com/DoyleJ11/opsboard-relay/internal/hub"
	"github.com/DoyleJ11/opsboard-relay/internal/metrics"
	"github.com/DoyleJ11/opsboard-relay/internal/presence"
	"github.com/DoyleJ11/opsboard-relay/internal/protocol"
	"github.com/DoyleJ11/opsboard-relay/internal/pubsub"
	"github.com/DoyleJ11/opsboard-relay/internal/telemetry"
	"github.com/DoyleJ11/opsboard-relay/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	stream := telemetry.New(cfg.TelemetryCapacity)
	logger, err := newLogger(cfg, stream)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger, stream); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// newLogger tees the process log into the backend telemetry stream.
func newLogger(cfg config.Config, stream *telemetry.Stream) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	base, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, stream.Core(zapcore.InfoLevel))
	})), nil
}

func run(cfg config.Config, logger *zap.Logger, stream *telemetry.Stream) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewCollector("opsboard")
	bus := pubsub.New(logger, m.Evicted)
	stream.Attach(bus)

	h := hub.NewHub(ctx, bus, m, logger)
	defer h.Shutdown()

	pr := presence.NewRegistry()
	al := audit.New(cfg.AuditCapacity)
	proto := protocol.NewHandler(h, bus, pr, al, m, logger)

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Store:     h,
		Bus:       bus,
		Presence:  pr,
		Audit:     al,
		Telemetry: stream,
		Metrics:   m,
		Logger:    logger,
		Protocol:  proto,
		WSOptions: ws.Options{
			OutboxSize:     cfg.OutboxSize,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			OriginPatterns: cfg.AllowedOrigins,
		},
		GameSecret:     cfg.GameServerSecret,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
	}
	if cfg.GameServerSecret == "" {
		logger.Warn("GAME_SERVER_SECRET is empty; game server routes will deny every request")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("relay listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
