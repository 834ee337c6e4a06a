package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"openreserve/core/state"
	nativecommon "openreserve/native/common"
	"openreserve/native/reserve"
	"openreserve/observability/logging"
	"openreserve/observability/otel"
	"openreserve/services/reserved/config"
	"openreserve/services/reserved/server"
	"openreserve/storage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "services/reserved/config.yaml", "path to the reserved configuration file")
	flag.Parse()

	env := os.Getenv("RESERVED_ENV")
	logger := logging.Setup("reserved", env)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "reserved",
			Environment: env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			logger.Error("initialise telemetry", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
			}
		}()
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open database", slog.String("path", cfg.DataDir), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	authority, err := nativecommon.NewCapability()
	if err != nil {
		logger.Error("mint authority capability", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ledger := reserve.NewEngine()
	ledger.SetState(manager)
	ledger.SetAuthority(authority)

	for _, asset := range cfg.Assets {
		err := manager.WithTransaction(func() error {
			return ledger.RegisterAsset(asset)
		})
		switch {
		case err == nil:
			logger.Info("registered asset", slog.String("asset", asset))
		case errors.Is(err, reserve.ErrAlreadyRegistered):
			// Already present from a previous run.
		default:
			logger.Error("register asset", slog.String("asset", asset), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	srv := server.New(logger, ledger, manager, authority, cfg)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("reserved listening", slog.String("address", cfg.ListenAddress))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", slog.String("error", err.Error()))
	}
}
