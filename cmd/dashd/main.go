package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/infrastructure/config"
	"github.com/inthisone/dashcore/internal/logging"
	"github.com/inthisone/dashcore/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	port := flag.String("port", "", "listen port (overrides DASH_PORT)")
	host := flag.String("host", "", "listen host (overrides DASH_HOST)")
	dataDir := flag.String("data-dir", "", "data directory (overrides DASH_DATA_DIR)")
	pluginDir := flag.String("plugin-dir", "", "plugin manifest directory (overrides DASH_PLUGIN_DIR)")
	dev := flag.Bool("dev", false, "development mode: console logs at debug level")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *pluginDir != "" {
		cfg.Plugins.Dir = *pluginDir
	}
	if *dev {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}
