// Package server assembles the dashboard daemon.
//
// New wires the subsystems in dependency order:
//  1. Metrics collector and event bus
//  2. Data cache over its durable sqlite store (warm started from disk)
//  3. Source poller manager with the shared outbound HTTP client
//  4. Plugin registry, seeded with built-ins plus discovered manifests
//  5. Widget manager and layout store, restoring the saved workspace
//  6. Background jobs: periodic layout checkpoint and cache sweep
//  7. Gin router with recovery, request logging, metrics, and CORS
//
// Optional pieces degrade instead of failing startup: a broken cache
// database drops persistence, an unreadable layout starts empty, and a
// rejected plugin manifest is skipped.
//
// Shutdown reverses the order: drain HTTP, stop jobs, checkpoint the
// workspace, then close widgets, pollers, cache, and bus.
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	logger, _ := logging.New(logging.Config{Level: cfg.Logging.Level})
//	srv, err := server.New(cfg, logger)
//	if err != nil {
//	    logger.Fatal("startup failed", zap.Error(err))
//	}
//	go srv.Run()
//	...
//	srv.Shutdown(ctx)
package server
