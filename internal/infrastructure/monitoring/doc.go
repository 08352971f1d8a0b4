/*
Package monitoring provides Prometheus metrics for the dashboard daemon.

# Overview

One Metrics value is shared by every subsystem. It tracks HTTP requests,
source fetches, cache occupancy, widget lifecycle, event bus throughput,
layout snapshots, and WebSocket connections. A nil *Metrics is legal
everywhere; recording methods no-op so unit tests run without a registry.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record domain metrics
	metrics.RecordFetch("rest_api", "ok", elapsed)
	metrics.SetCacheOccupancy(entries, bytes)

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
