/*
Package monitoring provides Prometheus metrics for the bridge.

# Overview

Every Metrics value owns a private prometheus.Registry carrying the Go and
process collectors plus the chanbridge_* series: open/close counts, open
instances, bytes moved in each direction, write truncations, pump runs and
duration, protocol faults, throttle stops, hangups and breaker transitions.
A small JSON snapshot mirrors the headline numbers for the admin API.

# Usage

	metrics := monitoring.NewMetrics()

	// Admin router
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Data path
	timer := monitoring.NewTimer(metrics, "SMD_DS")
	// ... drain ...
	timer.Stop()
*/
package monitoring
