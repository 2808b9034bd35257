// Package server assembles the admin HTTP server: gin router, middleware
// stack and route table over the bridge and its terminal devices.
//
// Middleware order: request ID, recovery, request log, metrics, optional
// CORS, per-IP rate limit. /metrics serves the bridge's private Prometheus
// registry.
package server
