// Package http implements the admin API handlers.
//
// Endpoints:
//   - GET  /                          service banner
//   - GET  /health                    open channel and device counts
//   - GET  /channels                  status of every channel
//   - GET  /channels/:index           status of one channel
//   - POST /channels/:index/unthrottle
//   - GET  /devices                   terminal devices
//   - POST /devices/:index/attach     reattach after a hangup
//   - GET  /metrics/json              metrics snapshot
//
// Prometheus exposition at /metrics is mounted by the server package.
package http
