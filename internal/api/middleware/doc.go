// Package middleware provides the admin API's gin middleware.
//
// Stack, outermost first:
//   - RequestID: req_ ULID per request, echoed in X-Request-ID
//   - Recovery: panics become 500 responses carrying the request ID
//   - Logger: one zap line per request
//   - CORS: read access for dashboards on other origins
//   - RateLimit: per-IP token bucket with idle client eviction
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Recovery(logger))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
