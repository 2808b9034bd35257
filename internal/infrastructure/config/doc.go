// Package config provides 12-factor configuration management for chanbridge.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables.
//
// Configuration Sections:
//   - Bridge: table size, transfer buffer, workers, suspend-inhibit window, keep-warm default
//   - Transport: loopback or websocket peer
//   - Inhibit: memory, sysfs or none
//   - Device: pseudo-terminal directory, naming and watermarks
//   - Admin: HTTP admin server and its rate limit
//   - Logging: log level and output format
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("admin API on %s\n", cfg.AdminAddr())
package config
