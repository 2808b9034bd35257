// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components derive child loggers instead of creating their own:
//
//	logger := logging.NewDefault()
//	pumpLog := logger.Named("pump").ForChannel(27, "SMD_GPSNMEA")
//	pumpLog.Warn("short read", zap.Int("avail", 64), zap.Int("got", 60))
//
// Logs go to stderr by default so that stdout stays free for CLI output.
package logging
