// Package logging provides structured logging with per-module log levels.
//
// Loggers are obtained per module and carry a "module" attribute:
//
//	logger := logging.GetLogger("decoder")
//	logger.Info("Stream opened", "address", addr, "width", w, "height", h)
//
// Initialize configures the global level, the output format (text or json)
// and per-module overrides. Loggers created before Initialize are rebuilt so
// that they pick up the configured handler chain.
//
// # Output
//
// Records fan out to every available destination:
//
//	stdout  - when a terminal, pipe, socket or regular file is attached
//	journal - when systemd-journald is reachable (SYSLOG_IDENTIFIER=ffview)
//	history - an in-memory ring buffer served by the API at /api/logs
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	decoder = "debug"
//	mirror = "warn"
//
// With journald:
//
//	journalctl -t ffview -f
//	journalctl -t ffview MODULE=decoder
package logging
