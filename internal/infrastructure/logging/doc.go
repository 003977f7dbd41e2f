// Package logging provides structured logging for Board Sync Core.
//
// This package wraps Go's standard log/slog package so that the discovery
// scheduler, the sync orchestrator and the API all log with the same shape.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("board").Info("board created", "key", key)
//
// # Security
//
// Never log the board web-workflow password or API tokens.
package logging
