// Package logging provides structured logging for Thingy Gateway.
//
// It wraps Go's standard log/slog package so every component logs with
// the same handler, level filtering and default fields (service, version).
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("api server listening", "address", addr)
//	logger.Error("mqtt publish failed", "error", err)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
