// Package logger provides structured logging capabilities.
//
// The logger package builds the zap logger used across the service. Output
// always goes to stderr because stdout is reserved for the MCP stdio
// transport.
//
// Usage:
//
//	logger, err := logger.New("production", "info")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger.Info("Application started")
//	logger.Error("An error occurred", zap.Error(err))
package logger
