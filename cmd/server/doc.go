// Package main is the entry point for the scriptbox server.
//
// The scriptbox server accepts untrusted Python scripts that define a main()
// function, runs them under a strict time budget (optionally inside nsjail)
// and returns main()'s return value plus captured output. It serves a REST API
// over HTTP, with the MCP transport mounted at /mcp, or MCP alone on stdio.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
