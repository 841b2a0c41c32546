// Package httpapi exposes the execution engine over a JSON REST API.
//
// Routes:
//
//	GET  /         API documentation
//	GET  /health   liveness probe
//	POST /execute  run {"script": "..."} and return {"result", "stdout", "error"}
//	GET  /metrics  Prometheus metrics
//	     /mcp      MCP streamable HTTP transport, when configured
package httpapi
