// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// execute_python_script tool. It uses the mark3labs/mcp-go library to handle
// the protocol details and returns the same JSON document as the REST API.
//
// The server is served either on stdio or mounted at /mcp on the HTTP router,
// as configured by server.transport.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, engine)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or router.Handle("/mcp", server.HTTPHandler())
package mcpserver
