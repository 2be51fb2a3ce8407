package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
)

// Handler serves the MCP server over streamable HTTP. Authentication is
// applied by the router it is mounted on.
func Handler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s, server.WithStateLess(true))
}
