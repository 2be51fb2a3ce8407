package mcp

import (
	"context"

	"github.com/lukman83/adscout/internal/api"
	"github.com/lukman83/adscout/internal/store"
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// Deps are the services behind the MCP tools.
type Deps struct {
	Listings    api.Listings
	Runner      api.Runner
	Schedule    *store.ScheduleFile
	Scheduler   api.Scheduler // optional
	BaseContext context.Context
	Validator   *api.Validator
}

// NewServer creates an MCP server with all tools registered.
func NewServer(d Deps) *server.MCPServer {
	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}
	s := server.NewMCPServer(
		"adscout",
		Version,
		server.WithToolCapabilities(true),
	)
	registerTools(s, &tools{Deps: d})
	return s
}

// Serve runs the MCP server over stdio until stdin closes.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
