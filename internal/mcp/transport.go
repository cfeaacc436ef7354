package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the streamable HTTP transport.
type HTTPHandlerOptions struct {
	// Stateless disables session management. The mechanics tools never make
	// server-to-client requests, so stateless mode is safe when sessions are
	// not wanted.
	Stateless bool
}

// NewHTTPHandler exposes the server over the streamable HTTP transport,
// mountable on any mux path (the server binary mounts it at /mcp).
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}

	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{
		Stateless: opts.Stateless,
	})
}
