package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raidwise/mechanics-server/internal/generator"
	"github.com/raidwise/mechanics-server/internal/retrieval"
	"github.com/raidwise/mechanics-server/internal/storage"
	"github.com/raidwise/mechanics-server/internal/store"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Engine    *retrieval.Engine
	Generator *generator.Generator
	Store     *store.MechanicStore
	Storage   *storage.QdrantStorage
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "raid-mechanics-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_mechanics",
		Description: "Semantically search raid and dungeon mechanics. Understands encounter positions like 'final boss' or 'second encounter'. Flow mechanics (overall encounter strategy) are ranked first.",
	}, makeSearchHandler(cfg.Engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_mechanics",
		Description: "Ask a natural-language question about game mechanics and get a generated answer grounded in the mechanics knowledge base.",
	}, makeAskHandler(cfg.Engine, cfg.Generator))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_collections",
		Description: "List all loaded dungeons and raids.",
	}, makeListHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the current status of the mechanics index: vector count, store size and loaded collections.",
	}, makeStatusHandler(cfg.Storage, cfg.Store))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
