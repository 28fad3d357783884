// Package mcpserver exposes cohesion and coupling analysis as Model Context
// Protocol tools.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/cohere/internal/service/analysis"
)

// Server wraps the MCP server and registers all cohere tools.
type Server struct {
	server *mcp.Server
	svc    *analysis.Service
}

// NewServer creates a new MCP server with all cohere tools registered. The
// analysis service is shared by every tool call so that parses are reused.
func NewServer(version string, svc *analysis.Service) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "cohere",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, svc: svc}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_cohesion",
		Description: describeCohesion(),
	}, s.handleAnalyzeCohesion)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_coupling",
		Description: describeCoupling(),
	}, s.handleAnalyzeCoupling)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "coupling_graph",
		Description: describeGraph(),
	}, s.handleCouplingGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "class_relation",
		Description: describeRelation(),
	}, s.handleClassRelation)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "call_path",
		Description: describeCallPath(),
	}, s.handleCallPath)
}
