package mcp

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/vectorquery/internal/searcher"
	"github.com/dshills/vectorquery/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "vectorquery"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Defaults are applied to query tool calls that omit an argument.
type Defaults struct {
	NResult         int
	Include         types.IncludeSet
	Multiplier      float64
	UseAbsolutePath bool
	Reranker        string
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	searcher *searcher.Searcher
	defaults Defaults
	logger   *zap.Logger
}

// NewServer creates a new MCP server instance backed by s.
func NewServer(s *searcher.Searcher, defaults Defaults, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.NResult <= 0 {
		defaults.NResult = searcher.DefaultNResult
	}
	if len(defaults.Include) == 0 {
		defaults.Include = types.DefaultIncludeSet()
	}

	srv := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
		),
		searcher: s,
		defaults: defaults,
		logger:   logger,
	}
	srv.registerTools()
	return srv
}

// Serve runs the MCP server on stdin and stdout until ctx is cancelled or
// stdin is closed.
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen serves JSON-RPC messages read from in and writes responses to out.
// Cancellation of ctx is a clean shutdown. Index clients are opened per
// call, so there is nothing to release afterwards.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("serving MCP on stdio", zap.String("name", ServerName), zap.String("version", ServerVersion))

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))

	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		s.logger.Info("MCP server stopped")
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(queryTool(), s.handleQuery)
	s.mcp.AddTool(listCollectionsTool(), s.handleListCollections)
}
