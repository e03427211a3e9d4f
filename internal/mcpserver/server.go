// Package mcpserver exposes the dispatcher as MCP tools over stdio or
// streamable HTTP.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/umarmk/mcp-server/internal/dispatch"
	"github.com/umarmk/mcp-server/internal/logger"
	"github.com/umarmk/mcp-server/internal/metrics"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds transport settings.
type Config struct {
	Name        string
	Version     string
	Transport   string // stdio or http
	HTTPAddr    string
	CORSOrigins []string
}

// Server owns the MCP server and its tool registrations.
type Server struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
	log        *logger.Logger
	mcp        *mcp.Server
}

// New creates the MCP server and registers every tool on it.
func New(cfg Config, d *dispatch.Dispatcher, m *metrics.Metrics, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		metrics:    m,
		log:        log,
		mcp:        mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
	}
	s.registerTools()
	return s
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Run serves on the configured transport until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case "", TransportStdio:
		s.log.Info("serving MCP over stdio")
		return s.mcp.Run(ctx, &mcp.StdioTransport{})
	case TransportHTTP:
		return s.serveHTTP(ctx)
	default:
		return fmt.Errorf("unknown transport %q", s.cfg.Transport)
	}
}
