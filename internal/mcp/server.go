// Package mcp provides an MCP (Model Context Protocol) server that exposes
// job replication, reference tests and food-web inspection as tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/atnsim/internal/engine"
	"github.com/nvandessel/atnsim/internal/jobs"
	"github.com/nvandessel/atnsim/internal/logging"
	"github.com/nvandessel/atnsim/internal/ratelimit"
)

// Server wraps the MCP SDK server with the simulation engine and job store.
type Server struct {
	server      *sdk.Server
	engine      *engine.Engine
	store       jobs.Store
	precision   int
	logger      *slog.Logger
	auditLogger *AuditLogger
	limiters    *ratelimit.Limiter
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "atnsim")
	Version string // Server version

	Engine *engine.Engine
	Store  jobs.Store

	// Precision is the decimal count of CSV cells returned by tools.
	Precision int
	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string
	// RateLimits budgets tool calls. Nil uses ratelimit.DefaultRules; an
	// empty map disables throttling.
	RateLimits map[string]ratelimit.Rule
	Logger     *slog.Logger
}

// NewServer creates a new MCP server with the simulation tools. The server
// takes ownership of the store.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("mcp server needs an engine")
	}
	if cfg.Store == nil {
		return nil, errors.New("mcp server needs a job store")
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:    mcpServer,
		engine:    cfg.Engine,
		store:     cfg.Store,
		precision: cfg.Precision,
		logger:    cfg.Logger,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	rules := cfg.RateLimits
	if rules == nil {
		rules = ratelimit.DefaultRules
	}
	s.limiters = ratelimit.New(rules)
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	s.registerResources()
	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close closes the store and the audit log.
func (s *Server) Close() error {
	err := s.store.Close()
	if aerr := s.auditLogger.Close(); err == nil {
		err = aerr
	}
	return err
}
