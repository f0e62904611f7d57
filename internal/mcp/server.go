// Package mcp serves typeq's extraction over the Model Context Protocol.
package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/typeq/internal/config"
	"github.com/mvp-joe/typeq/pkg/typeq"
)

// ServerName is the MCP server name reported to clients.
const ServerName = "typeq-mcp"

// ServerConfig configures the MCP server.
type ServerConfig struct {
	ProjectRoot string         // relative entries and the default root resolve here
	Config      *config.Config // extraction and package defaults
	Version     string
	Extract     ExtractFunc // typeq.Extract if nil
}

// options builds extraction options for one request.
func (c *ServerConfig) options(entry, root string) typeq.Options {
	if root == "" {
		root = c.ProjectRoot
	}
	return typeq.Options{
		Entry:           absPath(c.ProjectRoot, entry),
		Root:            absPath(c.ProjectRoot, root),
		Strategy:        c.Config.Extract.Strategy,
		Target:          c.Config.Extract.Target,
		PackageDataDir:  c.Config.Packages.DataDir,
		PackageCacheDir: c.Config.Packages.CacheDir,
		Registry:        c.Config.Packages.Registry,
		Offline:         c.Config.Packages.Offline,
		Quiet:           true, // stdout carries the protocol
	}
}

// MCPServer manages the MCP server lifecycle.
type MCPServer struct {
	config *ServerConfig
	mcp    *server.MCPServer
}

// NewMCPServer creates a new MCP server with the extract_equations and
// typst_deps tools registered.
func NewMCPServer(cfg *ServerConfig) (*MCPServer, error) {
	if cfg == nil || cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("project root is required")
	}
	if cfg.Config == nil {
		cfg.Config = config.Default()
	}
	if cfg.Extract == nil {
		cfg.Extract = typeq.Extract
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		cfg.Version,
		server.WithToolCapabilities(true),
	)

	AddExtractTool(mcpServer, cfg)
	AddDepsTool(mcpServer, cfg)

	return &MCPServer{
		config: cfg,
		mcp:    mcpServer,
	}, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *MCPServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting MCP server on stdio (project root: %s)...", s.config.ProjectRoot)
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	select {
	case <-sigCh:
		log.Printf("Received shutdown signal, stopping gracefully...")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
