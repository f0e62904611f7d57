package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/typeq/internal/config"
	"github.com/mvp-joe/typeq/internal/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp [root]",
	Short: "Start the MCP server for equation extraction",
	Long: `Start the Model Context Protocol (MCP) server that lets coding assistants
extract equations from the Typst documents of a project.

The MCP server:
- Provides the extract_equations and typst_deps tools
- Resolves relative entry files against the project root
- Communicates via stdio (standard MCP transport)

The project root defaults to the current directory.

Example:
  typeq mcp`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	projectPath, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	if len(args) > 0 {
		if projectPath, err = filepath.Abs(args[0]); err != nil {
			return fmt.Errorf("invalid project root: %w", err)
		}
	}

	cfg, err := config.LoadConfigFromDir(projectPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// stdout carries the protocol
	fmt.Fprintf(os.Stderr, "typeq MCP Server\n")
	fmt.Fprintf(os.Stderr, "Project Root: %s\n", projectPath)
	fmt.Fprintf(os.Stderr, "Strategy: %s\n\n", cfg.Extract.Strategy)

	server, err := mcp.NewMCPServer(&mcp.ServerConfig{
		ProjectRoot: projectPath,
		Config:      cfg,
		Version:     Version,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if err := server.Serve(cmd.Context()); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
