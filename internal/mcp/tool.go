package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/typeq/internal/eval"
	"github.com/mvp-joe/typeq/internal/extract"
	"github.com/mvp-joe/typeq/internal/packages"
	"github.com/mvp-joe/typeq/internal/project"
	"github.com/mvp-joe/typeq/pkg/typeq"
)

// ExtractFunc runs one extraction.
type ExtractFunc func(ctx context.Context, opts typeq.Options) (*typeq.Result, error)

// AddExtractTool registers the extract_equations tool with an MCP server.
func AddExtractTool(s *server.MCPServer, cfg *ServerConfig) {
	tool := mcp.NewTool(
		"extract_equations",
		mcp.WithDescription("Extract the equations of a Typst document, following its imports and includes, with the exact source text of each equation in reading order."),
		mcp.WithString("entry",
			mcp.Required(),
			mcp.Description("Entry .typ file, absolute or relative to the project root (e.g., 'main.typ')")),
		mcp.WithString("root",
			mcp.Description("Project root that references may not escape (default: the server's project root)")),
		mcp.WithString("strategy",
			mcp.Description("'syntax' follows literal imports and includes (default); 'eval' evaluates the document and also finds equations produced by functions")),
		mcp.WithString("target",
			mcp.Description("Node kind to extract: 'equation' (default) or 'raw'")),
		mcp.WithBoolean("offline",
			mcp.Description("Never download packages from the registry")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of items to return (default: all)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createExtractHandler(cfg))
}

// createExtractHandler creates the handler function for the extract_equations tool.
func createExtractHandler(cfg *ServerConfig) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, errResult := parseToolArguments(request)
		if errResult != nil {
			return errResult, nil
		}

		req, err := parseExtractRequest(request, argsMap)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		opts := cfg.options(req.Entry, req.Root)
		if req.Strategy != "" {
			opts.Strategy = req.Strategy
		}
		if req.Target != "" {
			opts.Target = req.Target
		}
		opts.Offline = opts.Offline || req.Offline

		result, err := cfg.Extract(ctx, opts)
		if err != nil {
			if isUserError(err) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, err
		}

		return marshalToolResponse(buildExtractResponse(result, req.Limit))
	}
}

func parseExtractRequest(request ArgumentGetter, argsMap map[string]interface{}) (*ExtractRequest, error) {
	if _, err := parseStringArg(argsMap, "entry", true); err != nil {
		return nil, err
	}
	var req ExtractRequest
	if err := coerceBindArguments(request, &req); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative, got %d", req.Limit)
	}
	return &req, nil
}

func buildExtractResponse(result *typeq.Result, limit int) *ExtractResponse {
	items := result.Items
	truncated := false
	if limit > 0 && len(items) > limit {
		items = items[:limit]
		truncated = true
	}

	response := &ExtractResponse{
		Items:     make([]ExtractedItem, len(items)),
		Files:     result.Files,
		Total:     len(result.Items),
		Truncated: truncated,
	}
	for i, it := range items {
		response.Items[i] = ExtractedItem{Index: i + 1, File: it.File, Text: it.Text, Exact: it.Exact}
	}
	if response.Files == nil {
		response.Files = []string{}
	}
	return response
}

// absPath resolves path against base unless it is already absolute.
func absPath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// isUserError reports whether err describes a problem with the document or
// the request, which is shown to the caller as a tool error, rather than a
// failure of the server itself.
func isUserError(err error) bool {
	for _, target := range []error{
		project.ErrNotFound,
		project.ErrOutsideRoot,
		project.ErrUnreadable,
		eval.ErrCompileFailure,
		extract.ErrUnknownStrategy,
		extract.ErrUnsupportedTarget,
		packages.ErrPackageNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
