package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/typeq/internal/depgraph"
	"github.com/mvp-joe/typeq/internal/packages"
	"github.com/mvp-joe/typeq/internal/world"
)

// AddDepsTool registers the typst_deps tool with an MCP server.
func AddDepsTool(s *server.MCPServer, cfg *ServerConfig) {
	tool := mcp.NewTool(
		"typst_deps",
		mcp.WithDescription("List the files a Typst document imports or includes, the links between them, and any include cycles."),
		mcp.WithString("entry",
			mcp.Required(),
			mcp.Description("Entry .typ file, absolute or relative to the project root")),
		mcp.WithString("root",
			mcp.Description("Project root that references may not escape (default: the server's project root)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createDepsHandler(cfg))
}

func createDepsHandler(cfg *ServerConfig) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, errResult := parseToolArguments(request)
		if errResult != nil {
			return errResult, nil
		}
		entry, err := parseStringArg(argsMap, "entry", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		root, err := parseStringArg(argsMap, "root", false)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		opts := cfg.options(entry, root)
		locator := packages.NewLocator(packages.Config{
			DataDir:  opts.PackageDataDir,
			CacheDir: opts.PackageCacheDir,
			Registry: opts.Registry,
			Offline:  opts.Offline,
		}, packages.NewHTTPDownloader(true))

		response, err := deps(ctx, opts.Entry, opts.Root, locator)
		if err != nil {
			if isUserError(err) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, err
		}
		return marshalToolResponse(response)
	}
}

func deps(ctx context.Context, entry, root string, locator *packages.Locator) (*DepsResponse, error) {
	w, err := world.Open(ctx, entry, root, locator)
	if err != nil {
		return nil, err
	}
	g, err := depgraph.Build(ctx, w)
	if err != nil {
		return nil, err
	}
	return buildDepsResponse(g)
}

func buildDepsResponse(g *depgraph.Graph) (*DepsResponse, error) {
	cycles, err := g.Cycles()
	if err != nil {
		return nil, err
	}

	response := &DepsResponse{
		Files:  make([]string, 0, len(g.Files())),
		Edges:  make([]DepsEdge, 0, len(g.Edges())),
		Cycles: make([][]string, 0, len(cycles)),
	}
	for _, f := range g.Files() {
		response.Files = append(response.Files, f.String())
	}
	for _, e := range g.Edges() {
		response.Edges = append(response.Edges, DepsEdge{From: e.From.String(), To: e.To.String(), Role: e.Role.String()})
	}
	for _, cycle := range cycles {
		names := make([]string, len(cycle))
		for i, f := range cycle {
			names[i] = f.String()
		}
		response.Cycles = append(response.Cycles, names)
	}
	return response, nil
}
