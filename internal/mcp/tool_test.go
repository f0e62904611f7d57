package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typeq/internal/config"
	"github.com/mvp-joe/typeq/internal/project"
	"github.com/mvp-joe/typeq/pkg/typeq"
)

// Test Plan for MCP tools:
// - NewMCPServer requires a project root and fills defaults
// - extract_equations resolves relative entries against the project root
// - Request arguments override configured strategy, target and offline mode
// - limit truncates items but keeps the total
// - Missing entry and malformed arguments are tool errors
// - Document errors are tool errors; other failures are Go errors
// - The real extractor and typst_deps work on a project on disk

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args interface{}) (*mcp.CallToolResult, error) {
	t.Helper()
	return handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "should be text content")
	return textContent.Text
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func TestNewMCPServer(t *testing.T) {
	t.Parallel()

	_, err := NewMCPServer(nil)
	assert.Error(t, err)

	cfg := &ServerConfig{ProjectRoot: t.TempDir()}
	s, err := NewMCPServer(cfg)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NotNil(t, cfg.Config)
	assert.NotNil(t, cfg.Extract)
	assert.Equal(t, "dev", cfg.Version)
}

func TestExtractHandler_PassesOptions(t *testing.T) {
	t.Parallel()

	var got typeq.Options
	cfg := &ServerConfig{
		ProjectRoot: "/proj",
		Config:      config.Default(),
		Extract: func(ctx context.Context, opts typeq.Options) (*typeq.Result, error) {
			got = opts
			return &typeq.Result{
				Items: []typeq.Item{
					{File: "main.typ", Text: "$a$", Exact: true},
					{File: "main.typ", Text: "[fallback] b", Exact: false},
					{File: "ch/one.typ", Text: "$c$", Exact: true},
				},
				Files: []string{"main.typ", "ch/one.typ"},
			}, nil
		},
	}

	result, err := callTool(t, createExtractHandler(cfg), map[string]interface{}{
		"entry":    "main.typ",
		"strategy": "eval",
		"offline":  true,
		"limit":    float64(2),
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	assert.Equal(t, filepath.Join("/proj", "main.typ"), got.Entry)
	assert.Equal(t, "/proj", got.Root)
	assert.Equal(t, "eval", got.Strategy)
	assert.Equal(t, "equation", got.Target)
	assert.True(t, got.Offline)
	assert.True(t, got.Quiet)

	var response ExtractResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, 3, response.Total)
	assert.True(t, response.Truncated)
	assert.Equal(t, []ExtractedItem{
		{Index: 1, File: "main.typ", Text: "$a$", Exact: true},
		{Index: 2, File: "main.typ", Text: "[fallback] b"},
	}, response.Items)
	assert.Equal(t, []string{"main.typ", "ch/one.typ"}, response.Files)
}

func TestExtractHandler_ArgumentErrors(t *testing.T) {
	t.Parallel()

	cfg := &ServerConfig{ProjectRoot: "/proj", Config: config.Default(), Extract: typeq.Extract}
	handler := createExtractHandler(cfg)

	result, err := callTool(t, handler, "invalid string instead of map")
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid arguments format")

	result, err = callTool(t, handler, map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "entry parameter is required")

	result, err = callTool(t, handler, map[string]interface{}{"entry": "main.typ", "limit": float64(-1)})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "limit cannot be negative")
}

func TestExtractHandler_ErrorClassification(t *testing.T) {
	t.Parallel()

	fail := func(err error) *ServerConfig {
		return &ServerConfig{
			ProjectRoot: "/proj",
			Config:      config.Default(),
			Extract: func(context.Context, typeq.Options) (*typeq.Result, error) {
				return nil, err
			},
		}
	}
	args := map[string]interface{}{"entry": "main.typ"}

	result, err := callTool(t, createExtractHandler(fail(&project.FileError{Kind: project.ErrNotFound, Path: "x.typ"})), args)
	require.NoError(t, err, "document errors are tool errors")
	assert.True(t, result.IsError)

	result, err = callTool(t, createExtractHandler(fail(errors.New("disk on fire"))), args)
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestExtractHandler_RealProject(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.typ":      "Energy $E_1$\n#include \"parts/sub.typ\"",
		"parts/sub.typ": "$E_2$",
	})
	s, err := NewMCPServer(&ServerConfig{ProjectRoot: root})
	require.NoError(t, err)

	result, err := callTool(t, createExtractHandler(s.config), map[string]interface{}{"entry": "main.typ"})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var response ExtractResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, []ExtractedItem{
		{Index: 1, File: "main.typ", Text: "$E_1$", Exact: true},
		{Index: 2, File: "parts/sub.typ", Text: "$E_2$", Exact: true},
	}, response.Items)

	result, err = callTool(t, createExtractHandler(s.config), map[string]interface{}{"entry": "missing.typ"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "missing.typ")
}

func TestDepsHandler(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.typ": "#import \"lib.typ\": *\n#include \"a.typ\"",
		"lib.typ":  "",
		"a.typ":    "#include \"main.typ\"",
	})
	cfg := &ServerConfig{ProjectRoot: root, Config: config.Default()}

	result, err := callTool(t, createDepsHandler(cfg), map[string]interface{}{"entry": "main.typ"})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var response DepsResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, []string{"main.typ", "lib.typ", "a.typ"}, response.Files)
	assert.Equal(t, []DepsEdge{
		{From: "main.typ", To: "lib.typ", Role: "import"},
		{From: "main.typ", To: "a.typ", Role: "include"},
		{From: "a.typ", To: "main.typ", Role: "include"},
	}, response.Edges)
	assert.Equal(t, [][]string{{"main.typ", "a.typ"}}, response.Cycles)

	result, err = callTool(t, createDepsHandler(cfg), map[string]interface{}{"entry": "nope.typ"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
