package explore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typeq/internal/project"
	"github.com/mvp-joe/typeq/internal/syntax"
	"github.com/mvp-joe/typeq/internal/world"
)

// Test Plan for Explorer:
// - Included files are explored at their inclusion point (E1 before E2)
// - Diamond inclusion visits the shared file once and emits its nodes once
// - Mutual inclusion terminates without error, visiting each file once
// - Interleaving: nodes after an import come after the imported file's nodes
// - Computed and package targets are skipped silently
// - A missing or outside-root link aborts the exploration without results
// - OnEdge reports every resolved link, including repeated ones
// - The target kind is configurable
// - A cancelled context stops exploration

func setup(t *testing.T, files map[string]string) *world.World {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	w, err := world.Open(context.Background(), filepath.Join(root, "main.typ"), root, nil)
	require.NoError(t, err)
	return w
}

type pair struct{ file, text string }

func pairs(res *Result) []pair {
	out := make([]pair, len(res.Found))
	for i, f := range res.Found {
		out[i] = pair{f.File.String(), f.Text()}
	}
	return out
}

func displays(ids []project.FileID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func TestExplore_IncludeOrder(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ":      "First $E_1$\n#include \"parts/sub.typ\"",
		"parts/sub.typ": "Then $E_2$",
	})

	res, err := New(w, syntax.Equation).Explore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []pair{{"main.typ", "$E_1$"}, {"parts/sub.typ", "$E_2$"}}, pairs(res))
	assert.Equal(t, []string{"main.typ", "parts/sub.typ"}, displays(res.Files))
}

func TestExplore_Diamond(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "#include \"b.typ\"\n#include \"c.typ\"",
		"b.typ":    "$b$ #include \"d.typ\"",
		"c.typ":    "#include \"/d\" $c$",
		"d.typ":    "$d$",
	})

	res, err := New(w, syntax.Equation).Explore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []pair{
		{"b.typ", "$b$"},
		{"d.typ", "$d$"},
		{"c.typ", "$c$"},
	}, pairs(res))
	assert.Equal(t, []string{"main.typ", "b.typ", "d.typ", "c.typ"}, displays(res.Files))
}

func TestExplore_MutualInclusion(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ":  "$a$ #include \"other.typ\"",
		"other.typ": "$b$ #include \"main.typ\"",
	})

	res, err := New(w, syntax.Equation).Explore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []pair{{"main.typ", "$a$"}, {"other.typ", "$b$"}}, pairs(res))
	assert.Len(t, res.Files, 2)
}

func TestExplore_ImportInterleaving(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ":     "$x$\n#import \"lib/defs.typ\": sq\n$y$",
		"lib/defs.typ": "#let sq(v) = $v^2$\n#import \"../shared.typ\"",
		"shared.typ":   "$s$",
	})

	res, err := New(w, syntax.Equation).Explore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []pair{
		{"main.typ", "$x$"},
		{"lib/defs.typ", "$v^2$"},
		{"shared.typ", "$s$"},
		{"main.typ", "$y$"},
	}, pairs(res))
}

func TestExplore_SkipsUnresolvableTargets(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "#let dir = \"parts\"\n#include dir + \"/x.typ\"\n#import \"@preview/cetz:0.2.1\": canvas\n$ok$",
	})

	res, err := New(w, syntax.Equation).Explore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []pair{{"main.typ", "$ok$"}}, pairs(res))
}

func TestExplore_BrokenLinkAborts(t *testing.T) {
	t.Parallel()

	w := setup(t, map[string]string{
		"main.typ": "$a$ #include \"missing.typ\"",
	})
	res, err := New(w, syntax.Equation).Explore(context.Background())
	require.ErrorIs(t, err, project.ErrNotFound)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "missing.typ")

	w = setup(t, map[string]string{
		"main.typ": "#include \"../../etc/passwd\"",
	})
	_, err = New(w, syntax.Equation).Explore(context.Background())
	assert.ErrorIs(t, err, project.ErrOutsideRoot)
}

func TestExplore_OnEdge(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "#import \"a.typ\"\n#include \"a.typ\"",
		"a.typ":    "#include \"main.typ\"",
	})

	var edges []string
	e := New(w, syntax.Equation)
	e.OnEdge = func(edge Edge) {
		edges = append(edges, edge.From.String()+" -"+edge.Role.String()+"-> "+edge.To.String())
	}
	_, err := e.Explore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"main.typ -import-> a.typ",
		"a.typ -include-> main.typ",
		"main.typ -include-> a.typ",
	}, edges)
}

func TestExplore_RawTarget(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "$x$ `code` #include \"b.typ\"",
		"b.typ":    "```py\nprint(1)\n```",
	})

	res, err := New(w, syntax.Raw).Explore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []pair{{"main.typ", "`code`"}, {"b.typ", "```py\nprint(1)\n```"}}, pairs(res))
}

func TestExplore_Cancelled(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{"main.typ": "$x$"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(w, syntax.Equation).Explore(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
