package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typeq/internal/eval"
	"github.com/mvp-joe/typeq/internal/project"
	"github.com/mvp-joe/typeq/internal/syntax"
	"github.com/mvp-joe/typeq/internal/world"
)

// Test Plan for extraction:
// - Both strategies agree on the main/parts scenario (E1 then E2)
// - Exact items round-trip: text equals the file's bytes at the item span
// - Extraction is idempotent
// - Detached spans yield a fallback item attributed to the entry file
// - Unloadable files and invalid ranges yield fallback items, never errors
// - Fallback nodes without plain text are skipped
// - Zero matches is an empty result, not an error
// - Unknown strategies and unsupported targets are rejected

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

type item struct{ file, text string }

func summarize(res *Result) []item {
	out := make([]item, len(res.Items))
	for i, it := range res.Items {
		out[i] = item{it.Display, it.Text}
	}
	return out
}

var scenario = map[string]string{
	"main.typ":      "= Intro\nEnergy $E_1 = m c^2$.\n#include \"parts/sub.typ\"\n",
	"parts/sub.typ": "#let k = 2\nSecond $E_2 = #k$",
}

func TestStrategies_Scenario(t *testing.T) {
	t.Parallel()
	expected := []item{
		{"main.typ", "$E_1 = m c^2$"},
		{"parts/sub.typ", "$E_2 = #k$"},
	}

	for _, name := range []string{StrategySyntax, StrategyEval} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			w := setup(t, scenario)
			s, err := StrategyByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name())

			res, err := s.Extract(context.Background(), w, syntax.Equation)
			require.NoError(t, err)
			assert.Equal(t, expected, summarize(res))
			assert.Len(t, res.Files, 2)

			// Round trip against the bytes on disk
			for _, it := range res.Items {
				require.True(t, it.Exact)
				path, err := w.Locate(context.Background(), it.File)
				require.NoError(t, err)
				data, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, it.Text, string(data[it.Span.Start:it.Span.End]))
			}

			// Idempotent
			again, err := s.Extract(context.Background(), w, syntax.Equation)
			require.NoError(t, err)
			assert.Equal(t, res.Items, again.Items)
		})
	}
}

func TestEvalStrategy_DetachedFallback(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "$a$ #eval(\"$x + y$\", mode: \"markup\")",
	})

	res, err := (&EvalStrategy{}).Extract(context.Background(), w, syntax.Equation)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.True(t, res.Items[0].Exact)

	fb := res.Items[1]
	assert.False(t, fb.Exact)
	assert.Equal(t, w.Entry(), fb.File)
	assert.Equal(t, FallbackPrefix+"x + y", fb.Text)
	assert.True(t, fb.Span.IsDetached())
}

func TestFromContent_DegradationLadder(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{"main.typ": "$ok$"})
	ctx := context.Background()

	gone := project.LocalFile(project.MustVirtualPath("/gone.typ"))
	body := func(s string) []*eval.Content {
		return []*eval.Content{eval.TextContent(s, world.Detached())}
	}
	root := eval.Sequence(
		&eval.Content{Elem: eval.EquationElem, Span: world.Span{File: w.Entry(), Start: 0, End: 4}, Children: body("ok")},
		&eval.Content{Elem: eval.EquationElem, Span: world.Span{File: gone, Start: 0, End: 3}, Children: body("lost")},
		&eval.Content{Elem: eval.EquationElem, Span: world.Span{File: w.Entry(), Start: 2, End: 99}, Children: body("stale")},
		&eval.Content{Elem: eval.EquationElem, Span: world.Detached(), Children: body("free")},
		&eval.Content{Elem: eval.EquationElem, Span: world.Detached()},
		eval.TextContent("not an equation", world.Detached()),
	)

	items := FromContent(ctx, root, w, eval.EquationElem)
	require.Len(t, items, 4)
	assert.Equal(t, Item{File: w.Entry(), Display: "main.typ", Span: world.Span{File: w.Entry(), Start: 0, End: 4}, Text: "$ok$", Exact: true}, items[0])
	assert.Equal(t, Item{File: gone, Display: "gone.typ", Text: FallbackPrefix + "lost"}, items[1])
	assert.Equal(t, Item{File: w.Entry(), Display: "main.typ", Text: FallbackPrefix + "stale"}, items[2])
	assert.Equal(t, Item{File: w.Entry(), Display: "main.typ", Text: FallbackPrefix + "free"}, items[3])
}

func TestStrategies_ZeroMatches(t *testing.T) {
	t.Parallel()
	for _, s := range []Strategy{&SyntaxStrategy{}, &EvalStrategy{}} {
		w := setup(t, map[string]string{"main.typ": "Just text."})
		res, err := s.Extract(context.Background(), w, syntax.Equation)
		require.NoError(t, err, s.Name())
		assert.Empty(t, res.Items, s.Name())
		assert.Empty(t, res.Texts(), s.Name())
	}
}

func TestStrategies_Errors(t *testing.T) {
	t.Parallel()

	_, err := StrategyByName("magic")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	w := setup(t, map[string]string{"main.typ": "$x$"})
	_, err = (&EvalStrategy{}).Extract(context.Background(), w, syntax.Text)
	assert.ErrorIs(t, err, ErrUnsupportedTarget)

	w = setup(t, map[string]string{"main.typ": "#include \"nope.typ\""})
	_, err = (&SyntaxStrategy{}).Extract(context.Background(), w, syntax.Equation)
	assert.ErrorIs(t, err, project.ErrNotFound)
	_, err = (&EvalStrategy{}).Extract(context.Background(), w, syntax.Equation)
	assert.ErrorIs(t, err, eval.ErrCompileFailure)
}

func TestSyntaxStrategy_RawTarget(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{"main.typ": "$x$ `let` and ``` fenced```"})

	res, err := (&SyntaxStrategy{}).Extract(context.Background(), w, syntax.Raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"`let`", "``` fenced```"}, res.Texts())
}
