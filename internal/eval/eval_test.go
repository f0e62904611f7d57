package eval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typeq/internal/world"
)

// Test Plan for Eval:
// - Equations in markup carry spans that slice back to their exact source
// - Included files contribute content at the inclusion point, with their own spans
// - Imported functions produce equations spanned in the defining file
// - Module imports: items, renames, star, alias, bare module and field access
// - Computed include paths are evaluated
// - eval() strings produce detached content
// - math.equation spans the call expression
// - Control flow: conditionals, for loops over ranges, break
// - Set and show rules are ignored
// - All diagnostics are collected into one CompileError
// - Cyclic includes and missing files are diagnostics, not panics
// - Oversized lorem, repetition and exponents are diagnostics, not panics

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

func equations(c *Content) []*Content {
	var out []*Content
	c.Walk(func(n *Content) bool {
		if n.Elem == EquationElem {
			out = append(out, n)
		}
		return true
	})
	return out
}

// sourceTexts returns the exact source of each equation, or "" for detached ones.
func sourceTexts(t *testing.T, w *world.World, eqs []*Content) []string {
	t.Helper()
	out := make([]string, len(eqs))
	for i, eq := range eqs {
		if eq.Span.IsDetached() {
			continue
		}
		text, err := w.Range(context.Background(), eq.Span)
		require.NoError(t, err)
		out[i] = text
	}
	return out
}

func mustEval(t *testing.T, w *world.World) *Content {
	t.Helper()
	c, err := Eval(context.Background(), w)
	require.NoError(t, err)
	return c
}

func TestEval_EquationSpans(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "Inline $a + b$ and\n$ sum_i x_i $\n",
	})
	eqs := equations(mustEval(t, w))

	require.Len(t, eqs, 2)
	assert.Equal(t, []string{"$a + b$", "$ sum_i x_i $"}, sourceTexts(t, w, eqs))
	assert.False(t, eqs[0].Block)
	assert.True(t, eqs[1].Block)
	assert.Equal(t, "a + b", eqs[0].PlainText())
	assert.Equal(t, w.Entry(), eqs[0].Span.File)
}

func TestEval_Include(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ":      "$E_1$\n#include \"parts/sub.typ\"\n$E_3$",
		"parts/sub.typ": "Sub $E_2$",
	})
	eqs := equations(mustEval(t, w))

	assert.Equal(t, []string{"$E_1$", "$E_2$", "$E_3$"}, sourceTexts(t, w, eqs))
	assert.Equal(t, "parts/sub.typ", eqs[1].Span.File.String())
}

func TestEval_ImportedFunction(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "#import \"lib.typ\": sq\n#sq(3)",
		"lib.typ":  "#let sq(x) = $#x^2$",
	})
	eqs := equations(mustEval(t, w))

	require.Len(t, eqs, 1)
	assert.Equal(t, []string{"$#x^2$"}, sourceTexts(t, w, eqs))
	assert.Equal(t, "lib.typ", eqs[0].Span.File.String())
	assert.Equal(t, "3^2", eqs[0].PlainText())
}

func TestEval_ImportForms(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": `#import "defs.typ"
#import "defs.typ" as d
#import "defs.typ": one as uno
#import "defs.typ": *
#defs.one #d.two() #uno #two()`,
		"defs.typ": "#let one = $1$\n#let two() = $2$",
	})
	eqs := equations(mustEval(t, w))

	assert.Equal(t, []string{"$1$", "$2$", "$1$", "$2$"}, sourceTexts(t, w, eqs))
}

func TestEval_ComputedInclude(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ":   "#let dir = \"ch\"\n#include dir + \"/one\"",
		"ch/one.typ": "$c$",
	})
	eqs := equations(mustEval(t, w))

	assert.Equal(t, []string{"$c$"}, sourceTexts(t, w, eqs))
}

func TestEval_EvalStringIsDetached(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "#eval(\"$a+b$\", mode: \"markup\")\n#eval(\"[$c$]\")",
	})
	eqs := equations(mustEval(t, w))

	require.Len(t, eqs, 2)
	for _, eq := range eqs {
		assert.True(t, eq.Span.IsDetached())
	}
	assert.Equal(t, "a+b", eqs[0].PlainText())
	assert.Equal(t, "c", eqs[1].PlainText())
}

func TestEval_MathEquationSpansCall(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "#math.equation(block: true, [z])",
	})
	eqs := equations(mustEval(t, w))

	require.Len(t, eqs, 1)
	assert.True(t, eqs[0].Block)
	assert.Equal(t, []string{"math.equation(block: true, [z])"}, sourceTexts(t, w, eqs))
	assert.Equal(t, "z", eqs[0].PlainText())
}

func TestEval_ControlFlow(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": `#for i in range(5) {
  if i == 3 { break }
  [$#i$]
}
#if calc.even(2) [$yes$] else [$no$]
#let xs = (1, 2).map(x => x * 10)
#for (k, v) in (a: 1) [#k]
$#xs.len()$`,
	})
	eqs := equations(mustEval(t, w))

	var plain []string
	for _, eq := range eqs {
		plain = append(plain, eq.PlainText())
	}
	assert.Equal(t, []string{"0", "1", "2", "yes", "2"}, plain)
}

func TestEval_StylingIsIgnored(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "#set text(size: 10pt, fill: undefined-color)\n#show heading: it => it\n#show: doc => doc\n#text(fill: red)[$t$]\n#figure(caption: [$cap$], $f$)",
	})
	eqs := equations(mustEval(t, w))

	assert.Equal(t, []string{"$t$", "$f$", "$cap$"}, sourceTexts(t, w, eqs))
}

func TestEval_CollectsAllDiagnostics(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "$ok$\n#foo\n#bar(1)\n#include \"missing.typ\"",
	})

	c, err := Eval(context.Background(), w)
	assert.Nil(t, c)
	require.ErrorIs(t, err, ErrCompileFailure)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	require.Len(t, ce.Diagnostics, 3)
	assert.Equal(t, "main.typ:2:2: unknown variable: foo", ce.Diagnostics[0].String())
	assert.Contains(t, ce.Diagnostics[1].Message, "unknown variable: bar")
	assert.Contains(t, ce.Diagnostics[2].Message, "missing.typ")
	assert.Contains(t, err.Error(), "3 error(s)")
}

func TestEval_CyclicInclude(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ":  "#include \"other.typ\"",
		"other.typ": "#include \"main.typ\"",
	})

	_, err := Eval(context.Background(), w)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Diagnostics, 1)
	assert.Contains(t, ce.Diagnostics[0].Message, "cyclic include")
	assert.Equal(t, "other.typ", ce.Diagnostics[0].File)
}

func TestEval_Idempotent(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "#import \"a.typ\": f\n#f() $m$",
		"a.typ":    "#let f() = [$a$]",
	})

	first := sourceTexts(t, w, equations(mustEval(t, w)))
	second := sourceTexts(t, w, equations(mustEval(t, w)))
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"$a$", "$m$"}, first)
}

func TestEval_OversizedValuesAreDiagnostics(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		source  string
		message string
	}{
		{"lorem", "#lorem(100000000000000) $x$", "too many"},
		{"string repeat", "#(\"ab\" * 100000000000000000) $x$", "too large"},
		{"array repeat", "#let xs = (1, 2) * 100000000000000\n$x$", "too large"},
		{"pow", "#calc.pow(2, 100000000000) $x$", "exponent is too large"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := setup(t, map[string]string{"main.typ": tt.source})

			_, err := Eval(context.Background(), w)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			require.Len(t, ce.Diagnostics, 1)
			assert.Contains(t, ce.Diagnostics[0].Message, tt.message)
		})
	}
}

func TestEval_SmallRepetition(t *testing.T) {
	t.Parallel()
	w := setup(t, map[string]string{
		"main.typ": "#let xs = () * 100000000000000\n$#(\"ab\" * 2)$ $#xs.len()$ $#calc.pow(2, 10)$ #lorem(2)",
	})
	eqs := equations(mustEval(t, w))

	var plain []string
	for _, eq := range eqs {
		plain = append(plain, eq.PlainText())
	}
	assert.Equal(t, []string{"abab", "0", "1024"}, plain)
}
