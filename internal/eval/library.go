package eval

import (
	"math"
	"strings"

	"github.com/mvp-joe/typeq/internal/syntax"
	"github.com/mvp-joe/typeq/internal/world"
)

// elements are functions whose only effect on the content tree is to keep
// their content arguments: layout, styling and structure wrappers.
var elements = []string{
	"align", "block", "box", "circle", "cite", "colbreak", "columns",
	"ellipse", "emph", "enum", "figure", "footnote", "grid", "h", "heading",
	"hide", "highlight", "image", "line", "linebreak", "link", "list", "move",
	"outline", "overline", "pad", "page", "pagebreak", "par", "parbreak",
	"place", "polygon", "quote", "rect", "ref", "repeat", "rotate", "scale",
	"smallcaps", "square", "stack", "strike", "strong", "sub", "super",
	"table", "terms", "text", "underline", "v", "bibliography", "document",
}

// subElements are element functions reachable as fields (table.cell).
var subElements = map[string][]string{
	"table":   {"cell", "header", "footer", "hline", "vline"},
	"grid":    {"cell", "header", "footer", "hline", "vline"},
	"figure":  {"caption"},
	"list":    {"item"},
	"enum":    {"item"},
	"terms":   {"item"},
	"heading": {},
}

var styles = []string{
	// colors
	"black", "gray", "silver", "white", "navy", "blue", "aqua", "teal",
	"eastern", "purple", "fuchsia", "maroon", "red", "orange", "yellow",
	"olive", "green", "lime",
	// alignments and directions
	"left", "center", "right", "start", "end", "top", "horizon", "bottom",
	"ltr", "rtl", "ttb", "btt",
}

func newLibrary() *Scope {
	s := NewScope(nil)
	for _, name := range elements {
		el := element(name)
		for _, sub := range subElements[name] {
			el.fields[sub] = element(name + "." + sub)
		}
		s.Define(name, el)
	}
	for _, name := range styles {
		s.Define(name, Style(name))
	}
	for _, name := range []string{"rgb", "luma", "cmyk", "color", "stroke"} {
		s.Define(name, styleFunc(name))
	}

	s.Define("math", &Module{Name: "math", Scope: mathScope()})
	s.Define("calc", &Module{Name: "calc", Scope: calcScope()})

	s.Define("eval", &Builtin{name: "eval", fn: evalString})
	s.Define("str", &Builtin{name: "str", fn: toStr})
	s.Define("repr", &Builtin{name: "repr", fn: func(r *run, args *Args) Value {
		return repr(first(args))
	}})
	s.Define("type", &Builtin{name: "type", fn: func(r *run, args *Args) Value {
		return typeName(first(args))
	}})
	s.Define("range", &Builtin{name: "range", fn: rangeFunc})
	s.Define("lorem", &Builtin{name: "lorem", fn: lorem})
	s.Define("upper", &Builtin{name: "upper", fn: caseFunc(strings.ToUpper)})
	s.Define("lower", &Builtin{name: "lower", fn: caseFunc(strings.ToLower)})
	s.Define("panic", &Builtin{name: "panic", fn: func(r *run, args *Args) Value {
		parts := make([]string, len(args.Pos))
		for i, v := range args.Pos {
			parts[i] = repr(v)
		}
		r.errorf("panicked with: %s", strings.Join(parts, ", "))
		return nil
	}})
	s.Define("assert", &Builtin{name: "assert", fn: func(r *run, args *Args) Value {
		if ok, _ := first(args).(bool); !ok {
			msg := "assertion failed"
			if m, ok := args.Get("message"); ok {
				if m, ok := m.(string); ok {
					msg = m
				}
			}
			r.errorf("%s", msg)
		}
		return nil
	}})
	return s
}

func first(args *Args) Value {
	if len(args.Pos) == 0 {
		return nil
	}
	return args.Pos[0]
}

func element(name string) *Builtin {
	return &Builtin{
		name: name,
		fn: func(r *run, args *Args) Value {
			return Sequence(args.Contents()...)
		},
		fields: make(map[string]Value),
	}
}

func styleFunc(name string) *Builtin {
	return &Builtin{name: name, fn: func(r *run, args *Args) Value {
		return Style(name + repr(Array(args.Pos)))
	}}
}

func mathScope() *Scope {
	s := NewScope(nil)
	s.Define("equation", &Builtin{name: "math.equation", fn: mathEquation})
	return s
}

// mathEquation builds an equation whose span is the call itself.
func mathEquation(r *run, args *Args) Value {
	var body *Content
	switch v := first(args).(type) {
	case *Content:
		body = v
	case string:
		body = TextContent(v, world.Detached())
	case nil:
		if len(args.Pos) == 0 {
			r.errorf("missing argument: body")
		}
		body = Sequence()
	default:
		body = display(v, world.Detached())
	}
	block := false
	if b, ok := args.Get("block"); ok {
		if bv, ok := b.(bool); ok {
			block = bv
		} else {
			r.errorf("expected boolean for block, found %s", typeName(b))
		}
	}
	return &Content{
		Elem:     EquationElem,
		Span:     args.Span,
		Block:    block,
		Children: Sequence(body).Children,
	}
}

func calcScope() *Scope {
	s := NewScope(nil)
	s.Define("pi", math.Pi)
	s.Define("e", math.E)
	unary := func(name string, f func(float64) float64) {
		s.Define(name, &Builtin{name: "calc." + name, fn: func(r *run, args *Args) Value {
			x, ok := toFloat(first(args))
			if !ok {
				r.errorf("expected number, found %s", typeName(first(args)))
				return nil
			}
			return f(x)
		}})
	}
	unary("sqrt", math.Sqrt)
	unary("exp", math.Exp)
	unary("ln", math.Log)
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("tan", math.Tan)

	rounding := func(name string, f func(float64) float64) {
		s.Define(name, &Builtin{name: "calc." + name, fn: func(r *run, args *Args) Value {
			switch x := first(args).(type) {
			case int64:
				return x
			case float64:
				return int64(f(x))
			}
			r.errorf("expected number, found %s", typeName(first(args)))
			return nil
		}})
	}
	rounding("floor", math.Floor)
	rounding("ceil", math.Ceil)
	rounding("round", math.Round)

	s.Define("abs", &Builtin{name: "calc.abs", fn: func(r *run, args *Args) Value {
		switch x := first(args).(type) {
		case int64:
			if x < 0 {
				return -x
			}
			return x
		case float64:
			return math.Abs(x)
		}
		r.errorf("expected number, found %s", typeName(first(args)))
		return nil
	}})
	s.Define("pow", &Builtin{name: "calc.pow", fn: func(r *run, args *Args) Value {
		if len(args.Pos) != 2 {
			r.errorf("expected base and exponent")
			return nil
		}
		base, exp := args.Pos[0], args.Pos[1]
		if b, ok := base.(int64); ok {
			if e, ok := exp.(int64); ok && e >= 0 {
				if e > maxIterations {
					r.errorf("exponent is too large")
					return nil
				}
				out := int64(1)
				for i := int64(0); i < e; i++ {
					out *= b
				}
				return out
			}
		}
		b, okB := toFloat(base)
		e, okE := toFloat(exp)
		if !okB || !okE {
			r.errorf("expected numbers")
			return nil
		}
		return math.Pow(b, e)
	}})
	extreme := func(name string, better func(a, b float64) bool) {
		s.Define(name, &Builtin{name: "calc." + name, fn: func(r *run, args *Args) Value {
			var best Value
			bestF := 0.0
			for _, v := range args.Pos {
				f, ok := toFloat(v)
				if !ok {
					r.errorf("expected number, found %s", typeName(v))
					return nil
				}
				if best == nil || better(f, bestF) {
					best, bestF = v, f
				}
			}
			if best == nil {
				r.errorf("expected at least one value")
			}
			return best
		}})
	}
	extreme("max", func(a, b float64) bool { return a > b })
	extreme("min", func(a, b float64) bool { return a < b })

	parity := func(name string, want int64) {
		s.Define(name, &Builtin{name: "calc." + name, fn: func(r *run, args *Args) Value {
			x, ok := first(args).(int64)
			if !ok {
				r.errorf("expected integer, found %s", typeName(first(args)))
				return nil
			}
			return x%2 == want || x%2 == -want
		}})
	}
	parity("even", 0)
	parity("odd", 1)
	s.Define("rem", &Builtin{name: "calc.rem", fn: func(r *run, args *Args) Value {
		if len(args.Pos) == 2 {
			if a, ok := args.Pos[0].(int64); ok {
				if b, ok := args.Pos[1].(int64); ok && b != 0 {
					return a % b
				}
			}
		}
		r.errorf("expected two integers with a non-zero divisor")
		return nil
	}})
	return s
}

// evalString evaluates a string as code, markup or math. The result has no
// source file, so its content is detached.
func evalString(r *run, args *Args) Value {
	text, ok := first(args).(string)
	if !ok {
		r.errorf("expected string, found %s", typeName(first(args)))
		return nil
	}
	mode := "code"
	if m, ok := args.Get("mode"); ok {
		if mode, ok = m.(string); !ok {
			r.errorf("expected string for mode, found %s", typeName(m))
			return nil
		}
	}

	var root *syntax.Node
	switch mode {
	case "code":
		root = syntax.ParseCode(text)
	case "markup":
		root = syntax.Parse(text)
	case "math":
		root = syntax.ParseMath(text)
	default:
		r.errorf("unknown evaluation mode %q", mode)
		return nil
	}

	savedFile, savedScope, at := r.file, r.scope, r.current
	r.file = fileCtx{text: text}
	r.scope = NewScope(r.library)
	defer func() { r.file, r.scope = savedFile, savedScope }()

	if sc, ok := args.Get("scope"); ok {
		d, ok := sc.(*Dict)
		if !ok {
			r.file = savedFile
			r.errorAt(at, "expected dictionary for scope, found %s", typeName(sc))
			return nil
		}
		for _, k := range d.keys {
			r.scope.Define(k, d.m[k])
		}
	}
	for _, e := range root.Errors() {
		r.errorAt(e, "%s", e.Value)
	}

	switch mode {
	case "markup":
		return r.markup(root)
	case "math":
		return r.math(root)
	}
	return r.code(root)
}

func toStr(r *run, args *Args) Value {
	switch v := first(args).(type) {
	case string:
		return v
	case int64, float64, bool, Length:
		return repr(v)
	case *Content:
		return v.PlainText()
	}
	r.errorf("cannot convert %s to string", typeName(first(args)))
	return nil
}

func rangeFunc(r *run, args *Args) Value {
	var ints []int64
	for _, v := range args.Pos {
		i, ok := v.(int64)
		if !ok {
			r.errorf("expected integer, found %s", typeName(v))
			return nil
		}
		ints = append(ints, i)
	}
	var start, end int64
	switch len(ints) {
	case 1:
		end = ints[0]
	case 2:
		start, end = ints[0], ints[1]
	default:
		r.errorf("expected one or two integers")
		return nil
	}
	step := int64(1)
	if s, ok := args.Get("step"); ok {
		if step, ok = s.(int64); !ok || step == 0 {
			r.errorf("step must be a non-zero integer")
			return nil
		}
	}
	out := Array{}
	for i := start; (step > 0 && i < end) || (step < 0 && i > end); i += step {
		if len(out) == maxIterations {
			r.errorf("range is too large")
			return nil
		}
		out = append(out, i)
	}
	return out
}

var loremWords = strings.Fields(`Lorem ipsum dolor sit amet consectetur adipiscing
elit sed do eiusmod tempor incididunt ut labore et dolore magna aliqua Ut enim
ad minim veniam quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea
commodo consequat`)

func lorem(r *run, args *Args) Value {
	n, ok := first(args).(int64)
	if !ok || n < 0 {
		r.errorf("expected non-negative integer")
		return nil
	}
	if n > maxIterations {
		r.errorf("cannot generate %d words: too many", n)
		return nil
	}
	words := make([]string, n)
	for i := range words {
		words[i] = loremWords[i%len(loremWords)]
	}
	return strings.Join(words, " ")
}

func caseFunc(f func(string) string) func(r *run, args *Args) Value {
	return func(r *run, args *Args) Value {
		switch v := first(args).(type) {
		case string:
			return f(v)
		case *Content:
			return v
		}
		r.errorf("expected string or content, found %s", typeName(first(args)))
		return nil
	}
}
