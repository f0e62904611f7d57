// Package eval evaluates a Typst project into a content tree.
//
// The evaluator covers the part of Typst that decides which content ends up
// in the document: markup, bindings, functions, control flow, imports,
// includes and string evaluation. Styling (set and show rules) and layout
// are ignored. Every content node keeps the span of the syntax it came from,
// so extracted nodes can be mapped back to their exact source text.
package eval

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/typeq/internal/project"
	"github.com/mvp-joe/typeq/internal/syntax"
	"github.com/mvp-joe/typeq/internal/world"
)

const (
	maxCallDepth  = 256
	maxIterations = 10_000
	maxRepeatSize = 1 << 20 // bytes of a repeated string, elements of a repeated array
	prefetchLimit = 8
)

// Eval evaluates the world's entry file. If evaluation reports any error,
// the returned error is a *CompileError listing all of them.
func Eval(ctx context.Context, w *world.World) (*Content, error) {
	if _, err := w.Source(ctx, w.Entry()); err != nil {
		return nil, err
	}
	r := newRun(ctx, w)
	mod := r.module(w.Entry(), nil, "import")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(r.diags) > 0 {
		return nil, &CompileError{Diagnostics: r.diags}
	}
	return mod.Content, nil
}

// fileCtx is the file whose syntax is being evaluated. Strings evaluated
// with eval() have no file; content built from them is detached.
type fileCtx struct {
	id   project.FileID
	text string
}

func (f fileCtx) span(n *syntax.Node) world.Span {
	return world.SpanOf(f.id, n)
}

type flow int

const (
	flowNone flow = iota
	flowBreak
	flowContinue
	flowReturn
)

// run holds the state of one evaluation.
type run struct {
	ctx     context.Context
	world   *world.World
	library *Scope
	modules map[project.FileID]*Module
	active  []project.FileID
	diags   []Diagnostic

	file      fileCtx
	scope     *Scope
	flow      flow
	flowValue Value
	depth     int
	current   *syntax.Node // call being evaluated, for builtin diagnostics
}

func newRun(ctx context.Context, w *world.World) *run {
	return &run{
		ctx:     ctx,
		world:   w,
		library: newLibrary(),
		modules: make(map[project.FileID]*Module),
	}
}

func (r *run) errorAt(n *syntax.Node, format string, args ...interface{}) {
	d := Diagnostic{
		Span:    r.file.span(n),
		File:    "<eval>",
		Message: fmt.Sprintf(format, args...),
	}
	if !r.file.id.IsZero() {
		d.File = r.world.Display(r.file.id)
	}
	if n != nil {
		d.Line, d.Column = lineColumn(r.file.text, n.Start)
	}
	r.diags = append(r.diags, d)
}

func (r *run) errorf(format string, args ...interface{}) {
	r.errorAt(r.current, format, args...)
}

// ---- modules ----

// module evaluates a file once and caches the result. at is the import or
// include that requested it (nil for the entry file).
func (r *run) module(id project.FileID, at *syntax.Node, verb string) *Module {
	if m, ok := r.modules[id]; ok {
		return m
	}
	for _, active := range r.active {
		if active == id {
			r.errorAt(at, "cyclic %s of %s", verb, r.world.Display(id))
			return nil
		}
	}
	if r.ctx.Err() != nil {
		return nil
	}
	src, err := r.world.Source(r.ctx, id)
	if err != nil {
		r.errorAt(at, "failed to load %s: %v", r.world.Display(id), err)
		return nil
	}
	r.prefetch(src)

	savedFile, savedScope, savedFlow := r.file, r.scope, r.flow
	r.file = fileCtx{id: id, text: src.Text}
	r.scope = NewScope(r.library)
	r.flow = flowNone
	r.active = append(r.active, id)

	for _, e := range src.Root.Errors() {
		r.errorAt(e, "%s", e.Value)
	}
	content := r.markup(src.Root)
	mod := &Module{Name: moduleName(id), File: id, Scope: r.scope, Content: content}

	r.active = r.active[:len(r.active)-1]
	r.file, r.scope, r.flow = savedFile, savedScope, savedFlow
	r.modules[id] = mod
	return mod
}

// prefetch loads the literal import and include targets of src in parallel
// so that the files are cached by the time evaluation reaches them. Failures
// are reported later, when evaluation reaches the link.
func (r *run) prefetch(src *world.Source) {
	var refs []string
	syntax.Walk(src.Root, func(n *syntax.Node) bool {
		if ref, ok := n.LinkPath(); ok {
			refs = append(refs, ref)
		}
		return true
	})
	if len(refs) == 0 {
		return
	}

	g, ctx := errgroup.WithContext(r.ctx)
	g.SetLimit(prefetchLimit)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			id, err := r.world.Resolve(ctx, ref, src.ID)
			if err != nil {
				return nil
			}
			_, _ = r.world.Source(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
}

func moduleName(id project.FileID) string {
	if spec, ok := id.Package(); ok {
		return spec.Name
	}
	base := path.Base(id.Path().String())
	return strings.TrimSuffix(base, path.Ext(base))
}

// linkBase is the file relative to which paths in the current code resolve.
func (r *run) linkBase() project.FileID {
	if r.file.id.IsZero() {
		return r.world.Entry()
	}
	return r.file.id
}

// linked resolves the source of an import or include to a module.
func (r *run) linked(n *syntax.Node, verb string) *Module {
	source := n.Child(0)
	switch v := r.expr(source).(type) {
	case string:
		id, err := r.world.Resolve(r.ctx, v, r.linkBase())
		if err != nil {
			r.errorAt(source, "cannot %s %q: %v", verb, v, err)
			return nil
		}
		return r.module(id, n, verb)
	case *Module:
		return v
	case nil:
		return nil
	default:
		r.errorAt(source, "expected path or module, found %s", typeName(v))
		return nil
	}
}

func (r *run) moduleImport(n *syntax.Node) {
	mod := r.linked(n, "import")
	if mod == nil {
		return
	}
	var alias, items *syntax.Node
	for _, c := range n.Children[1:] {
		switch c.Kind {
		case syntax.Ident:
			alias = c
		case syntax.ImportItems:
			items = c
		}
	}
	if alias != nil {
		r.scope.Define(alias.Value, mod)
	}
	if items == nil {
		if alias == nil {
			r.scope.Define(mod.Name, mod)
		}
		return
	}
	for _, item := range items.Children {
		switch item.Kind {
		case syntax.Star:
			for _, name := range mod.Scope.Names() {
				v, _ := mod.Scope.Own(name)
				r.scope.Define(name, v)
			}
		case syntax.Ident, syntax.RenamedImportItem:
			name, as := item.Value, item.Value
			if item.Kind == syntax.RenamedImportItem {
				name, as = item.Child(0).Value, item.Child(1).Value
			}
			v, ok := mod.Scope.Own(name)
			if !ok {
				r.errorAt(item, "unresolved import: %s", name)
				continue
			}
			r.scope.Define(as, v)
		}
	}
}

// ---- markup and math ----

func (r *run) markup(n *syntax.Node) *Content {
	var parts []*Content
	for _, c := range n.Children {
		if r.flow != flowNone {
			break
		}
		switch c.Kind {
		case syntax.Text:
			parts = append(parts, TextContent(c.Text(), r.file.span(c)))
		case syntax.Space:
			parts = append(parts, &Content{Elem: SpaceElem, Span: r.file.span(c)})
		case syntax.Escape:
			parts = append(parts, TextContent(c.Value, r.file.span(c)))
		case syntax.Raw:
			parts = append(parts, &Content{Elem: RawElem, Text: c.Value, Span: r.file.span(c)})
		case syntax.Equation:
			parts = append(parts, r.equation(c))
		case syntax.LineComment, syntax.BlockComment, syntax.Error:
			// Parse errors are reported once per module.
		default:
			parts = append(parts, display(r.expr(c), r.file.span(c)))
		}
	}
	return Sequence(parts...)
}

func (r *run) equation(n *syntax.Node) *Content {
	body := r.math(n.Child(0))
	return &Content{
		Elem:     EquationElem,
		Span:     r.file.span(n),
		Block:    n.IsBlock(),
		Children: body.Children,
	}
}

// math evaluates embedded code and strings in math and keeps everything
// else as text.
func (r *run) math(m *syntax.Node) *Content {
	if m == nil {
		return Sequence()
	}
	text := m.Text()
	var parts []*Content
	gap := func(start, end int) {
		if end > start {
			parts = append(parts, TextContent(text[start-m.Start:end-m.Start], world.Span{File: r.file.id, Start: start, End: end}))
		}
	}
	pos := m.Start
	for _, c := range m.Children {
		end := c.Start
		if c.Kind != syntax.Str && end > m.Start && text[end-1-m.Start] == '#' {
			end--
		}
		gap(pos, end)
		if c.Kind == syntax.Str {
			parts = append(parts, TextContent(c.Value, r.file.span(c)))
		} else {
			parts = append(parts, display(r.expr(c), r.file.span(c)))
		}
		pos = c.End
	}
	gap(pos, m.End)
	return Sequence(parts...)
}

// ---- code ----

func (r *run) code(n *syntax.Node) Value {
	var out Value
	for _, c := range n.Children {
		v := r.expr(c)
		joined, ok := join(out, v)
		if !ok {
			r.errorAt(c, "cannot join %s with %s", typeName(out), typeName(v))
		} else {
			out = joined
		}
		if r.flow != flowNone {
			break
		}
	}
	return out
}

func (r *run) scoped(fn func() Value) Value {
	saved := r.scope
	r.scope = NewScope(saved)
	defer func() { r.scope = saved }()
	return fn()
}

func (r *run) expr(n *syntax.Node) Value {
	if n == nil || r.flow != flowNone {
		return nil
	}
	switch n.Kind {
	case syntax.None:
		return nil
	case syntax.Auto:
		return Auto{}
	case syntax.Bool:
		return n.Value == "true"
	case syntax.Int:
		i, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			r.errorAt(n, "invalid integer: %s", n.Value)
			return nil
		}
		return i
	case syntax.Float:
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			r.errorAt(n, "invalid float: %s", n.Value)
			return nil
		}
		return f
	case syntax.Numeric:
		return Length(n.Value)
	case syntax.Str:
		return n.Value
	case syntax.Ident:
		v, ok := r.scope.Get(n.Value)
		if !ok {
			r.errorAt(n, "unknown variable: %s", n.Value)
		}
		return v
	case syntax.Equation:
		return r.equation(n)
	case syntax.Raw:
		return &Content{Elem: RawElem, Text: n.Value, Span: r.file.span(n)}
	case syntax.ContentBlock:
		return r.scoped(func() Value { return r.markup(n.Child(0)) })
	case syntax.CodeBlock:
		return r.scoped(func() Value { return r.code(n.Child(0)) })
	case syntax.Parenthesized:
		return r.expr(n.Child(0))
	case syntax.Array:
		arr := make(Array, 0, len(n.Children))
		for _, c := range n.Children {
			arr = append(arr, r.expr(c))
		}
		return arr
	case syntax.Dict:
		d := NewDict()
		for _, c := range n.Children {
			if c.Kind != syntax.Named || len(c.Children) < 2 {
				r.errorAt(c, "expected named pair")
				continue
			}
			d.Set(c.Child(0).Value, r.expr(c.Child(1)))
		}
		return d
	case syntax.Unary:
		return r.unary(n)
	case syntax.Binary:
		return r.binary(n)
	case syntax.FieldAccess:
		return r.field(r.expr(n.Child(0)), n.Child(1).Value, n)
	case syntax.FuncCall:
		return r.funcCall(n)
	case syntax.Closure:
		return r.closure("", n.Child(0), n.Child(1))
	case syntax.LetBinding:
		r.let(n)
		return nil
	case syntax.SetRule, syntax.ShowRule:
		// Styling does not change which content exists.
		return nil
	case syntax.ModuleImport:
		r.moduleImport(n)
		return nil
	case syntax.ModuleInclude:
		if mod := r.linked(n, "include"); mod != nil {
			return mod.Content
		}
		return nil
	case syntax.Conditional:
		return r.conditional(n)
	case syntax.ForLoop:
		return r.forLoop(n)
	case syntax.WhileLoop:
		return r.whileLoop(n)
	case syntax.Contextual:
		return r.expr(n.Child(0))
	case syntax.FuncReturn:
		v := r.expr(n.Child(0))
		r.flow, r.flowValue = flowReturn, v
		return nil
	case syntax.LoopBreak:
		r.flow = flowBreak
		return nil
	case syntax.LoopContinue:
		r.flow = flowContinue
		return nil
	case syntax.Error:
		// Parse errors are reported when the source is loaded.
		return nil
	}
	r.errorAt(n, "unexpected %s", n.Kind)
	return nil
}

func (r *run) let(n *syntax.Node) {
	target := n.Child(0)
	switch target.Kind {
	case syntax.Ident:
		if params := n.Child(1); params != nil && params.Kind == syntax.Params {
			body := n.Child(2)
			if body == nil {
				r.errorAt(n, "expected function body")
				return
			}
			fn := r.closure(target.Value, params, body)
			r.scope.Define(target.Value, fn)
			return
		}
		var v Value
		if init := n.Child(1); init != nil {
			v = r.expr(init)
		}
		r.scope.Define(target.Value, v)
	case syntax.Parenthesized, syntax.Array:
		r.destructure(target, r.expr(n.Child(1)))
	default:
		r.errorAt(target, "unsupported binding pattern")
	}
}

func (r *run) bind(pattern *syntax.Node, v Value) {
	switch pattern.Kind {
	case syntax.Ident:
		if pattern.Value != "_" {
			r.scope.Define(pattern.Value, v)
		}
	case syntax.Parenthesized, syntax.Array:
		r.destructure(pattern, v)
	default:
		r.errorAt(pattern, "unsupported binding pattern")
	}
}

func (r *run) destructure(pattern *syntax.Node, v Value) {
	arr, ok := v.(Array)
	if !ok {
		r.errorAt(pattern, "cannot destructure %s", typeName(v))
		return
	}
	items := pattern.Children
	if len(items) != len(arr) {
		r.errorAt(pattern, "expected %d elements, found %d", len(items), len(arr))
		return
	}
	for i, item := range items {
		r.bind(item, arr[i])
	}
}

func (r *run) closure(name string, params, body *syntax.Node) *Closure {
	fn := &Closure{name: name, body: body, scope: r.scope, file: r.file}
	for _, p := range params.Children {
		switch p.Kind {
		case syntax.Ident:
			fn.params = append(fn.params, param{name: p.Value})
		case syntax.Named:
			fn.params = append(fn.params, param{name: p.Child(0).Value, def: r.expr(p.Child(1)), named: true})
		default:
			r.errorAt(p, "unsupported parameter")
		}
	}
	return fn
}

func (r *run) conditional(n *syntax.Node) Value {
	cond, ok := r.expr(n.Child(0)).(bool)
	if !ok {
		r.errorAt(n.Child(0), "expected boolean condition")
		return nil
	}
	if cond {
		return r.expr(n.Child(1))
	}
	return r.expr(n.Child(2))
}

func (r *run) forLoop(n *syntax.Node) Value {
	pattern, iterable, body := n.Child(0), n.Child(1), n.Child(2)
	var items []Value
	switch v := r.expr(iterable).(type) {
	case Array:
		items = v
	case string:
		for _, ch := range v {
			items = append(items, string(ch))
		}
	case *Dict:
		for _, k := range v.keys {
			items = append(items, Array{k, v.m[k]})
		}
	default:
		r.errorAt(iterable, "cannot loop over %s", typeName(v))
		return nil
	}

	var out Value
	saved := r.scope
	defer func() { r.scope = saved }()
	for _, item := range items {
		r.scope = NewScope(saved)
		r.bind(pattern, item)
		out = r.iteration(out, r.expr(body), body)
		if r.loopDone() {
			break
		}
	}
	return out
}

func (r *run) whileLoop(n *syntax.Node) Value {
	var out Value
	for i := 0; ; i++ {
		if i == maxIterations {
			r.errorAt(n, "loop seems to be infinite")
			return out
		}
		cond, ok := r.expr(n.Child(0)).(bool)
		if !ok {
			r.errorAt(n.Child(0), "expected boolean condition")
			return out
		}
		if !cond {
			return out
		}
		out = r.iteration(out, r.scoped(func() Value { return r.expr(n.Child(1)) }), n.Child(1))
		if r.loopDone() {
			return out
		}
	}
}

func (r *run) iteration(out, v Value, at *syntax.Node) Value {
	joined, ok := join(out, v)
	if !ok {
		r.errorAt(at, "cannot join %s with %s", typeName(out), typeName(v))
		return out
	}
	return joined
}

// loopDone consumes break and continue and reports whether the loop ends.
func (r *run) loopDone() bool {
	switch r.flow {
	case flowBreak:
		r.flow = flowNone
		return true
	case flowContinue:
		r.flow = flowNone
		return false
	case flowReturn:
		return true
	}
	return false
}

// ---- operators ----

func (r *run) unary(n *syntax.Node) Value {
	v := r.expr(n.Child(0))
	switch n.Value {
	case "not":
		if b, ok := v.(bool); ok {
			return !b
		}
	case "+":
		if _, ok := toFloat(v); ok {
			return v
		}
	case "-":
		switch v := v.(type) {
		case int64:
			return -v
		case float64:
			return -v
		case Length:
			return Length("-" + string(v))
		}
	}
	r.errorAt(n, "cannot apply %s to %s", n.Value, typeName(v))
	return nil
}

func (r *run) binary(n *syntax.Node) Value {
	op := n.Value
	if op == "and" || op == "or" {
		l, ok := r.expr(n.Child(0)).(bool)
		if !ok {
			r.errorAt(n.Child(0), "expected boolean")
			return nil
		}
		if (op == "and" && !l) || (op == "or" && l) {
			return l
		}
		rv, ok := r.expr(n.Child(1)).(bool)
		if !ok {
			r.errorAt(n.Child(1), "expected boolean")
			return nil
		}
		return rv
	}

	l, rv := r.expr(n.Child(0)), r.expr(n.Child(1))
	switch op {
	case "+":
		return r.add(l, rv, n)
	case "-", "*", "/":
		return r.arith(op, l, rv, n)
	case "==":
		return equal(l, rv)
	case "!=":
		return !equal(l, rv)
	case "<", ">", "<=", ">=":
		return r.compare(op, l, rv, n)
	case "in":
		return r.contains(rv, l, n)
	}
	r.errorAt(n, "unknown operator %s", op)
	return nil
}

func (r *run) add(l, rv Value, n *syntax.Node) Value {
	switch a := l.(type) {
	case int64:
		if b, ok := rv.(int64); ok {
			return a + b
		}
	case Style:
		if b, ok := rv.(Style); ok {
			return Style(string(a) + " + " + string(b))
		}
	}
	if a, ok := toFloat(l); ok {
		if b, ok := toFloat(rv); ok {
			return a + b
		}
	}
	switch l.(type) {
	case string, *Content, Array, *Dict:
		if v, ok := join(l, rv); ok && l != nil && rv != nil {
			return v
		}
	}
	r.errorAt(n, "cannot add %s and %s", typeName(l), typeName(rv))
	return nil
}

func (r *run) arith(op string, l, rv Value, n *syntax.Node) Value {
	if op == "*" {
		switch a := l.(type) {
		case string:
			if k, ok := rv.(int64); ok && k >= 0 {
				if !r.repeatFits(len(a), k, n) {
					return nil
				}
				return strings.Repeat(a, int(k))
			}
		case Array:
			if k, ok := rv.(int64); ok && k >= 0 {
				if !r.repeatFits(len(a), k, n) {
					return nil
				}
				out := make(Array, 0, len(a)*int(k))
				for i := int64(0); len(a) > 0 && i < k; i++ {
					out = append(out, a...)
				}
				return out
			}
		}
	}
	if a, ok := l.(int64); ok {
		if b, ok := rv.(int64); ok && op != "/" {
			if op == "-" {
				return a - b
			}
			return a * b
		}
	}
	a, okA := toFloat(l)
	b, okB := toFloat(rv)
	if !okA || !okB {
		r.errorAt(n, "cannot apply %s to %s and %s", op, typeName(l), typeName(rv))
		return nil
	}
	switch op {
	case "-":
		return a - b
	case "*":
		return a * b
	}
	if b == 0 {
		r.errorAt(n, "cannot divide by zero")
		return nil
	}
	return a / b
}

// repeatFits reports whether repeating size units k times stays within
// maxRepeatSize, and records a diagnostic if not.
func (r *run) repeatFits(size int, k int64, n *syntax.Node) bool {
	if size > 0 && k > maxRepeatSize/int64(size) {
		r.errorAt(n, "cannot repeat %d times: result is too large", k)
		return false
	}
	return true
}

func (r *run) compare(op string, l, rv Value, n *syntax.Node) Value {
	var c int
	if a, ok := toFloat(l); ok {
		b, ok := toFloat(rv)
		if !ok {
			r.errorAt(n, "cannot compare %s with %s", typeName(l), typeName(rv))
			return nil
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	} else if a, ok := l.(string); ok {
		b, ok := rv.(string)
		if !ok {
			r.errorAt(n, "cannot compare %s with %s", typeName(l), typeName(rv))
			return nil
		}
		c = strings.Compare(a, b)
	} else {
		r.errorAt(n, "cannot compare %s with %s", typeName(l), typeName(rv))
		return nil
	}
	switch op {
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	}
	return c >= 0
}

func (r *run) contains(collection, item Value, n *syntax.Node) Value {
	switch c := collection.(type) {
	case string:
		if s, ok := item.(string); ok {
			return strings.Contains(c, s)
		}
	case Array:
		for _, v := range c {
			if equal(v, item) {
				return true
			}
		}
		return false
	case *Dict:
		if s, ok := item.(string); ok {
			_, found := c.Get(s)
			return found
		}
	}
	r.errorAt(n, "cannot apply in to %s and %s", typeName(item), typeName(collection))
	return nil
}

// ---- fields and calls ----

func (r *run) field(target Value, name string, n *syntax.Node) Value {
	switch t := target.(type) {
	case *Module:
		if v, ok := t.Scope.Own(name); ok {
			return v
		}
		r.errorAt(n, "module %s does not contain %s", t.Name, name)
		return nil
	case *Dict:
		if v, ok := t.Get(name); ok {
			return v
		}
		r.errorAt(n, "dictionary does not contain key %q", name)
		return nil
	case *Builtin:
		if v, ok := t.fields[name]; ok {
			return v
		}
		r.errorAt(n, "function %s does not contain field %s", t.name, name)
		return nil
	case nil:
		// The target already produced a diagnostic or is none.
		if n.Child(0) != nil && n.Child(0).Kind == syntax.None {
			r.errorAt(n, "cannot access fields on none")
		}
		return nil
	}
	r.errorAt(n, "cannot access fields on type %s", typeName(target))
	return nil
}

func (r *run) funcCall(n *syntax.Node) Value {
	callee := n.Child(0)
	if callee.Kind == syntax.FieldAccess {
		target := r.expr(callee.Child(0))
		name := callee.Child(1).Value
		switch t := target.(type) {
		case *Module, nil:
		case *Builtin:
			if _, ok := t.fields[name]; !ok {
				return r.method(target, name, r.args(n), n)
			}
		case *Dict:
			if _, ok := t.Get(name); !ok {
				return r.method(target, name, r.args(n), n)
			}
		default:
			return r.method(target, name, r.args(n), n)
		}
		return r.call(r.field(target, name, callee), r.args(n), n)
	}
	fn := r.expr(callee)
	return r.call(fn, r.args(n), n)
}

func (r *run) args(call *syntax.Node) *Args {
	args := &Args{Span: r.file.span(call)}
	list := call.Child(1)
	if list == nil || list.Kind != syntax.Args {
		return args
	}
	for _, c := range list.Children {
		if c.Kind == syntax.Named {
			if len(c.Children) < 2 {
				continue
			}
			args.Named = append(args.Named, NamedArg{Name: c.Child(0).Value, Value: r.expr(c.Child(1))})
			continue
		}
		args.Pos = append(args.Pos, r.expr(c))
	}
	return args
}

func (r *run) call(f Value, args *Args, n *syntax.Node) Value {
	if r.flow != flowNone {
		return nil
	}
	switch f := f.(type) {
	case *Builtin:
		saved := r.current
		r.current = n
		defer func() { r.current = saved }()
		return f.fn(r, args)
	case *Closure:
		return r.callClosure(f, args, n)
	case *bound:
		merged := &Args{
			Span:  args.Span,
			Pos:   append(append([]Value{}, f.pre.Pos...), args.Pos...),
			Named: append(append([]NamedArg{}, f.pre.Named...), args.Named...),
		}
		return r.call(f.fn, merged, n)
	case nil:
		// The callee already produced a diagnostic.
		if n.Child(0) != nil && n.Child(0).Kind == syntax.None {
			r.errorAt(n, "expected function, found none")
		}
		return nil
	}
	r.errorAt(n, "expected function, found %s", typeName(f))
	return nil
}

func (r *run) callClosure(f *Closure, args *Args, n *syntax.Node) Value {
	if r.depth >= maxCallDepth {
		r.errorAt(n, "maximum function call depth exceeded")
		return nil
	}
	scope := NewScope(f.scope)
	known := make(map[string]bool, len(f.params))
	pos := 0
	for _, p := range f.params {
		known[p.name] = true
		if p.named {
			v := p.def
			if a, ok := args.Get(p.name); ok {
				v = a
			}
			scope.Define(p.name, v)
			continue
		}
		if pos < len(args.Pos) {
			scope.Define(p.name, args.Pos[pos])
			pos++
			continue
		}
		r.errorAt(n, "missing argument: %s", p.name)
		scope.Define(p.name, nil)
	}
	if pos < len(args.Pos) {
		r.errorAt(n, "unexpected argument")
	}
	for _, a := range args.Named {
		if !known[a.Name] {
			r.errorAt(n, "unexpected argument: %s", a.Name)
		}
	}

	savedFile, savedScope := r.file, r.scope
	r.file, r.scope = f.file, scope
	r.depth++
	v := r.expr(f.body)
	r.depth--
	if r.flow == flowReturn {
		v = r.flowValue
	}
	r.flow, r.flowValue = flowNone, nil
	r.file, r.scope = savedFile, savedScope
	return v
}

func (r *run) method(target Value, name string, args *Args, n *syntax.Node) Value {
	arg := func(i int) Value {
		if i < len(args.Pos) {
			return args.Pos[i]
		}
		return nil
	}
	switch t := target.(type) {
	case string:
		switch name {
		case "len":
			return int64(len(t))
		case "contains":
			s, _ := arg(0).(string)
			return strings.Contains(t, s)
		case "starts-with":
			s, _ := arg(0).(string)
			return strings.HasPrefix(t, s)
		case "ends-with":
			s, _ := arg(0).(string)
			return strings.HasSuffix(t, s)
		case "trim":
			return strings.TrimSpace(t)
		case "replace":
			old, _ := arg(0).(string)
			repl, _ := arg(1).(string)
			return strings.ReplaceAll(t, old, repl)
		case "split":
			sep, ok := arg(0).(string)
			var parts []string
			if ok {
				parts = strings.Split(t, sep)
			} else {
				parts = strings.Fields(t)
			}
			out := make(Array, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return out
		case "clusters", "codepoints":
			out := Array{}
			for _, ch := range t {
				out = append(out, string(ch))
			}
			return out
		}
	case Array:
		switch name {
		case "len":
			return int64(len(t))
		case "first", "last":
			if len(t) == 0 {
				r.errorAt(n, "array is empty")
				return nil
			}
			if name == "first" {
				return t[0]
			}
			return t[len(t)-1]
		case "at":
			i, ok := arg(0).(int64)
			if ok && i < 0 {
				i += int64(len(t))
			}
			if !ok || i < 0 || i >= int64(len(t)) {
				if def, ok := args.Get("default"); ok {
					return def
				}
				r.errorAt(n, "array index out of bounds")
				return nil
			}
			return t[i]
		case "contains":
			return r.contains(t, arg(0), n)
		case "rev":
			out := make(Array, len(t))
			for i, v := range t {
				out[len(t)-1-i] = v
			}
			return out
		case "join":
			var out Value
			for i, v := range t {
				if i > 0 && arg(0) != nil {
					out = r.iteration(out, arg(0), n)
				}
				out = r.iteration(out, v, n)
			}
			return out
		case "map", "filter":
			out := Array{}
			for _, v := range t {
				res := r.call(arg(0), &Args{Span: args.Span, Pos: []Value{v}}, n)
				if name == "map" {
					out = append(out, res)
				} else if keep, _ := res.(bool); keep {
					out = append(out, v)
				}
			}
			return out
		}
	case *Dict:
		switch name {
		case "len":
			return int64(t.Len())
		case "keys":
			out := Array{}
			for _, k := range t.keys {
				out = append(out, k)
			}
			return out
		case "values":
			out := Array{}
			for _, k := range t.keys {
				out = append(out, t.m[k])
			}
			return out
		case "at":
			k, _ := arg(0).(string)
			if v, ok := t.Get(k); ok {
				return v
			}
			if def, ok := args.Get("default"); ok {
				return def
			}
			r.errorAt(n, "dictionary does not contain key %q", k)
			return nil
		}
	case Func:
		if name == "with" {
			return &bound{fn: t, pre: args}
		}
	}
	r.errorAt(n, "type %s has no method %s", typeName(target), name)
	return nil
}
