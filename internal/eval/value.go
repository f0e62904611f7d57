package eval

import (
	"strconv"
	"strings"

	"github.com/mvp-joe/typeq/internal/project"
	"github.com/mvp-joe/typeq/internal/syntax"
	"github.com/mvp-joe/typeq/internal/world"
)

// Value is a runtime value. The dynamic type is one of: nil (none), Auto,
// bool, int64, float64, Length, Style, string, *Content, Array, *Dict,
// *Module or Func.
type Value interface{}

// Auto is the value of the auto keyword.
type Auto struct{}

// Length is a numeric literal with a unit, kept as written ("1pt", "50%").
type Length string

// Style is an opaque styling value such as a color or an alignment. Styles
// only matter for layout and never display.
type Style string

// Array is an ordered list of values.
type Array []Value

// Dict is a dictionary that remembers insertion order.
type Dict struct {
	keys []string
	m    map[string]Value
}

// NewDict creates an empty dictionary.
func NewDict() *Dict { return &Dict{m: make(map[string]Value)} }

// Set inserts or replaces key.
func (d *Dict) Set(key string, v Value) {
	if _, ok := d.m[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.m[key] = v
}

// Get returns the value for key.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string { return d.keys }

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Module is an evaluated file (or a library namespace such as calc).
type Module struct {
	Name    string
	File    project.FileID
	Scope   *Scope
	Content *Content
}

// Func is a callable value.
type Func interface {
	Name() string
}

// Args are the evaluated arguments of a call.
type Args struct {
	Span  world.Span // the call expression
	Pos   []Value
	Named []NamedArg
}

// NamedArg is one name: value argument.
type NamedArg struct {
	Name  string
	Value Value
}

// Get returns the last named argument called name.
func (a *Args) Get(name string) (Value, bool) {
	for i := len(a.Named) - 1; i >= 0; i-- {
		if a.Named[i].Name == name {
			return a.Named[i].Value, true
		}
	}
	return nil, false
}

// Contents returns all content-like arguments, positional first, then named,
// each group in written order.
func (a *Args) Contents() []*Content {
	var out []*Content
	add := func(v Value) {
		switch v.(type) {
		case *Content, Array:
			if c := display(v, world.Detached()); c != nil {
				out = append(out, c)
			}
		}
	}
	for _, v := range a.Pos {
		add(v)
	}
	for _, n := range a.Named {
		add(n.Value)
	}
	return out
}

// Builtin is a function implemented in Go.
type Builtin struct {
	name   string
	fn     func(r *run, args *Args) Value
	fields map[string]Value
}

func (b *Builtin) Name() string { return b.name }

// Closure is a user-defined function.
type Closure struct {
	name   string
	params []param
	body   *syntax.Node
	scope  *Scope
	file   fileCtx
}

type param struct {
	name  string
	def   Value
	named bool
}

func (c *Closure) Name() string {
	if c.name == "" {
		return "(..) => .."
	}
	return c.name
}

// bound is a function with pre-applied arguments (f.with(..)).
type bound struct {
	fn  Func
	pre *Args
}

func (b *bound) Name() string { return b.fn.Name() }

func typeName(v Value) string {
	switch v.(type) {
	case nil:
		return "none"
	case Auto:
		return "auto"
	case bool:
		return "boolean"
	case int64:
		return "integer"
	case float64:
		return "float"
	case Length:
		return "length"
	case Style:
		return "style"
	case string:
		return "string"
	case *Content:
		return "content"
	case Array:
		return "array"
	case *Dict:
		return "dictionary"
	case *Module:
		return "module"
	case Func:
		return "function"
	}
	return "unknown"
}

func repr(v Value) string {
	switch v := v.(type) {
	case nil:
		return "none"
	case Auto:
		return "auto"
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case Length:
		return string(v)
	case Style:
		return string(v)
	case string:
		return strconv.Quote(v)
	case *Content:
		return "[" + v.PlainText() + "]"
	case Array:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = repr(item)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *Dict:
		parts := make([]string, 0, v.Len())
		for _, k := range v.keys {
			parts = append(parts, k+": "+repr(v.m[k]))
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *Module:
		return "<module " + v.Name + ">"
	case Func:
		return v.Name()
	}
	return "?"
}

// display converts a value to content the way it appears when embedded in
// markup. Values without a content form display as nothing.
func display(v Value, span world.Span) *Content {
	switch v := v.(type) {
	case nil, Auto, Style, *Module, Func, *Dict:
		return nil
	case *Content:
		return v
	case string:
		return TextContent(v, span)
	case Array:
		parts := make([]*Content, 0, len(v))
		for _, item := range v {
			parts = append(parts, display(item, span))
		}
		return Sequence(parts...)
	default:
		return TextContent(repr(v), span)
	}
}

// join combines the values of consecutive statements or loop iterations.
func join(a, b Value) (Value, bool) {
	if a == nil {
		return b, true
	}
	if b == nil {
		return a, true
	}
	switch a := a.(type) {
	case string:
		if b, ok := b.(string); ok {
			return a + b, true
		}
	case Array:
		if b, ok := b.(Array); ok {
			return append(append(Array{}, a...), b...), true
		}
		return nil, false
	case *Dict:
		if b, ok := b.(*Dict); ok {
			out := NewDict()
			for _, k := range a.keys {
				out.Set(k, a.m[k])
			}
			for _, k := range b.keys {
				out.Set(k, b.m[k])
			}
			return out, true
		}
		return nil, false
	}
	if isContentLike(a) && isContentLike(b) {
		return Sequence(display(a, world.Detached()), display(b, world.Detached())), true
	}
	return nil, false
}

func isContentLike(v Value) bool {
	switch v.(type) {
	case *Content, string, int64, float64, Length, bool:
		return true
	}
	return false
}

func equal(a, b Value) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case int64:
		switch b := b.(type) {
		case int64:
			return a == b
		case float64:
			return float64(a) == b
		}
		return false
	case float64:
		switch b := b.(type) {
		case int64:
			return a == float64(b)
		case float64:
			return a == b
		}
		return false
	case Array:
		b, ok := b.(Array)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !equal(a[i], b[i]) {
				return false
			}
		}
		return true
	case *Content:
		b, ok := b.(*Content)
		return ok && a.PlainText() == b.PlainText()
	case bool, string, Length, Style, Auto:
		return a == b
	}
	return a == b
}

func toFloat(v Value) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
