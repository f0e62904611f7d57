package eval

import (
	"strings"

	"github.com/mvp-joe/typeq/internal/syntax"
	"github.com/mvp-joe/typeq/internal/world"
)

// Element is the type of a content node.
type Element int

const (
	SequenceElem Element = iota
	TextElem
	SpaceElem
	EquationElem
	RawElem
)

func (e Element) String() string {
	switch e {
	case SequenceElem:
		return "sequence"
	case TextElem:
		return "text"
	case SpaceElem:
		return "space"
	case EquationElem:
		return "equation"
	case RawElem:
		return "raw"
	}
	return "unknown"
}

// ElementFor maps a syntax kind to the content element it evaluates to.
func ElementFor(kind syntax.Kind) (Element, bool) {
	switch kind {
	case syntax.Equation:
		return EquationElem, true
	case syntax.Raw:
		return RawElem, true
	}
	return SequenceElem, false
}

// Content is a node of an evaluated document. Each node carries the span of
// the syntax it was produced from; content built from strings at evaluation
// time carries a detached span.
type Content struct {
	Elem     Element
	Span     world.Span
	Text     string // TextElem and RawElem
	Block    bool   // EquationElem: display style
	Children []*Content
}

// Sequence joins content in order, flattening nested sequences.
func Sequence(children ...*Content) *Content {
	seq := &Content{Elem: SequenceElem}
	for _, c := range children {
		if c == nil {
			continue
		}
		if c.Elem == SequenceElem {
			seq.Children = append(seq.Children, c.Children...)
			continue
		}
		seq.Children = append(seq.Children, c)
	}
	return seq
}

// TextContent returns a text node.
func TextContent(text string, span world.Span) *Content {
	return &Content{Elem: TextElem, Text: text, Span: span}
}

// PlainText renders the content as unstyled text. For an equation this is
// its math source with embedded values substituted.
func (c *Content) PlainText() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	c.plain(&b)
	return b.String()
}

func (c *Content) plain(b *strings.Builder) {
	switch c.Elem {
	case TextElem, RawElem:
		b.WriteString(c.Text)
	case SpaceElem:
		b.WriteByte(' ')
	default:
		for _, child := range c.Children {
			child.plain(b)
		}
	}
}

// Walk visits c and its descendants in document order. Children are skipped
// when visit returns false.
func (c *Content) Walk(visit func(*Content) bool) {
	if c == nil || !visit(c) {
		return
	}
	for _, child := range c.Children {
		child.Walk(visit)
	}
}

// IsEmpty reports whether the content renders nothing.
func (c *Content) IsEmpty() bool {
	return c == nil || (c.Elem == SequenceElem && len(c.Children) == 0)
}
