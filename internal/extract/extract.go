// Package extract turns a Typst project into an ordered list of target nodes
// with their exact source text.
//
// Two strategies produce the same Result. The syntax strategy explores the
// parse trees of all statically linked files. The eval strategy evaluates
// the project and maps each target node of the content tree back to its
// source through its span. When a span cannot be mapped, the node's plain
// text is used instead, marked with FallbackPrefix.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/mvp-joe/typeq/internal/eval"
	"github.com/mvp-joe/typeq/internal/explore"
	"github.com/mvp-joe/typeq/internal/project"
	"github.com/mvp-joe/typeq/internal/syntax"
	"github.com/mvp-joe/typeq/internal/world"
)

// FallbackPrefix marks item text reconstructed from content instead of
// sliced from source.
const FallbackPrefix = "[fallback] "

// Strategy names.
const (
	StrategySyntax = "syntax"
	StrategyEval   = "eval"
)

var (
	// ErrUnknownStrategy indicates an unsupported strategy name.
	ErrUnknownStrategy = errors.New("unknown extraction strategy")

	// ErrUnsupportedTarget indicates a target kind a strategy cannot extract.
	ErrUnsupportedTarget = errors.New("unsupported target kind")
)

// Item is one extracted node.
type Item struct {
	File    project.FileID
	Display string     // root-relative path of File
	Span    world.Span // source range of exact items; detached for fallbacks
	Text    string     // exact source text, or FallbackPrefix + plain text
	Exact   bool
}

// Result is the outcome of an extraction.
type Result struct {
	Items []Item
	Files []project.FileID // files read, in order
}

// Texts returns the item texts in order.
func (r *Result) Texts() []string {
	out := make([]string, len(r.Items))
	for i, item := range r.Items {
		out[i] = item.Text
	}
	return out
}

// Strategy extracts nodes of the target kind from a world.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, w *world.World, target syntax.Kind) (*Result, error)
}

// StrategyByName returns the strategy called name.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case StrategySyntax:
		return &SyntaxStrategy{}, nil
	case StrategyEval:
		return &EvalStrategy{}, nil
	}
	return nil, fmt.Errorf("%w: %q (expected %s or %s)", ErrUnknownStrategy, name, StrategySyntax, StrategyEval)
}

// SyntaxStrategy extracts from parse trees, following literal imports and
// includes. Any unresolvable link fails the extraction.
type SyntaxStrategy struct {
	// OnEdge, if set, receives every resolved link.
	OnEdge func(explore.Edge)
}

func (s *SyntaxStrategy) Name() string { return StrategySyntax }

func (s *SyntaxStrategy) Extract(ctx context.Context, w *world.World, target syntax.Kind) (*Result, error) {
	e := explore.New(w, target)
	e.OnEdge = s.OnEdge
	res, err := e.Explore(ctx)
	if err != nil {
		return nil, err
	}
	out := &Result{Files: res.Files, Items: make([]Item, 0, len(res.Found))}
	for _, f := range res.Found {
		out.Items = append(out.Items, Item{
			File:    f.File,
			Display: w.Display(f.File),
			Span:    world.SpanOf(f.File, f.Node),
			Text:    f.Text(),
			Exact:   true,
		})
	}
	return out, nil
}

// EvalStrategy extracts from the evaluated content tree.
type EvalStrategy struct{}

func (s *EvalStrategy) Name() string { return StrategyEval }

func (s *EvalStrategy) Extract(ctx context.Context, w *world.World, target syntax.Kind) (*Result, error) {
	elem, ok := eval.ElementFor(target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, target)
	}
	content, err := eval.Eval(ctx, w)
	if err != nil {
		return nil, err
	}
	return &Result{
		Items: FromContent(ctx, content, w, elem),
		Files: w.Loaded(),
	}, nil
}

// FromContent collects the content nodes of the target element in document
// order and recovers their source text:
//
//  1. a detached span yields a fallback item attributed to the entry file;
//  2. a span whose file cannot be loaded yields a fallback item;
//  3. a span whose range does not fit the file's text yields a fallback item;
//  4. otherwise the item is the exact source slice.
//
// Fallback items whose plain text is empty are dropped. A bad span never
// stops the extraction.
func FromContent(ctx context.Context, root *eval.Content, w *world.World, target eval.Element) []Item {
	var items []Item
	root.Walk(func(c *eval.Content) bool {
		if c.Elem != target {
			return true
		}
		if item, ok := sourceText(ctx, c, w); ok {
			items = append(items, item)
		}
		return true
	})
	return items
}

func sourceText(ctx context.Context, c *eval.Content, w *world.World) (Item, bool) {
	file := c.Span.File
	if c.Span.IsDetached() {
		file = w.Entry()
	} else if text, err := w.Range(ctx, c.Span); err == nil {
		return Item{File: file, Display: w.Display(file), Span: c.Span, Text: text, Exact: true}, true
	}

	plain := c.PlainText()
	if plain == "" {
		return Item{}, false
	}
	return Item{
		File:    file,
		Display: w.Display(file),
		Text:    FallbackPrefix + plain,
	}, true
}
