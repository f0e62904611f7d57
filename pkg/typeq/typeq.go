// Package typeq extracts equations, or other target nodes, from Typst
// projects with their exact source text.
//
// Basic usage:
//
//	texts, err := typeq.Equations("thesis/main.typ", "")
//	if err != nil {
//	    return err
//	}
//	for _, t := range texts {
//	    fmt.Println(t)
//	}
//
// Extract gives full control over strategy, target kind and package lookup,
// and returns each item with the file it came from.
package typeq

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/mvp-joe/typeq/internal/extract"
	"github.com/mvp-joe/typeq/internal/packages"
	"github.com/mvp-joe/typeq/internal/project"
	"github.com/mvp-joe/typeq/internal/syntax"
	"github.com/mvp-joe/typeq/internal/world"
)

// FallbackPrefix marks item text reconstructed from evaluated content
// instead of sliced from source.
const FallbackPrefix = extract.FallbackPrefix

// Errors callers may match with errors.Is.
var (
	ErrNotFound          = project.ErrNotFound
	ErrOutsideRoot       = project.ErrOutsideRoot
	ErrUnreadable        = project.ErrUnreadable
	ErrUnknownStrategy   = extract.ErrUnknownStrategy
	ErrUnsupportedTarget = extract.ErrUnsupportedTarget
	ErrPackageNotFound   = packages.ErrPackageNotFound
)

// Options configures an extraction.
type Options struct {
	Entry    string // entry .typ file
	Root     string // project root; the entry's directory if empty
	Strategy string // "syntax" (default) or "eval"
	Target   string // "equation" (default) or "raw"

	// Package lookup. Zero values select the Typst defaults.
	PackageDataDir  string
	PackageCacheDir string
	Registry        string
	Offline         bool
	Quiet           bool // no download progress bars

	// Packages overrides package lookup entirely when set.
	Packages project.PackageLocator
}

// Item is one extracted node.
type Item struct {
	File  string // root-relative path, or @namespace/name:version/path
	Text  string // exact source text, or FallbackPrefix + plain text
	Exact bool
	Start int // byte range in File; both zero for fallbacks
	End   int
}

// Result is the outcome of Extract.
type Result struct {
	Items []Item
	Files []string // files read, in order
}

// Texts returns the item texts in order.
func (r *Result) Texts() []string {
	out := make([]string, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Text
	}
	return out
}

// parses is shared by all extractions in the process, so repeated calls
// re-parse only the files whose content changed.
var parses = sync.OnceValue(func() *world.ParseCache {
	p, err := world.NewParseCache(world.DefaultParseCacheSize)
	if err != nil {
		log.Printf("Warning: parse cache disabled: %v", err)
		return nil
	}
	return p
})

// Extract runs one extraction.
func Extract(ctx context.Context, opts Options) (*Result, error) {
	if opts.Strategy == "" {
		opts.Strategy = extract.StrategySyntax
	}
	if opts.Target == "" {
		opts.Target = "equation"
	}

	strategy, err := extract.StrategyByName(opts.Strategy)
	if err != nil {
		return nil, err
	}
	kind, ok := syntax.ParseTargetKind(opts.Target)
	if !ok {
		return nil, fmt.Errorf("%w: %q", extract.ErrUnsupportedTarget, opts.Target)
	}

	locator := opts.Packages
	if locator == nil {
		locator = packages.NewLocator(packages.Config{
			DataDir:  opts.PackageDataDir,
			CacheDir: opts.PackageCacheDir,
			Registry: opts.Registry,
			Offline:  opts.Offline,
		}, packages.NewHTTPDownloader(opts.Quiet))
	}

	w, err := world.Open(ctx, opts.Entry, opts.Root, locator, world.WithParseCache(parses()))
	if err != nil {
		return nil, err
	}
	res, err := strategy.Extract(ctx, w, kind)
	if err != nil {
		return nil, err
	}
	return convert(w, res), nil
}

func convert(w *world.World, res *extract.Result) *Result {
	out := &Result{
		Items: make([]Item, len(res.Items)),
		Files: make([]string, len(res.Files)),
	}
	for i, it := range res.Items {
		out.Items[i] = Item{File: it.Display, Text: it.Text, Exact: it.Exact}
		if it.Exact {
			out.Items[i].Start, out.Items[i].End = it.Span.Start, it.Span.End
		}
	}
	for i, f := range res.Files {
		out.Files[i] = w.Display(f)
	}
	return out
}

// Equations returns the source text of every equation reachable from entry,
// in reading order. root defaults to the entry's directory.
func Equations(entry, root string) ([]string, error) {
	res, err := Extract(context.Background(), Options{Entry: entry, Root: root, Quiet: true})
	if err != nil {
		return nil, err
	}
	return res.Texts(), nil
}
