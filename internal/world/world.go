// Package world composes path resolution, package lookup and the source cache
// into the view of a Typst project that extraction runs against.
//
// A World is built once per run. Everything it loads is a snapshot: asking
// for the same file again returns the same content, even if the file changes
// on disk meanwhile.
package world

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mvp-joe/typeq/internal/project"
)

// World is a Typst project with a designated entry file.
type World struct {
	resolver *project.Resolver
	cache    *SourceCache
	entry    project.FileID
}

// New creates a world around an existing resolver.
func New(resolver *project.Resolver, entry project.FileID) *World {
	return &World{
		resolver: resolver,
		cache:    NewSourceCache(resolver),
		entry:    entry,
	}
}

// Option configures a World created by Open.
type Option func(*World)

// WithParseCache reuses parse trees from p, which may outlive the world.
func WithParseCache(p *ParseCache) Option {
	return func(w *World) { w.cache.parses = p }
}

// Open creates the world for entryPath. root defaults to the entry file's
// directory. The entry file is loaded eagerly so that a missing or
// unreadable entry fails here, before any extraction starts.
func Open(ctx context.Context, entryPath, root string, packages project.PackageLocator, opts ...Option) (*World, error) {
	if root == "" {
		root = filepath.Dir(entryPath)
	}
	resolver, err := project.NewResolver(root, packages)
	if err != nil {
		return nil, fmt.Errorf("invalid project root: %w", err)
	}
	entry, err := resolver.FileFor(entryPath)
	if err != nil {
		return nil, fmt.Errorf("invalid entry file: %w", err)
	}
	w := New(resolver, entry)
	for _, opt := range opts {
		opt(w)
	}
	if _, err := w.Source(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to load entry file: %w", err)
	}
	return w, nil
}

// Entry returns the id of the entry file.
func (w *World) Entry() project.FileID { return w.entry }

// Root returns the canonical project root.
func (w *World) Root() string { return w.resolver.Root() }

// Source returns the loaded file for id.
func (w *World) Source(ctx context.Context, id project.FileID) (*Source, error) {
	return w.cache.Source(ctx, id)
}

// Text returns the text of id.
func (w *World) Text(ctx context.Context, id project.FileID) (string, error) {
	src, err := w.cache.Source(ctx, id)
	if err != nil {
		return "", err
	}
	return src.Text, nil
}

// Bytes returns the raw content of id.
func (w *World) Bytes(ctx context.Context, id project.FileID) ([]byte, error) {
	return w.cache.Bytes(ctx, id)
}

// Resolve maps a reference written in from to a file id.
func (w *World) Resolve(ctx context.Context, ref string, from project.FileID) (project.FileID, error) {
	return w.resolver.Resolve(ctx, ref, from)
}

// Locate returns the canonical on-disk path of id.
func (w *World) Locate(ctx context.Context, id project.FileID) (string, error) {
	return w.resolver.Locate(ctx, id)
}

// Range returns the text covered by span.
func (w *World) Range(ctx context.Context, span Span) (string, error) {
	if span.IsDetached() {
		return "", ErrDetachedSpan
	}
	src, err := w.cache.Source(ctx, span.File)
	if err != nil {
		return "", err
	}
	return src.Slice(span.Start, span.End)
}

// Display returns the root-relative path shown to users for id.
func (w *World) Display(id project.FileID) string { return id.String() }

// Loaded returns the ids of all files loaded so far, in load order.
func (w *World) Loaded() []project.FileID { return w.cache.Loaded() }
