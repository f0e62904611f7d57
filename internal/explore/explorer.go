// Package explore discovers target nodes across a Typst project before
// evaluation by following literal import and include paths from the entry
// file.
//
// Files are visited depth-first. A linked file is explored at the point
// where it is imported or included, before the rest of the linking file, so
// that results appear in reading order. Every file is explored at most once
// per run, which makes shared and mutually recursive includes safe.
package explore

import (
	"context"
	"fmt"
	"strings"

	"github.com/mvp-joe/typeq/internal/project"
	"github.com/mvp-joe/typeq/internal/syntax"
	"github.com/mvp-joe/typeq/internal/world"
)

// Found is a target node together with the file it was found in.
type Found struct {
	File project.FileID
	Node *syntax.Node
}

// Text returns the node's exact source text.
func (f Found) Text() string { return f.Node.Text() }

// Edge is a resolved link from one file to another.
type Edge struct {
	From project.FileID
	To   project.FileID
	Role syntax.Role // RoleImport or RoleInclude
}

// Result is the outcome of one exploration.
type Result struct {
	Found []Found
	Files []project.FileID // visited files, in visit order
}

// Explorer walks the files reachable from a world's entry file.
type Explorer struct {
	world  *world.World
	target syntax.Kind

	// OnEdge, if set, is called for every resolved link, including links to
	// files that were already visited.
	OnEdge func(Edge)
}

// New creates an explorer collecting nodes of the target kind.
func New(w *world.World, target syntax.Kind) *Explorer {
	return &Explorer{world: w, target: target}
}

type run struct {
	*Explorer
	visited map[string]bool // canonical on-disk paths
	result  Result
}

// Explore walks the project from the entry file. Any failure to resolve or
// load a linked file aborts the exploration; no partial result is returned.
func (e *Explorer) Explore(ctx context.Context) (*Result, error) {
	r := &run{Explorer: e, visited: make(map[string]bool)}
	if err := r.visit(ctx, e.world.Entry()); err != nil {
		return nil, err
	}
	return &r.result, nil
}

func (r *run) visit(ctx context.Context, id project.FileID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.world.Locate(ctx, id)
	if err != nil {
		return err
	}
	if r.visited[path] {
		return nil
	}
	r.visited[path] = true

	src, err := r.world.Source(ctx, id)
	if err != nil {
		return err
	}
	r.result.Files = append(r.result.Files, id)
	return r.walk(ctx, id, src.Root)
}

func (r *run) walk(ctx context.Context, file project.FileID, n *syntax.Node) error {
	switch role := n.Role(r.target); role {
	case syntax.RoleTarget:
		r.result.Found = append(r.result.Found, Found{File: file, Node: n})
	case syntax.RoleImport, syntax.RoleInclude:
		if err := r.follow(ctx, file, n, role); err != nil {
			return err
		}
	}
	for _, child := range n.Children {
		if err := r.walk(ctx, file, child); err != nil {
			return err
		}
	}
	return nil
}

// follow explores the file named by an import or include. Computed paths
// and package references cannot be resolved without evaluation and are
// skipped.
func (r *run) follow(ctx context.Context, file project.FileID, n *syntax.Node, role syntax.Role) error {
	ref, ok := n.LinkPath()
	if !ok || strings.HasPrefix(ref, "@") {
		return nil
	}
	target, err := r.world.Resolve(ctx, ref, file)
	if err != nil {
		return fmt.Errorf("%s: cannot %s %q: %w", r.world.Display(file), role, ref, err)
	}
	if r.OnEdge != nil {
		r.OnEdge(Edge{From: file, To: target, Role: role})
	}
	if err := r.visit(ctx, target); err != nil {
		return fmt.Errorf("%s: failed to load %q: %w", r.world.Display(file), ref, err)
	}
	return nil
}
