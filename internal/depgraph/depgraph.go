// Package depgraph records which files of a Typst project import or include
// which others, and reports include cycles.
package depgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/mvp-joe/typeq/internal/explore"
	"github.com/mvp-joe/typeq/internal/project"
	"github.com/mvp-joe/typeq/internal/syntax"
	"github.com/mvp-joe/typeq/internal/world"
)

const roleAttribute = "role"

// Graph is the link graph of the files reachable from a project's entry.
type Graph struct {
	g     graph.Graph[string, project.FileID]
	files []project.FileID
	index map[string]int // visit order by vertex hash
	edges []explore.Edge
}

func hash(id project.FileID) string { return id.Key() }

// Build explores the project from its entry file and records every
// statically resolvable link.
func Build(ctx context.Context, w *world.World) (*Graph, error) {
	var edges []explore.Edge
	e := explore.New(w, syntax.Equation)
	e.OnEdge = func(edge explore.Edge) { edges = append(edges, edge) }
	res, err := e.Explore(ctx)
	if err != nil {
		return nil, err
	}
	return New(res.Files, edges)
}

// New builds a graph from files in visit order and the links between them.
func New(files []project.FileID, edges []explore.Edge) (*Graph, error) {
	g := &Graph{
		g:     graph.New(hash, graph.Directed()),
		index: make(map[string]int, len(files)),
	}
	for _, f := range files {
		if err := g.g.AddVertex(f); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, fmt.Errorf("failed to add file %s: %w", f, err)
		}
		if _, ok := g.index[hash(f)]; !ok {
			g.index[hash(f)] = len(g.files)
			g.files = append(g.files, f)
		}
	}
	for _, edge := range edges {
		err := g.g.AddEdge(hash(edge.From), hash(edge.To), graph.EdgeAttribute(roleAttribute, edge.Role.String()))
		if errors.Is(err, graph.ErrEdgeAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to add link %s -> %s: %w", edge.From, edge.To, err)
		}
		g.edges = append(g.edges, edge)
	}
	return g, nil
}

// Files returns the files in visit order.
func (g *Graph) Files() []project.FileID { return g.files }

// Edges returns the distinct links in discovery order.
func (g *Graph) Edges() []explore.Edge { return g.edges }

// Links returns the files directly imported or included by id, in visit order.
func (g *Graph) Links(id project.FileID) ([]project.FileID, error) {
	adj, err := g.g.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	var out []project.FileID
	for target := range adj[hash(id)] {
		v, err := g.g.Vertex(target)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	g.sortByVisit(out)
	return out, nil
}

// Cycles returns the groups of files that link to each other, directly or
// transitively. Each group is ordered by visit order, and groups by their
// first file.
func (g *Graph) Cycles() ([][]project.FileID, error) {
	components, err := graph.StronglyConnectedComponents(g.g)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cycles: %w", err)
	}
	var cycles [][]project.FileID
	for _, comp := range components {
		if len(comp) == 1 {
			if _, err := g.g.Edge(comp[0], comp[0]); err != nil {
				continue
			}
		}
		group := make([]project.FileID, 0, len(comp))
		for _, h := range comp {
			v, err := g.g.Vertex(h)
			if err != nil {
				return nil, err
			}
			group = append(group, v)
		}
		g.sortByVisit(group)
		cycles = append(cycles, group)
	}
	sort.Slice(cycles, func(i, j int) bool {
		return g.index[hash(cycles[i][0])] < g.index[hash(cycles[j][0])]
	})
	return cycles, nil
}

func (g *Graph) sortByVisit(ids []project.FileID) {
	sort.Slice(ids, func(i, j int) bool {
		return g.index[hash(ids[i])] < g.index[hash(ids[j])]
	})
}

// Write prints the graph as an indented file list followed by its cycles.
func (g *Graph) Write(w io.Writer) error {
	for _, f := range g.files {
		if _, err := fmt.Fprintln(w, f); err != nil {
			return err
		}
		for _, edge := range g.edges {
			if edge.From != f {
				continue
			}
			if _, err := fmt.Fprintf(w, "  %s %s\n", edge.Role, edge.To); err != nil {
				return err
			}
		}
	}

	cycles, err := g.Cycles()
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		_, err = fmt.Fprintln(w, "\nNo cycles.")
		return err
	}
	if _, err := fmt.Fprintf(w, "\nCycles (%d):\n", len(cycles)); err != nil {
		return err
	}
	for _, cycle := range cycles {
		names := make([]string, 0, len(cycle)+1)
		for _, f := range cycle {
			names = append(names, f.String())
		}
		names = append(names, cycle[0].String())
		if _, err := fmt.Fprintf(w, "  %s\n", strings.Join(names, " -> ")); err != nil {
			return err
		}
	}
	return nil
}
