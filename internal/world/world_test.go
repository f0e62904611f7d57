package world

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typeq/internal/project"
)

// Test Plan for World and SourceCache:
// - Open loads the entry eagerly and defaults the root to the entry's directory
// - A missing entry fails with ErrNotFound
// - Concurrent requests for the same file read it once
// - A package file and a local file with the same display path load separately
// - Loaded content is a snapshot: later disk changes are not observed
// - Invalid UTF-8 is reported as ErrUnreadable with the path
// - Failed loads are not cached
// - Bytes serves raw asset content
// - Range slices attached spans and rejects detached or out-of-range spans
// - Loaded reports files in load order
// - A shared ParseCache reuses trees for unchanged content across worlds

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func openWorld(t *testing.T, files map[string]string) *World {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, files)
	w, err := Open(context.Background(), filepath.Join(root, "main.typ"), "", nil)
	require.NoError(t, err)
	return w
}

func local(t *testing.T, p string) project.FileID {
	t.Helper()
	v, err := project.NewVirtualPath(p)
	require.NoError(t, err)
	return project.LocalFile(v)
}

func TestOpen(t *testing.T) {
	t.Parallel()
	w := openWorld(t, map[string]string{"main.typ": "$a$"})

	assert.Equal(t, "main.typ", w.Display(w.Entry()))
	text, err := w.Text(context.Background(), w.Entry())
	require.NoError(t, err)
	assert.Equal(t, "$a$", text)
	assert.Equal(t, []project.FileID{w.Entry()}, w.Loaded())

	_, err = Open(context.Background(), filepath.Join(t.TempDir(), "missing.typ"), "", nil)
	assert.ErrorIs(t, err, project.ErrNotFound)
}

func TestSourceCache_ConcurrentLoadsReadOnce(t *testing.T) {
	t.Parallel()
	w := openWorld(t, map[string]string{"main.typ": "", "shared.typ": "$s$"})
	id := local(t, "/shared.typ")

	var wg sync.WaitGroup
	results := make([]*Source, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src, err := w.Source(context.Background(), id)
			assert.NoError(t, err)
			results[i] = src
		}(i)
	}
	wg.Wait()

	for _, src := range results {
		assert.Same(t, results[0], src)
	}
	// entry + shared
	assert.Equal(t, int64(2), w.cache.reads.Load())
}

type dirLocator string

func (d dirLocator) Locate(ctx context.Context, spec project.PackageSpec) (string, error) {
	return string(d), nil
}

func TestSourceCache_PackageAndLocalFilesAreDistinct(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	pkgDir := t.TempDir()
	writeFiles(t, root, map[string]string{
		"main.typ":                    "",
		"@preview/cetz:0.2.1/lib.typ": "$local$",
	})
	writeFiles(t, pkgDir, map[string]string{"lib.typ": "$package$"})

	w, err := Open(context.Background(), filepath.Join(root, "main.typ"), root, dirLocator(pkgDir))
	require.NoError(t, err)

	spec := project.PackageSpec{Namespace: "preview", Name: "cetz", Version: project.Version{Major: 0, Minor: 2, Patch: 1}}
	pkgID := project.PackageFile(spec, project.MustVirtualPath("/lib.typ"))
	localID := local(t, "/@preview/cetz:0.2.1/lib.typ")
	require.Equal(t, pkgID.String(), localID.String())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			src, err := w.Source(context.Background(), pkgID)
			if assert.NoError(t, err) {
				assert.Equal(t, "$package$", src.Text)
			}
		}()
		go func() {
			defer wg.Done()
			src, err := w.Source(context.Background(), localID)
			if assert.NoError(t, err) {
				assert.Equal(t, "$local$", src.Text)
			}
		}()
	}
	wg.Wait()
}

func TestSourceCache_Snapshot(t *testing.T) {
	t.Parallel()
	w := openWorld(t, map[string]string{"main.typ": "before"})

	require.NoError(t, os.WriteFile(filepath.Join(w.Root(), "main.typ"), []byte("after"), 0644))

	text, err := w.Text(context.Background(), w.Entry())
	require.NoError(t, err)
	assert.Equal(t, "before", text)
	assert.Equal(t, int64(1), w.cache.reads.Load())
}

func TestSourceCache_InvalidUTF8(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"main.typ": "ok", "bad.typ": "\xff\xfe"})
	w, err := Open(context.Background(), filepath.Join(root, "main.typ"), root, nil)
	require.NoError(t, err)

	_, err = w.Source(context.Background(), local(t, "/bad.typ"))
	require.ErrorIs(t, err, project.ErrUnreadable)
	var fe *project.FileError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Path, "bad.typ")

	// Raw bytes are still available
	data, err := w.Bytes(context.Background(), local(t, "/bad.typ"))
	require.NoError(t, err)
	assert.Equal(t, []byte("\xff\xfe"), data)
}

func TestSourceCache_FailuresAreNotCached(t *testing.T) {
	t.Parallel()
	w := openWorld(t, map[string]string{"main.typ": ""})
	id := local(t, "/late.typ")

	_, err := w.Source(context.Background(), id)
	require.ErrorIs(t, err, project.ErrNotFound)

	writeFiles(t, w.Root(), map[string]string{"late.typ": "$l$"})
	src, err := w.Source(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "$l$", src.Text)
}

func TestWorld_Range(t *testing.T) {
	t.Parallel()
	w := openWorld(t, map[string]string{"main.typ": "See $x + 1$ here"})
	ctx := context.Background()

	text, err := w.Range(ctx, Span{File: w.Entry(), Start: 4, End: 11})
	require.NoError(t, err)
	assert.Equal(t, "$x + 1$", text)

	_, err = w.Range(ctx, Detached())
	assert.ErrorIs(t, err, ErrDetachedSpan)

	_, err = w.Range(ctx, Span{File: w.Entry(), Start: 4, End: 400})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = w.Range(ctx, Span{File: local(t, "/gone.typ"), Start: 0, End: 1})
	assert.ErrorIs(t, err, project.ErrNotFound)
}

func TestWorld_ParsesOnceAndResolves(t *testing.T) {
	t.Parallel()
	w := openWorld(t, map[string]string{
		"main.typ":      "#include \"parts/sub.typ\"",
		"parts/sub.typ": "$e$",
	})
	ctx := context.Background()

	src, err := w.Source(ctx, w.Entry())
	require.NoError(t, err)
	require.NotNil(t, src.Root)
	assert.Equal(t, src.Text, src.Root.Text())

	sub, err := w.Resolve(ctx, "parts/sub", w.Entry())
	require.NoError(t, err)
	assert.Equal(t, "parts/sub.typ", w.Display(sub))

	path, err := w.Locate(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Root(), "parts", "sub.typ"), path)

	_, err = w.Source(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, []project.FileID{w.Entry(), sub}, w.Loaded())
}

func TestParseCache_SharedAcrossWorlds(t *testing.T) {
	t.Parallel()
	parses, err := NewParseCache(16)
	require.NoError(t, err)
	defer parses.Close()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{"main.typ": "$a$ and $b$"})
	entry := filepath.Join(root, "main.typ")

	first, err := Open(context.Background(), entry, root, nil, WithParseCache(parses))
	require.NoError(t, err)
	second, err := Open(context.Background(), entry, root, nil, WithParseCache(parses))
	require.NoError(t, err)

	a, err := first.Source(context.Background(), first.Entry())
	require.NoError(t, err)
	b, err := second.Source(context.Background(), second.Entry())
	require.NoError(t, err)
	assert.Same(t, a.Root, b.Root)
	assert.Equal(t, int64(1), parses.Hits())

	// Changed content is parsed again
	writeFiles(t, root, map[string]string{"main.typ": "$c$"})
	third, err := Open(context.Background(), entry, root, nil, WithParseCache(parses))
	require.NoError(t, err)
	c, err := third.Source(context.Background(), third.Entry())
	require.NoError(t, err)
	assert.NotSame(t, a.Root, c.Root)
	assert.Equal(t, "$c$", c.Text)
}

func TestParseCache_Nil(t *testing.T) {
	t.Parallel()
	var parses *ParseCache
	assert.NotNil(t, parses.Parse("$x$"))
}
