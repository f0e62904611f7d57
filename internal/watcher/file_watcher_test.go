package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for FileWatcher:
// - NewFileWatcher creates watcher successfully with a valid root
// - NewFileWatcher returns error with invalid root or ignore pattern
// - Single .typ change fires callback after debounce
// - Multiple file changes are batched into one sorted callback
// - Pause/Resume behavior (accumulate during pause, fire on resume)
// - Directory added triggers recursive watch
// - Extension filtering (only .typ and .toml trigger callback)
// - Ignore patterns skip matching files and directories
// - Stop() cleanup and repeated Stop() are safe
// - Context cancellation stops watcher

// collector records callback batches.
type collector struct {
	mu      sync.Mutex
	batches [][]string
	called  chan struct{}
}

func newCollector() *collector {
	return &collector{called: make(chan struct{}, 10)}
}

func (c *collector) callback(files []string) {
	c.mu.Lock()
	c.batches = append(c.batches, files)
	c.mu.Unlock()
	c.called <- struct{}{}
}

func (c *collector) wait(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-c.called:
	case <-time.After(timeout):
		t.Fatal("Callback not called after timeout")
	}
}

func (c *collector) files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func startWatcher(t *testing.T, root string, opts Options) (FileWatcher, *collector) {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = 100 * time.Millisecond
	}
	w, err := NewFileWatcher(root, opts)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	c := newCollector()
	require.NoError(t, w.Start(context.Background(), c.callback))
	// Wait for watcher to initialize
	time.Sleep(100 * time.Millisecond)
	return w, c
}

func TestNewFileWatcher_Success(t *testing.T) {
	t.Parallel()

	w, err := NewFileWatcher(t.TempDir(), Options{})
	require.NoError(t, err)
	require.NotNil(t, w)

	fw := w.(*fileWatcher)
	assert.Equal(t, 500*time.Millisecond, fw.debounceTime)
	assert.True(t, fw.extensions[".typ"])

	require.NoError(t, w.Stop())
}

func TestNewFileWatcher_Errors(t *testing.T) {
	t.Parallel()

	w, err := NewFileWatcher(filepath.Join(t.TempDir(), "nonexistent"), Options{})
	assert.Error(t, err)
	assert.Nil(t, w)

	w, err = NewFileWatcher(t.TempDir(), Options{Ignore: []string{"[unclosed"}})
	assert.Error(t, err)
	assert.Nil(t, w)
}

func TestFileWatcher_SingleFileChange(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, c := startWatcher(t, root, Options{})

	file := filepath.Join(root, "main.typ")
	require.NoError(t, os.WriteFile(file, []byte("$x$"), 0644))

	c.wait(t, 2*time.Second)
	assert.Equal(t, []string{file}, c.files())
}

func TestFileWatcher_BatchedAndSorted(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, c := startWatcher(t, root, Options{Debounce: 300 * time.Millisecond})

	b := filepath.Join(root, "b.typ")
	a := filepath.Join(root, "a.typ")
	require.NoError(t, os.WriteFile(b, []byte("b"), 0644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(a, []byte("a"), 0644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(b, []byte("b2"), 0644))

	c.wait(t, 2*time.Second)
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.batches, 1)
	assert.Equal(t, []string{a, b}, c.batches[0])
}

func TestFileWatcher_PauseResume(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w, c := startWatcher(t, root, Options{})

	w.Pause()
	file := filepath.Join(root, "paused.typ")
	require.NoError(t, os.WriteFile(file, []byte("$p$"), 0644))

	// Wait beyond debounce period - callback should NOT fire
	time.Sleep(500 * time.Millisecond)
	assert.Empty(t, c.files(), "No callbacks should fire while paused")

	w.Resume()
	c.wait(t, 500*time.Millisecond)
	assert.Contains(t, c.files(), file)
}

func TestFileWatcher_DirectoryAdded(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, c := startWatcher(t, root, Options{})

	dir := filepath.Join(root, "chapters")
	require.NoError(t, os.Mkdir(dir, 0755))
	time.Sleep(300 * time.Millisecond)

	file := filepath.Join(dir, "one.typ")
	require.NoError(t, os.WriteFile(file, []byte("$1$"), 0644))

	c.wait(t, 2*time.Second)
	assert.Contains(t, c.files(), file)
}

func TestFileWatcher_ExtensionFiltering(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, c := startWatcher(t, root, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(root, "out.pdf"), []byte("%PDF"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("# x"), 0644))
	manifest := filepath.Join(root, "typst.toml")
	require.NoError(t, os.WriteFile(manifest, []byte("[package]"), 0644))

	c.wait(t, 2*time.Second)
	assert.Equal(t, []string{manifest}, c.files())
}

func TestFileWatcher_Ignore(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	drafts := filepath.Join(root, "drafts")
	require.NoError(t, os.Mkdir(drafts, 0755))
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	w, c := startWatcher(t, root, Options{Ignore: []string{"drafts/**", "**/scratch.typ"}})
	fw := w.(*fileWatcher)
	assert.True(t, fw.ignored(drafts))
	assert.True(t, fw.ignored(filepath.Join(root, "a", "scratch.typ")))
	assert.False(t, fw.ignored(filepath.Join(root, "main.typ")))

	require.NoError(t, os.WriteFile(filepath.Join(drafts, "d.typ"), []byte("d"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "scratch.typ"), []byte("s"), 0644))
	kept := filepath.Join(root, "main.typ")
	require.NoError(t, os.WriteFile(kept, []byte("m"), 0644))

	c.wait(t, 2*time.Second)
	assert.Equal(t, []string{kept}, c.files())
}

func TestFileWatcher_StopCleanup(t *testing.T) {
	t.Parallel()

	w, err := NewFileWatcher(t.TempDir(), Options{})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), func([]string) {}))

	start := time.Now()
	require.NoError(t, w.Stop())
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	// Calling Stop() again should be safe
	require.NoError(t, w.Stop())
}

func TestFileWatcher_StopWithoutStart(t *testing.T) {
	t.Parallel()

	w, err := NewFileWatcher(t.TempDir(), Options{})
	require.NoError(t, err)
	require.NoError(t, w.Stop())
}

func TestFileWatcher_ContextCancellation(t *testing.T) {
	t.Parallel()

	w, err := NewFileWatcher(t.TempDir(), Options{})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, func([]string) {}))
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	cancel()
	<-w.(*fileWatcher).doneCh
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
