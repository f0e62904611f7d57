package world

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/mvp-joe/typeq/internal/project"
)

// FileLocator maps a file id to its canonical on-disk path.
type FileLocator interface {
	Locate(ctx context.Context, id project.FileID) (string, error)
}

// SourceCache loads each file at most once per run and keeps it for the
// run's lifetime. Loads of different files proceed in parallel; concurrent
// requests for the same unloaded file share a single read. Failed loads are
// not cached.
type SourceCache struct {
	locator FileLocator
	parses  *ParseCache

	group   singleflight.Group
	mu      sync.RWMutex
	sources map[project.FileID]*Source
	bytes   map[project.FileID][]byte
	order   []project.FileID

	reads atomic.Int64
}

// NewSourceCache creates an empty cache that resolves ids with locator.
func NewSourceCache(locator FileLocator) *SourceCache {
	return &SourceCache{
		locator: locator,
		sources: make(map[project.FileID]*Source),
		bytes:   make(map[project.FileID][]byte),
	}
}

// Source returns the loaded and parsed file for id.
func (c *SourceCache) Source(ctx context.Context, id project.FileID) (*Source, error) {
	c.mu.RLock()
	src, ok := c.sources[id]
	c.mu.RUnlock()
	if ok {
		return src, nil
	}

	v, err, _ := c.group.Do("source:"+id.Key(), func() (interface{}, error) {
		// A flight for id may have completed between the lookup and Do.
		c.mu.RLock()
		src, ok := c.sources[id]
		c.mu.RUnlock()
		if ok {
			return src, nil
		}

		src, err := c.loadSource(ctx, id)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.sources[id] = src
		c.order = append(c.order, id)
		c.mu.Unlock()
		return src, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Source), nil
}

// Bytes returns the raw content of id, for assets that are not text.
func (c *SourceCache) Bytes(ctx context.Context, id project.FileID) ([]byte, error) {
	c.mu.RLock()
	data, ok := c.bytes[id]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	v, err, _ := c.group.Do("bytes:"+id.Key(), func() (interface{}, error) {
		c.mu.RLock()
		data, ok := c.bytes[id]
		c.mu.RUnlock()
		if ok {
			return data, nil
		}

		_, data, err := c.read(ctx, id)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.bytes[id] = data
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Loaded returns the ids of all parsed sources in load order.
func (c *SourceCache) Loaded() []project.FileID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]project.FileID, len(c.order))
	copy(out, c.order)
	return out
}

func (c *SourceCache) loadSource(ctx context.Context, id project.FileID) (*Source, error) {
	path, data, err := c.read(ctx, id)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, project.Unreadable(path, errors.New("file is not valid UTF-8"))
	}
	text := string(data)
	return &Source{
		ID:   id,
		Path: path,
		Text: text,
		Root: c.parses.Parse(text),
	}, nil
}

func (c *SourceCache) read(ctx context.Context, id project.FileID) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	path, err := c.locator.Locate(ctx, id)
	if err != nil {
		return "", nil, err
	}
	c.reads.Add(1)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, project.Unreadable(path, err)
	}
	return path, data, nil
}

func (c *SourceCache) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("SourceCache{sources: %d, assets: %d}", len(c.sources), len(c.bytes))
}
