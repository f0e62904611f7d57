package world

import (
	"crypto/sha256"

	"github.com/maypok86/otter"

	"github.com/mvp-joe/typeq/internal/syntax"
)

// DefaultParseCacheSize is the number of parse trees a ParseCache keeps.
const DefaultParseCacheSize = 1024

// ParseCache keeps parse trees across runs, keyed by file content, so that
// re-extracting a project only parses the files that changed. Trees are
// shared between worlds and must not be modified.
type ParseCache struct {
	trees otter.Cache[[sha256.Size]byte, *syntax.Node]
}

// NewParseCache creates a cache holding up to capacity trees.
func NewParseCache(capacity int) (*ParseCache, error) {
	if capacity <= 0 {
		capacity = DefaultParseCacheSize
	}
	trees, err := otter.MustBuilder[[sha256.Size]byte, *syntax.Node](capacity).
		CollectStats().
		Build()
	if err != nil {
		return nil, err
	}
	return &ParseCache{trees: trees}, nil
}

// Parse returns the markup tree of text, parsing it only on a miss.
// A nil cache parses every time.
func (p *ParseCache) Parse(text string) *syntax.Node {
	if p == nil {
		return syntax.Parse(text)
	}
	key := sha256.Sum256([]byte(text))
	if root, ok := p.trees.Get(key); ok {
		return root
	}
	root := syntax.Parse(text)
	p.trees.Set(key, root)
	return root
}

// Hits returns the number of parses served from the cache.
func (p *ParseCache) Hits() int64 {
	return p.trees.Stats().Hits()
}

// Close releases the cache's background resources.
func (p *ParseCache) Close() {
	p.trees.Close()
}
