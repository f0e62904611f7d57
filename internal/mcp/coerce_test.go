package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for coerceBindArguments:
// - Properly typed arguments bind unchanged
// - Stringified numbers and booleans are converted
// - JSON-encoded and comma-separated string arrays become slices
// - Missing optional arguments leave zero values

type mockArgumentGetter struct {
	args map[string]interface{}
}

func (m *mockArgumentGetter) GetArguments() map[string]interface{} {
	return m.args
}

type taggedRequest struct {
	Entry string   `json:"entry"`
	Files []string `json:"files,omitempty"`
}

func TestCoerceBindArguments(t *testing.T) {
	t.Parallel()

	t.Run("proper types", func(t *testing.T) {
		t.Parallel()
		var req ExtractRequest
		err := coerceBindArguments(&mockArgumentGetter{args: map[string]interface{}{
			"entry":    "main.typ",
			"strategy": "eval",
			"offline":  true,
			"limit":    float64(3),
		}}, &req)
		require.NoError(t, err)
		assert.Equal(t, ExtractRequest{Entry: "main.typ", Strategy: "eval", Offline: true, Limit: 3}, req)
	})

	t.Run("stringified scalars", func(t *testing.T) {
		t.Parallel()
		var req ExtractRequest
		err := coerceBindArguments(&mockArgumentGetter{args: map[string]interface{}{
			"entry":   "main.typ",
			"offline": "true",
			"limit":   "5",
		}}, &req)
		require.NoError(t, err)
		assert.True(t, req.Offline)
		assert.Equal(t, 5, req.Limit)
	})

	t.Run("string arrays", func(t *testing.T) {
		t.Parallel()
		var req taggedRequest
		err := coerceBindArguments(&mockArgumentGetter{args: map[string]interface{}{
			"entry": "main.typ",
			"files": `["a.typ", "b.typ"]`,
		}}, &req)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.typ", "b.typ"}, req.Files)

		req = taggedRequest{}
		err = coerceBindArguments(&mockArgumentGetter{args: map[string]interface{}{
			"files": "a.typ,b.typ",
		}}, &req)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.typ", "b.typ"}, req.Files)
	})

	t.Run("missing optionals", func(t *testing.T) {
		t.Parallel()
		var req ExtractRequest
		err := coerceBindArguments(&mockArgumentGetter{args: map[string]interface{}{"entry": "x.typ"}}, &req)
		require.NoError(t, err)
		assert.Equal(t, ExtractRequest{Entry: "x.typ"}, req)
	})
}
