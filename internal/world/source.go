package world

import (
	"errors"
	"fmt"

	"github.com/mvp-joe/typeq/internal/project"
	"github.com/mvp-joe/typeq/internal/syntax"
)

var (
	// ErrDetachedSpan indicates a span without an owning file.
	ErrDetachedSpan = errors.New("span is detached")

	// ErrInvalidRange indicates a span whose byte range does not fit the
	// owning file's text.
	ErrInvalidRange = errors.New("span range is invalid for file")
)

// Source is a loaded file: its id, canonical on-disk path, text and the
// syntax tree parsed once at load time. Sources are immutable.
type Source struct {
	ID   project.FileID
	Path string
	Text string
	Root *syntax.Node
}

// Slice returns the text between the byte offsets start and end.
func (s *Source) Slice(start, end int) (string, error) {
	if start < 0 || end < start || end > len(s.Text) {
		return "", fmt.Errorf("%w: %s [%d, %d) of %d bytes", ErrInvalidRange, s.ID, start, end, len(s.Text))
	}
	return s.Text[start:end], nil
}

// Span is a byte range in a file. The zero Span is detached: it belongs to no
// file, as for nodes built from strings at evaluation time.
type Span struct {
	File  project.FileID
	Start int
	End   int
}

// Detached returns the detached span.
func Detached() Span { return Span{} }

// IsDetached reports whether the span has no owning file.
func (s Span) IsDetached() bool { return s.File.IsZero() }

// SpanOf returns the span of a syntax node in file.
func SpanOf(file project.FileID, n *syntax.Node) Span {
	if file.IsZero() || n == nil {
		return Detached()
	}
	return Span{File: file, Start: n.Start, End: n.End}
}

func (s Span) String() string {
	if s.IsDetached() {
		return "<detached>"
	}
	return fmt.Sprintf("%s:%d-%d", s.File, s.Start, s.End)
}
