package eval

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mvp-joe/typeq/internal/world"
)

// ErrCompileFailure indicates that evaluation produced error diagnostics.
var ErrCompileFailure = errors.New("compilation failed")

// Diagnostic is an evaluation error at a source location.
type Diagnostic struct {
	Span    world.Span
	File    string // display path, "<eval>" for evaluated strings
	Line    int    // 1-based
	Column  int    // 1-based, in bytes
	Message string
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s", d.File, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
}

// CompileError carries every diagnostic of a failed evaluation.
type CompileError struct {
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s with %d error(s):", ErrCompileFailure, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		b.WriteString("\n  ")
		b.WriteString(d.String())
	}
	return b.String()
}

func (e *CompileError) Unwrap() error { return ErrCompileFailure }

// lineColumn converts a byte offset into a 1-based line and column.
func lineColumn(text string, offset int) (int, int) {
	if offset > len(text) {
		offset = len(text)
	}
	line := 1 + strings.Count(text[:offset], "\n")
	col := offset + 1
	if i := strings.LastIndexByte(text[:offset], '\n'); i >= 0 {
		col = offset - i
	}
	return line, col
}
