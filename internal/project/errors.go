package project

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a reference that does not resolve to an existing file within its root
	ErrNotFound = errors.New("file not found")

	// ErrOutsideRoot indicates a reference that escapes the project or package root
	ErrOutsideRoot = errors.New("path escapes root")

	// ErrUnreadable indicates a file that exists but whose content cannot be loaded
	ErrUnreadable = errors.New("file unreadable")
)

// FileError describes a failed resolution or load of a single file.
// Path is the attempted reference or on-disk path, kept for diagnostics.
type FileError struct {
	Kind  error // one of ErrNotFound, ErrOutsideRoot, ErrUnreadable
	Path  string
	Cause error
}

func (e *FileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Path)
}

// Unwrap exposes both the classification and the underlying cause to errors.Is/As.
func (e *FileError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func notFound(path string, cause error) error {
	return &FileError{Kind: ErrNotFound, Path: path, Cause: cause}
}

func outsideRoot(path string) error {
	return &FileError{Kind: ErrOutsideRoot, Path: path}
}

// Unreadable builds an ErrUnreadable error for the given path.
func Unreadable(path string, cause error) error {
	return &FileError{Kind: ErrUnreadable, Path: path, Cause: cause}
}
