// Package watcher re-runs an extraction whenever the files of a Typst
// project change.
package watcher

import "context"

// FileWatcher monitors project files for changes with debouncing and pause/resume support.
type FileWatcher interface {
	// Start begins watching the project, calling callback with debounced file changes.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the file watcher and cleans up resources.
	Stop() error

	// Pause stops firing callbacks but continues accumulating events.
	Pause()

	// Resume resumes firing callbacks. If events accumulated during pause, fires immediately.
	Resume()
}

// RunFunc performs one extraction. changed is empty for the initial run.
type RunFunc func(ctx context.Context, changed []string) error
