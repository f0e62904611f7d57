package watcher

import (
	"context"
	"log"
)

// WatchCoordinator runs an extraction once, then again after every batch of
// file changes. File events that arrive while a run is in progress are
// accumulated and trigger the next run.
type WatchCoordinator struct {
	files FileWatcher
	run   RunFunc
}

// NewWatchCoordinator creates a new watch coordinator.
func NewWatchCoordinator(files FileWatcher, run RunFunc) *WatchCoordinator {
	return &WatchCoordinator{
		files: files,
		run:   run,
	}
}

// Start performs the initial run and then re-runs on changes.
// Blocks until context is cancelled. Failed runs are logged, not returned.
func (c *WatchCoordinator) Start(ctx context.Context) error {
	c.rerun(ctx, nil)

	if err := c.files.Start(ctx, func(files []string) { c.handleFileChange(ctx, files) }); err != nil {
		c.cleanup()
		return err
	}

	<-ctx.Done()
	c.cleanup()
	return ctx.Err()
}

// cleanup stops the file watcher.
func (c *WatchCoordinator) cleanup() {
	if err := c.files.Stop(); err != nil {
		log.Printf("Warning: file watcher stop failed: %v", err)
	}
}

// handleFileChange processes file change events from the file watcher.
func (c *WatchCoordinator) handleFileChange(ctx context.Context, files []string) {
	if len(files) == 0 || ctx.Err() != nil {
		return
	}

	log.Printf("Processing %d file change(s)...", len(files))

	c.files.Pause()
	defer c.files.Resume()
	c.rerun(ctx, files)
}

func (c *WatchCoordinator) rerun(ctx context.Context, files []string) {
	if err := c.run(ctx, files); err != nil {
		log.Printf("Error: extraction failed: %v", err)
	}
}
