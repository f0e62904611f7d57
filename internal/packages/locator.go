// Package packages materializes versioned Typst packages on the local disk.
//
// Lookup order for @namespace/name:version:
//  1. {DataDir}/{namespace}/{name}/{version}   (locally installed packages)
//  2. {CacheDir}/{namespace}/{name}/{version}  (previously downloaded)
//  3. download {Registry}/{namespace}/{name}-{version}.tar.gz into the cache
//     (only for the "preview" namespace, never when Offline is set)
//
// Locate is idempotent: concurrent calls for the same package share one
// download, and other processes are kept out by a lock file next to the
// package directory.
package packages

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"github.com/mvp-joe/typeq/internal/project"
)

const (
	// DefaultRegistry is the public Typst package registry.
	DefaultRegistry = "https://packages.typst.org"

	// DownloadableNamespace is the only namespace fetched from the registry.
	DownloadableNamespace = "preview"

	lockRetryDelay = 100 * time.Millisecond
)

// ErrPackageNotFound indicates a package that is neither installed nor downloadable.
var ErrPackageNotFound = errors.New("package not found")

// Config configures package lookup.
type Config struct {
	DataDir  string // locally installed packages; empty disables
	CacheDir string // downloaded packages
	Registry string // registry base URL
	Offline  bool   // never download
}

// DefaultDataDir returns the directory holding locally installed packages.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "typst", "packages")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "typst", "packages")
}

// DefaultCacheDir returns the directory holding downloaded packages.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "typst", "packages")
	}
	return filepath.Join(dir, "typst", "packages")
}

// Locator implements project.PackageLocator over the local disk and a registry.
type Locator struct {
	cfg        Config
	downloader Downloader

	group singleflight.Group
	mu    sync.RWMutex
	dirs  map[project.PackageSpec]string
}

// NewLocator creates a locator. If downloader is nil, an HTTPDownloader is used.
func NewLocator(cfg Config, downloader Downloader) *Locator {
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir()
	}
	if cfg.Registry == "" {
		cfg.Registry = DefaultRegistry
	}
	if downloader == nil {
		downloader = NewHTTPDownloader(false)
	}
	return &Locator{
		cfg:        cfg,
		downloader: downloader,
		dirs:       make(map[project.PackageSpec]string),
	}
}

// Locate returns the local directory of spec, downloading it if needed.
func (l *Locator) Locate(ctx context.Context, spec project.PackageSpec) (string, error) {
	l.mu.RLock()
	dir, ok := l.dirs[spec]
	l.mu.RUnlock()
	if ok {
		return dir, nil
	}

	v, err, _ := l.group.Do(spec.String(), func() (interface{}, error) {
		dir, err := l.locate(ctx, spec)
		if err != nil {
			return "", err
		}
		l.mu.Lock()
		l.dirs[spec] = dir
		l.mu.Unlock()
		return dir, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (l *Locator) locate(ctx context.Context, spec project.PackageSpec) (string, error) {
	subdir := filepath.Join(spec.Namespace, spec.Name, spec.Version.String())

	if l.cfg.DataDir != "" {
		if dir := filepath.Join(l.cfg.DataDir, subdir); isDir(dir) {
			return dir, nil
		}
	}

	dir := filepath.Join(l.cfg.CacheDir, subdir)
	if isDir(dir) {
		return dir, nil
	}

	if spec.Namespace != DownloadableNamespace {
		return "", fmt.Errorf("%w: %s (only @%s packages can be downloaded)", ErrPackageNotFound, spec, DownloadableNamespace)
	}
	if l.cfg.Offline {
		return "", fmt.Errorf("%w: %s is not cached and downloads are disabled", ErrPackageNotFound, spec)
	}

	if err := l.download(ctx, spec, dir); err != nil {
		return "", err
	}
	return dir, nil
}

// download fetches spec into dir under a cross-process lock. The archive is
// unpacked into a sibling temp directory and renamed into place so that a
// half-extracted package is never visible.
func (l *Locator) download(ctx context.Context, spec project.PackageSpec, dir string) error {
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create package cache: %w", err)
	}

	lock := flock.New(dir + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock package cache for %s: %w", spec, err)
	}
	if !locked {
		return fmt.Errorf("failed to lock package cache for %s", spec)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Printf("Warning: failed to release package lock for %s: %v", spec, err)
		}
	}()

	// Another process may have finished the download while we waited
	if isDir(dir) {
		return nil
	}

	tmpDir, err := os.MkdirTemp(parent, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	url := l.URL(spec)
	if err := l.downloader.DownloadAndExtract(ctx, url, tmpDir); err != nil {
		return fmt.Errorf("failed to download %s: %w\n\nDiagnostics:\n  URL: %s\n  Cache: %s", spec, err, url, l.cfg.CacheDir)
	}

	if err := os.Rename(tmpDir, dir); err != nil {
		return fmt.Errorf("failed to move package into cache: %w", err)
	}
	return nil
}

// URL returns the registry download URL for spec.
func (l *Locator) URL(spec project.PackageSpec) string {
	return fmt.Sprintf("%s/%s/%s-%s.tar.gz", l.cfg.Registry, spec.Namespace, spec.Name, spec.Version)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
