package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PackageLocator materializes a package and returns its local directory.
// Implementations must be safe to call repeatedly for the same spec.
type PackageLocator interface {
	Locate(ctx context.Context, spec PackageSpec) (string, error)
}

// Resolver maps document references to FileIDs and FileIDs to canonical
// on-disk paths. It holds no cache; package directories are obtained from the
// locator on every call.
type Resolver struct {
	root     string
	packages PackageLocator
}

// NewResolver creates a resolver for the project rooted at root. The root is
// canonicalized (absolute, symlinks evaluated). packages may be nil, in which
// case package references fail with ErrNotFound.
func NewResolver(root string, packages PackageLocator) (*Resolver, error) {
	canonical, err := canonicalDir(root)
	if err != nil {
		return nil, err
	}
	return &Resolver{root: canonical, packages: packages}, nil
}

// Root returns the canonical project root.
func (r *Resolver) Root() string { return r.root }

// FileFor returns the id of an on-disk file that must live inside the project root.
func (r *Resolver) FileFor(filePath string) (FileID, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return FileID{}, notFound(filePath, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return FileID{}, classifyStatError(filePath, err)
	}
	vpath, err := Within(real, r.root)
	if err != nil {
		return FileID{}, outsideRoot(filePath)
	}
	return LocalFile(vpath), nil
}

// Resolve maps a reference written in the file from to a FileID.
//
// Rules, in order: a leading "/" is relative to the root of from (the project
// root, or the package root for package files); anything else is relative to
// from's directory; a leading "@" names a package (@ns/name:version[/path]);
// a missing suffix defaults to DefaultExtension; the result must exist and lie
// within its root.
func (r *Resolver) Resolve(ctx context.Context, ref string, from FileID) (FileID, error) {
	if ref == "" {
		return FileID{}, notFound(ref, errors.New("empty path"))
	}

	var id FileID
	switch {
	case strings.HasPrefix(ref, "@"):
		spec, remainder, err := ParsePackageRef(ref)
		if err != nil {
			return FileID{}, notFound(ref, err)
		}
		var vpath VirtualPath
		if remainder != "" {
			if vpath, err = NewVirtualPath(remainder); err != nil {
				return FileID{}, outsideRoot(ref)
			}
		}
		id = PackageFile(spec, vpath)

	default:
		vpath, err := from.vpath.Join(ref)
		if err != nil {
			return FileID{}, outsideRoot(ref)
		}
		id = FileID{pkg: from.pkg, vpath: vpath}
	}

	root, err := r.rootOf(ctx, id.pkg)
	if err != nil {
		return FileID{}, err
	}

	if id.vpath.IsZero() {
		entry, err := r.entrypoint(root, id.pkg)
		if err != nil {
			return FileID{}, err
		}
		id.vpath = entry
	}
	id.vpath = id.vpath.WithDefaultExtension()

	if _, err := checkWithin(root, id.vpath, ref); err != nil {
		return FileID{}, err
	}
	return id, nil
}

// Locate returns the canonical on-disk path of id.
func (r *Resolver) Locate(ctx context.Context, id FileID) (string, error) {
	if id.IsZero() || id.vpath.IsZero() {
		return "", notFound(id.String(), errors.New("file id has no path"))
	}
	root, err := r.rootOf(ctx, id.pkg)
	if err != nil {
		return "", err
	}
	return checkWithin(root, id.vpath, id.String())
}

// PackageRoot returns the canonical directory of a materialized package.
func (r *Resolver) PackageRoot(ctx context.Context, spec PackageSpec) (string, error) {
	return r.rootOf(ctx, spec)
}

func (r *Resolver) rootOf(ctx context.Context, spec PackageSpec) (string, error) {
	if spec.IsZero() {
		return r.root, nil
	}
	if r.packages == nil {
		return "", notFound(spec.String(), errors.New("package resolution is not available"))
	}
	dir, err := r.packages.Locate(ctx, spec)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("failed to locate package %s: %w", spec, err)
		}
		return "", notFound(spec.String(), err)
	}
	return canonicalDir(dir)
}

func (r *Resolver) entrypoint(root string, spec PackageSpec) (VirtualPath, error) {
	m, err := ReadManifest(root)
	if err != nil {
		return VirtualPath{}, err
	}
	if err := m.Validate(spec); err != nil {
		return VirtualPath{}, Unreadable(filepath.Join(root, ManifestName), err)
	}
	vpath, err := NewVirtualPath(m.Package.Entrypoint)
	if err != nil {
		return VirtualPath{}, outsideRoot(spec.String() + "/" + m.Package.Entrypoint)
	}
	return vpath, nil
}

// checkWithin canonicalizes vpath below root and verifies that it exists, is a
// regular file and, after symlink evaluation, still lies inside root.
func checkWithin(root string, vpath VirtualPath, display string) (string, error) {
	candidate := vpath.Resolve(root)
	real, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", classifyStatError(display, err)
	}
	if _, err := Within(real, root); err != nil {
		return "", outsideRoot(display)
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", classifyStatError(display, err)
	}
	if info.IsDir() {
		return "", notFound(display, errors.New("is a directory"))
	}
	return real, nil
}

func canonicalDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", notFound(dir, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", classifyStatError(dir, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", classifyStatError(dir, err)
	}
	if !info.IsDir() {
		return "", notFound(dir, errors.New("not a directory"))
	}
	return real, nil
}

func classifyStatError(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return notFound(path, nil)
	}
	return Unreadable(path, err)
}
