// Package project identifies files of a Typst project independently of where
// they live on disk, and resolves import/include references between them.
//
// A file is addressed by a FileID: an optional PackageSpec plus a VirtualPath
// that is relative to the root of the project (or of the package). Resolution
// maps a reference written in a document to a FileID and a FileID to a
// canonical on-disk path, refusing anything that escapes its root.
package project

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultExtension is appended to references that carry no file suffix.
const DefaultExtension = ".typ"

// Version is a semantic package version.
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses "major.minor.patch".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("version must have three components, got %q", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version component %q in %q", p, s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// PackageSpec identifies a versioned package, written @namespace/name:version.
// The zero value means "no package" (a project-local file).
type PackageSpec struct {
	Namespace string
	Name      string
	Version   Version
}

// IsZero reports whether the spec denotes no package.
func (s PackageSpec) IsZero() bool {
	return s.Namespace == "" && s.Name == ""
}

func (s PackageSpec) String() string {
	if s.IsZero() {
		return ""
	}
	return fmt.Sprintf("@%s/%s:%s", s.Namespace, s.Name, s.Version)
}

// ParsePackageRef splits a reference of the form @namespace/name:version[/path]
// into the package spec and the remaining package-relative path ("" when the
// reference names the package itself).
func ParsePackageRef(ref string) (PackageSpec, string, error) {
	if !strings.HasPrefix(ref, "@") {
		return PackageSpec{}, "", fmt.Errorf("package reference must start with '@': %q", ref)
	}
	body := ref[1:]

	namespace, rest, ok := strings.Cut(body, "/")
	if !ok || !isIdent(namespace) {
		return PackageSpec{}, "", fmt.Errorf("package reference is missing a namespace: %q", ref)
	}

	name, rest, ok := strings.Cut(rest, ":")
	if !ok || !isIdent(name) {
		return PackageSpec{}, "", fmt.Errorf("package reference is missing a name or version: %q", ref)
	}

	versionStr, remainder, _ := strings.Cut(rest, "/")
	version, err := ParseVersion(versionStr)
	if err != nil {
		return PackageSpec{}, "", fmt.Errorf("invalid package reference %q: %w", ref, err)
	}

	return PackageSpec{Namespace: namespace, Name: name, Version: version}, remainder, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '-' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}

// VirtualPath is a root-relative, slash-separated, lexically clean path that
// always starts with "/". The zero value is the empty path.
type VirtualPath struct {
	p string
}

// NewVirtualPath normalizes p relative to a root. A ".." that would climb
// above the root yields ErrOutsideRoot.
func NewVirtualPath(p string) (VirtualPath, error) {
	p = filepath.ToSlash(p)
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) == 0 {
				return VirtualPath{}, outsideRoot(p)
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, seg)
		}
	}
	return VirtualPath{p: "/" + strings.Join(parts, "/")}, nil
}

// MustVirtualPath is NewVirtualPath for literals known to be valid.
func MustVirtualPath(p string) VirtualPath {
	v, err := NewVirtualPath(p)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether the path is empty.
func (v VirtualPath) IsZero() bool { return v.p == "" }

func (v VirtualPath) String() string { return v.p }

// Dir returns the directory containing the path, "/" for top-level files.
func (v VirtualPath) Dir() string {
	if v.p == "" {
		return "/"
	}
	return path.Dir(v.p)
}

// Ext returns the file suffix including the dot.
func (v VirtualPath) Ext() string { return path.Ext(v.p) }

// Join resolves ref against the directory of v. A leading "/" makes ref
// root-relative.
func (v VirtualPath) Join(ref string) (VirtualPath, error) {
	ref = filepath.ToSlash(ref)
	if strings.HasPrefix(ref, "/") {
		return NewVirtualPath(ref)
	}
	return NewVirtualPath(v.Dir() + "/" + ref)
}

// WithDefaultExtension appends DefaultExtension when the path has no suffix.
func (v VirtualPath) WithDefaultExtension() VirtualPath {
	if v.p == "" || v.p == "/" || v.Ext() != "" {
		return v
	}
	return VirtualPath{p: v.p + DefaultExtension}
}

// Resolve joins the path onto an on-disk root directory.
func (v VirtualPath) Resolve(root string) string {
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(v.p, "/")))
}

// Within computes the virtual path of an absolute path below root.
func Within(abs, root string) (VirtualPath, error) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return VirtualPath{}, outsideRoot(abs)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return VirtualPath{}, outsideRoot(abs)
	}
	return NewVirtualPath(rel)
}

// FileID identifies a file independent of its on-disk location. FileIDs are
// comparable and usable as map keys; the zero FileID identifies no file.
type FileID struct {
	pkg   PackageSpec
	vpath VirtualPath
}

// LocalFile returns the id of a project-local file.
func LocalFile(v VirtualPath) FileID {
	return FileID{vpath: v}
}

// PackageFile returns the id of a file inside a package.
func PackageFile(spec PackageSpec, v VirtualPath) FileID {
	return FileID{pkg: spec, vpath: v}
}

// Package returns the package the file belongs to, if any.
func (id FileID) Package() (PackageSpec, bool) {
	return id.pkg, !id.pkg.IsZero()
}

// Path returns the file's virtual path.
func (id FileID) Path() VirtualPath { return id.vpath }

// IsZero reports whether the id identifies no file.
func (id FileID) IsZero() bool {
	return id.pkg.IsZero() && id.vpath.IsZero()
}

// Key returns a string that identifies the id uniquely. Unlike String, it
// keeps package files apart from local files with the same display path.
func (id FileID) Key() string {
	return fmt.Sprintf("%q|%s", id.pkg.String(), id.vpath.String())
}

// String renders the id as a root-relative display path: "parts/sub.typ" for
// project files, "@preview/pkg:1.0.0/lib.typ" for package files.
func (id FileID) String() string {
	if id.IsZero() {
		return "<detached>"
	}
	if !id.pkg.IsZero() {
		return id.pkg.String() + id.vpath.String()
	}
	return strings.TrimPrefix(id.vpath.String(), "/")
}
