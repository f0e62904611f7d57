package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ManifestName is the file describing a package at the root of its directory.
const ManifestName = "typst.toml"

// Manifest is the subset of typst.toml needed to locate a package's files.
type Manifest struct {
	Package PackageInfo `toml:"package"`
}

// PackageInfo is the [package] table of a manifest.
type PackageInfo struct {
	Name       string `toml:"name"`
	Version    string `toml:"version"`
	Entrypoint string `toml:"entrypoint"`
}

// ReadManifest parses the manifest of a materialized package directory.
func ReadManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound(manifestPath, nil)
		}
		return nil, Unreadable(manifestPath, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, Unreadable(manifestPath, fmt.Errorf("failed to parse manifest: %w", err))
	}
	if m.Package.Entrypoint == "" {
		return nil, Unreadable(manifestPath, errors.New("manifest has no package.entrypoint"))
	}
	return &m, nil
}

// Validate checks that the manifest describes the package it was loaded for.
func (m *Manifest) Validate(spec PackageSpec) error {
	if m.Package.Name != "" && m.Package.Name != spec.Name {
		return fmt.Errorf("manifest names package %q, expected %q", m.Package.Name, spec.Name)
	}
	if m.Package.Version != "" && m.Package.Version != spec.Version.String() {
		return fmt.Errorf("manifest declares version %s, expected %s", m.Package.Version, spec.Version)
	}
	return nil
}
