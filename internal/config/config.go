// Package config provides configuration loading for typeq.
//
// Settings are layered, highest priority first:
//
//  1. Environment variables (TYPEQ_*)
//  2. Project config (.typeq/config.yml in the project root)
//  3. User config (~/.typeq/config.yml)
//  4. Built-in defaults
//
// Nested keys map to environment variables with underscores, for example
// TYPEQ_PACKAGES_OFFLINE for packages.offline.
package config

import (
	"time"

	"github.com/mvp-joe/typeq/internal/extract"
	"github.com/mvp-joe/typeq/internal/packages"
	"github.com/mvp-joe/typeq/internal/syntax"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config represents the complete typeq configuration.
type Config struct {
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Packages PackagesConfig `yaml:"packages" mapstructure:"packages"`
	Watch    WatchConfig    `yaml:"watch" mapstructure:"watch"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// ExtractConfig selects what is extracted and how.
type ExtractConfig struct {
	Strategy string `yaml:"strategy" mapstructure:"strategy"` // "syntax" or "eval"
	Target   string `yaml:"target" mapstructure:"target"`     // "equation" or "raw"
}

// PackagesConfig configures where @namespace/name:version imports are found.
type PackagesConfig struct {
	DataDir  string `yaml:"data_dir" mapstructure:"data_dir"`   // locally installed packages
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"` // downloaded packages
	Registry string `yaml:"registry" mapstructure:"registry"`   // registry base URL
	Offline  bool   `yaml:"offline" mapstructure:"offline"`     // never download
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	DebounceMs int      `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	Ignore     []string `yaml:"ignore" mapstructure:"ignore"` // glob patterns relative to the project root
}

// OutputConfig configures how results are printed.
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // "text" or "json"
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Extract: ExtractConfig{
			Strategy: extract.StrategySyntax,
			Target:   "equation",
		},
		Packages: PackagesConfig{
			DataDir:  packages.DefaultDataDir(),
			CacheDir: packages.DefaultCacheDir(),
			Registry: packages.DefaultRegistry,
		},
		Watch: WatchConfig{
			DebounceMs: 500,
			Ignore: []string{
				".git/**",
				".typeq/**",
				"**/*.pdf",
			},
		},
		Output: OutputConfig{
			Format: FormatText,
		},
	}
}

// TargetKind returns the syntax kind named by Extract.Target.
func (c *Config) TargetKind() (syntax.Kind, bool) {
	return syntax.ParseTargetKind(c.Extract.Target)
}

// Debounce returns the watch debounce interval.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// ToPackagesConfig converts the packages section to a packages.Config.
func (c *Config) ToPackagesConfig() packages.Config {
	return packages.Config{
		DataDir:  c.Packages.DataDir,
		CacheDir: c.Packages.CacheDir,
		Registry: c.Packages.Registry,
		Offline:  c.Packages.Offline,
	}
}
