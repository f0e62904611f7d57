package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DirName is the name of the configuration directory, both in the project
// root and in the user's home directory.
const DirName = ".typeq"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from files and environment variables.
	// Priority: defaults → user config → project config → environment variables
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given project root.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

func (l *loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Enable environment variable overrides (e.g., TYPEQ_EXTRACT_STRATEGY)
	v.SetEnvPrefix("TYPEQ")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvVars(v)

	setDefaults(v)

	dirs := []string{filepath.Join(l.rootDir, DirName)}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append([]string{filepath.Join(home, DirName)}, dirs...)
	}
	for _, dir := range dirs {
		if err := mergeConfigFile(v, dir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// mergeConfigFile merges dir/config.yml (or config.yaml) into v. A missing
// file is not an error.
func mergeConfigFile(v *viper.Viper, dir string) error {
	for _, name := range []string{"config.yml", "config.yaml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
	return nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("extract.strategy")
	v.BindEnv("extract.target")

	v.BindEnv("packages.data_dir")
	v.BindEnv("packages.cache_dir")
	v.BindEnv("packages.registry")
	v.BindEnv("packages.offline")

	v.BindEnv("watch.debounce_ms")

	v.BindEnv("output.format")
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("extract.strategy", defaults.Extract.Strategy)
	v.SetDefault("extract.target", defaults.Extract.Target)

	v.SetDefault("packages.data_dir", defaults.Packages.DataDir)
	v.SetDefault("packages.cache_dir", defaults.Packages.CacheDir)
	v.SetDefault("packages.registry", defaults.Packages.Registry)
	v.SetDefault("packages.offline", defaults.Packages.Offline)

	v.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
	v.SetDefault("watch.ignore", defaults.Watch.Ignore)

	v.SetDefault("output.format", defaults.Output.Format)
}

// LoadConfigFromDir loads configuration for the project rooted at rootDir.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
