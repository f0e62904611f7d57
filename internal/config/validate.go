package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mvp-joe/typeq/internal/extract"
	"github.com/mvp-joe/typeq/internal/syntax"
)

var (
	// ErrInvalidStrategy indicates an unsupported extraction strategy
	ErrInvalidStrategy = errors.New("invalid extraction strategy")

	// ErrInvalidTarget indicates an unsupported target kind
	ErrInvalidTarget = errors.New("invalid target kind")

	// ErrInvalidFormat indicates an unsupported output format
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrInvalidRegistry indicates a malformed package registry URL
	ErrInvalidRegistry = errors.New("invalid package registry")

	// ErrInvalidWatchSettings indicates invalid watch configuration
	ErrInvalidWatchSettings = errors.New("invalid watch settings")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateExtract(&cfg.Extract); err != nil {
		errs = append(errs, err)
	}
	if err := validatePackages(&cfg.Packages); err != nil {
		errs = append(errs, err)
	}
	if err := validateWatch(&cfg.Watch); err != nil {
		errs = append(errs, err)
	}
	if err := validateOutput(&cfg.Output); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateExtract(cfg *ExtractConfig) error {
	var errs []error

	if _, err := extract.StrategyByName(cfg.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("%w: must be '%s' or '%s', got '%s'", ErrInvalidStrategy, extract.StrategySyntax, extract.StrategyEval, cfg.Strategy))
	}
	if _, ok := syntax.ParseTargetKind(cfg.Target); !ok {
		errs = append(errs, fmt.Errorf("%w: must be 'equation' or 'raw', got '%s'", ErrInvalidTarget, cfg.Target))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validatePackages(cfg *PackagesConfig) error {
	if cfg.Offline && strings.TrimSpace(cfg.Registry) == "" {
		return nil
	}
	u, err := url.Parse(cfg.Registry)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: must be an http(s) URL, got '%s'", ErrInvalidRegistry, cfg.Registry)
	}
	return nil
}

func validateWatch(cfg *WatchConfig) error {
	var errs []error

	if cfg.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("%w: debounce_ms cannot be negative, got %d", ErrInvalidWatchSettings, cfg.DebounceMs))
	}
	for _, pattern := range cfg.Ignore {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: bad ignore pattern '%s': %v", ErrInvalidWatchSettings, pattern, err))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateOutput(cfg *OutputConfig) error {
	switch strings.ToLower(cfg.Format) {
	case FormatText, FormatJSON:
		return nil
	}
	return fmt.Errorf("%w: must be '%s' or '%s', got '%s'", ErrInvalidFormat, FormatText, FormatJSON, cfg.Format)
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
