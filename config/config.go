// Package config holds the options of the devirt command. Options are read
// from a YAML file; fields missing from the file keep their defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	TextReport = "text"
	DotReport  = "dot"

	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Config struct {
	sourceFile string

	// if the PkgFilter is specified
	pkgFilterRegex *regexp.Regexp

	// PkgFilter restricts the analysed functions to the packages whose path
	// matches it. A filter that is not a valid regex is used as a prefix.
	PkgFilter string `yaml:"pkg-filter"`

	// LogLevel is the name of a logrus level: panic, fatal, error, warn,
	// info, debug or trace.
	LogLevel string `yaml:"log-level"`

	// MaxRounds bounds the demand/alias rounds per virtual call. 0 means no
	// bound.
	MaxRounds int `yaml:"max-rounds"`

	PreserveAliasTargets bool `yaml:"preserve-alias-targets"`

	// ReportFormat is text or dot.
	ReportFormat string `yaml:"report-format"`

	// Color is auto, always or never. In auto mode the text report is
	// colored when stdout is a terminal.
	Color string `yaml:"color"`

	// ReportUnresolved includes the calls that could not be resolved in the
	// text report.
	ReportUnresolved bool `yaml:"report-unresolved"`

	// ReportFile receives the report instead of stdout. A relative name is
	// resolved against the directory of the config file.
	ReportFile string `yaml:"report-file"`
}

func NewDefault() *Config {
	return &Config{
		PkgFilter:            "",
		LogLevel:             "info",
		MaxRounds:            0,
		PreserveAliasTargets: true,
		ReportFormat:         TextReport,
		Color:                ColorAuto,
		ReportUnresolved:     true,
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}
	cfg.sourceFile = filename

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PkgFilter != "" {
		if r, err := regexp.Compile(c.PkgFilter); err == nil {
			c.pkgFilterRegex = r
		}
	}

	if c.MaxRounds < 0 {
		return fmt.Errorf("max-rounds must not be negative, got %d", c.MaxRounds)
	}

	switch c.ReportFormat {
	case TextReport, DotReport:
	default:
		return fmt.Errorf("unknown report-format %q", c.ReportFormat)
	}

	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("unknown color mode %q", c.Color)
	}

	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// SetPkgFilter replaces the package filter.
func (c *Config) SetPkgFilter(filter string) {
	c.PkgFilter = filter
	c.pkgFilterRegex = nil
	if r, err := regexp.Compile(filter); err == nil && filter != "" {
		c.pkgFilterRegex = r
	}
}

// RelPath resolves filename against the directory of the config file it was
// loaded from. Absolute names, and any name in a default config, are
// returned unchanged.
func (c Config) RelPath(filename string) string {
	if c.sourceFile == "" || filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(filepath.Dir(c.sourceFile), filename)
}

// MatchPkgFilter returns true if the package path matches the package filter.
// Without a filter every package matches. A filter that could not be compiled
// to a regex is checked as a prefix of pkgname.
func (c Config) MatchPkgFilter(pkgname string) bool {
	if c.pkgFilterRegex != nil {
		return c.pkgFilterRegex.MatchString(pkgname)
	} else if c.PkgFilter != "" {
		return strings.HasPrefix(pkgname, c.PkgFilter)
	} else {
		return true
	}
}
