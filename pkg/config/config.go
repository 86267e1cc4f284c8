// Package config loads the gloss configuration file.
//
// The file is YAML. Every field is optional; Load starts from Default and
// overlays what the file sets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/entrhq/gloss/pkg/bookmark"
	"github.com/entrhq/gloss/pkg/highlight"
	"github.com/entrhq/gloss/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Config is the complete gloss configuration.
type Config struct {
	// Glossary is a JSON or YAML glossary file. Empty selects the bundled
	// glossary.
	Glossary string `yaml:"glossary" json:"glossary"`

	Highlight HighlightConfig `yaml:"highlight" json:"highlight"`
	Bookmarks BookmarkConfig  `yaml:"bookmarks" json:"bookmarks"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Render    RenderConfig    `yaml:"render" json:"render"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// HighlightConfig tunes highlight passes and the mutation watcher.
type HighlightConfig struct {
	Debounce      time.Duration `yaml:"debounce" json:"debounce"`
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
	ContainerID   string        `yaml:"container_id" json:"container_id"`

	// Sites are added to the built-in site families.
	Sites []highlight.SiteFamily `yaml:"sites" json:"sites"`
}

// BookmarkConfig selects the bookmark store.
type BookmarkConfig struct {
	// Backend is file, sqlite or memory.
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
	// Require limits highlighting to bookmarked sites.
	Require bool `yaml:"require" json:"require"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// RenderConfig configures the headless browser used to fetch live pages.
type RenderConfig struct {
	Headless bool          `yaml:"headless" json:"headless"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	// WaitUntil is load, domcontentloaded or networkidle.
	WaitUntil string `yaml:"wait_until" json:"wait_until"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Highlight: HighlightConfig{
			Debounce:      500 * time.Millisecond,
			SweepInterval: 5 * time.Second,
			ContainerID:   highlight.DefaultContainerID,
		},
		Bookmarks: BookmarkConfig{
			Backend: bookmark.BackendFile,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Render: RenderConfig{
			Headless:  true,
			Timeout:   30 * time.Second,
			WaitUntil: "load",
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// Load reads the configuration at path. An empty path returns Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration and fills zero values with defaults.
func (c *Config) Validate() error {
	def := Default()

	if c.Highlight.Debounce < 0 {
		return fmt.Errorf("highlight.debounce cannot be negative")
	}
	if c.Highlight.SweepInterval < 0 {
		return fmt.Errorf("highlight.sweep_interval cannot be negative")
	}
	if c.Highlight.Debounce == 0 {
		c.Highlight.Debounce = def.Highlight.Debounce
	}
	if c.Highlight.SweepInterval == 0 {
		c.Highlight.SweepInterval = def.Highlight.SweepInterval
	}
	if c.Highlight.ContainerID == "" {
		c.Highlight.ContainerID = def.Highlight.ContainerID
	}
	for i, site := range c.Highlight.Sites {
		if site.Name == "" {
			return fmt.Errorf("highlight.sites[%d]: name is required", i)
		}
		if len(site.Hosts) == 0 {
			return fmt.Errorf("highlight.sites[%d] (%s): at least one host is required", i, site.Name)
		}
	}

	switch c.Bookmarks.Backend {
	case "":
		c.Bookmarks.Backend = def.Bookmarks.Backend
	case bookmark.BackendFile, bookmark.BackendMemory:
	case bookmark.BackendSQLite:
		if c.Bookmarks.Path == "" {
			return fmt.Errorf("bookmarks.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid bookmarks.backend: %s (must be 'file', 'sqlite', or 'memory')", c.Bookmarks.Backend)
	}

	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}

	if c.Render.Timeout < 0 {
		return fmt.Errorf("render.timeout cannot be negative")
	}
	if c.Render.Timeout == 0 {
		c.Render.Timeout = def.Render.Timeout
	}
	switch c.Render.WaitUntil {
	case "":
		c.Render.WaitUntil = def.Render.WaitUntil
	case "load", "domcontentloaded", "networkidle":
	default:
		return fmt.Errorf("invalid render.wait_until: %s (must be 'load', 'domcontentloaded', or 'networkidle')", c.Render.WaitUntil)
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = def.Logging.Verbosity
	}
	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// SiteFamilies returns the built-in site families followed by the
// configured ones.
func (c *Config) SiteFamilies() []highlight.SiteFamily {
	return append([]highlight.SiteFamily{highlight.LinkedIn}, c.Highlight.Sites...)
}

// LogLevel maps the configured verbosity to a logging level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Logging.Verbosity)
}
