package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/entrhq/gloss/pkg/highlight"
	"github.com/entrhq/gloss/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gloss.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 500*time.Millisecond, cfg.Highlight.Debounce)
	assert.Equal(t, 5*time.Second, cfg.Highlight.SweepInterval)
	assert.Equal(t, "gloss-tooltip-container", cfg.Highlight.ContainerID)
	assert.Equal(t, "file", cfg.Bookmarks.Backend)
	assert.False(t, cfg.Bookmarks.Require)
	assert.True(t, cfg.Render.Headless)
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel())

	families := cfg.SiteFamilies()
	require.Len(t, families, 1)
	assert.Equal(t, "linkedin", families[0].Name)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
glossary: terms.yaml
highlight:
  debounce: 250ms
  sites:
    - name: docs
      hosts: ["docs.example.com"]
      selectors: [".prose"]
bookmarks:
  backend: sqlite
  path: /tmp/gloss.db
  require: true
render:
  timeout: 10s
logging:
  verbosity: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "terms.yaml", cfg.Glossary)
	assert.Equal(t, 250*time.Millisecond, cfg.Highlight.Debounce)
	assert.Equal(t, 5*time.Second, cfg.Highlight.SweepInterval, "unset fields keep defaults")
	assert.Equal(t, "sqlite", cfg.Bookmarks.Backend)
	assert.True(t, cfg.Bookmarks.Require)
	assert.Equal(t, 10*time.Second, cfg.Render.Timeout)
	assert.True(t, cfg.Render.Headless)
	assert.Equal(t, "load", cfg.Render.WaitUntil)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, logging.LevelDebug, cfg.LogLevel())

	families := cfg.SiteFamilies()
	require.Len(t, families, 2)
	assert.Equal(t, "docs", families[1].Name)
	assert.Equal(t, []string{".prose"}, families[1].Selectors)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "highlight: [not, a, map]"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative debounce", func(c *Config) { c.Highlight.Debounce = -time.Second }, "highlight.debounce"},
		{"negative sweep", func(c *Config) { c.Highlight.SweepInterval = -time.Second }, "highlight.sweep_interval"},
		{"site without name", func(c *Config) {
			c.Highlight.Sites = append(c.Highlight.Sites, highlight.SiteFamily{Hosts: []string{"a.com"}})
		}, "name is required"},
		{"site without hosts", func(c *Config) {
			c.Highlight.Sites = append(c.Highlight.Sites, highlight.SiteFamily{Name: "docs"})
		}, "at least one host"},
		{"unknown backend", func(c *Config) { c.Bookmarks.Backend = "redis" }, "bookmarks.backend"},
		{"sqlite without path", func(c *Config) { c.Bookmarks.Backend = "sqlite" }, "bookmarks.path"},
		{"negative timeout", func(c *Config) { c.Render.Timeout = -1 }, "render.timeout"},
		{"bad wait_until", func(c *Config) { c.Render.WaitUntil = "commit" }, "render.wait_until"},
		{"bad verbosity", func(c *Config) { c.Logging.Verbosity = "loud" }, "verbosity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	def := Default()
	assert.Equal(t, def.Highlight.Debounce, cfg.Highlight.Debounce)
	assert.Equal(t, def.Highlight.ContainerID, cfg.Highlight.ContainerID)
	assert.Equal(t, def.Bookmarks.Backend, cfg.Bookmarks.Backend)
	assert.Equal(t, def.Server.Addr, cfg.Server.Addr)
	assert.Equal(t, def.Render.WaitUntil, cfg.Render.WaitUntil)
	assert.Equal(t, "normal", cfg.Logging.Verbosity)
}
