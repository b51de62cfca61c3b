package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, diagram.SVG, cfg.OutputFormat)
	assert.Equal(t, "https://kroki.io", cfg.KrokiURL)
	assert.Equal(t, "", cfg.LanguagePrefix)
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.Equal(t, "diagram-", cfg.FilenamePrefix)
	assert.Equal(t, os.TempDir(), cfg.FilesPath)
	assert.Equal(t, PolicyFail, cfg.OnError)
	assert.True(t, cfg.IsInlineRenderer("html"))
	assert.True(t, cfg.IsInlineRenderer("HTML"))
	assert.False(t, cfg.IsInlineRenderer("pandoc"))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.OutputFormat = "pdf" }},
		{"bad url", func(c *Config) { c.KrokiURL = "kroki.io" }},
		{"negative timeout", func(c *Config) { c.TimeoutSecs = -1 }},
		{"prefix with slash", func(c *Config) { c.FilenamePrefix = "../x" }},
		{"language prefix with space", func(c *Config) { c.LanguagePrefix = "a b" }},
		{"bad policy", func(c *Config) { c.OnError = "ignore" }},
		{"negative retries", func(c *Config) { c.Retries = -2 }},
		{"bad inline style", func(c *Config) { c.InlineStyle = "iframe" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig), "code = %v", errors.GetCode(err))
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	cfg := Default()
	cfg.OutputFormat = "PNG"
	cfg.KrokiURL = "http://localhost:8000/"
	cfg.TimeoutSecs = 0
	cfg.Concurrency = 0
	cfg.LocalRenderers = []string{" Graphviz", "graphviz", ""}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, diagram.PNG, cfg.OutputFormat)
	assert.Equal(t, "http://localhost:8000", cfg.KrokiURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, []string{"graphviz"}, cfg.LocalRenderers)
}

func TestFromJSON(t *testing.T) {
	raw := []byte(`{
		"command": "mdbook-diagrams",
		"output_format": "png",
		"language_prefix": "diagram-",
		"kroki_url": "https://kroki.example.com",
		"kroki_timeout_secs": 2.5,
		"filename_prefix": "fig-",
		"files_path": null,
		"on_error": "keep"
	}`)

	cfg, err := FromJSON(raw)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, diagram.PNG, cfg.OutputFormat)
	assert.Equal(t, "diagram-", cfg.LanguagePrefix)
	assert.Equal(t, "https://kroki.example.com", cfg.KrokiURL)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout())
	assert.Equal(t, "fig-", cfg.FilenamePrefix)
	assert.Equal(t, os.TempDir(), cfg.FilesPath)
	assert.Equal(t, PolicyKeep, cfg.OnError)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultRetries, cfg.Retries)
}

func TestFromJSONEmpty(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		cfg, err := FromJSON([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, Default().KrokiURL, cfg.KrokiURL)
	}
}

func TestFromJSONInvalid(t *testing.T) {
	_, err := FromJSON([]byte(`{"concurrency": "lots"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
}

func TestLoadFileBookTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.toml")
	content := `
[book]
title = "Example"

[preprocessor.diagrams]
output_format = "png"
language_prefix = "kroki-"
kroki_timeout_secs = 10.0
local_renderers = ["graphviz"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, diagram.PNG, cfg.OutputFormat)
	assert.Equal(t, "kroki-", cfg.LanguagePrefix)
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.Equal(t, []string{"graphviz"}, cfg.LocalRenderers)
}

func TestLoadFileStandaloneTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagrams.toml")
	require.NoError(t, os.WriteFile(path, []byte("on_error = \"keep\"\nconcurrency = 8\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, PolicyKeep, cfg.OnError)
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagrams.yaml")
	content := "output_format: png\ninline_style: figure\nredis_url: redis://localhost:6379/0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, diagram.PNG, cfg.OutputFormat)
	assert.Equal(t, InlineFigure, cfg.InlineStyle)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath))

	path := filepath.Join(t.TempDir(), "diagrams.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o644))
	_, err = LoadFile(path)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
}
