// Package config holds the preprocessor configuration and its loaders.
//
// Configuration reaches the preprocessor from one of three places:
//
//   - the mdbook context ([preprocessor.diagrams] in book.toml, forwarded as
//     JSON on stdin), see [FromJSON];
//   - a standalone TOML or YAML file for the process and serve commands, see
//     [LoadFile];
//   - command-line flags, applied by the CLI on top of either.
//
// Every loader starts from [Default] and only overwrites keys that are present,
// so absent keys keep their defaults. Call [Config.Validate] once all sources
// have been applied.
package config

import (
	"os"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
)

// Default values.
const (
	DefaultKrokiURL       = "https://kroki.io"
	DefaultTimeoutSecs    = 5.0
	DefaultFilenamePrefix = "diagram-"
	DefaultConcurrency    = 4
	DefaultRetries        = 2
	DefaultRedisTTLHours  = 24 * 7
)

// Policy decides what happens to a chapter when one of its diagrams fails.
type Policy string

const (
	// PolicyFail aborts the preprocessing run and reports every failed block.
	PolicyFail Policy = "fail"
	// PolicyKeep leaves the failed fenced block in place and records a diagnostic.
	PolicyKeep Policy = "keep"
)

// InlineStyle selects the markup used for inline (self-contained) output.
type InlineStyle string

const (
	// InlineImage emits a markdown image whose source is a data URI.
	InlineImage InlineStyle = "image"
	// InlineFigure emits an HTML figure; SVG markup is embedded verbatim.
	InlineFigure InlineStyle = "figure"
)

// Config is the complete preprocessor configuration. It is owned for the
// lifetime of one run and treated as read-only after Validate.
type Config struct {
	OutputFormat   diagram.Format `json:"output_format" toml:"output_format" yaml:"output_format"`
	KrokiURL       string         `json:"kroki_url" toml:"kroki_url" yaml:"kroki_url"`
	LanguagePrefix string         `json:"language_prefix" toml:"language_prefix" yaml:"language_prefix"`
	TimeoutSecs    float64        `json:"kroki_timeout_secs" toml:"kroki_timeout_secs" yaml:"kroki_timeout_secs"`
	FilenamePrefix string         `json:"filename_prefix" toml:"filename_prefix" yaml:"filename_prefix"`
	FilesPath      string         `json:"files_path" toml:"files_path" yaml:"files_path"`

	OnError     Policy  `json:"on_error" toml:"on_error" yaml:"on_error"`
	Concurrency int     `json:"concurrency" toml:"concurrency" yaml:"concurrency"`
	Retries     int     `json:"retries" toml:"retries" yaml:"retries"`
	RateLimit   float64 `json:"rate_limit" toml:"rate_limit" yaml:"rate_limit"` // requests per second, 0 disables

	DiagramTypes    []string    `json:"diagram_types" toml:"diagram_types" yaml:"diagram_types"`
	LocalRenderers  []string    `json:"local_renderers" toml:"local_renderers" yaml:"local_renderers"`
	InlineRenderers []string    `json:"inline_renderers" toml:"inline_renderers" yaml:"inline_renderers"`
	InlineStyle     InlineStyle `json:"inline_style" toml:"inline_style" yaml:"inline_style"`
	LinkRoot        string      `json:"link_root" toml:"link_root" yaml:"link_root"`

	RedisURL      string  `json:"redis_url" toml:"redis_url" yaml:"redis_url"`
	RedisTTLHours float64 `json:"redis_ttl_hours" toml:"redis_ttl_hours" yaml:"redis_ttl_hours"`

	validated bool
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		OutputFormat:    diagram.DefaultFormat,
		KrokiURL:        DefaultKrokiURL,
		TimeoutSecs:     DefaultTimeoutSecs,
		FilenamePrefix:  DefaultFilenamePrefix,
		OnError:         PolicyFail,
		Concurrency:     DefaultConcurrency,
		Retries:         DefaultRetries,
		DiagramTypes:    slices.Clone(diagram.KrokiTypes),
		InlineRenderers: []string{"html"},
		InlineStyle:     InlineImage,
		RedisTTLHours:   DefaultRedisTTLHours,
	}
}

// Validate normalizes the configuration and checks every field.
// It is idempotent: calling it more than once has the same effect as once.
func (c *Config) Validate() error {
	if c.validated {
		return nil
	}

	if c.OutputFormat == "" {
		c.OutputFormat = diagram.DefaultFormat
	}
	f, err := diagram.ParseFormat(string(c.OutputFormat))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "output_format")
	}
	c.OutputFormat = f

	c.KrokiURL = strings.TrimRight(strings.TrimSpace(c.KrokiURL), "/")
	if err := errors.ValidateURL(c.KrokiURL); err != nil {
		return err
	}
	if err := errors.ValidateLanguagePrefix(c.LanguagePrefix); err != nil {
		return err
	}
	if err := errors.ValidateFilenamePrefix(c.FilenamePrefix); err != nil {
		return err
	}

	switch {
	case c.TimeoutSecs < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "kroki_timeout_secs must not be negative: %v", c.TimeoutSecs)
	case c.TimeoutSecs == 0:
		c.TimeoutSecs = DefaultTimeoutSecs
	}

	if c.FilesPath == "" {
		c.FilesPath = os.TempDir()
	}

	switch c.OnError {
	case "":
		c.OnError = PolicyFail
	case PolicyFail, PolicyKeep:
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "invalid on_error: %q (expected 'fail' or 'keep')", c.OnError)
	}

	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Retries < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "retries must not be negative: %d", c.Retries)
	}
	if c.RateLimit < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "rate_limit must not be negative: %v", c.RateLimit)
	}

	switch c.InlineStyle {
	case "":
		c.InlineStyle = InlineImage
	case InlineImage, InlineFigure:
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "invalid inline_style: %q (expected 'image' or 'figure')", c.InlineStyle)
	}

	c.DiagramTypes = normalizeNames(c.DiagramTypes)
	c.LocalRenderers = normalizeNames(c.LocalRenderers)
	c.InlineRenderers = normalizeNames(c.InlineRenderers)

	if c.RedisURL != "" && c.RedisTTLHours < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "redis_ttl_hours must not be negative: %v", c.RedisTTLHours)
	}

	c.validated = true
	return nil
}

// Timeout returns the per-diagram request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs * float64(time.Second))
}

// RedisTTL returns the expiry applied to artifacts in the shared redis tier.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.RedisTTLHours * float64(time.Hour))
}

// IsInlineRenderer reports whether the named mdbook renderer consumes
// self-contained documents (images embedded as data URIs).
func (c *Config) IsInlineRenderer(renderer string) bool {
	return slices.Contains(c.InlineRenderers, strings.ToLower(renderer))
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}
