// Package pipeline provides the chapter pipeline of mdbook-diagrams.
//
// This package implements the extract → resolve → substitute → splice flow
// that the preprocessor, the process command and the tests share. By keeping
// it in one place, every entry point treats diagrams the same way.
//
// # Architecture
//
// A chapter goes through four steps:
//
//  1. Extract: find fenced diagram blocks with their byte spans
//  2. Resolve: look each diagram up in the cache, rendering it on a miss
//  3. Substitute: build the image markdown that replaces each block
//  4. Splice: copy the chapter with every replaced span rewritten
//
// Blocks of a chapter are resolved concurrently. A failure in one block never
// cancels its siblings; what happens afterwards is decided by the failure
// [config.Policy].
//
// # Usage
//
// Build a Runner from a validated configuration:
//
//	runner, err := pipeline.New(ctx, cfg, "html", logger)
//	if err != nil {
//	    return err
//	}
//	defer runner.Close()
//
//	result, err := runner.ProcessChapter(ctx, "Intro", content)
//	if err != nil {
//	    return err
//	}
//	fmt.Print(result.Content)
package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mdbook-diagrams/pkg/config"
	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
	"github.com/matzehuels/mdbook-diagrams/pkg/markdown"
	"github.com/matzehuels/mdbook-diagrams/pkg/resolve"
	"github.com/matzehuels/mdbook-diagrams/pkg/substitute"
)

// DefaultConcurrency bounds the number of diagrams resolved at once per chapter.
const DefaultConcurrency = config.DefaultConcurrency

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options controls how a Runner processes chapters.
type Options struct {
	// Filter selects the diagram blocks.
	Filter markdown.Filter
	// Mode selects inline embedding or file references.
	Mode substitute.Mode
	// Fragment tunes the generated markdown.
	Fragment substitute.Options
	// Policy decides what happens when a diagram fails.
	Policy config.Policy
	// Concurrency bounds concurrent resolves within a chapter.
	Concurrency int

	// Logger receives progress and diagnostics. Defaults to a discarding logger.
	Logger *log.Logger

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults checks the options and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	switch o.Policy {
	case "":
		o.Policy = config.PolicyFail
	case config.PolicyFail, config.PolicyKeep:
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "invalid policy: %q", o.Policy)
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Fragment.Style == "" {
		o.Fragment.Style = substitute.StyleImage
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// OptionsFromConfig derives chapter options from a validated configuration
// and the name of the mdbook renderer the output is for.
func OptionsFromConfig(cfg *config.Config, renderer string, logger *log.Logger) Options {
	return Options{
		Filter: markdown.Filter{Prefix: cfg.LanguagePrefix, Types: cfg.DiagramTypes},
		Mode:   substitute.ModeForRenderer(strings.ToLower(renderer), cfg.InlineRenderers),
		Fragment: substitute.Options{
			Style:    substitute.Style(cfg.InlineStyle),
			LinkRoot: cfg.LinkRoot,
		},
		Policy:      cfg.OnError,
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	}
}

// =============================================================================
// Results
// =============================================================================

// Result contains the outputs of processing one chapter.
type Result struct {
	// Content is the rewritten chapter.
	Content string

	// Diagnostics lists blocks left in place under the keep policy.
	Diagnostics []Diagnostic

	// Stats contains counts and timing.
	Stats Stats

	// CacheInfo tracks where resolved artifacts came from.
	CacheInfo CacheInfo
}

// Stats contains chapter statistics.
type Stats struct {
	Blocks   int
	Rendered int // diagrams replaced by an image
	Failed   int
	Duration time.Duration
}

// CacheInfo counts artifacts by origin.
type CacheInfo struct {
	FileHits   int // served from the artifact directory
	SharedHits int // served from the shared tier
	Misses     int // rendered
}

// Diagnostic describes a diagram that could not be rendered and was kept.
type Diagnostic struct {
	Chapter string
	Line    int
	Type    string
	Excerpt string
	Code    errors.Code
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s diagram %q: %s", d.Chapter, d.Line, d.Type, d.Excerpt, d.Message)
}

func newDiagnostic(chapter string, f *resolve.Failure) Diagnostic {
	return Diagnostic{
		Chapter: chapter,
		Line:    f.Line,
		Type:    f.Type,
		Excerpt: f.Excerpt,
		Code:    f.Code(),
		Message: f.Cause.Error(),
	}
}

// ChapterError reports every failed diagram of a chapter under the fail
// policy.
type ChapterError struct {
	Chapter  string
	Failures []*resolve.Failure
}

func (e *ChapterError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "chapter %q: %d diagram(s) failed", e.Chapter, len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n  ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *ChapterError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
