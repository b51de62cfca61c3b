package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mdbook-diagrams/pkg/config"
	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
	"github.com/matzehuels/mdbook-diagrams/pkg/markdown"
	"github.com/matzehuels/mdbook-diagrams/pkg/observability"
	"github.com/matzehuels/mdbook-diagrams/pkg/resolve"
	"github.com/matzehuels/mdbook-diagrams/pkg/substitute"
)

// Runner processes chapters with a shared resolver.
//
// The Runner holds no per-chapter state. Multiple goroutines can safely
// process different chapters with the same Runner.
type Runner struct {
	Resolver *resolve.Resolver
	Options  Options
	Logger   *log.Logger
}

// NewRunner creates a runner around resolver.
func NewRunner(resolver *resolve.Resolver, opts Options) (*Runner, error) {
	if resolver == nil {
		return nil, errors.New(errors.ErrCodeInternal, "pipeline: nil resolver")
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return &Runner{
		Resolver: resolver,
		Options:  opts,
		Logger:   opts.Logger,
	}, nil
}

// outcome is the result of resolving one block.
type outcome struct {
	art  resolve.Artifact
	text string
	err  error
}

// ProcessChapter replaces every diagram block of a chapter.
//
// Under the fail policy any failed diagram makes ProcessChapter return a
// *ChapterError listing all failures of the chapter. Under the keep policy
// failed blocks stay as they are and are reported in Result.Diagnostics.
func (r *Runner) ProcessChapter(ctx context.Context, name, content string) (*Result, error) {
	start := time.Now()
	logger := r.Logger.With("chapter", name)
	src := []byte(content)

	blocks, err := markdown.Extract(src, r.Options.Filter)
	if err != nil {
		return nil, fmt.Errorf("chapter %q: %w", name, err)
	}
	result := &Result{Content: content}
	result.Stats.Blocks = len(blocks)
	if len(blocks) == 0 {
		return result, nil
	}

	hooks := observability.Pipeline()
	hooks.OnChapterStart(ctx, name, len(blocks))
	logger.Debug("found diagrams", "blocks", len(blocks))

	outcomes := make([]outcome, len(blocks))
	// A plain group: one failing diagram must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(r.Options.Concurrency)
	for i, b := range blocks {
		g.Go(func() error {
			outcomes[i] = r.resolveBlock(ctx, b)
			return nil
		})
	}
	_ = g.Wait()

	var (
		edits    []markdown.Edit
		failures []*resolve.Failure
	)
	for i, b := range blocks {
		o := outcomes[i]
		if o.err != nil {
			f, ok := resolve.AsFailure(o.err)
			if !ok {
				f = resolve.NewFailure(b, o.err)
			}
			failures = append(failures, f)
			continue
		}
		edits = append(edits, substitute.Edit(src, b, o.text))
		switch o.art.Origin {
		case resolve.OriginFile:
			result.CacheInfo.FileHits++
		case resolve.OriginShared:
			result.CacheInfo.SharedHits++
		default:
			result.CacheInfo.Misses++
		}
	}
	result.Stats.Rendered = len(edits)
	result.Stats.Failed = len(failures)

	if len(failures) > 0 && r.Options.Policy == config.PolicyFail {
		err := &ChapterError{Chapter: name, Failures: failures}
		result.Stats.Duration = time.Since(start)
		hooks.OnChapterComplete(ctx, name, result.Stats.Rendered, result.Stats.Failed, result.Stats.Duration, err)
		return nil, err
	}
	for _, f := range failures {
		d := newDiagnostic(name, f)
		result.Diagnostics = append(result.Diagnostics, d)
		logger.Warn("diagram left unrendered",
			"line", d.Line,
			"type", d.Type,
			"code", d.Code,
			"err", d.Message)
	}

	out, err := markdown.Splice(src, edits)
	if err != nil {
		err = errors.Wrap(errors.ErrCodeReassembly, err, "chapter %q", name)
		hooks.OnChapterComplete(ctx, name, 0, len(blocks), time.Since(start), err)
		return nil, err
	}
	result.Content = string(out)
	result.Stats.Duration = time.Since(start)
	hooks.OnChapterComplete(ctx, name, result.Stats.Rendered, result.Stats.Failed, result.Stats.Duration, nil)

	logger.Info("processed chapter",
		"diagrams", len(blocks),
		"rendered", result.CacheInfo.Misses,
		"cached", result.CacheInfo.FileHits+result.CacheInfo.SharedHits,
		"failed", len(failures),
		"duration", result.Stats.Duration.Round(time.Millisecond))
	return result, nil
}

// resolveBlock resolves b and builds its replacement markdown.
func (r *Runner) resolveBlock(ctx context.Context, b markdown.Block) outcome {
	art, err := r.Resolver.Resolve(ctx, b)
	if err != nil {
		return outcome{err: err}
	}
	text, err := substitute.Fragment(art, r.Options.Mode, r.Options.Fragment)
	if err != nil {
		return outcome{err: resolve.NewFailure(b, err)}
	}
	return outcome{art: art, text: text}
}

// Close releases resources held by the runner (primarily the shared cache).
func (r *Runner) Close() error {
	if r.Resolver != nil && r.Resolver.Shared != nil {
		return r.Resolver.Shared.Close()
	}
	return nil
}
