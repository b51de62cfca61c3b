// Package resolve turns a diagram block into a rendered artifact.
//
// A [Resolver] looks the diagram up by its content key, first in the artifact
// directory, then in the optional shared tier, and only calls the renderer
// when both miss. Rendered bytes are written back to both stores. Failed
// renders are never cached; they come back as a [*Failure] naming the block.
//
// Resolve is safe for concurrent use. Concurrent requests for the same key
// share a single render.
package resolve

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/mdbook-diagrams/pkg/cache"
	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
	"github.com/matzehuels/mdbook-diagrams/pkg/markdown"
	"github.com/matzehuels/mdbook-diagrams/pkg/observability"
	"github.com/matzehuels/mdbook-diagrams/pkg/render"
)

// Tier names reported to cache hooks.
const (
	TierFile   = "file"
	TierShared = "shared"
)

// Origin tells where an artifact came from.
type Origin int

const (
	OriginRendered Origin = iota
	OriginFile
	OriginShared
)

func (o Origin) String() string {
	switch o {
	case OriginFile:
		return "file"
	case OriginShared:
		return "shared"
	default:
		return "rendered"
	}
}

// Artifact is a rendered diagram.
type Artifact struct {
	Key    cache.Key
	Format diagram.Format
	Data   []byte
	// Path is the artifact file. It is empty when the file could not be
	// written and the caller does not need one.
	Path   string
	Origin Origin
}

// Options configures a Resolver.
type Options struct {
	// Format is the output format requested for every diagram.
	Format diagram.Format
	// Inline is true when artifacts are embedded in the document. It selects
	// renderer options (see render.DiagramOptions) and relaxes the need for
	// a persisted file.
	Inline bool
	// SharedTTL is the expiry of entries written to the shared tier.
	SharedTTL time.Duration
}

// Resolver resolves diagram blocks to artifacts.
type Resolver struct {
	Store    *cache.FileStore
	Shared   cache.Cache
	Renderer render.Renderer
	Logger   *log.Logger
	Options  Options

	group singleflight.Group
}

// New creates a Resolver. A nil shared tier disables it; a nil logger uses
// the default logger.
func New(store *cache.FileStore, shared cache.Cache, renderer render.Renderer, logger *log.Logger, opts Options) *Resolver {
	if shared == nil {
		shared = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	if opts.Format == "" {
		opts.Format = diagram.DefaultFormat
	}
	return &Resolver{
		Store:    store,
		Shared:   shared,
		Renderer: renderer,
		Logger:   logger,
		Options:  opts,
	}
}

// Key returns the cache key the resolver uses for b.
func (r *Resolver) Key(b markdown.Block) cache.Key {
	return cache.NewKey(b.Source, b.Type, r.Options.Format, render.DiagramOptions(b.Type, r.Options.Inline))
}

// Resolve returns the artifact for b, rendering it on a cache miss.
// Render and store failures that affect the block are returned as *Failure.
func (r *Resolver) Resolve(ctx context.Context, b markdown.Block) (Artifact, error) {
	return r.do(ctx, b, r.Options.Format, render.DiagramOptions(b.Type, r.Options.Inline))
}

// ResolveRequest resolves a raw render request with its own format and
// options. The caching proxy uses it for requests that do not come from a
// document.
func (r *Resolver) ResolveRequest(ctx context.Context, req render.Request) (Artifact, error) {
	if req.Format == "" {
		req.Format = r.Options.Format
	}
	b := markdown.Block{Language: req.Type, Type: req.Type, Source: req.Source}
	return r.do(ctx, b, req.Format, req.Options)
}

func (r *Resolver) do(ctx context.Context, b markdown.Block, format diagram.Format, opts map[string]string) (Artifact, error) {
	key := cache.NewKey(b.Source, b.Type, format, opts)

	// The work is shared by every caller waiting on key, so it must outlive
	// any one of them. Renderers bound it with their own timeout.
	ch := r.group.DoChan(key.String(), func() (any, error) {
		return r.resolve(context.WithoutCancel(ctx), b, key, opts)
	})
	select {
	case <-ctx.Done():
		return Artifact{}, NewFailure(b, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Artifact{}, res.Err
		}
		if res.Shared {
			r.Logger.Debug("coalesced render", "type", b.Type, "key", key.Sum[:12])
		}
		return res.Val.(Artifact), nil
	}
}

func (r *Resolver) resolve(ctx context.Context, b markdown.Block, key cache.Key, opts map[string]string) (Artifact, error) {
	hooks := observability.Cache()
	logger := r.Logger.With("type", b.Type, "key", key.Sum[:12])

	data, err := r.Store.Read(key)
	switch {
	case err == nil:
		hooks.OnCacheHit(ctx, TierFile)
		logger.Debug("cache hit", "tier", TierFile)
		return Artifact{Key: key, Format: key.Format, Data: data, Path: r.Store.Path(key), Origin: OriginFile}, nil
	case !stderrors.Is(err, cache.ErrNotFound):
		logger.Warn("cannot read cached artifact", "err", err)
	}
	hooks.OnCacheMiss(ctx, TierFile)

	if data, hit, err := r.Shared.Get(ctx, key.String()); err != nil {
		logger.Warn("shared cache lookup failed", "err", err)
	} else if hit && len(data) > 0 {
		hooks.OnCacheHit(ctx, TierShared)
		logger.Debug("cache hit", "tier", TierShared)
		return r.persist(ctx, b, key, data, OriginShared, false)
	} else {
		hooks.OnCacheMiss(ctx, TierShared)
	}

	req := render.Request{Type: b.Type, Source: b.Source, Format: key.Format, Options: opts}
	rhooks := observability.Render()
	rhooks.OnRenderStart(ctx, b.Type, key.Format.String())
	start := time.Now()
	data, err = r.Renderer.Render(ctx, req)
	rhooks.OnRenderComplete(ctx, b.Type, key.Format.String(), len(data), time.Since(start), err)
	if err != nil {
		return Artifact{}, NewFailure(b, err)
	}
	logger.Debug("rendered", "bytes", len(data), "duration", time.Since(start).Round(time.Millisecond))

	return r.persist(ctx, b, key, data, OriginRendered, true)
}

// persist writes data to the file store and, for fresh renders, to the
// shared tier.
func (r *Resolver) persist(ctx context.Context, b markdown.Block, key cache.Key, data []byte, origin Origin, share bool) (Artifact, error) {
	art := Artifact{Key: key, Format: key.Format, Data: data, Origin: origin}

	path, err := r.Store.Write(key, data)
	if err != nil {
		err = errors.Wrap(errors.ErrCodeCacheIO, err, "store artifact in %s", r.Store.Dir())
		if !r.Options.Inline {
			return Artifact{}, NewFailure(b, err)
		}
		r.Logger.Warn("cannot cache artifact, embedding anyway", "type", b.Type, "err", err)
	} else {
		art.Path = path
		observability.Cache().OnCacheSet(ctx, TierFile, len(data))
	}

	if share {
		if err := r.Shared.Set(ctx, key.String(), data, r.Options.SharedTTL); err != nil {
			r.Logger.Warn("cannot write shared cache", "type", b.Type, "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, TierShared, len(data))
		}
	}
	return art, nil
}

// MaxExcerptRunes bounds the source excerpt in a Failure.
const MaxExcerptRunes = 80

// Failure reports a diagram block that could not be resolved.
type Failure struct {
	Type    string // diagram type
	Line    int    // line of the opening fence
	Excerpt string // start of the diagram source, at most MaxExcerptRunes runes
	Cause   error
}

// NewFailure wraps cause with the identity of block b.
func NewFailure(b markdown.Block, cause error) *Failure {
	return &Failure{Type: b.Type, Line: b.Line, Excerpt: Excerpt(b.Source), Cause: cause}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s diagram at line %d (%q): %v", f.Type, f.Line, f.Excerpt, f.Cause)
}

func (f *Failure) Unwrap() error { return f.Cause }

// Code returns the error code of the underlying cause.
func (f *Failure) Code() errors.Code {
	if re, ok := render.AsError(f.Cause); ok {
		return re.Code()
	}
	if code := errors.GetCode(f.Cause); code != "" {
		return code
	}
	return errors.ErrCodeRenderFailed
}

// AsFailure extracts a Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	ok := stderrors.As(err, &f)
	return f, ok
}

// Excerpt condenses a diagram source to a single line of at most
// MaxExcerptRunes runes.
func Excerpt(source string) string {
	s := strings.Join(strings.Fields(source), " ")
	if utf8.RuneCountInString(s) <= MaxExcerptRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxExcerptRunes-3]) + "..."
}
