package render

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
)

// Chain dispatches requests to per-type renderers and falls back to a
// default renderer for every other type.
type Chain struct {
	// Timeout bounds each call to a per-type renderer. The fallback is
	// expected to enforce its own deadline. Zero means no bound.
	Timeout time.Duration

	byType   map[string]Renderer
	fallback Renderer
}

// NewChain creates a chain whose fallback handles unregistered types.
// fallback may be nil, in which case unregistered types fail with
// [ErrUnsupported].
func NewChain(fallback Renderer) *Chain {
	return &Chain{byType: make(map[string]Renderer), fallback: fallback}
}

// Use registers r for diagramType. Aliases are resolved, so registering
// "graphviz" also serves "dot" fences.
func (c *Chain) Use(diagramType string, r Renderer) {
	c.byType[diagram.Canonical(strings.ToLower(diagramType))] = r
}

// Handles reports whether a dedicated renderer is registered for diagramType.
func (c *Chain) Handles(diagramType string) bool {
	_, ok := c.byType[diagram.Canonical(diagramType)]
	return ok
}

// Render tries the renderer registered for the type first. When it reports
// [ErrUnsupported] (for instance a format it cannot produce), the fallback
// is used.
func (c *Chain) Render(ctx context.Context, req Request) ([]byte, error) {
	if r, ok := c.byType[diagram.Canonical(req.Type)]; ok {
		data, err := c.renderLocal(ctx, r, req)
		if !stderrors.Is(err, ErrUnsupported) {
			return data, err
		}
	}
	if c.fallback == nil {
		return nil, fmt.Errorf("%s as %s: %w", req.Type, req.Format, ErrUnsupported)
	}
	return c.fallback.Render(ctx, req)
}

// renderLocal runs r under c.Timeout. Renderers that ignore ctx are
// abandoned when the deadline passes; their result is discarded.
func (c *Chain) renderLocal(ctx context.Context, r Renderer, req Request) ([]byte, error) {
	if c.Timeout <= 0 {
		return r.Render(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := r.Render(ctx, req)
		done <- result{data, err}
	}()

	select {
	case res := <-done:
		if res.err != nil && stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, c.timeout(req, res.err)
		}
		return res.data, res.err
	case <-ctx.Done():
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, c.timeout(req, ctx.Err())
		}
		return nil, ctx.Err()
	}
}

func (c *Chain) timeout(req Request, err error) *Error {
	return &Error{Kind: KindTimeout, Type: req.Type,
		Message: fmt.Sprintf("local renderer did not finish within %s", c.Timeout), Err: err}
}

var _ Renderer = (*Chain)(nil)
