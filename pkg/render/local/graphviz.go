package local

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
	"github.com/matzehuels/mdbook-diagrams/pkg/render"
)

// Graphviz renders DOT sources with the embedded Graphviz library.
type Graphviz struct{}

// NewGraphviz creates a Graphviz renderer.
func NewGraphviz() *Graphviz { return &Graphviz{} }

// Render parses req.Source as DOT and lays it out with dot.
func (r *Graphviz) Render(ctx context.Context, req render.Request) ([]byte, error) {
	var format graphviz.Format
	switch req.Format {
	case diagram.SVG:
		format = graphviz.SVG
	case diagram.PNG:
		format = graphviz.PNG
	default:
		return nil, fmt.Errorf("graphviz %s: %w", req.Format, render.ErrUnsupported)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(req.Source))
	if err != nil {
		return nil, serviceError(req, "parse DOT", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, serviceError(req, "render", err)
	}
	if buf.Len() == 0 {
		return nil, serviceError(req, "render", fmt.Errorf("empty output"))
	}
	return buf.Bytes(), nil
}

// serviceError reports a diagram the local renderer rejected the same way a
// remote rejection is reported.
func serviceError(req render.Request, msg string, err error) error {
	return &render.Error{Kind: render.KindService, Type: req.Type, Message: "local " + msg, Err: err}
}

var _ render.Renderer = (*Graphviz)(nil)
