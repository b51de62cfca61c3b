package local

import (
	"context"
	"fmt"
	"strconv"

	"oss.terrastruct.com/d2/d2graph"
	"oss.terrastruct.com/d2/d2layouts/d2dagrelayout"
	"oss.terrastruct.com/d2/d2layouts/d2elklayout"
	"oss.terrastruct.com/d2/d2lib"
	"oss.terrastruct.com/d2/d2renderers/d2svg"
	"oss.terrastruct.com/d2/d2themes/d2themescatalog"
	d2log "oss.terrastruct.com/d2/lib/log"
	"oss.terrastruct.com/d2/lib/textmeasure"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
	"github.com/matzehuels/mdbook-diagrams/pkg/render"
)

// D2 renders d2 sources with the d2 library.
//
// Recognised options (the same names Kroki uses): "theme" (numeric theme id),
// "layout" ("dagre" or "elk") and "sketch" ("true").
type D2 struct {
	// ToPNG converts rendered SVG to PNG. Nil makes PNG requests unsupported.
	ToPNG func(ctx context.Context, svg []byte) ([]byte, error)
}

// NewD2 creates a D2 renderer. PNG output is available when rsvg-convert is
// installed.
func NewD2() *D2 {
	r := &D2{}
	if rsvgAvailable() {
		r.ToPNG = func(ctx context.Context, svg []byte) ([]byte, error) {
			return svgToPNG(ctx, svg, 2.0)
		}
	}
	return r
}

func layoutResolver(engine string) (d2graph.LayoutGraph, error) {
	switch engine {
	case "elk":
		return d2elklayout.DefaultLayout, nil
	default:
		return d2dagrelayout.DefaultLayout, nil
	}
}

// Render compiles and lays out req.Source.
func (r *D2) Render(ctx context.Context, req render.Request) ([]byte, error) {
	if req.Format != diagram.SVG && (req.Format != diagram.PNG || r.ToPNG == nil) {
		return nil, fmt.Errorf("d2 %s: %w", req.Format, render.ErrUnsupported)
	}

	ruler, err := textmeasure.NewRuler()
	if err != nil {
		return nil, fmt.Errorf("init d2 ruler: %w", err)
	}

	compileOpts := &d2lib.CompileOptions{
		LayoutResolver: layoutResolver,
		Ruler:          ruler,
	}
	if layout := req.Options["layout"]; layout != "" {
		compileOpts.Layout = &layout
	}

	themeID := d2themescatalog.NeutralDefault.ID
	if s, ok := req.Options["theme"]; ok {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, serviceError(req, "parse theme option", err)
		}
		themeID = id
	}
	sketch := req.Options["sketch"] == "true"
	scale := 1.0
	renderOpts := &d2svg.RenderOpts{
		ThemeID: &themeID,
		Sketch:  &sketch,
		Scale:   &scale,
	}

	ctx = d2log.WithDefault(ctx)
	diag, _, err := d2lib.Compile(ctx, req.Source, compileOpts, renderOpts)
	if err != nil {
		return nil, serviceError(req, "compile", err)
	}

	svg, err := d2svg.Render(diag, renderOpts)
	if err != nil {
		return nil, serviceError(req, "render", err)
	}
	if req.Format == diagram.SVG {
		return svg, nil
	}
	return r.ToPNG(ctx, svg)
}

var _ render.Renderer = (*D2)(nil)
