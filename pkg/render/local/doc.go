// Package local renders selected diagram types in-process, without a
// network round trip.
//
//   - [Graphviz] renders graphviz/dot sources to SVG and PNG with go-graphviz.
//   - [D2] renders d2 sources to SVG with the d2 library. PNG output is
//     converted from the SVG by rsvg-convert when it is installed.
//
// Both satisfy render.Renderer. A renderer that cannot produce the requested
// format returns render.ErrUnsupported, so that a render.Chain hands the
// diagram to the remote service instead.
//
// Enable them with the local_renderers configuration key:
//
//	[preprocessor.diagrams]
//	local_renderers = ["graphviz", "d2"]
package local

import (
	"fmt"
	"slices"

	"github.com/matzehuels/mdbook-diagrams/pkg/render"
)

// Names lists the diagram types with a local renderer.
var Names = []string{"graphviz", "d2"}

// New returns the local renderer for a diagram type.
func New(name string) (render.Renderer, error) {
	switch name {
	case "graphviz", "dot":
		return NewGraphviz(), nil
	case "d2":
		return NewD2(), nil
	default:
		return nil, fmt.Errorf("no local renderer for %q (available: %v)", name, Names)
	}
}

// Register installs the named local renderers on chain.
func Register(chain *render.Chain, names []string) error {
	for _, name := range names {
		r, err := New(name)
		if err != nil {
			return err
		}
		chain.Use(name, r)
	}
	return nil
}

// Available reports whether name has a local renderer.
func Available(name string) bool {
	return slices.Contains(Names, name) || name == "dot"
}
