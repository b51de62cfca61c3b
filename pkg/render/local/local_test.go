package local

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
	"github.com/matzehuels/mdbook-diagrams/pkg/render"
)

func TestGraphvizSVG(t *testing.T) {
	data, err := NewGraphviz().Render(context.Background(), render.Request{
		Type:   "graphviz",
		Source: "digraph { a -> b }",
		Format: diagram.SVG,
	})
	require.NoError(t, err)
	assert.True(t, bytes.Contains(data, []byte("<svg")), "expected SVG output")
}

func TestGraphvizPNG(t *testing.T) {
	data, err := NewGraphviz().Render(context.Background(), render.Request{
		Type:   "dot",
		Source: "digraph { a -> b }",
		Format: diagram.PNG,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "expected PNG signature")
}

func TestGraphvizSyntaxError(t *testing.T) {
	_, err := NewGraphviz().Render(context.Background(), render.Request{
		Type:   "graphviz",
		Source: "digraph { a -> ",
		Format: diagram.SVG,
	})
	re, ok := render.AsError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, render.KindService, re.Kind)
}

func TestD2SVG(t *testing.T) {
	data, err := NewD2().Render(context.Background(), render.Request{
		Type:   "d2",
		Source: "a -> b",
		Format: diagram.SVG,
	})
	require.NoError(t, err)
	assert.True(t, bytes.Contains(data, []byte("<svg")), "expected SVG output")
}

func TestD2PNGWithoutConverter(t *testing.T) {
	r := &D2{}
	_, err := r.Render(context.Background(), render.Request{Type: "d2", Source: "a -> b", Format: diagram.PNG})
	assert.True(t, errors.Is(err, render.ErrUnsupported), "got %v", err)
}

func TestD2BadTheme(t *testing.T) {
	_, err := NewD2().Render(context.Background(), render.Request{
		Type:    "d2",
		Source:  "a -> b",
		Format:  diagram.SVG,
		Options: map[string]string{"theme": "dark"},
	})
	_, ok := render.AsError(err)
	assert.True(t, ok, "got %v", err)
}

func TestRegister(t *testing.T) {
	chain := render.NewChain(nil)
	require.NoError(t, Register(chain, []string{"graphviz", "d2"}))
	assert.True(t, chain.Handles("dot"))
	assert.True(t, chain.Handles("d2"))

	assert.Error(t, Register(chain, []string{"mermaid"}))
	assert.True(t, Available("dot"))
	assert.False(t, Available("mermaid"))
}
