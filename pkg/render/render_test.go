package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
)

func TestChain(t *testing.T) {
	var used string
	named := func(name string, err error) Renderer {
		return RendererFunc(func(ctx context.Context, req Request) ([]byte, error) {
			used = name
			if err != nil {
				return nil, err
			}
			return []byte(name), nil
		})
	}

	c := NewChain(named("remote", nil))
	c.Use("graphviz", named("local-graphviz", nil))
	c.Use("d2", named("local-d2", ErrUnsupported))

	tests := []struct {
		typ  string
		want string
	}{
		{"graphviz", "local-graphviz"},
		{"dot", "local-graphviz"},
		{"d2", "remote"},
		{"mermaid", "remote"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			data, err := c.Render(context.Background(), Request{Type: tt.typ, Format: diagram.SVG})
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
			assert.Equal(t, tt.want, used)
		})
	}

	assert.True(t, c.Handles("dot"))
	assert.False(t, c.Handles("mermaid"))
}

func TestChainLocalErrorIsFinal(t *testing.T) {
	boom := errors.New("syntax error")
	remoteCalled := false
	c := NewChain(RendererFunc(func(context.Context, Request) ([]byte, error) {
		remoteCalled = true
		return nil, nil
	}))
	c.Use("graphviz", RendererFunc(func(context.Context, Request) ([]byte, error) {
		return nil, boom
	}))

	_, err := c.Render(context.Background(), Request{Type: "graphviz"})
	assert.ErrorIs(t, err, boom)
	assert.False(t, remoteCalled)
}

func TestChainLocalTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := NewChain(nil)
	c.Timeout = 20 * time.Millisecond
	// Ignores ctx, like a renderer stuck in a subprocess or wasm call.
	c.Use("graphviz", RendererFunc(func(context.Context, Request) ([]byte, error) {
		<-release
		return []byte("late"), nil
	}))
	// Honours ctx.
	c.Use("d2", RendererFunc(func(ctx context.Context, _ Request) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	for _, typ := range []string{"graphviz", "d2"} {
		t.Run(typ, func(t *testing.T) {
			start := time.Now()
			_, err := c.Render(context.Background(), Request{Type: typ, Format: diagram.SVG})
			assert.Less(t, time.Since(start), time.Second)

			re, ok := AsError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, KindTimeout, re.Kind)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestChainWithoutFallback(t *testing.T) {
	_, err := NewChain(nil).Render(context.Background(), Request{Type: "mermaid", Format: diagram.SVG})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDiagramOptions(t *testing.T) {
	assert.Equal(t, map[string]string{"html-labels": "false"}, DiagramOptions("mermaid", false))
	assert.Nil(t, DiagramOptions("mermaid", true))
	assert.Nil(t, DiagramOptions("graphviz", false))
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindService, Type: "mermaid", Status: 400, Body: "bad", Message: "service rejected diagram"}
	assert.Equal(t, "render mermaid: service rejected diagram (status 400): bad", err.Error())
	assert.Equal(t, "service", err.Kind.String())
}
