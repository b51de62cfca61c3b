// Package render turns diagram source into image bytes.
//
// [Client] talks to a Kroki-compatible rendering service over HTTP. The
// local subpackage provides in-process renderers for a few diagram types,
// and [Chain] routes each request to a local renderer when one is registered
// for the type, falling back to the remote service otherwise.
//
// Renderers are stateless and safe for concurrent use. A failed render is
// reported as an [*Error] whose [Kind] tells a timeout, a transport failure
// and a service-side rejection apart.
package render

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
)

// Renderer renders one diagram.
type Renderer interface {
	Render(ctx context.Context, req Request) ([]byte, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, req Request) ([]byte, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// Request describes a diagram to render.
type Request struct {
	Type    string            // diagram type, e.g. "mermaid"
	Source  string            // diagram source text
	Format  diagram.Format    // requested output format
	Options map[string]string // renderer-specific options, may be nil
}

// ErrUnsupported is returned by a renderer asked for a type or format it does
// not handle. [Chain] falls back to the next renderer on this error.
var ErrUnsupported = stderrors.New("unsupported by renderer")

// Kind classifies render failures.
type Kind int

const (
	// KindTimeout means the renderer did not answer within the deadline.
	KindTimeout Kind = iota + 1
	// KindTransport means the service could not be reached or the
	// connection failed mid-response.
	KindTransport
	// KindService means the renderer answered but rejected the diagram or
	// returned something other than the requested image.
	KindService
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindService:
		return "service"
	default:
		return "unknown"
	}
}

// Error is a classified render failure.
type Error struct {
	Kind    Kind
	Type    string // diagram type
	Status  int    // HTTP status for service errors, 0 otherwise
	Body    string // excerpt of the service's error response
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("render %s: %s", e.Type, e.Message)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Code maps the failure kind to an error code.
func (e *Error) Code() errors.Code {
	switch e.Kind {
	case KindTimeout:
		return errors.ErrCodeRenderTimeout
	case KindTransport:
		return errors.ErrCodeRenderTransport
	case KindService:
		return errors.ErrCodeRenderService
	default:
		return errors.ErrCodeRenderFailed
	}
}

// AsError extracts a render error from err's chain.
func AsError(err error) (*Error, bool) {
	var re *Error
	ok := stderrors.As(err, &re)
	return re, ok
}

// DiagramOptions returns the options sent along with a diagram of the given
// type. Mermaid renders labels as HTML by default, which only displays in a
// browser; outside inline HTML output they are switched to plain SVG text.
func DiagramOptions(diagramType string, inline bool) map[string]string {
	if !inline && diagram.Canonical(diagramType) == "mermaid" {
		return map[string]string{"html-labels": "false"}
	}
	return nil
}
