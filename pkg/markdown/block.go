package markdown

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
)

// Span is a half-open byte range [Start, End) into a chapter's source.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered.
func (s Span) Len() int { return s.End - s.Start }

func (s Span) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End) }

// Block is a fenced code block that holds a diagram.
type Block struct {
	// Language is the full language tag of the fence, e.g. "diagram-mermaid".
	Language string
	// Type is the diagram type: the tag with the configured prefix removed,
	// lower-cased.
	Type string
	// Source is the raw block body, one line per fenced line, container
	// indentation and block quote markers removed.
	Source string
	// Span covers the whole fenced construct, from the first character of
	// the opening fence to the end of the closing fence. For a fence left
	// open at the end of its container it ends with the last body line.
	Span Span
	// Line is the 1-based line number of the opening fence.
	Line int
	// Index is the position of the block among the returned blocks.
	Index int
}

// Filter selects the fenced blocks that are diagrams.
//
// With a Prefix, a block is selected when its language tag starts with the
// prefix and something follows it; the remainder is the diagram type. Without
// a Prefix, the tag itself must be a known diagram type: one of Types, or of
// [diagram.KrokiTypes] when Types is empty. Aliases such as "dot" are matched
// through [diagram.Canonical].
type Filter struct {
	Prefix string
	Types  []string
}

// Match reports whether a fence with the given language tag is a diagram and
// returns its diagram type.
func (f Filter) Match(tag string) (string, bool) {
	if tag == "" {
		return "", false
	}
	if f.Prefix != "" {
		rest, ok := strings.CutPrefix(tag, f.Prefix)
		if !ok || rest == "" {
			return "", false
		}
		return strings.ToLower(rest), true
	}

	typ := strings.ToLower(tag)
	types := f.Types
	if len(types) == 0 {
		types = diagram.KrokiTypes
	}
	if slices.Contains(types, typ) || slices.Contains(types, diagram.Canonical(typ)) {
		return typ, true
	}
	return "", false
}
