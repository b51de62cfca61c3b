// Package substitute builds the markdown that replaces a diagram block.
//
// Two modes exist. [Inline] embeds the artifact bytes in the document, either
// as a data URI image or, with [StyleFigure], as an HTML figure. [FileRef]
// links to the artifact file on disk. The mode is chosen per run from the
// mdbook renderer name with [ModeForRenderer].
package substitute

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
	"github.com/matzehuels/mdbook-diagrams/pkg/markdown"
	"github.com/matzehuels/mdbook-diagrams/pkg/resolve"
)

// Mode selects how an artifact appears in the document.
type Mode int

const (
	// FileRef links to the artifact file.
	FileRef Mode = iota
	// Inline embeds the artifact bytes.
	Inline
)

func (m Mode) String() string {
	if m == Inline {
		return "inline"
	}
	return "file"
}

// ModeForRenderer returns Inline when renderer is one of inlineRenderers.
func ModeForRenderer(renderer string, inlineRenderers []string) Mode {
	if slices.Contains(inlineRenderers, renderer) {
		return Inline
	}
	return FileRef
}

// Style is the markup used in inline mode.
type Style string

const (
	StyleImage  Style = "image"
	StyleFigure Style = "figure"
)

// Options tunes fragment generation.
type Options struct {
	Style Style
	// LinkRoot, when set, makes file references relative to it.
	LinkRoot string
}

// Fragment returns the markdown that stands in for a resolved diagram.
func Fragment(art resolve.Artifact, mode Mode, opts Options) (string, error) {
	if mode == Inline {
		if len(art.Data) == 0 {
			return "", errors.New(errors.ErrCodeInternal, "no artifact bytes to embed")
		}
		if opts.Style == StyleFigure {
			return figure(art), nil
		}
		return fmt.Sprintf("![](%s)", dataURI(art.Format, art.Data)), nil
	}

	if art.Path == "" {
		return "", errors.New(errors.ErrCodeCacheIO, "artifact was not persisted")
	}
	return fmt.Sprintf("![](%s)", linkTarget(art.Path, opts.LinkRoot)), nil
}

// Edit replaces block b of src with text, keeping text a block of its own.
func Edit(src []byte, b markdown.Block, text string) markdown.Edit {
	return markdown.BlockEdit(src, b.Span, text)
}

func dataURI(f diagram.Format, data []byte) string {
	return "data:" + f.MediaType() + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// figure wraps the artifact in an HTML figure. SVG is inlined as markup, so
// the document can style it; PNG goes through a data URI.
func figure(art resolve.Artifact) string {
	var body string
	if art.Format == diagram.SVG {
		body = string(bytes.TrimSpace(stripProlog(art.Data)))
	} else {
		body = fmt.Sprintf(`<img src="%s" alt="">`, dataURI(art.Format, art.Data))
	}
	return "<figure class=\"diagram\">\n" + body + "\n</figure>"
}

// stripProlog removes a leading XML declaration and doctype.
func stripProlog(svg []byte) []byte {
	s := bytes.TrimLeft(svg, "\ufeff \t\r\n")
	for _, open := range [][]byte{[]byte("<?xml"), []byte("<!DOCTYPE")} {
		if bytes.HasPrefix(s, open) {
			end := bytes.IndexByte(s, '>')
			if end < 0 {
				return s
			}
			s = bytes.TrimLeft(s[end+1:], " \t\r\n")
		}
	}
	return s
}

// linkTarget formats path as a markdown link destination.
func linkTarget(path, root string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil {
			path = rel
		}
	}
	path = filepath.ToSlash(path)
	if strings.ContainsAny(path, " ()") {
		return "<" + path + ">"
	}
	return path
}
