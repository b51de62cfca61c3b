// Package mdbook speaks the mdbook preprocessor protocol.
//
// mdbook runs a preprocessor with a JSON array [context, book] on stdin and
// expects the modified book on stdout. Only chapter contents are rewritten;
// every other field of the book passes through untouched, so the
// preprocessor does not need to model the complete book schema.
//
// The input is read with gjson and chapters are rewritten in place with
// sjson, addressed by their path in the book document.
package mdbook

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/matzehuels/mdbook-diagrams/pkg/config"
	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
)

// BuiltAgainst is the mdbook version the preprocessor protocol was tested
// with. Calls from an incompatible version produce a warning.
const BuiltAgainst = "0.4.40"

// Context is the preprocessor context sent by mdbook.
type Context struct {
	Root          string
	Renderer      string
	MdbookVersion string

	config gjson.Result
}

// PreprocessorConfig returns the raw JSON of config.preprocessor.<name>, or
// nil when the table is absent.
func (c Context) PreprocessorConfig(name string) []byte {
	v := c.config.Get("preprocessor." + name)
	if !v.Exists() {
		return nil
	}
	return []byte(v.Raw)
}

// Config decodes this preprocessor's table from book.toml.
func (c Context) Config() (config.Config, error) {
	return config.FromJSON(c.PreprocessorConfig(config.PreprocessorName))
}

// Input is a decoded preprocessor request.
type Input struct {
	Context Context
	// Book is the raw JSON of the book. Process returns a modified copy.
	Book []byte
}

// ParseInput decodes the [context, book] pair.
func ParseInput(data []byte) (*Input, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New(errors.ErrCodeProtocol, "preprocessor input is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() || len(root.Array()) != 2 {
		return nil, errors.New(errors.ErrCodeProtocol, "preprocessor input must be a [context, book] array")
	}
	ctx, book := root.Get("0"), root.Get("1")
	if !ctx.IsObject() || !book.IsObject() {
		return nil, errors.New(errors.ErrCodeProtocol, "preprocessor context and book must be objects")
	}
	return &Input{
		Context: Context{
			Root:          ctx.Get("root").String(),
			Renderer:      ctx.Get("renderer").String(),
			MdbookVersion: ctx.Get("mdbook_version").String(),
			config:        ctx.Get("config"),
		},
		Book: []byte(book.Raw),
	}, nil
}

// CheckVersion reports whether the calling mdbook version is compatible
// with BuiltAgainst, i.e. the same minor release series for 0.x versions.
func CheckVersion(version string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeProtocol, err, "parse mdbook version %q", version)
	}
	c, err := semver.NewConstraint("^" + BuiltAgainst)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeInternal, err, "parse version constraint")
	}
	return c.Check(v), nil
}

// Chapter is a chapter of the book.
type Chapter struct {
	Name    string
	Path    string // source path relative to the book's src directory; empty for drafts
	Content string

	// contentPath addresses the content field in the book document.
	contentPath string
}

// Chapters lists the chapters of book in reading order, nested chapters
// after their parent.
func Chapters(book []byte) []Chapter {
	var out []Chapter
	root := gjson.ParseBytes(book)
	for _, key := range []string{"sections", "items"} {
		if items := root.Get(key); items.IsArray() {
			out = walk(items, key, out)
		}
	}
	return out
}

func walk(items gjson.Result, path string, out []Chapter) []Chapter {
	for i, item := range items.Array() {
		ch := item.Get("Chapter")
		if !ch.IsObject() {
			// Separators and part titles carry no content.
			continue
		}
		base := path + "." + strconv.Itoa(i) + ".Chapter"
		out = append(out, Chapter{
			Name:        ch.Get("name").String(),
			Path:        ch.Get("path").String(),
			Content:     ch.Get("content").String(),
			contentPath: base + ".content",
		})
		if sub := ch.Get("sub_items"); sub.IsArray() {
			out = walk(sub, base+".sub_items", out)
		}
	}
	return out
}

// ProcessFunc returns the new content of a chapter.
type ProcessFunc func(ctx context.Context, ch Chapter) (string, error)

// Process rewrites every chapter of book with fn. Chapters are processed in
// reading order. A failing chapter does not stop the others; all errors are
// returned together and the book is not returned.
func Process(ctx context.Context, book []byte, fn ProcessFunc) ([]byte, error) {
	var errs []error
	for _, ch := range Chapters(book) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := fn(ctx, ch)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if content == ch.Content {
			continue
		}
		book, err = sjson.SetBytes(book, ch.contentPath, content)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeProtocol, err, "rewrite chapter %q", ch.Name)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("preprocessing failed: %w", stderrors.Join(errs...))
	}
	return book, nil
}

// SupportsRenderer reports whether the preprocessor works with the named
// renderer. Every renderer is supported; non-inline renderers get file
// references.
func SupportsRenderer(string) bool { return true }
