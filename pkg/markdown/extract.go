package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
)

func newParser() parser.Parser {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Footnote),
	).Parser()
}

// Extract returns the diagram blocks of src in document order.
//
// Fenced blocks nested in block quotes and list items are found as well.
// Blocks the filter rejects are not returned. Extract has no side effects;
// src is not modified.
func Extract(src []byte, filter Filter) ([]Block, error) {
	doc := newParser().Parse(text.NewReader(src))

	var fences []*ast.FencedCodeBlock
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if fb, ok := n.(*ast.FencedCodeBlock); ok {
			fences = append(fences, fb)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExtraction, err, "walk document")
	}

	openers := make(map[int]bool, len(fences))
	for _, fb := range fences {
		if start, ok := openingLine(src, fb); ok {
			openers[start] = true
		}
	}

	var blocks []Block
	prevEnd := 0
	for _, fb := range fences {
		tag := string(fb.Language(src))
		typ, ok := filter.Match(tag)
		if !ok {
			continue
		}

		span, err := fenceSpan(src, fb, openers)
		if err != nil {
			return nil, err
		}
		if span.Start < prevEnd {
			return nil, errors.New(errors.ErrCodeExtraction, "fenced block %q at %s overlaps the previous block", tag, span)
		}
		prevEnd = span.End

		blocks = append(blocks, Block{
			Language: tag,
			Type:     typ,
			Source:   body(src, fb),
			Span:     span,
			Line:     bytes.Count(src[:span.Start], []byte("\n")) + 1,
			Index:    len(blocks),
		})
	}
	return blocks, nil
}

// body joins the block's content lines. Segment values include the padding
// goldmark adds for tabs that straddle the container indentation.
func body(src []byte, fb *ast.FencedCodeBlock) string {
	var sb strings.Builder
	lines := fb.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(src))
	}
	return sb.String()
}

// fenceSpan locates the opening and closing fences around fb.
func fenceSpan(src []byte, fb *ast.FencedCodeBlock, openers map[int]bool) (Span, error) {
	if fb.Info == nil {
		return Span{}, errors.New(errors.ErrCodeExtraction, "fenced block without info string")
	}

	// Walk back from the info string over spaces and the fence run.
	infoStart := fb.Info.Segment.Start
	i := infoStart
	for i > 0 && (src[i-1] == ' ' || src[i-1] == '\t') {
		i--
	}
	if i == 0 || (src[i-1] != '`' && src[i-1] != '~') {
		return Span{}, errors.New(errors.ErrCodeExtraction, "no opening fence before info string at offset %d", infoStart)
	}
	fenceChar := src[i-1]
	fenceEnd := i
	for i > 0 && src[i-1] == fenceChar {
		i--
	}
	start := i
	fenceLen := fenceEnd - start
	if fenceLen < 3 {
		return Span{}, errors.New(errors.ErrCodeExtraction, "opening fence at offset %d is shorter than three characters", start)
	}
	openLine := lineStart(src, start)

	// The closing fence, if any, is the line right after the last body line.
	var next int
	if lines := fb.Lines(); lines.Len() > 0 {
		next = lines.At(lines.Len() - 1).Stop
	} else {
		next = lineEnd(src, infoStart)
		if next < len(src) {
			next++
		}
	}
	if next > 0 && next < len(src) && src[next-1] != '\n' {
		next = lineEnd(src, next)
		if next < len(src) {
			next++
		}
	}

	if next < len(src) && next != openLine && !openers[next] {
		end := trimCR(src, lineEnd(src, next))
		if isClosingFence(src[next:end], fenceChar, fenceLen) {
			return Span{Start: start, End: end}, nil
		}
	}

	// Unclosed: the block ends with its last body line (or its opening line).
	end := next
	if end > len(src) {
		end = len(src)
	}
	if end > start && src[end-1] == '\n' {
		end--
	}
	end = trimCR(src, end)
	if end < fenceEnd {
		end = lineEnd(src, fenceEnd)
	}
	return Span{Start: start, End: end}, nil
}

// isClosingFence reports whether line (container markers included) closes a
// fence of fenceLen fenceChar characters.
func isClosingFence(line []byte, fenceChar byte, fenceLen int) bool {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t' || line[i] == '>') {
		i++
	}
	run := 0
	for i < len(line) && line[i] == fenceChar {
		run++
		i++
	}
	if run < fenceLen {
		return false
	}
	for ; i < len(line); i++ {
		if line[i] != ' ' && line[i] != '\t' {
			return false
		}
	}
	return true
}

// openingLine returns the offset of the line holding fb's opening fence.
// Fences without an info string and without a body cannot be located and
// report false.
func openingLine(src []byte, fb *ast.FencedCodeBlock) (int, bool) {
	if fb.Info != nil {
		return lineStart(src, fb.Info.Segment.Start), true
	}
	lines := fb.Lines()
	if lines.Len() == 0 {
		return 0, false
	}
	first := lineStart(src, lines.At(0).Start)
	if first == 0 {
		return 0, false
	}
	return lineStart(src, first-1), true
}

func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	return bytes.LastIndexByte(src[:pos], '\n') + 1
}

func lineEnd(src []byte, pos int) int {
	if pos >= len(src) {
		return len(src)
	}
	if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i
	}
	return len(src)
}

func trimCR(src []byte, end int) int {
	if end > 0 && src[end-1] == '\r' {
		return end - 1
	}
	return end
}
