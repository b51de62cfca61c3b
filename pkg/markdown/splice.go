package markdown

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
)

// Edit replaces the bytes covered by Span with Text.
type Edit struct {
	Span Span
	Text string
}

// ReassemblyError reports an edit that cannot be applied.
type ReassemblyError struct {
	Span   Span
	Reason string
}

func (e *ReassemblyError) Error() string {
	return fmt.Sprintf("cannot splice edit at %s: %s", e.Span, e.Reason)
}

// Splice applies edits to src and returns the new document. Bytes outside
// every edit are copied unchanged. Edits may be given in any order but must
// not overlap or reach outside src. src is not modified.
func Splice(src []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return bytes.Clone(src), nil
	}

	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b Edit) int {
		return a.Span.Start - b.Span.Start
	})

	grow := len(src)
	pos := 0
	for _, e := range sorted {
		switch {
		case e.Span.Start < 0 || e.Span.End > len(src):
			return nil, &ReassemblyError{Span: e.Span, Reason: fmt.Sprintf("outside document of %d bytes", len(src))}
		case e.Span.Start > e.Span.End:
			return nil, &ReassemblyError{Span: e.Span, Reason: "start after end"}
		case e.Span.Start < pos:
			return nil, &ReassemblyError{Span: e.Span, Reason: "overlaps a previous edit"}
		}
		pos = e.Span.End
		grow += len(e.Text) - e.Span.Len()
	}

	var out bytes.Buffer
	out.Grow(max(grow, 0))
	pos = 0
	for _, e := range sorted {
		out.Write(src[pos:e.Span.Start])
		out.WriteString(e.Text)
		pos = e.Span.End
	}
	out.Write(src[pos:])
	return out.Bytes(), nil
}

// BlockEdit returns an edit that replaces the block at span with text so
// that text stays a block of its own. A fenced block may touch paragraph
// lines, an image may not: without separation the replacement would merge
// into its neighbours. Blank lines are added where a neighbouring line has
// content, and continuation lines of text repeat the container prefix
// (block quote markers, list indentation) of the opening line.
func BlockEdit(src []byte, span Span, text string) Edit {
	open := lineStart(src, span.Start)
	prefix := src[open:span.Start]
	cont := continuation(prefix)

	var sb strings.Builder
	if open > 0 && bytes.Equal(prefix, cont) && !blankLine(src[lineStart(src, open-1):open-1]) {
		sb.WriteString("\n")
		sb.Write(prefix)
	}
	sb.WriteString(strings.ReplaceAll(text, "\n", "\n"+string(cont)))

	next := span.End
	if next < len(src) && src[next] == '\r' {
		next++
	}
	if next < len(src) && src[next] == '\n' {
		if line := src[next+1 : lineEnd(src, next+1)]; !blankLine(line) {
			sb.WriteString("\n")
			sb.Write(bytes.TrimRight(cont, " \t"))
		}
	}
	return Edit{Span: span, Text: sb.String()}
}

// continuation turns the prefix of a block's first line into the prefix of
// its following lines: quote markers stay, list markers become spaces.
func continuation(prefix []byte) []byte {
	out := make([]byte, len(prefix))
	for i, c := range prefix {
		switch c {
		case '>', ' ', '\t':
			out[i] = c
		default:
			out[i] = ' '
		}
	}
	return out
}

// blankLine reports whether line holds nothing but container markers.
func blankLine(line []byte) bool {
	return len(bytes.Trim(line, " \t\r>")) == 0
}
