// Package markdown locates diagram blocks in a chapter and splices their
// replacements back into the original text.
//
// The chapter is parsed with goldmark (CommonMark plus GFM), and the parsed
// tree is only used to find where fenced code blocks are. Nothing is ever
// re-rendered from the tree: [Splice] copies every byte outside a replaced
// block straight from the input, so spacing, emphasis markers, reference
// definitions and HTML survive exactly as written.
//
// Typical use:
//
//	blocks, err := markdown.Extract(src, markdown.Filter{Prefix: "diagram-"})
//	edits := make([]markdown.Edit, 0, len(blocks))
//	for _, b := range blocks {
//	    edits = append(edits, markdown.Edit{Span: b.Span, Text: render(b)})
//	}
//	out, err := markdown.Splice(src, edits)
package markdown
