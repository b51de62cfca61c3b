package markdown

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplice(t *testing.T) {
	src := []byte("aaa BBB ccc DDD eee")

	tests := []struct {
		name  string
		edits []Edit
		want  string
	}{
		{"no edits", nil, "aaa BBB ccc DDD eee"},
		{"single", []Edit{{Span{4, 7}, "x"}}, "aaa x ccc DDD eee"},
		{"two in order", []Edit{{Span{4, 7}, "1"}, {Span{12, 15}, "2"}}, "aaa 1 ccc 2 eee"},
		{"two out of order", []Edit{{Span{12, 15}, "2"}, {Span{4, 7}, "1"}}, "aaa 1 ccc 2 eee"},
		{"adjacent", []Edit{{Span{0, 4}, "A"}, {Span{4, 7}, "B"}}, "AB ccc DDD eee"},
		{"insertion", []Edit{{Span{3, 3}, "!"}}, "aaa! BBB ccc DDD eee"},
		{"whole document", []Edit{{Span{0, len(src)}, "new"}}, "new"},
		{"grow", []Edit{{Span{4, 7}, "a much longer replacement"}}, "aaa a much longer replacement ccc DDD eee"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Splice(src, tt.edits)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
	assert.Equal(t, "aaa BBB ccc DDD eee", string(src), "input must not be modified")
}

func TestSpliceErrors(t *testing.T) {
	src := []byte("0123456789")

	tests := []struct {
		name  string
		edits []Edit
	}{
		{"overlap", []Edit{{Span{0, 5}, "a"}, {Span{4, 6}, "b"}}},
		{"past end", []Edit{{Span{8, 11}, "a"}}},
		{"negative", []Edit{{Span{-1, 2}, "a"}}},
		{"inverted", []Edit{{Span{5, 3}, "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Splice(src, tt.edits)
			var re *ReassemblyError
			require.True(t, errors.As(err, &re), "got %v", err)
		})
	}
}

func TestBlockEdit(t *testing.T) {
	filter := Filter{Prefix: "diagram-"}
	tests := []struct {
		name string
		src  string
		text string
		want string
	}{
		{
			name: "already separated",
			src:  "Intro\n\n```diagram-x\ny\n```\n\nOutro\n",
			text: "![](i)",
			want: "Intro\n\n![](i)\n\nOutro\n",
		},
		{
			name: "touching paragraphs",
			src:  "Intro line\n```diagram-x\ny\n```\nOutro line\n",
			text: "![](i)",
			want: "Intro line\n\n![](i)\n\nOutro line\n",
		},
		{
			name: "inside block quote",
			src:  "> Intro\n> ```diagram-x\n> y\n> ```\n> Outro\n",
			text: "![](i)",
			want: "> Intro\n> \n> ![](i)\n>\n> Outro\n",
		},
		{
			name: "first in list item",
			src:  "- ```diagram-x\n  y\n  ```\n  more\n",
			text: "![](i)",
			want: "- ![](i)\n\n  more\n",
		},
		{
			name: "multi-line text in block quote",
			src:  "> ```diagram-x\n> y\n> ```\n",
			text: "<figure>\n<svg/>\n</figure>",
			want: "> <figure>\n> <svg/>\n> </figure>\n",
		},
		{
			name: "end of document",
			src:  "Intro\n```diagram-x\ny\n```",
			text: "![](i)",
			want: "Intro\n\n![](i)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := []byte(tt.src)
			blocks, err := Extract(src, filter)
			require.NoError(t, err)
			require.Len(t, blocks, 1)

			got, err := Splice(src, []Edit{BlockEdit(src, blocks[0].Span, tt.text)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}
