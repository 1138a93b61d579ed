package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkWords(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{"No overlap", "alpha beta gamma delta", 2, 0, []string{"alpha beta", "gamma delta"}},
		{"Shorter than window", "a b c", 10, 2, []string{"a b c"}},
		{"Empty", "", 5, 1, nil},
		{"Whitespace only", " \n\t ", 5, 1, nil},
		{"Overlap", "a b c d e", 3, 1, []string{"a b c", "c d e"}},
		{"Clamped tail", "a b c d e f", 4, 1, []string{"a b c d", "d e f"}},
		{"Step of one", "a b c d", 3, 2, []string{"a b c", "b c d"}},
		{"Exact fit", "a b c", 3, 0, []string{"a b c"}},
		{"Collapses whitespace", "a\n\nb   c\td", 2, 0, []string{"a b", "c d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChunkWords(tt.text, tt.size, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChunkWords_InvalidWindow(t *testing.T) {
	for _, w := range [][2]int{{5, 5}, {2, 3}, {5, -1}, {0, 0}} {
		_, err := ChunkWords("a b c", w[0], w[1])
		assert.ErrorIs(t, err, ErrInvalidWindow, "size=%d overlap=%d", w[0], w[1])
	}
}

func TestChunkWords_Properties(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 2537; i++ {
		sb.WriteString("w")
		sb.WriteString(strings.Repeat("x", i%7))
		sb.WriteString(" ")
	}
	text := sb.String()
	words := strings.Fields(text)

	chunks, err := ChunkWords(text, 1100, 150)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		n := len(strings.Fields(c))
		assert.LessOrEqual(t, n, 1100)
		if i < len(chunks)-1 {
			assert.Equal(t, 1100, n)
		}
	}

	// Consecutive windows share exactly the overlap.
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		cur := strings.Fields(chunks[i])
		assert.Equal(t, prev[len(prev)-150:], cur[:150])
	}

	last := strings.Fields(chunks[len(chunks)-1])
	assert.Equal(t, words[len(words)-1], last[len(last)-1])

	again, err := ChunkWords(text, 1100, 150)
	require.NoError(t, err)
	assert.Equal(t, chunks, again)
}

func TestChunker_SplitAll(t *testing.T) {
	c := NewChunker(2, 0)
	docs := []Document{
		{Name: "a.md", Content: "one two three"},
		{Name: "b.md", Content: ""},
		{Name: "c.md", Content: "four"},
	}

	chunks, err := c.SplitAll(docs)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, Chunk{SourceTitle: "a.md", Index: 0, Text: "one two"}, chunks[0])
	assert.Equal(t, Chunk{SourceTitle: "a.md", Index: 1, Text: "three"}, chunks[1])
	assert.Equal(t, Chunk{SourceTitle: "c.md", Index: 0, Text: "four"}, chunks[2])
	assert.Equal(t, "a.md:1", chunks[1].ID())
}

func TestChunker_InvalidWindow(t *testing.T) {
	c := NewChunker(1, 1)
	_, err := c.SplitAll([]Document{{Name: "a.md", Content: "x"}})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}
